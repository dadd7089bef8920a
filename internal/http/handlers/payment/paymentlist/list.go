package paymentlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Service возвращает историю платежей.
type Service interface {
	History(ctx context.Context, userUID string) ([]*models.Payment, error)
}

// Handler отдаёт платежи текущего пользователя.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История платежей
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Payment}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "user identification missing"))
		return
	}

	payments, err := h.service.History(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.Fail(w, r, err, "failed to list payments")
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}

	render.JSON(w, r, response.OKWithData(payments))
}
