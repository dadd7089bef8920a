// Package read реализует HTTP-обработчик для получения текущей подписки
// пользователя.
//
// Пользователь без активной подписки получает представление бесплатного тарифа.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Handler обрабатывает запросы на получение подписки пользователя.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики
}

// Service описывает интерфейс бизнес-логики чтения подписки.
type Service interface {
	View(ctx context.Context, userUID string) (*models.SubscriptionView, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Подписка пользователя
// @Tags subscriptions
// @Produce json
// @Param userId path string true "ID пользователя"
// @Success 200 {object} response.Response{data=models.SubscriptionView}
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /subscriptions/{userId} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "userId")

	view, err := h.service.View(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read subscription", sl.Err(err), slog.String("user_uid", userUID))
		response.Fail(w, r, err, "could not read subscription")
		return
	}

	render.JSON(w, r, response.OKWithData(view))
}
