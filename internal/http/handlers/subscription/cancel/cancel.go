// Package cancel реализует отмену подписки её владельцем.
package cancel

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Service отменяет подписку пользователя.
type Service interface {
	CancelFor(ctx context.Context, userUID string, subscriptionID int64) (*models.Subscription, error)
}

// Handler обрабатывает отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отмена подписки
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response{data=models.SubscriptionView}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"

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

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		response.BadRequest(w, r, "failed to decode id from url")
		return
	}

	sub, err := h.service.CancelFor(r.Context(), userUID, id)
	if err != nil {
		log.Error("failed to cancel subscription", sl.Err(err), slog.Int64("subscription_id", id))
		response.Fail(w, r, err, "could not cancel subscription")
		return
	}

	log.Info("subscription cancelled", slog.Int64("subscription_id", id))
	render.JSON(w, r, response.OKWithData(sub.View()))
}
