// Package upgrade реализует административную смену тарифа без оплаты.
// Маршруты защищены ключом администратора.
package upgrade

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

// Mode направление смены тарифа.
type Mode int

const (
	// ModeUpgrade перевод на PRO
	ModeUpgrade Mode = iota
	// ModeDowngrade перевод на FREE
	ModeDowngrade
)

// Service меняет тариф пользователя.
type Service interface {
	Upgrade(ctx context.Context, userUID string) (*models.Subscription, error)
	Downgrade(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Handler обрабатывает смену тарифа администратором.
type Handler struct {
	log     *slog.Logger
	service Service
	mode    Mode
}

// New создает Handler для указанного направления.
func New(log *slog.Logger, service Service, mode Mode) *Handler {
	return &Handler{log: log, service: service, mode: mode}
}

// ServeHTTP godoc
// @Summary Смена тарифа администратором
// @Tags subscriptions
// @Produce json
// @Param X-Admin-Key header string true "Ключ администратора"
// @Param userId path string true "ID пользователя"
// @Success 200 {object} response.Response{data=models.SubscriptionView}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /subscriptions/{userId}/upgrade [post]
// @Router /subscriptions/{userId}/downgrade [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.upgrade"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "userId")

	var (
		sub *models.Subscription
		err error
	)
	if h.mode == ModeDowngrade {
		sub, err = h.service.Downgrade(r.Context(), userUID)
	} else {
		sub, err = h.service.Upgrade(r.Context(), userUID)
	}
	if err != nil {
		log.Error("failed to change plan", sl.Err(err), slog.String("user_uid", userUID))
		response.Fail(w, r, err, "could not change plan")
		return
	}

	log.Info("plan changed by admin", slog.String("user_uid", userUID), slog.String("plan", string(sub.Plan)))
	render.JSON(w, r, response.OKWithData(sub.View()))
}
