// Package logout реализует выход: токен отзывается, если настроен список
// отозванных токенов.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
)

// Service отзывает токен.
type Service interface {
	Logout(ctx context.Context, token string) error
}

// Handler обрабатывает выход.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if token, ok := middlewarectx.BearerToken(r); ok {
		if err := h.service.Logout(r.Context(), token); err != nil {
			log.Error("failed to revoke token", sl.Err(err))
		}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"success": true,
		"message": "logged out",
	}))
}
