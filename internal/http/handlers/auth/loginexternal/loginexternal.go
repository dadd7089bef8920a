// Package loginexternal реализует вход по токену внешнего провайдера (Google).
package loginexternal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/services/auth"
)

// Request содержит ID-токен провайдера.
type Request struct {
	Token string `json:"token"`
}

// Service входит через внешний провайдер.
type Service interface {
	LoginExternal(ctx context.Context, token string) (*auth.Session, error)
}

// Handler обрабатывает вход через внешний провайдер.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вход через Google
// @Tags auth
// @Accept json
// @Produce json
// @Param request body Request true "ID-токен"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/login-external [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.loginexternal"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}

	session, err := h.service.LoginExternal(r.Context(), req.Token)
	if err != nil {
		log.Error("external login failed", sl.Err(err))
		response.Fail(w, r, err, "authentication failed")
		return
	}

	render.JSON(w, r, response.OKWithData(session))
}
