// Package verify реализует проверку токена из заголовка Authorization.
package verify

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
	"github.com/magabrotheeeer/filesfy/internal/services/auth"
)

// Service проверяет токен.
type Service interface {
	Verify(ctx context.Context, token string) (*auth.Session, error)
}

// Handler обрабатывает проверку токена.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверка токена
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := middlewarectx.BearerToken(r)
	if !ok {
		log.Warn("token not provided")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "token not provided"))
		return
	}

	session, err := h.service.Verify(r.Context(), token)
	if err != nil {
		log.Warn("token verification failed", sl.Err(err))
		response.Fail(w, r, err, "invalid token")
		return
	}

	render.JSON(w, r, response.OKWithData(session))
}
