// Package testlogin реализует тестовый вход без пароля. Вне тестового
// режима маршрут отвечает 404.
package testlogin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/services/auth"
)

// Request — email и имя тестового пользователя
type Request struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// Service выполняет тестовый вход.
type Service interface {
	TestLogin(ctx context.Context, email, name string) (*auth.Session, error)
}

// Handler обрабатывает тестовый вход.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Тестовый вход
// @Description Доступен только в тестовом режиме. При недоступной базе выдаёт синтетическую личность.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body Request true "Email и имя"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /auth/test-login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.testlogin"

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

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	session, err := h.service.TestLogin(r.Context(), req.Email, req.Name)
	if err != nil {
		log.Error("test login failed", sl.Err(err))
		response.Fail(w, r, err, "test login is not available")
		return
	}

	if session.Synthetic {
		log.Warn("issued synthetic identity", slog.String("user_uid", session.User.ID))
	}
	render.JSON(w, r, response.OKWithData(session))
}
