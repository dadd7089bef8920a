// Package register реализует HTTP-обработчик регистрации пользователя.
package register

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

// Request — входные данные для регистрации
type Request struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service создаёт пользователя и выдаёт токен.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*auth.Session, error)
}

// Handler обрабатывает регистрацию.
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
// @Summary Регистрация пользователя
// @Description Создаёт пользователя с бесплатной подпиской и возвращает токен
// @Tags auth
// @Accept json
// @Produce json
// @Param request body Request true "Данные пользователя"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 400 {object} response.ErrorResponse
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	session, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.Fail(w, r, err, "failed to register user")
		return
	}

	log.Info("user registered", slog.String("user_uid", session.User.ID))
	render.JSON(w, r, response.OKWithData(session))
}
