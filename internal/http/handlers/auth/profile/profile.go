// Package profile реализует изменение профиля пользователя. Изменить можно
// только имя и аватар.
package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Request изменяемые поля профиля. Отсутствующее поле не меняется.
type Request struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// Service меняет профиль.
type Service interface {
	UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.UserView, error)
}

// Handler обрабатывает изменение профиля.
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
// @Summary Изменение профиля
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.UserView}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/profile [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.profile"

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

	var req Request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	view, err := h.service.UpdateProfile(r.Context(), userUID, models.ProfileUpdate{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		response.Fail(w, r, err, "failed to update profile")
		return
	}

	render.JSON(w, r, response.OKWithData(view))
}
