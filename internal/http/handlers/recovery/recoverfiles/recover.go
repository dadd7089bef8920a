// Package recoverfiles реализует восстановление выбранных файлов с проверкой
// квот тарифа.
package recoverfiles

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
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Request выбранные файлы и каталог назначения.
type Request struct {
	Files       []models.Item `json:"files" validate:"required,min=1,dive"`
	Destination string        `json:"destination" validate:"required"`
}

// Service восстанавливает файлы.
type Service interface {
	Recover(ctx context.Context, plan string, files []models.Item, destination string) (*models.RecoveryReceipt, error)
}

// Handler обрабатывает восстановление.
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
// @Summary Восстановление файлов
// @Description Запрос сверх квоты тарифа отклоняется целиком
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body Request true "Файлы и каталог назначения"
// @Success 200 {object} response.Response{data=models.RecoveryReceipt}
// @Failure 400 {object} response.ErrorResponse
// @Router /recovery/recover [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recovery.recover"

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

	receipt, err := h.service.Recover(r.Context(), middlewarectx.PlanFrom(r.Context()), req.Files, req.Destination)
	if err != nil {
		log.Warn("recovery rejected", sl.Err(err))
		response.Fail(w, r, err, "recovery failed")
		return
	}

	render.JSON(w, r, response.OKWithData(receipt))
}
