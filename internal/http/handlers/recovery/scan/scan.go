// Package scan реализует запуск сканирования устройства и запрос его
// состояния. Квоты применяются по тарифу из токена, анонимный запрос
// обслуживается по бесплатному тарифу.
package scan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Request параметры сканирования.
type Request struct {
	DeviceID string `json:"deviceId" validate:"required"`
	FileType string `json:"fileType"`
}

// Service сканирует устройства.
type Service interface {
	Scan(ctx context.Context, plan, deviceID, fileType string) (*models.ScanResult, error)
	ScanStatus(scanID string) (*models.ScanStatus, error)
}

// Handler запускает сканирование.
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
// @Summary Сканирование устройства
// @Tags recovery
// @Accept json
// @Produce json
// @Param request body Request true "Устройство и группа типов"
// @Success 200 {object} response.Response{data=models.ScanResult}
// @Failure 400 {object} response.ErrorResponse
// @Router /recovery/scan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recovery.scan"

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

	res, err := h.service.Scan(r.Context(), middlewarectx.PlanFrom(r.Context()), req.DeviceID, req.FileType)
	if err != nil {
		log.Error("scan failed", sl.Err(err))
		response.Fail(w, r, err, "scan failed")
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}

// StatusHandler отдаёт состояние сканирования.
type StatusHandler struct {
	log     *slog.Logger
	service Service
}

// NewStatus создает StatusHandler.
func NewStatus(log *slog.Logger, service Service) *StatusHandler {
	return &StatusHandler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние сканирования
// @Tags recovery
// @Produce json
// @Param scanId path string true "ID сканирования"
// @Success 200 {object} response.Response{data=models.ScanStatus}
// @Router /recovery/scan/{scanId} [get]
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recovery.scanstatus"

	status, err := h.service.ScanStatus(chi.URLParam(r, "scanId"))
	if err != nil {
		h.log.Error("failed to get scan status",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		response.Fail(w, r, err, "failed to get scan status")
		return
	}
	render.JSON(w, r, response.OKWithData(status))
}
