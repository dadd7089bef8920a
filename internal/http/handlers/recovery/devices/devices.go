// Package devices отдаёт список устройств для сканирования.
package devices

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Service возвращает устройства.
type Service interface {
	Devices(ctx context.Context) ([]models.Device, error)
}

// Handler отдаёт устройства.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список устройств
// @Tags recovery
// @Produce json
// @Success 200 {object} response.Response{data=[]models.Device}
// @Failure 500 {object} response.ErrorResponse
// @Router /recovery/devices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.recovery.devices"

	devices, err := h.service.Devices(r.Context())
	if err != nil {
		h.log.Error("failed to list devices",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		response.Fail(w, r, err, "failed to list devices")
		return
	}
	render.JSON(w, r, response.OKWithData(devices))
}
