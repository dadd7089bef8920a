// Package plans отдаёт витрину тарифов.
package plans

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Service возвращает тарифы.
type Service interface {
	Plans() []models.PlanInfo
}

// Handler отдаёт список тарифов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список тарифов
// @Tags subscriptions
// @Produce json
// @Success 200 {object} response.Response{data=[]models.PlanInfo}
// @Router /subscriptions/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.service.Plans()))
}
