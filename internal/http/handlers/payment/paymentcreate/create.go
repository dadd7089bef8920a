// Package paymentcreate обрабатывает создание и проведение платежа за тариф.
package paymentcreate

import (
	"context"
	"encoding/json"
	"fmt"
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
	"github.com/magabrotheeeer/filesfy/internal/services/payment"
)

// Request запрос на оплату тарифа.
type Request struct {
	PlanType string `json:"planType" validate:"required"`
}

// IntentResponse ответ с проведённым или ожидающим подтверждения платежом.
type IntentResponse struct {
	Message      string                   `json:"message"`
	ClientSecret string                   `json:"clientSecret"`
	PaymentID    int64                    `json:"paymentId"`
	Simulated    bool                     `json:"simulated"`
	Payment      *models.Payment          `json:"payment"`
	Subscription *models.SubscriptionView `json:"subscription,omitempty"`
	Token        string                   `json:"token,omitempty"`
}

// Service проводит оплату.
type Service interface {
	Pay(ctx context.Context, userUID string, plan models.Plan) (*payment.Settlement, error)
}

// Handler обрабатывает запросы на оплату.
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
// @Summary Оплата тарифа
// @Description В симулированном режиме платёж подтверждается сразу и возвращается новый токен
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Тариф"
// @Success 200 {object} response.Response{data=IntentResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /payments/intent [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"

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

	plan, ok := models.ParsePlan(req.PlanType)
	if !ok {
		log.Warn("unknown plan", slog.String("plan", req.PlanType))
		response.Fail(w, r, fmt.Errorf("%w: unknown plan %q", apperr.ErrValidation, req.PlanType), "")
		return
	}

	res, err := h.service.Pay(r.Context(), userUID, plan)
	if err != nil {
		log.Error("payment failed", sl.Err(err), slog.String("user_uid", userUID))
		response.Fail(w, r, err, "failed to process payment")
		return
	}

	out := IntentResponse{
		Message:      "payment created",
		ClientSecret: res.ClientSecret,
		PaymentID:    res.Payment.ID,
		Simulated:    res.Simulated,
		Payment:      res.Payment,
		Token:        res.Token,
	}
	if res.Subscription != nil {
		view := res.Subscription.View()
		out.Subscription = &view
	}
	if res.Simulated {
		out.Message = "payment simulated"
	}

	log.Info("payment processed",
		slog.Int64("payment_id", res.Payment.ID),
		slog.String("status", string(res.Payment.Status)),
	)
	render.JSON(w, r, response.OKWithData(out))
}
