// Package paymentwebhook реализует HTTP-обработчик вебхуков платёжного шлюза.
//
// Подпись проверяется по заголовку Stripe-Signature. Повторная доставка
// события подтверждается без повторного изменения тарифа.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/filesfy/internal/http/response"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/paymentprovider"
	"github.com/magabrotheeeer/filesfy/internal/services/payment"
)

// SignatureHeader заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

const maxBodyBytes = 65536

// EventParser проверяет подпись и разбирает событие шлюза.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*models.GatewayEvent, error)
}

// Service применяет подтверждение оплаты.
type Service interface {
	OnGatewayConfirmation(ctx context.Context, event models.GatewayEvent) (payment.Ack, error)
}

// Ack ответ шлюзу.
type Ack struct {
	Received bool   `json:"received"`
	Warning  string `json:"warning,omitempty"`
}

// Handler обрабатывает вебхуки.
type Handler struct {
	log     *slog.Logger
	parser  EventParser
	service Service
}

// New создает Handler. parser nil означает, что шлюз не настроен.
func New(log *slog.Logger, parser EventParser, service Service) *Handler {
	return &Handler{
		log:     log,
		parser:  parser,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного шлюза
// @Tags payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} Ack
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.parser == nil {
		log.Warn("webhook received but payment gateway is not configured")
		render.JSON(w, r, Ack{Received: true, Warning: "payment gateway is not configured"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}

	event, err := h.parser.ParseEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, paymentprovider.ErrSignature) {
			log.Warn("webhook signature rejected", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorKind(apperr.KindAuth, "invalid signature"))
			return
		}
		log.Error("failed to parse webhook event", sl.Err(err))
		response.BadRequest(w, r, "invalid event payload")
		return
	}

	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	ack, err := h.service.OnGatewayConfirmation(r.Context(), *event)
	if err != nil {
		log.Error("failed to apply gateway event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ErrorKind(apperr.Kind(err), "failed to process event"))
		return
	}

	log.Info("webhook processed", slog.Bool("matched", ack.Matched), slog.Bool("applied", ack.Applied))
	render.JSON(w, r, Ack{Received: true})
}
