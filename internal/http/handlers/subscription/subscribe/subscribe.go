// Package subscribe реализует смену тарифа пользователем.
//
// Переход на FREE выполняется сразу. Переход на PRO проходит через оплату,
// бесплатного обхода нет.
package subscribe

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

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

// Request выбор тарифа.
type Request struct {
	PlanID string `json:"planId" validate:"required,oneof=free pro FREE PRO"`
}

// Result ответ после смены тарифа.
type Result struct {
	Success      bool                     `json:"success"`
	Token        string                   `json:"token,omitempty"`
	Subscription *models.SubscriptionView `json:"subscription,omitempty"`
	Payment      *models.Payment          `json:"payment,omitempty"`
	ClientSecret string                   `json:"clientSecret,omitempty"`
}

// Ledger меняет тариф без оплаты.
type Ledger interface {
	TransitionPlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error)
	Publish(ctx context.Context, event models.PlanChanged)
}

// Payer проводит оплату платного тарифа.
type Payer interface {
	Pay(ctx context.Context, userUID string, plan models.Plan) (*payment.Settlement, error)
}

// Issuer выпускает токен с актуальным тарифом.
type Issuer interface {
	Reissue(ctx context.Context, userUID string) (string, error)
}

// Handler обрабатывает смену тарифа.
type Handler struct {
	log      *slog.Logger
	ledger   Ledger
	payer    Payer
	issuer   Issuer
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, ledger Ledger, payer Payer, issuer Issuer) *Handler {
	return &Handler{
		log:      log,
		ledger:   ledger,
		payer:    payer,
		issuer:   issuer,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Смена тарифа
// @Description FREE применяется сразу, PRO проводится через оплату
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Тариф"
// @Success 200 {object} response.Response{data=Result}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /subscriptions/subscribe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.subscribe"

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
	plan, _ := models.ParsePlan(req.PlanID)
	log = log.With(slog.String("user_uid", userUID), slog.String("plan", string(plan)))

	if plan == models.PlanPro {
		res, err := h.payer.Pay(r.Context(), userUID, plan)
		if err != nil {
			log.Error("payment failed", sl.Err(err))
			response.Fail(w, r, err, "failed to process payment")
			return
		}
		render.JSON(w, r, response.OKWithData(Result{
			Success:      res.Payment.Status == models.PaymentPaid,
			Token:        res.Token,
			Subscription: viewOf(res.Subscription),
			Payment:      res.Payment,
			ClientSecret: res.ClientSecret,
		}))
		return
	}

	sub, err := h.ledger.TransitionPlan(r.Context(), userUID, plan)
	if err != nil {
		log.Error("failed to change plan", sl.Err(err))
		response.Fail(w, r, err, "failed to change plan")
		return
	}
	h.ledger.Publish(r.Context(), models.PlanChanged{
		UserUID:   userUID,
		Plan:      plan,
		Source:    "subscribe",
		ChangedAt: time.Now().UTC(),
	})

	token, err := h.issuer.Reissue(r.Context(), userUID)
	if err != nil {
		log.Error("failed to reissue token", sl.Err(err))
		response.Fail(w, r, err, "failed to issue token")
		return
	}

	log.Info("plan changed")
	render.JSON(w, r, response.OKWithData(Result{
		Success:      true,
		Token:        token,
		Subscription: viewOf(sub),
	}))
}

func viewOf(sub *models.Subscription) *models.SubscriptionView {
	if sub == nil {
		return nil
	}
	v := sub.View()
	return &v
}
