// Package paymentprovider подключает платёжный шлюз Stripe:
// создание PaymentIntent и проверку подписи вебхуков.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const (
	// MetadataUserUID ключ метаданных с UID пользователя
	MetadataUserUID = "user_uid"
	// MetadataPaymentID ключ метаданных с ID платежа
	MetadataPaymentID = "payment_id"

	// EventPaymentSucceeded событие успешной оплаты
	EventPaymentSucceeded = "payment_intent.succeeded"
	// EventPaymentFailed попытка оплаты отклонена; PaymentIntent можно оплатить повторно
	EventPaymentFailed = "payment_intent.payment_failed"
	// EventPaymentCanceled PaymentIntent отменён и больше не будет оплачен
	EventPaymentCanceled = "payment_intent.canceled"
)

// ErrSignature подпись вебхука не прошла проверку.
var ErrSignature = errors.New("invalid webhook signature")

// IsSimulated сообщает, что ключ шлюза не настроен и оплата симулируется.
func IsSimulated(secretKey string) bool {
	return secretKey == "" || secretKey == "sk_test_xxx" || strings.Contains(secretKey, "USE_YOUR")
}

// IntentRequest параметры создания PaymentIntent.
type IntentRequest struct {
	PaymentID int64
	UserUID   string
	Plan      models.Plan
	Amount    int64
	Currency  string
}

// Intent созданное в шлюзе намерение оплаты.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Stripe клиент шлюза поверх stripe-go.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe создаёт клиента. backends nil означает боевые адреса Stripe.
func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// CreatePaymentIntent создаёт PaymentIntent с метаданными пользователя и платежа.
// ID платежа служит ключом идемпотентности.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	const op = "paymentprovider.CreatePaymentIntent"

	paymentID := strconv.FormatInt(req.PaymentID, 10)
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String("Filesfy " + string(req.Plan)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserUID, req.UserUID)
	params.AddMetadata(MetadataPaymentID, paymentID)
	params.SetIdempotencyKey("payment-" + paymentID)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// ParseEvent проверяет подпись вебхука и извлекает ссылку на PaymentIntent.
func (s *Stripe) ParseEvent(payload []byte, signature string) (*models.GatewayEvent, error) {
	const op = "paymentprovider.ParseEvent"

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSignature, err)
	}

	out := &models.GatewayEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data == nil || !strings.HasPrefix(out.Type, "payment_intent.") {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.GatewayRef = pi.ID
	out.Metadata = pi.Metadata
	return out, nil
}
