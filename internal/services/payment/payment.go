// Package payment проводит оплату тарифов: создаёт платёж, подтверждает его
// в симулированном режиме или через шлюз и применяет смену тарифа.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/paymentprovider"
)

const (
	modeSimulated = "simulated"
	modeGateway   = "gateway"
)

// Repository методы хранилища платежей.
type Repository interface {
	CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentByGatewayRef(ctx context.Context, ref string) (*models.Payment, error)
	SetGatewayRef(ctx context.Context, id int64, ref string) error
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (bool, error)
	MarkPlanApplied(ctx context.Context, id int64) (bool, error)
	ListPayments(ctx context.Context, userUID string) ([]*models.Payment, error)
}

// Ledger учёт подписок, которым управляет оплата.
type Ledger interface {
	CreateDefault(ctx context.Context, userUID string) (*models.Subscription, error)
	CurrentFor(ctx context.Context, userUID string) (*models.Subscription, error)
	TransitionPlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error)
	PriceOf(plan models.Plan) (int64, bool)
	Publish(ctx context.Context, event models.PlanChanged)
}

// Gateway внешний платёжный шлюз.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req paymentprovider.IntentRequest) (*paymentprovider.Intent, error)
}

// TokenIssuer перевыпускает токен после смены тарифа.
type TokenIssuer interface {
	Reissue(ctx context.Context, userUID string) (string, error)
}

// Metrics счётчики платежей.
type Metrics interface {
	IncPaymentCreated(plan string)
	IncPaymentStatus(status, mode string)
	ObservePaymentAmount(amount int64, currency string)
}

// Settlement результат проведения платежа.
type Settlement struct {
	Payment      *models.Payment      `json:"payment"`
	ClientSecret string               `json:"clientSecret"`
	Simulated    bool                 `json:"simulated"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
	Token        string               `json:"token,omitempty"`
}

// Ack результат обработки события шлюза.
type Ack struct {
	Matched bool
	Applied bool
}

// Service проводит платежи.
type Service struct {
	repo      Repository
	ledger    Ledger
	gateway   Gateway
	issuer    TokenIssuer
	metrics   Metrics
	currency  string
	simulated bool
	log       *slog.Logger
}

// New создаёт сервис. gateway nil включает симулированный режим.
func New(repo Repository, ledger Ledger, gateway Gateway, issuer TokenIssuer, metrics Metrics,
	currency string, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		gateway:   gateway,
		issuer:    issuer,
		metrics:   metrics,
		currency:  currency,
		simulated: gateway == nil,
		log:       log,
	}
}

// Simulated сообщает, что оплата подтверждается без шлюза.
func (s *Service) Simulated() bool {
	return s.simulated
}

func (s *Service) mode() string {
	if s.simulated {
		return modeSimulated
	}
	return modeGateway
}

// CreateIntent создаёт платёж в статусе pending по цене тарифа.
func (s *Service) CreateIntent(ctx context.Context, userUID string, plan models.Plan) (*models.Payment, error) {
	const op = "payment.CreateIntent"
	if userUID == "" {
		return nil, fmt.Errorf("%s: %w: user id is required", op, apperr.ErrValidation)
	}
	price, ok := s.ledger.PriceOf(plan)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown plan %q", op, apperr.ErrValidation, plan)
	}
	if price == 0 {
		return nil, fmt.Errorf("%s: %w: plan %s does not require payment", op, apperr.ErrValidation, plan)
	}

	sub, err := s.ledger.CurrentFor(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p := models.Payment{
		UserUID:  userUID,
		Plan:     plan,
		Amount:   price,
		Currency: s.currency,
	}
	if sub != nil {
		p.SubscriptionID = &sub.ID
	}

	created, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.metrics != nil {
		s.metrics.IncPaymentCreated(string(plan))
	}
	s.log.Info("payment created",
		slog.String("op", op),
		slog.Int64("payment_id", created.ID),
		slog.String("user_uid", userUID),
	)
	return created, nil
}

// Settle проводит платёж. В симулированном режиме платёж сразу отмечается
// оплаченным и тариф меняется; повторный вызов возвращает текущую подписку
// без новой смены тарифа. Через шлюз создаётся PaymentIntent, а тариф
// меняется по вебхуку.
func (s *Service) Settle(ctx context.Context, paymentID int64) (*Settlement, error) {
	const op = "payment.Settle"

	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.Status == models.PaymentFailed {
		return nil, fmt.Errorf("%s: %w: payment %d has failed", op, apperr.ErrPrecondition, p.ID)
	}

	if s.simulated {
		return s.settleSimulated(ctx, p)
	}

	if p.Status == models.PaymentPaid {
		return s.settled(ctx, p, "", true)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, paymentprovider.IntentRequest{
		PaymentID: p.ID,
		UserUID:   p.UserUID,
		Plan:      p.Plan,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.GatewayRef == nil || *p.GatewayRef != intent.ID {
		if err := s.repo.SetGatewayRef(ctx, p.ID, intent.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.GatewayRef = &intent.ID
	}

	return &Settlement{
		Payment:      p,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (s *Service) settleSimulated(ctx context.Context, p *models.Payment) (*Settlement, error) {
	const op = "payment.settleSimulated"

	secret := "sim_" + strconv.FormatInt(p.ID, 10)
	if p.Status == models.PaymentPending {
		if _, err := s.markPaid(ctx, p); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s.settled(ctx, p, secret, false)
	}
	return s.settled(ctx, p, secret, true)
}

// settled возвращает результат для оплаченного платежа. С repair тариф
// применяется, только если платёж оплачен, а отметки о применении нет.
func (s *Service) settled(ctx context.Context, p *models.Payment, clientSecret string, repair bool) (*Settlement, error) {
	const op = "payment.settled"

	var (
		sub *models.Subscription
		err error
	)
	if repair && !p.PlanApplied() {
		sub, err = s.repairPlan(ctx, p)
	} else {
		sub, err = s.ledger.CurrentFor(ctx, p.UserUID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &Settlement{
		Payment:      p,
		ClientSecret: clientSecret,
		Simulated:    s.simulated,
		Subscription: sub,
	}
	if s.issuer != nil {
		token, err := s.issuer.Reissue(ctx, p.UserUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res.Token = token
	}
	return res, nil
}

// markPaid переводит платёж в paid. Смену тарифа применяет только тот вызов,
// чьё условное обновление изменило строку.
func (s *Service) markPaid(ctx context.Context, p *models.Payment) (bool, error) {
	const op = "payment.markPaid"

	flipped, err := s.repo.SetPaymentStatus(ctx, p.ID, models.PaymentPaid)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !flipped {
		current, err := s.repo.GetPayment(ctx, p.ID)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		*p = *current
		if p.Status != models.PaymentPaid {
			return false, fmt.Errorf("%s: %w: payment %d is %s", op, apperr.ErrPrecondition, p.ID, p.Status)
		}
		return false, nil
	}

	p.Status = models.PaymentPaid
	if s.metrics != nil {
		s.metrics.IncPaymentStatus(string(models.PaymentPaid), s.mode())
		s.metrics.ObservePaymentAmount(p.Amount, p.Currency)
	}
	if _, err := s.applyPlan(ctx, p); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment settled",
		slog.String("op", op),
		slog.Int64("payment_id", p.ID),
		slog.String("user_uid", p.UserUID),
		slog.String("plan", string(p.Plan)),
	)
	return true, nil
}

// repairPlan применяет тариф по оплаченному платежу, если предыдущая
// попытка оборвалась между оплатой и сменой тарифа.
func (s *Service) repairPlan(ctx context.Context, p *models.Payment) (*models.Subscription, error) {
	s.log.Warn("paid plan not applied, repairing",
		slog.Int64("payment_id", p.ID),
		slog.String("user_uid", p.UserUID),
	)
	return s.applyPlan(ctx, p)
}

// applyPlan меняет тариф и отмечает платёж как применённый. Событие
// публикует только вызов, поставивший отметку.
func (s *Service) applyPlan(ctx context.Context, p *models.Payment) (*models.Subscription, error) {
	sub, err := s.transition(ctx, p.UserUID, p.Plan)
	if err != nil {
		return nil, err
	}
	marked, err := s.repo.MarkPlanApplied(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.PlanAppliedAt = &now
	if !marked {
		return sub, nil
	}
	s.ledger.Publish(ctx, models.PlanChanged{
		UserUID:   p.UserUID,
		PaymentID: p.ID,
		Plan:      p.Plan,
		Source:    s.mode(),
		ChangedAt: now,
	})
	return sub, nil
}

// transition меняет тариф; пользователю без активной подписки она создаётся.
func (s *Service) transition(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	sub, err := s.ledger.TransitionPlan(ctx, userUID, plan)
	if !errors.Is(err, apperr.ErrPrecondition) {
		return sub, err
	}
	if _, err := s.ledger.CreateDefault(ctx, userUID); err != nil && !errors.Is(err, apperr.ErrConflict) {
		return nil, err
	}
	return s.ledger.TransitionPlan(ctx, userUID, plan)
}

// Pay создаёт платёж за тариф и сразу проводит его.
func (s *Service) Pay(ctx context.Context, userUID string, plan models.Plan) (*Settlement, error) {
	const op = "payment.Pay"
	p, err := s.CreateIntent(ctx, userUID, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.Settle(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// OnGatewayConfirmation обрабатывает событие шлюза. Повторная доставка
// и события по неизвестным платежам подтверждаются без изменений.
// Отклонённая попытка оплаты оставляет платёж в pending: тот же
// PaymentIntent может быть оплачен позже. Окончательно платёж отклоняется
// только отменой PaymentIntent.
func (s *Service) OnGatewayConfirmation(ctx context.Context, event models.GatewayEvent) (Ack, error) {
	const op = "payment.OnGatewayConfirmation"
	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	switch event.Type {
	case paymentprovider.EventPaymentSucceeded, paymentprovider.EventPaymentFailed, paymentprovider.EventPaymentCanceled:
	default:
		log.Info("ignoring gateway event")
		return Ack{}, nil
	}

	p, err := s.findByEvent(ctx, event)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("gateway event does not match any payment", slog.String("gateway_ref", event.GatewayRef))
		return Ack{}, nil
	}
	if err != nil {
		return Ack{}, fmt.Errorf("%s: %w", op, err)
	}
	log = log.With(slog.Int64("payment_id", p.ID))

	switch event.Type {
	case paymentprovider.EventPaymentFailed:
		log.Info("payment attempt failed, payment stays pending", slog.String("status", string(p.Status)))
		return Ack{Matched: true}, nil
	case paymentprovider.EventPaymentCanceled:
		flipped, err := s.repo.SetPaymentStatus(ctx, p.ID, models.PaymentFailed)
		if err != nil {
			return Ack{Matched: true}, fmt.Errorf("%s: %w", op, err)
		}
		if flipped && s.metrics != nil {
			s.metrics.IncPaymentStatus(string(models.PaymentFailed), modeGateway)
		}
		log.Info("payment cancelled", slog.Bool("applied", flipped))
		return Ack{Matched: true, Applied: flipped}, nil
	}

	switch p.Status {
	case models.PaymentFailed:
		log.Warn("success for a cancelled payment, acknowledging")
		return Ack{Matched: true}, nil
	case models.PaymentPaid:
		if p.PlanApplied() {
			return Ack{Matched: true}, nil
		}
		if _, err := s.repairPlan(ctx, p); err != nil {
			return Ack{Matched: true}, fmt.Errorf("%s: %w", op, err)
		}
		return Ack{Matched: true, Applied: true}, nil
	}

	flipped, err := s.markPaid(ctx, p)
	if errors.Is(err, apperr.ErrPrecondition) {
		log.Warn("payment left pending concurrently, acknowledging", sl.Err(err))
		return Ack{Matched: true}, nil
	}
	if err != nil {
		return Ack{Matched: true, Applied: flipped}, fmt.Errorf("%s: %w", op, err)
	}
	return Ack{Matched: true, Applied: flipped}, nil
}

func (s *Service) findByEvent(ctx context.Context, event models.GatewayEvent) (*models.Payment, error) {
	if event.GatewayRef != "" {
		p, err := s.repo.GetPaymentByGatewayRef(ctx, event.GatewayRef)
		if !errors.Is(err, apperr.ErrNotFound) {
			return p, err
		}
	}

	raw, ok := event.Metadata[paymentprovider.MetadataPaymentID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner := event.Metadata[paymentprovider.MetadataUserUID]; owner != "" && owner != p.UserUID {
		return nil, apperr.ErrNotFound
	}
	if p.GatewayRef == nil && event.GatewayRef != "" {
		if err := s.repo.SetGatewayRef(ctx, p.ID, event.GatewayRef); err != nil {
			s.log.Warn("failed to attach gateway ref", slog.Int64("payment_id", p.ID), sl.Err(err))
		}
	}
	return p, nil
}

// History возвращает платежи пользователя.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.Payment, error) {
	const op = "payment.History"
	list, err := s.repo.ListPayments(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if list == nil {
		list = []*models.Payment{}
	}
	return list, nil
}
