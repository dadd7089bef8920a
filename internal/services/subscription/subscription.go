// Package subscription ведёт учёт тарифов пользователей: у каждого
// пользователя не больше одной активной подписки.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/filesfy/internal/cache"
	"github.com/magabrotheeeer/filesfy/internal/config"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/lib/sl"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

// Repository определяет методы хранилища, нужные учёту подписок.
type Repository interface {
	CreateSubscription(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error)
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	UpdatePlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Cache описывает методы для кеширования представлений.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события смены тарифа.
type Publisher interface {
	PublishPlanChanged(ctx context.Context, event models.PlanChanged) error
}

// Metrics счётчики смен тарифа.
type Metrics interface {
	IncPlanTransition(plan string)
}

// Service реализует учёт подписок.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	metrics   Metrics
	plans     config.Plans
	limits    config.Limits
	log       *slog.Logger
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithCache включает кеширование представлений подписок.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher включает публикацию событий смены тарифа.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics включает учёт метрик.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New создаёт сервис подписок.
func New(repo Repository, plans config.Plans, limits config.Limits, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		plans:  plans,
		limits: limits.WithDefaults(),
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDefault создаёт бесплатную активную подписку.
// apperr.ErrConflict возвращается, только если активная подписка уже есть.
func (s *Service) CreateDefault(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.CreateDefault"
	sub, err := s.repo.CreateSubscription(ctx, userUID, models.PlanFree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)
	return sub, nil
}

// CurrentFor возвращает активную подписку или nil, если её нет.
func (s *Service) CurrentFor(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.CurrentFor"
	sub, err := s.repo.GetActiveSubscription(ctx, userUID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// TransitionPlan меняет тариф активной подписки.
func (s *Service) TransitionPlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	const op = "subscription.TransitionPlan"
	if plan != models.PlanFree && plan != models.PlanPro {
		return nil, fmt.Errorf("%s: %w: unknown plan %q", op, apperr.ErrValidation, plan)
	}

	sub, err := s.repo.UpdatePlan(ctx, userUID, plan)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: user has no active subscription", op, apperr.ErrPrecondition)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, userUID)
	if s.metrics != nil {
		s.metrics.IncPlanTransition(string(plan))
	}
	s.log.Info("plan transitioned",
		slog.String("op", op),
		slog.String("user_uid", userUID),
		slog.String("plan", string(plan)),
	)
	return sub, nil
}

// Cancel отменяет подписку. Повторная отмена не считается ошибкой.
func (s *Service) Cancel(ctx context.Context, subscriptionID int64) (*models.Subscription, error) {
	const op = "subscription.Cancel"
	sub, err := s.repo.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, sub.UserUID)
	return sub, nil
}

// CancelFor отменяет подписку, принадлежащую пользователю. Чужая подписка
// считается ненайденной.
func (s *Service) CancelFor(ctx context.Context, userUID string, subscriptionID int64) (*models.Subscription, error) {
	const op = "subscription.CancelFor"
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.UserUID != userUID {
		return nil, fmt.Errorf("%s: %w: subscription %d", op, apperr.ErrNotFound, subscriptionID)
	}
	return s.Cancel(ctx, subscriptionID)
}

// View возвращает представление подписки пользователя через кеш.
// Пользователь без активной подписки получает бесплатный тариф.
func (s *Service) View(ctx context.Context, userUID string) (*models.SubscriptionView, error) {
	const op = "subscription.View"

	if s.cache != nil {
		var cached models.SubscriptionView
		found, err := s.cache.Get(ctx, cache.ViewKey(userUID), &cached)
		if err != nil {
			s.log.Warn("failed to read view from cache", slog.String("op", op), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	if _, err := s.repo.GetUser(ctx, userUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.CurrentFor(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view := models.DefaultView(userUID, models.PlanFree)
	if sub != nil {
		view = sub.View()
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.ViewKey(userUID), view, cache.ViewTTL); err != nil {
			s.log.Warn("failed to cache view", slog.String("op", op), sl.Err(err))
		}
	}
	return &view, nil
}

// Upgrade переводит пользователя на PRO.
func (s *Service) Upgrade(ctx context.Context, userUID string) (*models.Subscription, error) {
	return s.adminTransition(ctx, "subscription.Upgrade", userUID, models.PlanPro)
}

// Downgrade переводит пользователя на FREE.
func (s *Service) Downgrade(ctx context.Context, userUID string) (*models.Subscription, error) {
	return s.adminTransition(ctx, "subscription.Downgrade", userUID, models.PlanFree)
}

func (s *Service) adminTransition(ctx context.Context, op, userUID string, plan models.Plan) (*models.Subscription, error) {
	if _, err := s.repo.GetUser(ctx, userUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub, err := s.TransitionPlan(ctx, userUID, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.Publish(ctx, models.PlanChanged{
		UserUID:   userUID,
		Plan:      plan,
		Source:    "admin",
		ChangedAt: time.Now().UTC(),
	})
	return sub, nil
}

// Publish отправляет событие смены тарифа. Сбой брокера только логируется.
func (s *Service) Publish(ctx context.Context, event models.PlanChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPlanChanged(ctx, event); err != nil {
		s.log.Warn("failed to publish plan change", slog.String("user_uid", event.UserUID), sl.Err(err))
	}
}

// Plans возвращает витрину тарифов.
func (s *Service) Plans() []models.PlanInfo {
	return []models.PlanInfo{
		{
			ID:        "free",
			Name:      "Free",
			Plan:      models.PlanFree,
			Price:     s.plans.FreePrice,
			MaxFiles:  s.limits.Free.MaxFiles,
			MaxSizeMB: s.limits.Free.MaxSizeMB,
			Features: []string{
				fmt.Sprintf("Up to %d files per recovery", s.limits.Free.MaxFiles),
				fmt.Sprintf("Up to %g MB per recovery", s.limits.Free.MaxSizeMB),
				"Basic scan",
			},
		},
		{
			ID:        "pro",
			Name:      "Pro",
			Plan:      models.PlanPro,
			Price:     s.plans.ProPrice,
			MaxFiles:  s.limits.Pro.MaxFiles,
			MaxSizeMB: s.limits.Pro.MaxSizeMB,
			Features: []string{
				fmt.Sprintf("Up to %d files per recovery", s.limits.Pro.MaxFiles),
				fmt.Sprintf("Up to %g MB per recovery", s.limits.Pro.MaxSizeMB),
				"Deep scan",
				"Priority support",
			},
		},
	}
}

// PriceOf возвращает цену тарифа в минимальных единицах валюты.
func (s *Service) PriceOf(plan models.Plan) (int64, bool) {
	switch plan {
	case models.PlanFree:
		return s.plans.FreePrice, true
	case models.PlanPro:
		return s.plans.ProPrice, true
	default:
		return 0, false
	}
}

func (s *Service) invalidate(ctx context.Context, userUID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.ViewKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate view", slog.String("user_uid", userUID), sl.Err(err))
	}
}
