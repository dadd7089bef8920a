package models

import (
	"strings"
	"time"
)

// Plan тип тарифа.
type Plan string

const (
	// PlanFree бесплатный тариф
	PlanFree Plan = "FREE"
	// PlanPro платный тариф
	PlanPro Plan = "PRO"
)

// ParsePlan разбирает название тарифа без учёта регистра.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(strings.ToUpper(strings.TrimSpace(s))) {
	case PlanFree:
		return PlanFree, true
	case PlanPro:
		return PlanPro, true
	default:
		return "", false
	}
}

// SubscriptionStatus статус подписки.
type SubscriptionStatus string

const (
	// StatusActive действующая подписка
	StatusActive SubscriptionStatus = "active"
	// StatusCancelled отменённая подписка
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription подписка пользователя. У пользователя не больше одной
// подписки со статусом active.
type Subscription struct {
	ID        int64
	UserUID   string
	Plan      Plan
	Status    SubscriptionStatus
	StartedAt time.Time
}

// SubscriptionView представление подписки в ответах API и в кеше.
type SubscriptionView struct {
	ID        *int64             `json:"id"`
	UserUID   string             `json:"user_id"`
	PlanType  Plan               `json:"plan_type"`
	Status    SubscriptionStatus `json:"status"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
}

// View возвращает представление подписки.
func (s *Subscription) View() SubscriptionView {
	id := s.ID
	started := s.StartedAt
	return SubscriptionView{
		ID:        &id,
		UserUID:   s.UserUID,
		PlanType:  s.Plan,
		Status:    s.Status,
		StartedAt: &started,
	}
}

// DefaultView представление для пользователя без активной подписки
// и для синтетических токенов.
func DefaultView(userUID string, plan Plan) SubscriptionView {
	if plan == "" {
		plan = PlanFree
	}
	return SubscriptionView{
		UserUID:  userUID,
		PlanType: plan,
		Status:   StatusActive,
	}
}

// PlanInfo описание тарифа для витрины.
type PlanInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Plan      Plan     `json:"plan_type"`
	Price     int64    `json:"price"`
	MaxFiles  int      `json:"max_files"`
	MaxSizeMB float64  `json:"max_size_mb"`
	Features  []string `json:"features"`
}
