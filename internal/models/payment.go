package models

import "time"

// PaymentStatus статус платежа. Переходы только pending -> paid и pending -> failed.
type PaymentStatus string

const (
	// PaymentPending платёж создан и ожидает подтверждения
	PaymentPending PaymentStatus = "pending"
	// PaymentPaid платёж подтверждён
	PaymentPaid PaymentStatus = "paid"
	// PaymentFailed платёж отклонён
	PaymentFailed PaymentStatus = "failed"
)

// Payment платёж пользователя за тариф. PlanAppliedAt заполняется, когда
// оплаченный тариф применён к подписке.
type Payment struct {
	ID             int64         `json:"id"`
	UserUID        string        `json:"user_id"`
	SubscriptionID *int64        `json:"subscription_id,omitempty"`
	Plan           Plan          `json:"plan_type"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
	GatewayRef     *string       `json:"gateway_ref,omitempty"`
	Status         PaymentStatus `json:"status"`
	PlanAppliedAt  *time.Time    `json:"plan_applied_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// PlanApplied сообщает, что смена тарифа по платежу уже выполнена.
func (p *Payment) PlanApplied() bool {
	return p.PlanAppliedAt != nil
}

// GatewayEvent событие подтверждения от платёжного шлюза.
type GatewayEvent struct {
	ID         string
	Type       string
	GatewayRef string
	Metadata   map[string]string
}

// PlanChanged событие смены тарифа для брокера сообщений.
type PlanChanged struct {
	UserUID   string    `json:"user_uid"`
	PaymentID int64     `json:"payment_id,omitempty"`
	Plan      Plan      `json:"plan"`
	Source    string    `json:"source"`
	ChangedAt time.Time `json:"changed_at"`
}
