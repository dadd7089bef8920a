package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/filesfy/internal/models"
)

const subscriptionColumns = `id, user_uid, plan_type, status, started_at`

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.Plan, &sub.Status, &sub.StartedAt); err != nil {
		return nil, err
	}
	return sub, nil
}

func insertSubscription(ctx context.Context, q queryer, userUID string, plan models.Plan) (*models.Subscription, error) {
	query := `INSERT INTO subscriptions (user_uid, plan_type, status)
			  VALUES ($1, $2, 'active')
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(q.QueryRowContext(ctx, query, userUID, plan))
	if err != nil {
		return nil, classify(err)
	}
	return sub, nil
}

// CreateSubscription создаёт активную подписку. Вторая активная подписка
// пользователя отклоняется уникальным индексом и возвращает apperr.ErrConflict.
func (s *Storage) CreateSubscription(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sub, err := insertSubscription(ctx, s.DB, userUID, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetActiveSubscription возвращает активную подписку пользователя.
// Отсутствие подписки возвращает apperr.ErrNotFound.
func (s *Storage) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid::text = $1 AND status = 'active'`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return sub, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return sub, nil
}

// UpdatePlan меняет тариф активной подписки и сбрасывает дату начала.
// Отсутствие активной подписки возвращает apperr.ErrNotFound.
func (s *Storage) UpdatePlan(ctx context.Context, userUID string, plan models.Plan) (*models.Subscription, error) {
	const op = "storage.UpdatePlan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET plan_type = $2, started_at = NOW()
			  WHERE user_uid::text = $1 AND status = 'active'
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID, plan))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return sub, nil
}

// CancelSubscription переводит подписку в статус cancelled.
// Повторная отмена возвращает подписку без изменений.
func (s *Storage) CancelSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.CancelSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'cancelled'
			  WHERE id = $1
			  RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return sub, nil
}
