package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/filesfy/internal/models"
)

const paymentColumns = `id, user_uid, subscription_id, plan_type, amount, currency,
	gateway_ref, status, plan_applied_at, created_at, updated_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var subscriptionID sql.NullInt64
	var gatewayRef sql.NullString
	var appliedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserUID, &subscriptionID, &p.Plan, &p.Amount, &p.Currency,
		&gatewayRef, &p.Status, &appliedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if appliedAt.Valid {
		p.PlanAppliedAt = &appliedAt.Time
	}
	if subscriptionID.Valid {
		p.SubscriptionID = &subscriptionID.Int64
	}
	if gatewayRef.Valid {
		p.GatewayRef = &gatewayRef.String
	}
	return p, nil
}

// CreatePayment сохраняет платёж в статусе pending.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (*models.Payment, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (user_uid, subscription_id, plan_type, amount, currency, status)
			  VALUES ($1, $2, $3, $4, $5, 'pending')
			  RETURNING ` + paymentColumns
	created, err := scanPayment(s.DB.QueryRowContext(ctx, query,
		p.UserUID, p.SubscriptionID, p.Plan, p.Amount, p.Currency))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return created, nil
}

// GetPayment возвращает платёж по ID.
func (s *Storage) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return p, nil
}

// GetPaymentByGatewayRef возвращает платёж по идентификатору шлюза.
func (s *Storage) GetPaymentByGatewayRef(ctx context.Context, ref string) (*models.Payment, error) {
	const op = "storage.GetPaymentByGatewayRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_ref = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, ref))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return p, nil
}

// SetGatewayRef привязывает идентификатор шлюза к платежу.
func (s *Storage) SetGatewayRef(ctx context.Context, id int64, ref string) error {
	const op = "storage.SetGatewayRef"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments SET gateway_ref = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, classify(sql.ErrNoRows))
	}
	return nil
}

// SetPaymentStatus переводит платёж из pending в status.
// Возвращает false, если платёж уже был не в pending: переход выполнил
// другой вызов, и повторно применять его нельзя.
func (s *Storage) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (bool, error) {
	const op = "storage.SetPaymentStatus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $2, updated_at = NOW()
			  WHERE id = $1 AND status = 'pending'`
	res, err := s.DB.ExecContext(ctx, query, id, status)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// MarkPlanApplied отмечает, что тариф по оплаченному платежу применён.
// Возвращает false, если отметка уже стояла.
func (s *Storage) MarkPlanApplied(ctx context.Context, id int64) (bool, error) {
	const op = "storage.MarkPlanApplied"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET plan_applied_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND status = 'paid' AND plan_applied_at IS NULL`
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE user_uid::text = $1
			  ORDER BY created_at DESC, id DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return result, nil
}
