package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/filesfy/internal/models"
)

const userColumns = `uid, external_id, email, name, avatar_url, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	u := &models.User{}
	var externalID, avatarURL, passwordHash sql.NullString
	if err := row.Scan(&u.UUID, &externalID, &u.Email, &u.Name, &avatarURL,
		&passwordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if externalID.Valid {
		u.ExternalID = &externalID.String
	}
	if avatarURL.Valid {
		u.AvatarURL = &avatarURL.String
	}
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	return u, nil
}

// CreateUserWithSubscription сохраняет пользователя и его бесплатную подписку
// в одной транзакции. Конфликт email или external_id возвращает apperr.ErrConflict.
func (s *Storage) CreateUserWithSubscription(ctx context.Context, user models.User) (*models.User, *models.Subscription, error) {
	const op = "storage.CreateUserWithSubscription"
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var created *models.User
	var sub *models.Subscription
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO users (external_id, email, name, avatar_url, password_hash)
				  VALUES ($1, $2, $3, $4, $5)
				  RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRowContext(ctx, query,
			user.ExternalID, user.Email, user.Name, user.AvatarURL, user.PasswordHash))
		if err != nil {
			return classify(err)
		}
		created = u

		sub, err = insertSubscription(ctx, tx, u.UUID, models.PlanFree)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, sub, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return u, nil
}

// GetUserByExternalID возвращает пользователя по идентификатору внешнего провайдера.
func (s *Storage) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	const op = "storage.GetUserByExternalID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid::text = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return u, nil
}

// UpdateProfile меняет только переданные поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, error) {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET name = COALESCE($2, name),
			      avatar_url = COALESCE($3, avatar_url),
			      updated_at = NOW()
			  WHERE uid::text = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID, upd.Name, upd.AvatarURL))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return u, nil
}
