// Package identityprovider проверяет токены внешнего провайдера
// идентификации (Google ID token).
package identityprovider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

var (
	// ErrNotConfigured провайдер не настроен
	ErrNotConfigured = errors.New("external identity provider is not configured")
	// ErrInvalidToken токен не прошёл проверку
	ErrInvalidToken = errors.New("invalid external identity token")
)

// Identity проверенные данные пользователя от провайдера.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
	Picture    string
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Google проверяет ID-токены Google для заданного client id.
type Google struct {
	clientID string
	validate validateFunc
}

// NewGoogle создаёт проверяющего. Пустой clientID делает провайдер ненастроенным.
func NewGoogle(clientID string) *Google {
	return &Google{
		clientID: clientID,
		validate: idtoken.Validate,
	}
}

// Configured сообщает, настроен ли провайдер.
func (g *Google) Configured() bool {
	return g != nil && g.clientID != ""
}

// Verify проверяет подпись, аудиторию и срок действия токена.
func (g *Google) Verify(ctx context.Context, token string) (*Identity, error) {
	const op = "identityprovider.Verify"
	if !g.Configured() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	payload, err := g.validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("%s: %w: empty subject", op, ErrInvalidToken)
	}

	id := &Identity{
		ExternalID: payload.Subject,
		Email:      claim(payload, "email"),
		Name:       claim(payload, "name"),
		Picture:    claim(payload, "picture"),
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%s: %w: email claim missing", op, ErrInvalidToken)
	}
	if id.Name == "" {
		id.Name = id.Email
	}
	return id, nil
}

func claim(p *idtoken.Payload, key string) string {
	if v, ok := p.Claims[key].(string); ok {
		return v
	}
	return ""
}
