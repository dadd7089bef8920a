package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Subject данные, которые зашиваются в токен при выпуске.
type Subject struct {
	UserUID   string
	Email     string
	Name      string
	Plan      string
	Synthetic bool
}

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
type CustomClaims struct {
	UserUID              string `json:"user_uid"`            // Идентификатор пользователя
	Email                string `json:"email"`               // Электронная почта
	Name                 string `json:"name,omitempty"`      // Отображаемое имя
	Plan                 string `json:"plan"`                // Тариф на момент выпуска
	Synthetic            bool   `json:"synthetic,omitempty"` // Выпущен в резервном режиме без хранилища
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (ExpiresAt, IssuedAt, ID)
}

// Identity возвращает данные пользователя из claims.
func (c *CustomClaims) Identity() Subject {
	return Subject{
		UserUID:   c.UserUID,
		Email:     c.Email,
		Name:      c.Name,
		Plan:      c.Plan,
		Synthetic: c.Synthetic,
	}
}

// GenerateToken создает JWT токен для subject, подписывая его секретным ключом.
//
// Время жизни токена определяется полем tokenTTL.
func (j *MakerImpl) GenerateToken(subject Subject) (string, error) {
	const op = "jwt.GenerateToken"
	now := j.now()
	claims := CustomClaims{
		UserUID:   subject.UserUID,
		Email:     subject.Email,
		Name:      subject.Name,
		Plan:      subject.Plan,
		Synthetic: subject.Synthetic,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.UserUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken парсит JWT токен, проверяет его подпись и валидность,
// возвращает CustomClaims с данными, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.UserUID == "" {
		return nil, fmt.Errorf("%s: token has no subject", op)
	}
	return claims, nil
}

// ExpiresIn возвращает оставшееся время жизни токена.
func (c *CustomClaims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
