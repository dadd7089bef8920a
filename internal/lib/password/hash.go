// Package password реализует одностороннюю проверку паролей на bcrypt.
//
// Hash создает bcrypt-хеш пароля для хранения.
// Verify сравнивает сохранённый хеш с введённым паролем и всегда отказывает
// при любом несоответствии, в том числе при отсутствии хеша.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch пароль не соответствует хешу.
var ErrMismatch = errors.New("password mismatch")

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
func Hash(password string) (string, error) {
	const op = "password.Hash"
	if password == "" {
		return "", fmt.Errorf("%s: empty password", op)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// Verify сравнивает bcrypt‑хэш с введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе — ErrMismatch.
// Пользователь без пароля (вход через внешний провайдер) всегда получает отказ.
func Verify(hash *string, password string) error {
	const op = "password.Verify"
	if hash == nil || *hash == "" {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMismatch, err)
	}
	return nil
}
