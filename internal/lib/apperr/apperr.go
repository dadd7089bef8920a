// Package apperr содержит таксономию ошибок сервиса.
//
// Каждая ошибка бизнес-уровня оборачивает один из sentinel-значений пакета,
// поэтому errors.Is работает через все слои (хранилище, сервисы, хендлеры),
// а Kind возвращает стабильный машиночитаемый код для ответа клиенту.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrValidation некорректные или отсутствующие входные данные
	ErrValidation = errors.New("validation error")

	// ErrConflict нарушение уникальности
	ErrConflict = errors.New("conflict")

	// ErrAuth неверные учётные данные или недействительный токен
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrPrecondition у сущности нет необходимого предшествующего состояния
	ErrPrecondition = errors.New("precondition failed")

	// ErrQuotaExceeded превышены лимиты тарифа
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrStoreUnavailable хранилище недоступно, запрос можно повторить
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Машиночитаемые коды ошибок.
const (
	KindValidation       = "ValidationError"
	KindConflict         = "ConflictError"
	KindAuth             = "AuthError"
	KindNotFound         = "NotFoundError"
	KindPrecondition     = "PreconditionError"
	KindQuotaExceeded    = "QuotaExceededError"
	KindStoreUnavailable = "StoreUnavailable"
	KindInternal         = "InternalError"
)

var kinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrValidation, KindValidation, http.StatusBadRequest},
	{ErrConflict, KindConflict, http.StatusBadRequest},
	{ErrAuth, KindAuth, http.StatusUnauthorized},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrPrecondition, KindPrecondition, http.StatusConflict},
	{ErrQuotaExceeded, KindQuotaExceeded, http.StatusBadRequest},
	{ErrStoreUnavailable, KindStoreUnavailable, http.StatusServiceUnavailable},
}

// Kind возвращает машиночитаемый код ошибки.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus возвращает HTTP-статус, соответствующий ошибке.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsBusiness сообщает, что ошибка является отказом по бизнес-правилу,
// а не сбоем инфраструктуры.
func IsBusiness(err error) bool {
	switch Kind(err) {
	case KindInternal, KindStoreUnavailable:
		return false
	default:
		return true
	}
}

// Detail возвращает текст ошибки, начиная с sentinel-значения, для ошибок,
// текст которых можно показать клиенту. Для остальных возвращает пустую строку.
func Detail(err error) string {
	for _, sentinel := range []error{ErrValidation, ErrPrecondition, ErrQuotaExceeded} {
		if !errors.Is(err, sentinel) {
			continue
		}
		msg := err.Error()
		if i := strings.Index(msg, sentinel.Error()); i >= 0 {
			return msg[i:]
		}
		return sentinel.Error()
	}
	return ""
}
