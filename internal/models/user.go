// Package models содержит доменные структуры сервиса: пользователя,
// подписку, платёж и элементы восстановления файлов.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID         string    // Уникальный неизменяемый идентификатор пользователя
	ExternalID   *string   // Идентификатор во внешнем провайдере (Google), если есть
	Email        string    // Электронная почта (уникальная)
	Name         string    // Отображаемое имя
	AvatarURL    *string   // Ссылка на аватар
	PasswordHash *string   // bcrypt-хэш, nil для входа через провайдера
	CreatedAt    time.Time // Дата создания
	UpdatedAt    time.Time // Дата последнего изменения профиля
}

// ProfileUpdate закрытый набор изменяемых полей профиля.
// nil означает, что поле не меняется.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// Empty сообщает, что обновлять нечего.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.AvatarURL == nil
}

// UserView публичное представление пользователя в ответах API.
type UserView struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// View возвращает публичное представление пользователя.
func (u *User) View() UserView {
	return UserView{
		ID:        u.UUID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
	}
}
