// user.go — модель пользователя.
package model

import "time"

// MaxUserPictures — у пользователя ровно одна аватарка.
const MaxUserPictures = 1

// User — пользователь Maltalist.
// ID — строковый идентификатор (sub внешнего Identity Provider
// либо сгенерированный UUID).
type User struct {
	// ID — идентификатор пользователя
	ID string `json:"id"`

	// UserName — отображаемое имя
	UserName string `json:"user_name"`

	// PhoneNumber — номер телефона (опционально)
	PhoneNumber *string `json:"phone_number,omitempty"`

	// UserPicture — публичный URL аватарки (пустая строка — нет аватарки)
	UserPicture string `json:"user_picture"`

	// Email — адрес электронной почты
	Email string `json:"email"`

	// CreatedAt — дата регистрации (UTC)
	CreatedAt time.Time `json:"created_at"`

	// LastOnline — последнее появление онлайн (UTC)
	LastOnline time.Time `json:"last_online"`

	// ConsentTimestamp — момент согласия с условиями (опционально)
	ConsentTimestamp *time.Time `json:"consent_timestamp,omitempty"`

	// IsActive — активен ли аккаунт
	IsActive bool `json:"is_active"`

	// UsingWA — предпочитает ли связь через WhatsApp
	UsingWA bool `json:"using_wa"`
}
