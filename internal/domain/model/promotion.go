// promotion.go — платное продвижение объявления в категории.
// Проверка оплаты выполняется внешним платёжным сервисом и в этот
// модуль не входит.
package model

import "time"

// Promotion — продвижение объявления.
type Promotion struct {
	// ID — числовой идентификатор (serial)
	ID int64 `json:"id"`

	// ListingID — продвигаемое объявление
	ListingID int64 `json:"listing_id"`

	// ExpirationDate — момент окончания продвижения (UTC)
	ExpirationDate time.Time `json:"expiration_date"`

	// Category — категория, в которой продвигается объявление
	Category string `json:"category"`
}

// Active сообщает, действует ли продвижение в момент now.
func (p *Promotion) Active(now time.Time) bool {
	return p.ExpirationDate.After(now)
}
