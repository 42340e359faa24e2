// Пакет model — доменные модели Maltalist API.
// Listing — объявление на доске. Картинки объявления НЕ хранятся
// в модели: источником истины для набора картинок служит директория
// {basePath}/listings/{id} на диске (см. picstore).
package model

import "time"

// MaxListingPictures — максимальное количество картинок одного объявления.
const MaxListingPictures = 10

// Listing — объявление.
type Listing struct {
	// ID — числовой идентификатор объявления (serial)
	ID int64 `json:"id"`

	// Title — заголовок объявления
	Title string `json:"title"`

	// Description — описание
	Description string `json:"description"`

	// Price — цена в евро
	Price float64 `json:"price"`

	// Category — категория объявления
	Category string `json:"category"`

	// Location — населённый пункт
	Location string `json:"location"`

	// UserID — идентификатор владельца (User.ID)
	UserID string `json:"user_id"`

	// Approved — прошло ли объявление модерацию.
	// Сбрасывается в false при любом изменении набора картинок.
	Approved bool `json:"approved"`

	// CreatedAt — дата создания (UTC)
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — дата последнего изменения (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// ListingSummary — сокращённое представление объявления для списков.
type ListingSummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary возвращает сокращённое представление объявления.
func (l *Listing) Summary() ListingSummary {
	return ListingSummary{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Category:    l.Category,
		Location:    l.Location,
		UserID:      l.UserID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
