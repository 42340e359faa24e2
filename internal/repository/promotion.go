package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maltalist/maltalist-api/internal/domain/model"
)

// PromotionRepository — интерфейс CRUD для таблицы promotions.
type PromotionRepository interface {
	// Replace заменяет продвижение объявления новым: у объявления
	// всегда не больше одного продвижения, повторная покупка продлевает.
	Replace(ctx context.Context, p *model.Promotion) error
	// GetByListing возвращает продвижение объявления, если оно есть.
	GetByListing(ctx context.Context, listingID int64) (*model.Promotion, error)
	// ListActive возвращает продвижения, действующие в момент now,
	// опционально ограниченные категорией.
	ListActive(ctx context.Context, category *string, now time.Time) ([]*model.Promotion, error)
	// DeleteExpired удаляет истёкшие продвижения, возвращает количество удалённых.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// Delete удаляет продвижение.
	Delete(ctx context.Context, id int64) error
}

// promotionRepo — реализация PromotionRepository.
// tx заполняется только при создании поверх пула: Replace тогда
// выполняется в собственной транзакции. Внутри чужой транзакции
// (db — pgx.Tx) tx остаётся nil и Replace работает на r.db.
type promotionRepo struct {
	db DBTX
	tx *TxRunner
}

// NewPromotionRepository создаёт репозиторий продвижений.
func NewPromotionRepository(db DBTX) PromotionRepository {
	repo := &promotionRepo{db: db}
	if pool, ok := db.(*pgxpool.Pool); ok {
		repo.tx = NewTxRunner(pool)
	}
	return repo
}

// Replace удаляет прежние продвижения объявления и вставляет новое.
// Оба шага идут одной транзакцией, чтобы между ними объявление
// не оставалось без продвижения и не получало два.
func (r *promotionRepo) Replace(ctx context.Context, p *model.Promotion) error {
	if r.tx == nil {
		return r.replaceOn(ctx, r.db, p)
	}
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return r.replaceOn(ctx, tx, p)
	})
}

func (r *promotionRepo) replaceOn(ctx context.Context, db DBTX, p *model.Promotion) error {
	if _, err := db.Exec(ctx, `DELETE FROM promotions WHERE listing_id = $1`, p.ListingID); err != nil {
		return fmt.Errorf("ошибка удаления прежнего продвижения: %w", err)
	}

	query := `
		INSERT INTO promotions (listing_id, expiration_date, category)
		VALUES ($1, $2, $3)
		RETURNING id`

	if err := db.QueryRow(ctx, query, p.ListingID, p.ExpirationDate, p.Category).Scan(&p.ID); err != nil {
		return fmt.Errorf("ошибка создания продвижения: %w", err)
	}
	return nil
}

func (r *promotionRepo) GetByListing(ctx context.Context, listingID int64) (*model.Promotion, error) {
	query := `
		SELECT id, listing_id, expiration_date, category
		FROM promotions
		WHERE listing_id = $1
		ORDER BY expiration_date DESC
		LIMIT 1`

	p := &model.Promotion{}
	err := r.db.QueryRow(ctx, query, listingID).Scan(
		&p.ID, &p.ListingID, &p.ExpirationDate, &p.Category,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения продвижения: %w", err)
	}
	return p, nil
}

func (r *promotionRepo) ListActive(ctx context.Context, category *string, now time.Time) ([]*model.Promotion, error) {
	query := `
		SELECT id, listing_id, expiration_date, category
		FROM promotions
		WHERE expiration_date > $1`
	args := []any{now}

	if category != nil {
		query += ` AND category = $2`
		args = append(args, *category)
	}
	query += ` ORDER BY expiration_date DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных продвижений: %w", err)
	}
	defer rows.Close()

	var result []*model.Promotion
	for rows.Next() {
		p := &model.Promotion{}
		if err := rows.Scan(&p.ID, &p.ListingID, &p.ExpirationDate, &p.Category); err != nil {
			return nil, fmt.Errorf("ошибка сканирования продвижения: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return result, nil
}

func (r *promotionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE expiration_date <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления истёкших продвижений: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *promotionRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления продвижения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
