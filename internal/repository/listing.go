package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/maltalist/maltalist-api/internal/domain/model"
)

// ListingRepository — интерфейс CRUD для таблицы listings.
type ListingRepository interface {
	// Create создаёт новое объявление.
	Create(ctx context.Context, l *model.Listing) error
	// GetByID возвращает объявление по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.Listing, error)
	// List возвращает объявления с фильтрацией по категории и флагу модерации.
	List(ctx context.Context, category *string, approved *bool) ([]*model.Listing, error)
	// ListByUser возвращает все объявления пользователя.
	ListByUser(ctx context.Context, userID string) ([]*model.Listing, error)
	// Categories возвращает список категорий существующих объявлений.
	Categories(ctx context.Context) ([]string, error)
	// Update обновляет объявление.
	Update(ctx context.Context, l *model.Listing) error
	// SetApproved переключает флаг модерации.
	SetApproved(ctx context.Context, id int64, approved bool) error
	// Delete удаляет объявление.
	Delete(ctx context.Context, id int64) error
}

// listingRepo — реализация ListingRepository.
type listingRepo struct {
	db DBTX
}

// NewListingRepository создаёт репозиторий объявлений.
func NewListingRepository(db DBTX) ListingRepository {
	return &listingRepo{db: db}
}

const listingColumns = `id, title, description, price, category, location,
	user_id, approved, created_at, updated_at`

func scanListing(row pgx.Row) (*model.Listing, error) {
	l := &model.Listing{}
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &l.Category, &l.Location,
		&l.UserID, &l.Approved, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *listingRepo) Create(ctx context.Context, l *model.Listing) error {
	query := `
		INSERT INTO listings (title, description, price, category, location, user_id, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		l.Title, l.Description, l.Price, l.Category, l.Location, l.UserID, l.Approved,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания объявления: %w", err)
	}
	return nil
}

func (r *listingRepo) GetByID(ctx context.Context, id int64) (*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения объявления: %w", err)
	}
	return l, nil
}

func (r *listingRepo) List(ctx context.Context, category *string, approved *bool) ([]*model.Listing, error) {
	// Динамическое построение WHERE
	var conditions []string
	var args []any
	argNum := 1

	if category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, *category)
		argNum++
	}
	if approved != nil {
		conditions = append(conditions, fmt.Sprintf("approved = $%d", argNum))
		args = append(args, *approved)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY created_at DESC`,
		listingColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка объявлений: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

func (r *listingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения объявлений пользователя: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

func (r *listingRepo) Categories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM listings ORDER BY category`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения категорий: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("ошибка сканирования категории: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return categories, nil
}

func collectListings(rows pgx.Rows) ([]*model.Listing, error) {
	var result []*model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования объявления: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return result, nil
}

func (r *listingRepo) Update(ctx context.Context, l *model.Listing) error {
	query := `
		UPDATE listings
		SET title = $2, description = $3, price = $4, category = $5,
			location = $6, approved = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		l.ID, l.Title, l.Description, l.Price, l.Category, l.Location, l.Approved,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления объявления: %w", err)
	}
	return nil
}

func (r *listingRepo) SetApproved(ctx context.Context, id int64, approved bool) error {
	query := `UPDATE listings SET approved = $2, updated_at = now() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, approved)
	if err != nil {
		return fmt.Errorf("ошибка изменения флага модерации: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *listingRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления объявления: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
