package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltalist/maltalist-api/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт нового пользователя.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail возвращает пользователя по email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update обновляет пользователя.
	Update(ctx context.Context, u *model.User) error
	// TouchLastOnline обновляет отметку последнего появления онлайн.
	TouchLastOnline(ctx context.Context, id string) error
	// Delete удаляет пользователя (объявления удаляются каскадно).
	Delete(ctx context.Context, id string) error
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, user_name, phone_number, user_picture, email,
	created_at, last_online, consent_timestamp, is_active, using_wa`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.UserName, &u.PhoneNumber, &u.UserPicture, &u.Email,
		&u.CreatedAt, &u.LastOnline, &u.ConsentTimestamp, &u.IsActive, &u.UsingWA,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, user_name, phone_number, user_picture, email,
			consent_timestamp, is_active, using_wa)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, last_online`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.UserName, u.PhoneNumber, u.UserPicture, u.Email,
		u.ConsentTimestamp, u.IsActive, u.UsingWA,
	).Scan(&u.CreatedAt, &u.LastOnline)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id или email уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по email: %w", err)
	}
	return u, nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET user_name = $2, phone_number = $3, user_picture = $4, email = $5,
			consent_timestamp = $6, is_active = $7, using_wa = $8
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		u.ID, u.UserName, u.PhoneNumber, u.UserPicture, u.Email,
		u.ConsentTimestamp, u.IsActive, u.UsingWA,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) TouchLastOnline(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_online = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_online: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
