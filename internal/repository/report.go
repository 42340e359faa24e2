package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/maltalist/maltalist-api/internal/domain/model"
)

// ReportRepository — интерфейс CRUD для таблицы reports.
type ReportRepository interface {
	// Create регистрирует новую жалобу.
	Create(ctx context.Context, rep *model.Report) error
	// GetByID возвращает жалобу по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.Report, error)
	// List возвращает жалобы с фильтрацией по статусу.
	List(ctx context.Context, status *model.ReportStatus) ([]*model.Report, error)
	// UpdateStatus переводит жалобу в новый статус с заметками модератора.
	UpdateStatus(ctx context.Context, id int64, status model.ReportStatus, reviewedBy, notes *string) error
	// Delete удаляет жалобу.
	Delete(ctx context.Context, id int64) error
}

// reportRepo — реализация ReportRepository.
type reportRepo struct {
	db DBTX
}

// NewReportRepository создаёт репозиторий жалоб.
func NewReportRepository(db DBTX) ReportRepository {
	return &reportRepo{db: db}
}

const reportColumns = `id, listing_id, reporter_name, reporter_email, reason,
	description, status, created_at, reviewed_at, reviewed_by, review_notes`

func scanReport(row pgx.Row) (*model.Report, error) {
	rep := &model.Report{}
	err := row.Scan(
		&rep.ID, &rep.ListingID, &rep.ReporterName, &rep.ReporterEmail, &rep.Reason,
		&rep.Description, &rep.Status, &rep.CreatedAt, &rep.ReviewedAt,
		&rep.ReviewedBy, &rep.ReviewNotes,
	)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *reportRepo) Create(ctx context.Context, rep *model.Report) error {
	query := `
		INSERT INTO reports (listing_id, reporter_name, reporter_email, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		rep.ListingID, rep.ReporterName, rep.ReporterEmail, rep.Reason, rep.Description, rep.Status,
	).Scan(&rep.ID, &rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания жалобы: %w", err)
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id int64) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения жалобы: %w", err)
	}
	return rep, nil
}

func (r *reportRepo) List(ctx context.Context, status *model.ReportStatus) ([]*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка жалоб: %w", err)
	}
	defer rows.Close()

	var result []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования жалобы: %w", err)
		}
		result = append(result, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return result, nil
}

func (r *reportRepo) UpdateStatus(ctx context.Context, id int64, status model.ReportStatus, reviewedBy, notes *string) error {
	query := `
		UPDATE reports
		SET status = $2, reviewed_at = now(), reviewed_by = $3, review_notes = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status, reviewedBy, notes)
	if err != nil {
		return fmt.Errorf("ошибка изменения статуса жалобы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *reportRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления жалобы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
