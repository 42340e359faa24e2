// reports.go — сервис жалоб на объявления.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
)

// ReportsService — приём и модерация жалоб.
type ReportsService struct {
	repo     repository.ReportRepository
	listings repository.ListingRepository
	logger   *slog.Logger
}

// NewReportsService создаёт сервис жалоб.
func NewReportsService(repo repository.ReportRepository, listings repository.ListingRepository, logger *slog.Logger) *ReportsService {
	return &ReportsService{
		repo:     repo,
		listings: listings,
		logger:   logger.With(slog.String("component", "reports_service")),
	}
}

// Create регистрирует жалобу на объявление.
// Жалобу можно подать анонимно, но причина обязательна.
func (s *ReportsService) Create(ctx context.Context, rep *model.Report) *Error {
	if strings.TrimSpace(rep.Reason) == "" {
		return errValidation("Причина жалобы не должна быть пустой")
	}
	if _, err := s.listings.GetByID(ctx, rep.ListingID); err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", rep.ListingID))
	}

	rep.Status = model.ReportPending
	if err := s.repo.Create(ctx, rep); err != nil {
		return mapRepoError(err, "")
	}

	s.logger.Info("Жалоба зарегистрирована",
		slog.Int64("report_id", rep.ID),
		slog.Int64("listing_id", rep.ListingID),
	)
	return nil
}

// Get возвращает жалобу по идентификатору.
func (s *ReportsService) Get(ctx context.Context, id int64) (*model.Report, *Error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Жалоба %d не найдена", id))
	}
	return rep, nil
}

// List возвращает жалобы, опционально отфильтрованные по статусу.
func (s *ReportsService) List(ctx context.Context, status *model.ReportStatus) ([]*model.Report, *Error) {
	if status != nil && !model.ValidReportStatus(*status) {
		return nil, errValidation(fmt.Sprintf("Недопустимый статус жалобы: %s", *status))
	}
	result, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, mapRepoError(err, "")
	}
	return result, nil
}

// Review переводит жалобу в новый статус от имени модератора.
func (s *ReportsService) Review(ctx context.Context, id int64, status model.ReportStatus, reviewedBy string, notes *string) *Error {
	if !model.ValidReportStatus(status) || status == model.ReportPending {
		return errValidation(fmt.Sprintf("Недопустимый целевой статус жалобы: %s", status))
	}

	var by *string
	if reviewedBy != "" {
		by = &reviewedBy
	}
	if err := s.repo.UpdateStatus(ctx, id, status, by, notes); err != nil {
		return mapRepoError(err, fmt.Sprintf("Жалоба %d не найдена", id))
	}

	s.logger.Info("Жалоба рассмотрена",
		slog.Int64("report_id", id),
		slog.String("status", string(status)),
	)
	return nil
}

// Delete удаляет жалобу.
func (s *ReportsService) Delete(ctx context.Context, id int64) *Error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("Жалоба %d не найдена", id))
	}
	return nil
}
