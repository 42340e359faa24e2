// promotions.go — сервис продвижения объявлений.
// Оплата продвижения обрабатывается внешним платёжным сервисом;
// здесь только учёт сроков.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
)

// PromotionsService — учёт продвижений объявлений.
type PromotionsService struct {
	repo     repository.PromotionRepository
	listings repository.ListingRepository
	logger   *slog.Logger
}

// NewPromotionsService создаёт сервис продвижений.
func NewPromotionsService(repo repository.PromotionRepository, listings repository.ListingRepository, logger *slog.Logger) *PromotionsService {
	return &PromotionsService{
		repo:     repo,
		listings: listings,
		logger:   logger.With(slog.String("component", "promotions_service")),
	}
}

// Create создаёт или продлевает продвижение объявления.
// Срок окончания должен быть в будущем, категория берётся из
// объявления, если не задана явно. У объявления действует не больше
// одного продвижения: повторная покупка заменяет прежнее.
func (s *PromotionsService) Create(ctx context.Context, p *model.Promotion) *Error {
	if !p.ExpirationDate.After(time.Now().UTC()) {
		return errValidation("Срок окончания продвижения должен быть в будущем")
	}

	l, err := s.listings.GetByID(ctx, p.ListingID)
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", p.ListingID))
	}
	if p.Category == "" {
		p.Category = l.Category
	}

	if err := s.repo.Replace(ctx, p); err != nil {
		return mapRepoError(err, "")
	}

	s.logger.Info("Продвижение создано",
		slog.Int64("promotion_id", p.ID),
		slog.Int64("listing_id", p.ListingID),
		slog.Time("expires", p.ExpirationDate),
	)
	return nil
}

// GetByListing возвращает действующее продвижение объявления.
// Истёкшее, но ещё не удалённое фоновой очисткой продвижение
// наружу не отдаётся.
func (s *PromotionsService) GetByListing(ctx context.Context, listingID int64) (*model.Promotion, *Error) {
	p, err := s.repo.GetByListing(ctx, listingID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Продвижение объявления %d не найдено", listingID))
	}
	if !p.Active(time.Now().UTC()) {
		return nil, errNotFound(fmt.Sprintf("Продвижение объявления %d не найдено", listingID))
	}
	return p, nil
}

// ListActive возвращает действующие продвижения, опционально по категории.
func (s *PromotionsService) ListActive(ctx context.Context, category *string) ([]*model.Promotion, *Error) {
	result, err := s.repo.ListActive(ctx, category, time.Now().UTC())
	if err != nil {
		return nil, mapRepoError(err, "")
	}
	return result, nil
}

// PurgeExpired удаляет истёкшие продвижения.
// Вызывается периодически из фоновой задачи.
func (s *PromotionsService) PurgeExpired(ctx context.Context) (int64, *Error) {
	deleted, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, mapRepoError(err, "")
	}
	if deleted > 0 {
		s.logger.Info("Истёкшие продвижения удалены", slog.Int64("count", deleted))
	}
	return deleted, nil
}

// Delete удаляет продвижение.
func (s *PromotionsService) Delete(ctx context.Context, id int64) *Error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("Продвижение %d не найдено", id))
	}
	return nil
}
