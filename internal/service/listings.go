// listings.go — сервис объявлений.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
)

// ListingWithPictures — объявление вместе с URL его картинок.
type ListingWithPictures struct {
	model.Listing
	PictureURLs []string `json:"picture_urls"`
}

// ListingsService — CRUD объявлений поверх репозитория.
type ListingsService struct {
	repo     repository.ListingRepository
	pictures *PicturesService
	logger   *slog.Logger
}

// NewListingsService создаёт сервис объявлений.
func NewListingsService(repo repository.ListingRepository, pictures *PicturesService, logger *slog.Logger) *ListingsService {
	return &ListingsService{
		repo:     repo,
		pictures: pictures,
		logger:   logger.With(slog.String("component", "listings_service")),
	}
}

// validateListing проверяет поля объявления перед записью.
func validateListing(l *model.Listing) *Error {
	if strings.TrimSpace(l.Title) == "" {
		return errValidation("Заголовок объявления не должен быть пустым")
	}
	if l.Price < 0 {
		return errValidation("Цена не может быть отрицательной")
	}
	return nil
}

// Create создаёт объявление от имени subject.
// Новое объявление не прошло модерацию (approved = false).
func (s *ListingsService) Create(ctx context.Context, l *model.Listing, subject string) *Error {
	if serr := validateListing(l); serr != nil {
		return serr
	}
	if subject != "" {
		l.UserID = subject
	}
	if l.UserID == "" {
		return errValidation("Не указан владелец объявления")
	}
	l.Approved = false

	if err := s.repo.Create(ctx, l); err != nil {
		return mapRepoError(err, "")
	}

	s.logger.Info("Объявление создано",
		slog.Int64("listing_id", l.ID),
		slog.String("user_id", l.UserID),
	)
	return nil
}

// Get возвращает объявление с URL его картинок.
// Отсутствие директории картинок — не ошибка: объявление без картинок
// отдаётся с пустым списком.
func (s *ListingsService) Get(ctx context.Context, id int64) (*ListingWithPictures, *Error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", id))
	}

	urls, serr := s.pictures.ListingPictureURLs(ctx, id)
	if serr != nil {
		urls = nil
	}
	return &ListingWithPictures{Listing: *l, PictureURLs: urls}, nil
}

// GetNoPics возвращает объявление без обращения к директории картинок.
// Дешёвый вариант для списков и внутренних потребителей.
func (s *ListingsService) GetNoPics(ctx context.Context, id int64) (*model.Listing, *Error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", id))
	}
	return l, nil
}

// List возвращает объявления с фильтрацией по категории и модерации.
func (s *ListingsService) List(ctx context.Context, category *string, approved *bool) ([]*model.Listing, *Error) {
	result, err := s.repo.List(ctx, category, approved)
	if err != nil {
		return nil, mapRepoError(err, "")
	}
	return result, nil
}

// Categories возвращает отсортированный список категорий объявлений.
func (s *ListingsService) Categories(ctx context.Context) ([]string, *Error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, mapRepoError(err, "")
	}
	return categories, nil
}

// ListByUser возвращает объявления пользователя.
func (s *ListingsService) ListByUser(ctx context.Context, userID string) ([]*model.Listing, *Error) {
	result, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "")
	}
	return result, nil
}

// Update обновляет объявление. Менять объявление может только владелец.
// Любое изменение сбрасывает флаг модерации.
func (s *ListingsService) Update(ctx context.Context, l *model.Listing, subject string) *Error {
	if serr := validateListing(l); serr != nil {
		return serr
	}

	current, err := s.repo.GetByID(ctx, l.ID)
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", l.ID))
	}
	if subject != "" && current.UserID != subject {
		return errForbidden("Объявление может менять только его владелец")
	}

	l.UserID = current.UserID
	l.Approved = false
	if err := s.repo.Update(ctx, l); err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", l.ID))
	}

	s.logger.Info("Объявление обновлено", slog.Int64("listing_id", l.ID))
	return nil
}

// Approve отмечает объявление как прошедшее модерацию.
func (s *ListingsService) Approve(ctx context.Context, id int64) *Error {
	if err := s.repo.SetApproved(ctx, id, true); err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", id))
	}
	s.logger.Info("Объявление одобрено", slog.Int64("listing_id", id))
	return nil
}

// Delete удаляет объявление вместе с его картинками.
// Сначала удаляется запись в БД, затем директория картинок:
// осиротевшие файлы безопаснее осиротевшей записи с битыми URL.
func (s *ListingsService) Delete(ctx context.Context, id int64, subject string) *Error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", id))
	}
	if subject != "" && current.UserID != subject {
		return errForbidden("Объявление может удалить только его владелец")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", id))
	}

	if serr := s.pictures.DeleteListingPictures(ctx, id); serr != nil {
		s.logger.Error("Картинки объявления не удалены",
			slog.Int64("listing_id", id),
			slog.String("error", serr.Message),
		)
	}

	s.logger.Info("Объявление удалено", slog.Int64("listing_id", id))
	return nil
}
