// pictures.go — сервис картинок: оркестрация конвейера валидации,
// файлового хранилища и сброса флага модерации.
//
// Набор картинок объявления живёт на диске, в БД не дублируется.
// Любая мутация набора картинок объявления сбрасывает approved в false:
// изменённое объявление должно заново пройти модерацию.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
	"github.com/maltalist/maltalist-api/internal/sanitizer"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

// PicturesService — операции с картинками объявлений и аватарками.
type PicturesService struct {
	store    *picstore.Store
	cache    *PictureURLCache
	listings repository.ListingRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewPicturesService создаёт сервис картинок.
func NewPicturesService(
	store *picstore.Store,
	cache *PictureURLCache,
	listings repository.ListingRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *PicturesService {
	return &PicturesService{
		store:    store,
		cache:    cache,
		listings: listings,
		users:    users,
		logger:   logger.With(slog.String("component", "pictures_service")),
	}
}

// listingKey — идентификатор объявления в виде сегмента пути.
func listingKey(listingID int64) string {
	return strconv.FormatInt(listingID, 10)
}

// requireListingOwner загружает объявление и проверяет владельца.
// subject — sub из JWT; пустой subject допускается только для
// внутренних вызовов без проверки прав.
func (s *PicturesService) requireListingOwner(ctx context.Context, listingID int64, subject string) (*model.Listing, *Error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Объявление %d не найдено", listingID))
	}
	if subject != "" && l.UserID != subject {
		return nil, errForbidden("Картинки объявления может менять только его владелец")
	}
	return l, nil
}

// markListingDirty сбрасывает флаг модерации и инвалидирует кэш URL.
func (s *PicturesService) markListingDirty(ctx context.Context, listingID int64) {
	if err := s.listings.SetApproved(ctx, listingID, false); err != nil {
		// Картинки уже записаны; потеря сброса модерации — повод для алерта,
		// но не для отката файловой операции.
		s.logger.Error("Не удалось сбросить флаг модерации",
			slog.Int64("listing_id", listingID),
			slog.String("error", err.Error()),
		)
	}
	s.cache.Invalidate(picstore.KindListings, listingKey(listingID))
}

// ListingPictureURLs возвращает публичные URL картинок объявления
// в порядке отображения. Результат кэшируется.
func (s *PicturesService) ListingPictureURLs(ctx context.Context, listingID int64) ([]string, *Error) {
	key := listingKey(listingID)
	if urls, ok := s.cache.Get(picstore.KindListings, key); ok {
		return urls, nil
	}

	urls, err := s.store.PictureURLs(picstore.KindListings, key)
	if err != nil {
		return nil, mapPictureError(err)
	}

	s.cache.Set(picstore.KindListings, key, urls)
	return urls, nil
}

// AddListingPictures прогоняет кандидатов через конвейер санитизации
// и дописывает их к объявлению. Возвращает имена записанных файлов.
//
// Пакет обрабатывается до первой ошибки: уже записанные в этом вызове
// файлы сохраняются, остаток отбрасывается. Даже при ошибке, если часть
// файлов записана, флаг модерации сбрасывается.
func (s *PicturesService) AddListingPictures(ctx context.Context, listingID int64, subject string, candidates []sanitizer.Candidate) ([]string, *Error) {
	if _, serr := s.requireListingOwner(ctx, listingID, subject); serr != nil {
		return nil, serr
	}

	saved, err := s.store.AddPictures(picstore.KindListings, listingKey(listingID), candidates)
	if len(saved) > 0 {
		s.markListingDirty(ctx, listingID)
	}
	if err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("add", "error").Inc()
		middleware.SanitizerRejectsTotal.WithLabelValues(rejectReason(err)).Inc()
		return saved, mapPictureError(err)
	}

	middleware.PictureOperationsTotal.WithLabelValues("add", "success").Inc()
	return saved, nil
}

// ReplaceListingPictures заменяет весь набор картинок объявления.
func (s *PicturesService) ReplaceListingPictures(ctx context.Context, listingID int64, subject string, candidates []sanitizer.Candidate) ([]string, *Error) {
	if _, serr := s.requireListingOwner(ctx, listingID, subject); serr != nil {
		return nil, serr
	}

	saved, err := s.store.ReplacePictures(picstore.KindListings, listingKey(listingID), candidates)
	s.markListingDirty(ctx, listingID)
	if err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("replace", "error").Inc()
		middleware.SanitizerRejectsTotal.WithLabelValues(rejectReason(err)).Inc()
		return saved, mapPictureError(err)
	}

	middleware.PictureOperationsTotal.WithLabelValues("replace", "success").Inc()
	return saved, nil
}

// DeleteListingPicture удаляет одну картинку объявления по имени файла.
func (s *PicturesService) DeleteListingPicture(ctx context.Context, listingID int64, subject, filename string) *Error {
	if _, serr := s.requireListingOwner(ctx, listingID, subject); serr != nil {
		return serr
	}

	if err := s.store.DeletePicture(picstore.KindListings, listingKey(listingID), filename); err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("delete", "error").Inc()
		return mapPictureError(err)
	}

	s.markListingDirty(ctx, listingID)
	middleware.PictureOperationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// ReorderListingPictures меняет порядок отображения картинок объявления.
// ordered — полный список имён файлов в требуемом порядке.
func (s *PicturesService) ReorderListingPictures(ctx context.Context, listingID int64, subject string, ordered []string) *Error {
	if _, serr := s.requireListingOwner(ctx, listingID, subject); serr != nil {
		return serr
	}
	if len(ordered) == 0 {
		return errValidation("Список имён файлов не должен быть пустым")
	}

	if err := s.store.ReorderPictures(picstore.KindListings, listingKey(listingID), ordered); err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("reorder", "error").Inc()
		return mapPictureError(err)
	}

	s.markListingDirty(ctx, listingID)
	middleware.PictureOperationsTotal.WithLabelValues("reorder", "success").Inc()
	return nil
}

// DeleteListingPictures удаляет директорию картинок объявления целиком.
// Вызывается при удалении объявления; права проверяет вызывающий сервис.
func (s *PicturesService) DeleteListingPictures(ctx context.Context, listingID int64) *Error {
	key := listingKey(listingID)
	if err := s.store.DeleteAll(picstore.KindListings, key); err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("delete_all", "error").Inc()
		return mapPictureError(err)
	}
	s.cache.Invalidate(picstore.KindListings, key)
	middleware.PictureOperationsTotal.WithLabelValues("delete_all", "success").Inc()
	return nil
}

// SetUserAvatar заменяет аватарку пользователя и обновляет
// публичный URL в его профиле.
func (s *PicturesService) SetUserAvatar(ctx context.Context, userID string, candidate sanitizer.Candidate) (string, *Error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", userID))
	}

	saved, err := s.store.ReplacePictures(picstore.KindUsers, userID, []sanitizer.Candidate{candidate})
	s.cache.Invalidate(picstore.KindUsers, userID)
	if err != nil {
		middleware.PictureOperationsTotal.WithLabelValues("avatar", "error").Inc()
		middleware.SanitizerRejectsTotal.WithLabelValues(rejectReason(err)).Inc()
		return "", mapPictureError(err)
	}
	if len(saved) == 0 {
		return "", errInternal("Аватарка не была записана")
	}

	urls, err := s.store.PictureURLs(picstore.KindUsers, userID)
	if err != nil || len(urls) == 0 {
		return "", mapPictureError(err)
	}

	u.UserPicture = urls[0]
	if err := s.users.Update(ctx, u); err != nil {
		return "", mapRepoError(err, "Пользователь не найден")
	}

	middleware.PictureOperationsTotal.WithLabelValues("avatar", "success").Inc()
	return urls[0], nil
}

// DeleteUserAvatar удаляет аватарку пользователя.
func (s *PicturesService) DeleteUserAvatar(ctx context.Context, userID string) *Error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", userID))
	}

	if err := s.store.DeleteAll(picstore.KindUsers, userID); err != nil {
		return mapPictureError(err)
	}
	s.cache.Invalidate(picstore.KindUsers, userID)

	u.UserPicture = ""
	if err := s.users.Update(ctx, u); err != nil {
		return mapRepoError(err, "Пользователь не найден")
	}
	return nil
}
