// users.go — сервис пользователей.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/repository"
)

// UsersService — операции с пользователями.
type UsersService struct {
	repo     repository.UserRepository
	listings repository.ListingRepository
	pictures *PicturesService
	logger   *slog.Logger
}

// NewUsersService создаёт сервис пользователей.
func NewUsersService(
	repo repository.UserRepository,
	listings repository.ListingRepository,
	pictures *PicturesService,
	logger *slog.Logger,
) *UsersService {
	return &UsersService{
		repo:     repo,
		listings: listings,
		pictures: pictures,
		logger:   logger.With(slog.String("component", "users_service")),
	}
}

// validateUser проверяет поля пользователя перед записью.
func validateUser(u *model.User) *Error {
	if strings.TrimSpace(u.Email) == "" {
		return errValidation("Email не должен быть пустым")
	}
	if !strings.Contains(u.Email, "@") {
		return errValidation("Некорректный email")
	}
	return nil
}

// Create регистрирует пользователя. Если идентификатор не передан
// (регистрация без внешнего Identity Provider) — генерируется UUID.
func (s *UsersService) Create(ctx context.Context, u *model.User) *Error {
	if serr := validateUser(u); serr != nil {
		return serr
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.IsActive = true

	// Предварительная проверка даёт понятное сообщение; гонку
	// закрывает уникальный индекс по email.
	if _, err := s.repo.GetByEmail(ctx, u.Email); err == nil {
		return errConflict(fmt.Sprintf("Пользователь с email %s уже зарегистрирован", u.Email))
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return mapRepoError(err, "")
	}

	s.logger.Info("Пользователь зарегистрирован", slog.String("user_id", u.ID))
	return nil
}

// Get возвращает пользователя по идентификатору.
func (s *UsersService) Get(ctx context.Context, id string) (*model.User, *Error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", id))
	}
	return u, nil
}

// Update обновляет профиль. Менять профиль может только сам пользователь.
func (s *UsersService) Update(ctx context.Context, u *model.User, subject string) *Error {
	if serr := validateUser(u); serr != nil {
		return serr
	}
	if subject != "" && u.ID != subject {
		return errForbidden("Профиль может менять только его владелец")
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", u.ID))
	}
	return nil
}

// TouchLastOnline обновляет отметку последнего появления онлайн.
func (s *UsersService) TouchLastOnline(ctx context.Context, id string) *Error {
	if err := s.repo.TouchLastOnline(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", id))
	}
	return nil
}

// Delete удаляет пользователя вместе с объявлениями (каскад в БД),
// картинками объявлений и аватаркой.
func (s *UsersService) Delete(ctx context.Context, id, subject string) *Error {
	if subject != "" && id != subject {
		return errForbidden("Аккаунт может удалить только его владелец")
	}

	// Картинки объявлений каскадом из БД не удаляются — собираем
	// список объявлений до удаления записи пользователя.
	owned, err := s.listings.ListByUser(ctx, id)
	if err != nil {
		return mapRepoError(err, "")
	}

	// Аватарку удаляем до записи пользователя: DeleteUserAvatar
	// обновляет профиль и требует существующей записи.
	if serr := s.pictures.DeleteUserAvatar(ctx, id); serr != nil {
		return serr
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, fmt.Sprintf("Пользователь %s не найден", id))
	}

	for _, l := range owned {
		if serr := s.pictures.DeleteListingPictures(ctx, l.ID); serr != nil {
			s.logger.Error("Картинки объявления не удалены при удалении пользователя",
				slog.Int64("listing_id", l.ID),
				slog.String("user_id", id),
			)
		}
	}

	s.logger.Info("Пользователь удалён", slog.String("user_id", id))
	return nil
}
