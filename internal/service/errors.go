// Пакет service — бизнес-логика Maltalist API.
// errors.go — типизированная ошибка сервисного слоя с HTTP-кодом
// и преобразование ошибок нижних слоёв в коды API.
package service

import (
	"errors"
	"fmt"
	"net/http"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/repository"
	"github.com/maltalist/maltalist-api/internal/sanitizer"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

// Error — ошибка сервисного слоя с HTTP-кодом.
// Обработчики транслируют её в JSON-ответ без повторного разбора.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Конструкторы типичных ошибок ---

func errValidation(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: apierrors.CodeValidationError, Message: message}
}

func errNotFound(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: message}
}

func errForbidden(message string) *Error {
	return &Error{StatusCode: http.StatusForbidden, Code: apierrors.CodeForbidden, Message: message}
}

func errConflict(message string) *Error {
	return &Error{StatusCode: http.StatusConflict, Code: apierrors.CodeConflict, Message: message}
}

func errInternal(message string) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Code: apierrors.CodeInternalError, Message: message}
}

// mapRepoError транслирует ошибку репозитория в ошибку сервисного слоя.
func mapRepoError(err error, notFoundMsg string) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errNotFound(notFoundMsg)
	case errors.Is(err, repository.ErrConflict):
		return errConflict(err.Error())
	default:
		return errInternal("Ошибка доступа к базе данных")
	}
}

// mapPictureError транслирует ошибку конвейера санитизации или
// файлового хранилища в ошибку сервисного слоя.
// Порядок веток отражает порядок проверок конвейера.
func mapPictureError(err error) *Error {
	switch {
	case errors.Is(err, sanitizer.ErrEmptyFile), errors.Is(err, sanitizer.ErrFileTooLarge):
		return &Error{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeFileTooLarge,
			Message:    err.Error(),
		}
	case errors.Is(err, sanitizer.ErrExtensionNotAllowed):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeExtensionNotAllowed,
			Message:    err.Error(),
		}
	case errors.Is(err, sanitizer.ErrMimeTypeNotAllowed):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeMimeTypeNotAllowed,
			Message:    err.Error(),
		}
	case errors.Is(err, sanitizer.ErrInvalidSignature):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidSignature,
			Message:    err.Error(),
		}
	case errors.Is(err, sanitizer.ErrNotAValidImage):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeNotAValidImage,
			Message:    err.Error(),
		}
	case errors.Is(err, picstore.ErrInvalidFilename):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidFilename,
			Message:    err.Error(),
		}
	case errors.Is(err, picstore.ErrInvalidPath):
		return &Error{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidPath,
			Message:    err.Error(),
		}
	case errors.Is(err, picstore.ErrNotFound):
		return errNotFound("Картинка не найдена")
	default:
		return &Error{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeStorageFailure,
			Message:    "Ошибка файлового хранилища",
		}
	}
}

// rejectReason возвращает метку reason для метрики отклонений конвейера.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, sanitizer.ErrEmptyFile):
		return "empty_file"
	case errors.Is(err, sanitizer.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, sanitizer.ErrExtensionNotAllowed):
		return "extension"
	case errors.Is(err, sanitizer.ErrMimeTypeNotAllowed):
		return "mime_type"
	case errors.Is(err, sanitizer.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, sanitizer.ErrNotAValidImage):
		return "decode"
	default:
		return "other"
	}
}
