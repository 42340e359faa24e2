// pictures.go — HTTP handlers картинок: загрузка через multipart form,
// список URL, удаление, изменение порядка, аватарки пользователей.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/sanitizer"
	"github.com/maltalist/maltalist-api/internal/service"
)

// maxUploadMemory — буфер парсинга multipart form в памяти.
// Картинки сверх лимита уходят во временные файлы.
const maxUploadMemory = 32 << 20 // 32 MB

// PicturesHandler — обработчик endpoints картинок.
type PicturesHandler struct {
	svc *service.PicturesService
}

// NewPicturesHandler создаёт обработчик картинок.
func NewPicturesHandler(svc *service.PicturesService) *PicturesHandler {
	return &PicturesHandler{svc: svc}
}

// picturesResponse — ответ на операции загрузки картинок.
type picturesResponse struct {
	// Saved — имена записанных файлов в порядке записи
	Saved []string `json:"saved"`
	// URLs — публичные URL всего набора после операции
	URLs []string `json:"urls"`
}

// readCandidates извлекает кандидатов из multipart form.
// Поле pictures может повторяться; порядок полей сохраняется.
func readCandidates(r *http.Request) ([]sanitizer.Candidate, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("ошибка парсинга multipart: %w", err)
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["pictures"]) == 0 {
		return nil, fmt.Errorf("поле 'pictures' обязательно")
	}

	headers := r.MultipartForm.File["pictures"]
	candidates := make([]sanitizer.Candidate, 0, len(headers))
	for _, header := range headers {
		c, err := candidateFromHeader(header)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func candidateFromHeader(header *multipart.FileHeader) (sanitizer.Candidate, error) {
	file, err := header.Open()
	if err != nil {
		return sanitizer.Candidate{}, fmt.Errorf("ошибка чтения файла %s: %w", header.Filename, err)
	}
	defer file.Close()

	// Конвейер санитизации работает с полным содержимым:
	// сигнатура, декодирование и повторное кодирование
	data, err := io.ReadAll(io.LimitReader(file, sanitizer.MaxFileSize+1))
	if err != nil {
		return sanitizer.Candidate{}, fmt.Errorf("ошибка чтения файла %s: %w", header.Filename, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return sanitizer.Candidate{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// ListListingPictures обрабатывает GET /api/listings/{listingId}/pictures.
// Возвращает публичные URL в порядке отображения.
func (h *PicturesHandler) ListListingPictures(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	urls, serr := h.svc.ListingPictureURLs(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

// AddListingPictures обрабатывает POST /api/listings/{listingId}/pictures.
// Multipart form, поле pictures (повторяется). Пакет обрабатывается
// до первой ошибки: при отказе уже записанные файлы сохраняются
// и возвращаются в поле saved.
func (h *PicturesHandler) AddListingPictures(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	candidates, err := readCandidates(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	saved, serr := h.svc.AddListingPictures(r.Context(), id, subject, candidates)
	if serr != nil {
		// Частично записанный пакет клиенту видеть полезно,
		// но формат ошибки единый
		writeServiceError(w, serr)
		return
	}

	urls, _ := h.svc.ListingPictureURLs(r.Context(), id)
	writeJSON(w, http.StatusCreated, picturesResponse{Saved: saved, URLs: urls})
}

// ReplaceListingPictures обрабатывает PUT /api/listings/{listingId}/pictures.
// Полная замена набора картинок.
func (h *PicturesHandler) ReplaceListingPictures(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	candidates, err := readCandidates(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	saved, serr := h.svc.ReplaceListingPictures(r.Context(), id, subject, candidates)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}

	urls, _ := h.svc.ListingPictureURLs(r.Context(), id)
	writeJSON(w, http.StatusOK, picturesResponse{Saved: saved, URLs: urls})
}

// DeleteListingPicture обрабатывает DELETE /api/listings/{listingId}/pictures/{filename}.
func (h *PicturesHandler) DeleteListingPicture(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	filename := chi.URLParam(r, "filename")

	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.DeleteListingPicture(r.Context(), id, subject, filename); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reorderRequest — тело запроса изменения порядка картинок.
type reorderRequest struct {
	// Filenames — полный список имён файлов в требуемом порядке
	Filenames []string `json:"filenames"`
}

// ReorderListingPictures обрабатывает POST /api/listings/{listingId}/pictures/reorder.
func (h *PicturesHandler) ReorderListingPictures(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.ReorderListingPictures(r.Context(), id, subject, req.Filenames); serr != nil {
		writeServiceError(w, serr)
		return
	}

	urls, _ := h.svc.ListingPictureURLs(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

// SetUserAvatar обрабатывает PUT /api/users/{userId}/picture.
// Ровно один файл в поле pictures; старая аватарка заменяется.
func (h *PicturesHandler) SetUserAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	subject := middleware.SubjectFromContext(r.Context())
	if subject != "" && subject != userID {
		apierrors.Forbidden(w, "Аватарку может менять только владелец профиля")
		return
	}

	candidates, err := readCandidates(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if len(candidates) != 1 {
		apierrors.ValidationError(w, "Для аватарки требуется ровно один файл")
		return
	}

	url, serr := h.svc.SetUserAvatar(r.Context(), userID, candidates[0])
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// DeleteUserAvatar обрабатывает DELETE /api/users/{userId}/picture.
func (h *PicturesHandler) DeleteUserAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	subject := middleware.SubjectFromContext(r.Context())
	if subject != "" && subject != userID {
		apierrors.Forbidden(w, "Аватарку может удалить только владелец профиля")
		return
	}

	if serr := h.svc.DeleteUserAvatar(r.Context(), userID); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
