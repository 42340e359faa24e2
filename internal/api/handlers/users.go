// users.go — HTTP handlers профилей пользователей.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/service"
)

// UsersHandler — обработчик endpoints пользователей.
type UsersHandler struct {
	svc *service.UsersService
}

// NewUsersHandler создаёт обработчик пользователей.
func NewUsersHandler(svc *service.UsersService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// userRequest — тело запроса создания/обновления профиля.
type userRequest struct {
	UserName         string  `json:"user_name"`
	PhoneNumber      *string `json:"phone_number,omitempty"`
	Email            string  `json:"email"`
	UsingWA          bool    `json:"using_wa"`
	ConsentTimestamp *string `json:"consent_timestamp,omitempty"`
}

// Create обрабатывает POST /api/users.
// Идентификатором становится sub из JWT; без него генерируется UUID.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	consent, err := parseConsent(req.ConsentTimestamp)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	u := &model.User{
		ID:               middleware.SubjectFromContext(r.Context()),
		UserName:         req.UserName,
		PhoneNumber:      req.PhoneNumber,
		Email:            req.Email,
		UsingWA:          req.UsingWA,
		ConsentTimestamp: consent,
	}
	if serr := h.svc.Create(r.Context(), u); serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// parseConsent разбирает отметку согласия с условиями (RFC3339).
func parseConsent(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный consent_timestamp, ожидается RFC3339: %q", *raw)
	}
	ts = ts.UTC()
	return &ts, nil
}

// Get обрабатывает GET /api/users/{userId}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	u, serr := h.svc.Get(r.Context(), userID)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update обрабатывает PUT /api/users/{userId}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	// Загружаем текущий профиль, чтобы не потерять поля,
	// которые клиент не передаёт (аватарка, даты)
	current, serr := h.svc.Get(r.Context(), userID)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}

	current.UserName = req.UserName
	current.PhoneNumber = req.PhoneNumber
	current.Email = req.Email
	current.UsingWA = req.UsingWA
	if req.ConsentTimestamp != nil {
		consent, err := parseConsent(req.ConsentTimestamp)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		current.ConsentTimestamp = consent
	}

	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Update(r.Context(), current, subject); serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// TouchLastOnline обрабатывает POST /api/users/{userId}/online.
func (h *UsersHandler) TouchLastOnline(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	subject := middleware.SubjectFromContext(r.Context())
	if subject != "" && subject != userID {
		apierrors.Forbidden(w, "Отметку онлайн может обновить только сам пользователь")
		return
	}

	if serr := h.svc.TouchLastOnline(r.Context(), userID); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete обрабатывает DELETE /api/users/{userId}.
// Удаляет профиль вместе с объявлениями, их картинками и аватаркой.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Delete(r.Context(), userID, subject); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
