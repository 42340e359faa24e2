// listings.go — HTTP handlers объявлений: CRUD, модерация, выборки.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/service"
)

// ListingsHandler — обработчик endpoints объявлений.
type ListingsHandler struct {
	svc *service.ListingsService
}

// NewListingsHandler создаёт обработчик объявлений.
func NewListingsHandler(svc *service.ListingsService) *ListingsHandler {
	return &ListingsHandler{svc: svc}
}

// listingRequest — тело запроса создания/обновления объявления.
type listingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
}

// Create обрабатывает POST /api/listings.
// Владелец берётся из JWT (sub), объявление создаётся неодобренным.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	l := &model.Listing{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Location:    req.Location,
	}
	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Create(r.Context(), l, subject); serr != nil {
		writeServiceError(w, serr)
		return
	}

	writeJSON(w, http.StatusCreated, l)
}

// Get обрабатывает GET /api/listings/{listingId}.
// Возвращает объявление вместе с URL картинок.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	l, serr := h.svc.Get(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// GetNoPics обрабатывает GET /api/listings/{listingId}/nopics.
// Лёгкий вариант без чтения директории картинок — для списков
// и внутренних потребителей.
func (h *ListingsHandler) GetNoPics(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	l, serr := h.svc.GetNoPics(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// List обрабатывает GET /api/listings.
// Query-параметры: category — фильтр по категории,
// approved — true/false, фильтр по модерации.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	var approved *bool
	if a := r.URL.Query().Get("approved"); a != "" {
		val, err := strconv.ParseBool(a)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Параметр approved должен быть true или false, получено %q", a))
			return
		}
		approved = &val
	}

	listings, serr := h.svc.List(r.Context(), category, approved)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}

	writeJSON(w, http.StatusOK, listingsResponse(listings))
}

// Categories обрабатывает GET /api/listings/categories.
func (h *ListingsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, serr := h.svc.Categories(r.Context())
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// ListByUser обрабатывает GET /api/listings/user/{userId}.
func (h *ListingsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		apierrors.ValidationError(w, "Не указан идентификатор пользователя")
		return
	}

	listings, serr := h.svc.ListByUser(r.Context(), userID)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, listingsResponse(listings))
}

// Update обрабатывает PUT /api/listings/{listingId}.
func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	l := &model.Listing{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Location:    req.Location,
	}
	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Update(r.Context(), l, subject); serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Approve обрабатывает POST /api/listings/{listingId}/approve.
func (h *ListingsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if serr := h.svc.Approve(r.Context(), id); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete обрабатывает DELETE /api/listings/{listingId}.
func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Delete(r.Context(), id, subject); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listingsResponse приводит выборку к виду для списков: сокращённое
// представление без флага модерации, пустой результат сериализуется
// как [], а не null.
func listingsResponse(listings []*model.Listing) []model.ListingSummary {
	result := make([]model.ListingSummary, 0, len(listings))
	for _, l := range listings {
		result = append(result, l.Summary())
	}
	return result
}
