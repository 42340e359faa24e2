// promotions.go — HTTP handlers продвижения объявлений.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/service"
)

// PromotionsHandler — обработчик endpoints продвижений.
type PromotionsHandler struct {
	svc *service.PromotionsService
}

// NewPromotionsHandler создаёт обработчик продвижений.
func NewPromotionsHandler(svc *service.PromotionsService) *PromotionsHandler {
	return &PromotionsHandler{svc: svc}
}

// promotionRequest — тело запроса создания продвижения.
type promotionRequest struct {
	ListingID      int64  `json:"listing_id"`
	ExpirationDate string `json:"expiration_date"`
	Category       string `json:"category,omitempty"`
}

// Create обрабатывает POST /api/promotions.
// Вызывается после подтверждения оплаты внешним платёжным сервисом;
// повторная покупка для того же объявления продлевает продвижение.
func (h *PromotionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	expires, err := time.Parse(time.RFC3339, req.ExpirationDate)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректная дата окончания, ожидается RFC3339: %q", req.ExpirationDate))
		return
	}

	p := &model.Promotion{
		ListingID:      req.ListingID,
		ExpirationDate: expires.UTC(),
		Category:       req.Category,
	}
	if serr := h.svc.Create(r.Context(), p); serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetByListing обрабатывает GET /api/listings/{listingId}/promotion.
func (h *PromotionsHandler) GetByListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	p, serr := h.svc.GetByListing(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListActive обрабатывает GET /api/promotions.
// Query-параметр category — фильтр по категории.
func (h *PromotionsHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	promotions, serr := h.svc.ListActive(r.Context(), category)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	if promotions == nil {
		promotions = []*model.Promotion{}
	}
	writeJSON(w, http.StatusOK, promotions)
}

// Delete обрабатывает DELETE /api/promotions/{promotionId}.
func (h *PromotionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "promotionId")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if serr := h.svc.Delete(r.Context(), id); serr != nil {
		writeServiceError(w, serr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
