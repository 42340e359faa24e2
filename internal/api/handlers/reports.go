// reports.go — HTTP handlers жалоб на объявления.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/domain/model"
	"github.com/maltalist/maltalist-api/internal/service"
)

// ReportsHandler — обработчик endpoints жалоб.
type ReportsHandler struct {
	svc *service.ReportsService
}

// NewReportsHandler создаёт обработчик жалоб.
func NewReportsHandler(svc *service.ReportsService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// reportRequest — тело запроса подачи жалобы.
type reportRequest struct {
	ListingID     int64   `json:"listing_id"`
	ReporterName  *string `json:"reporter_name,omitempty"`
	ReporterEmail *string `json:"reporter_email,omitempty"`
	Reason        string  `json:"reason"`
	Description   *string `json:"description,omitempty"`
}

// Create обрабатывает POST /api/reports. Доступно без аутентификации.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	rep := &model.Report{
		ListingID:     req.ListingID,
		ReporterName:  req.ReporterName,
		ReporterEmail: req.ReporterEmail,
		Reason:        req.Reason,
		Description:   req.Description,
	}
	if serr := h.svc.Create(r.Context(), rep); serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// Get обрабатывает GET /api/reports/{reportId}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "reportId")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rep, serr := h.svc.Get(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// List обрабатывает GET /api/reports.
// Query-параметр status — фильтр по статусу обработки.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *model.ReportStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.ReportStatus(s)
		status = &st
	}

	reports, serr := h.svc.List(r.Context(), status)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	if reports == nil {
		reports = []*model.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// reviewRequest — тело запроса рассмотрения жалобы.
type reviewRequest struct {
	Status model.ReportStatus `json:"status"`
	Notes  *string            `json:"notes,omitempty"`
}

// Review обрабатывает POST /api/reports/{reportId}/review.
// Модератор берётся из JWT (sub).
func (h *ReportsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "reportId")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	reviewedBy := middleware.SubjectFromContext(r.Context())
	if serr := h.svc.Review(r.Context(), id, req.Status, reviewedBy, req.Notes); serr != nil {
		writeServiceError(w, serr)
		return
	}

	rep, serr := h.svc.Get(r.Context(), id)
	if serr != nil {
		writeServiceError(w, serr)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Delete обрабатывает DELETE /api/reports/{reportId}.
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "reportId")
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
