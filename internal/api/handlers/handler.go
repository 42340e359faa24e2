// handler.go — APIHandler собирает доменные handlers и монтирует
// маршруты API на chi router.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/maltalist/maltalist-api/internal/api/errors"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/service"
)

// Scopes, требуемые для мутирующих операций.
const (
	// ScopeListingsWrite — создание и изменение объявлений, профилей, картинок
	ScopeListingsWrite = "listings:write"
	// ScopeAdminWrite — модерация: approve, жалобы, продвижения
	ScopeAdminWrite = "admin:write"
)

// APIHandler — единая точка монтирования всех доменных handlers.
type APIHandler struct {
	listings   *ListingsHandler
	pictures   *PicturesHandler
	users      *UsersHandler
	reports    *ReportsHandler
	promotions *PromotionsHandler
	health     *HealthHandler
	maint      *MaintenanceHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	listings *ListingsHandler,
	pictures *PicturesHandler,
	users *UsersHandler,
	reports *ReportsHandler,
	promotions *PromotionsHandler,
	health *HealthHandler,
	maint *MaintenanceHandler,
) *APIHandler {
	return &APIHandler{
		listings:   listings,
		pictures:   pictures,
		users:      users,
		reports:    reports,
		promotions: promotions,
		health:     health,
		maint:      maint,
	}
}

// Routes монтирует маршруты API на router.
// auth — JWT middleware; nil отключает аутентификацию (только для тестов).
func (h *APIHandler) Routes(router chi.Router, auth *middleware.JWTAuth) {
	// Health endpoints — без аутентификации (Kubernetes probes)
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)

	authRequired := func(r chi.Router) chi.Router {
		if auth != nil {
			return r.With(auth.Middleware())
		}
		return r
	}

	router.Route("/api/listings", func(r chi.Router) {
		// Публичное чтение
		r.Get("/", h.listings.List)
		r.Get("/categories", h.listings.Categories)
		r.Get("/{listingId}", h.listings.Get)
		r.Get("/{listingId}/nopics", h.listings.GetNoPics)
		r.Get("/{listingId}/pictures", h.pictures.ListListingPictures)
		r.Get("/{listingId}/promotion", h.promotions.GetByListing)
		r.Get("/user/{userId}", h.listings.ListByUser)

		// Мутации — JWT + scope
		w := authRequired(r).With(middleware.RequireScope(ScopeListingsWrite))
		w.Post("/", h.listings.Create)
		w.Put("/{listingId}", h.listings.Update)
		w.Delete("/{listingId}", h.listings.Delete)
		w.Post("/{listingId}/pictures", h.pictures.AddListingPictures)
		w.Put("/{listingId}/pictures", h.pictures.ReplaceListingPictures)
		w.Delete("/{listingId}/pictures/{filename}", h.pictures.DeleteListingPicture)
		w.Post("/{listingId}/pictures/reorder", h.pictures.ReorderListingPictures)

		// Модерация
		adm := authRequired(r).With(middleware.RequireScope(ScopeAdminWrite))
		adm.Post("/{listingId}/approve", h.listings.Approve)
	})

	router.Route("/api/users", func(r chi.Router) {
		r.Get("/{userId}", h.users.Get)

		w := authRequired(r).With(middleware.RequireScope(ScopeListingsWrite))
		w.Post("/", h.users.Create)
		w.Put("/{userId}", h.users.Update)
		w.Delete("/{userId}", h.users.Delete)
		w.Post("/{userId}/online", h.users.TouchLastOnline)
		w.Put("/{userId}/picture", h.pictures.SetUserAvatar)
		w.Delete("/{userId}/picture", h.pictures.DeleteUserAvatar)
	})

	router.Route("/api/reports", func(r chi.Router) {
		// Жалобу можно подать анонимно
		r.Post("/", h.reports.Create)

		adm := authRequired(r).With(middleware.RequireScope(ScopeAdminWrite))
		adm.Get("/", h.reports.List)
		adm.Get("/{reportId}", h.reports.Get)
		adm.Post("/{reportId}/review", h.reports.Review)
		adm.Delete("/{reportId}", h.reports.Delete)
	})

	router.Route("/api/promotions", func(r chi.Router) {
		r.Get("/", h.promotions.ListActive)

		adm := authRequired(r).With(middleware.RequireScope(ScopeAdminWrite))
		adm.Post("/", h.promotions.Create)
		adm.Delete("/{promotionId}", h.promotions.Delete)
	})

	router.Route("/api/maintenance", func(r chi.Router) {
		adm := authRequired(r).With(middleware.RequireScope(ScopeAdminWrite))
		adm.Post("/reconcile", h.maint.Reconcile)
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError записывает ошибку сервисного слоя в стандартном формате.
func writeServiceError(w http.ResponseWriter, serr *service.Error) {
	apierrors.WriteError(w, serr.StatusCode, serr.Code, serr.Message)
}

// listingIDParam извлекает числовой идентификатор объявления из URL.
func listingIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "listingId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный идентификатор объявления: %q", raw)
	}
	return id, nil
}

// int64Param извлекает числовой URL-параметр по имени.
func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный идентификатор: %q", raw)
	}
	return id, nil
}
