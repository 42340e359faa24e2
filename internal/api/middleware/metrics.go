// metrics.go — Prometheus HTTP метрики для Maltalist API.
// Регистрирует метрики: ml_http_requests_total, ml_http_request_duration_seconds.
// Бизнес-метрики (ml_picture_operations_total и др.) экспортируются
// отсюда и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_http_requests_total",
			Help: "Общее количество HTTP-запросов к Maltalist API",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ml_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Maltalist API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// PictureOperationsTotal — общее количество операций с картинками.
	PictureOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_picture_operations_total",
			Help: "Общее количество операций с картинками",
		},
		[]string{"operation", "result"},
	)

	// SanitizerRejectsTotal — количество отклонённых конвейером санитизации файлов.
	SanitizerRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ml_sanitizer_rejects_total",
			Help: "Количество файлов, отклонённых конвейером валидации картинок",
		},
		[]string{"reason"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем ID сущностей на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// collections — сегменты, за которыми следует идентификатор сущности.
var collections = map[string]bool{
	"listings":   true,
	"users":      true,
	"reports":    true,
	"promotions": true,
	// /api/listings/user/{userId} — после статического "user" идёт идентификатор
	"user": true,
}

// idSuffixes — статические сегменты, которые могут идти после {id}
// и не являются идентификаторами.
var idSuffixes = map[string]bool{
	"pictures": true,
	"reorder":  true,
	"approve":  true,
	"user":     true,
	"nopics":   true,
}

// normalizePath заменяет идентификаторы сущностей в пути на {id} для
// предотвращения взрывного роста кардинальности метрик.
// /api/listings/42/pictures → /api/listings/{id}/pictures
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		if !collections[segments[i-1]] {
			continue
		}
		if segments[i] == "" || idSuffixes[segments[i]] {
			continue
		}
		segments[i] = "{id}"
	}
	return strings.Join(segments, "/")
}
