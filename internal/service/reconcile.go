// reconcile.go — фоновая сверка директорий картинок с базой данных.
//
// Набор картинок живёт на диске и в БД не дублируется, поэтому после
// сбоев возможны расхождения:
//   - orphaned: директория картинок без записи в БД (объявление или
//     пользователь удалены, а файловая очистка не прошла)
//   - stale_scratch: временная директория {id}_temp, оставшаяся после
//     прерванного изменения порядка картинок
//
// Обнаруженные осиротевшие директории удаляются. Запускается как
// горутина с периодическим тикером (ML_RECONCILE_INTERVAL) и вручную
// через maintenance endpoint.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maltalist/maltalist-api/internal/repository"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

// Prometheus метрики reconciliation
var (
	// reconcileRunsTotal — количество запусков reconciliation.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ml_reconcile_runs_total",
		Help: "Общее количество запусков сверки картинок с БД",
	})

	// reconcileOrphansTotal — количество удалённых осиротевших директорий.
	reconcileOrphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_reconcile_orphans_total",
		Help: "Общее количество удалённых осиротевших директорий картинок",
	}, []string{"kind"})

	// reconcileDurationSeconds — длительность выполнения сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ml_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// scratchSuffix — суффикс временных директорий изменения порядка.
const scratchSuffix = "_temp"

// scratchMaxAge — минимальный возраст scratch-директории для удаления.
// Свежая директория может принадлежать идущему прямо сейчас reorder —
// трогать её нельзя; брошенной считается только давно не менявшаяся.
const scratchMaxAge = time.Hour

// ReconcileResult — результат одного цикла сверки.
type ReconcileResult struct {
	// StartedAt — начало сверки (UTC)
	StartedAt time.Time `json:"started_at"`
	// CompletedAt — окончание сверки (UTC)
	CompletedAt time.Time `json:"completed_at"`
	// Checked — количество проверенных директорий
	Checked int `json:"checked"`
	// OrphanedListings — удалено директорий объявлений без записи в БД
	OrphanedListings int `json:"orphaned_listings"`
	// OrphanedUsers — удалено директорий пользователей без записи в БД
	OrphanedUsers int `json:"orphaned_users"`
	// StaleScratch — удалено брошенных временных директорий
	StaleScratch int `json:"stale_scratch"`
}

// ReconcileService — фоновая сверка директорий картинок с БД.
type ReconcileService struct {
	store    *picstore.Store
	cache    *PictureURLCache
	listings repository.ListingRepository
	users    repository.UserRepository
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // сверка в процессе выполнения
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	store *picstore.Store,
	cache *PictureURLCache,
	listings repository.ListingRepository,
	users repository.UserRepository,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		store:    store,
		cache:    cache,
		listings: listings,
		users:    users,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка картинок запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновый процесс сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка картинок остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileResult, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	result := &ReconcileResult{StartedAt: time.Now().UTC()}
	rs.logger.Info("Сверка картинок начата")

	rs.sweepListings(ctx, result)
	rs.sweepUsers(ctx, result)

	result.CompletedAt = time.Now().UTC()
	duration := result.CompletedAt.Sub(result.StartedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())

	rs.logger.Info("Сверка картинок завершена",
		slog.Int("checked", result.Checked),
		slog.Int("orphaned_listings", result.OrphanedListings),
		slog.Int("orphaned_users", result.OrphanedUsers),
		slog.Int("stale_scratch", result.StaleScratch),
		slog.Duration("duration", duration),
	)

	return result, false
}

// sweepListings сверяет директории объявлений с таблицей listings.
func (rs *ReconcileService) sweepListings(ctx context.Context, result *ReconcileResult) {
	for _, name := range rs.entityDirs(picstore.KindListings) {
		if strings.HasSuffix(name, scratchSuffix) {
			if rs.isStaleScratch(picstore.KindListings, name) && rs.removeDir(picstore.KindListings, name) {
				result.StaleScratch++
			}
			continue
		}
		result.Checked++

		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			// Директория с нечисловым именем объявлению принадлежать не может
			rs.logger.Warn("Посторонняя директория в хранилище картинок",
				slog.String("kind", string(picstore.KindListings)),
				slog.String("name", name),
			)
			continue
		}

		_, err = rs.listings.GetByID(ctx, id)
		switch {
		case err == nil:
			// Запись на месте
		case err == repository.ErrNotFound:
			if rs.removeDir(picstore.KindListings, name) {
				result.OrphanedListings++
				reconcileOrphansTotal.WithLabelValues(string(picstore.KindListings)).Inc()
			}
		default:
			rs.logger.Error("Ошибка проверки объявления при сверке",
				slog.Int64("listing_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// sweepUsers сверяет директории аватарок с таблицей users.
func (rs *ReconcileService) sweepUsers(ctx context.Context, result *ReconcileResult) {
	for _, name := range rs.entityDirs(picstore.KindUsers) {
		if strings.HasSuffix(name, scratchSuffix) {
			if rs.isStaleScratch(picstore.KindUsers, name) && rs.removeDir(picstore.KindUsers, name) {
				result.StaleScratch++
			}
			continue
		}
		result.Checked++

		_, err := rs.users.GetByID(ctx, name)
		switch {
		case err == nil:
			// Запись на месте
		case err == repository.ErrNotFound:
			if rs.removeDir(picstore.KindUsers, name) {
				result.OrphanedUsers++
				reconcileOrphansTotal.WithLabelValues(string(picstore.KindUsers)).Inc()
			}
		default:
			rs.logger.Error("Ошибка проверки пользователя при сверке",
				slog.String("user_id", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// isStaleScratch возвращает true, если scratch-директория не менялась
// дольше scratchMaxAge и её можно считать брошенной.
func (rs *ReconcileService) isStaleScratch(kind picstore.Kind, name string) bool {
	info, err := os.Stat(filepath.Join(rs.store.BasePath(), string(kind), name))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) >= scratchMaxAge
}

// entityDirs возвращает имена поддиректорий хранилища для kind.
func (rs *ReconcileService) entityDirs(kind picstore.Kind) []string {
	dir := filepath.Join(rs.store.BasePath(), string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			rs.logger.Error("Ошибка чтения директории хранилища",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}

// removeDir удаляет директорию сущности и инвалидирует кэш URL.
func (rs *ReconcileService) removeDir(kind picstore.Kind, name string) bool {
	if err := rs.store.DeleteAll(kind, name); err != nil {
		rs.logger.Error("Ошибка удаления осиротевшей директории",
			slog.String("kind", string(kind)),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	rs.cache.Invalidate(kind, name)
	rs.logger.Info("Осиротевшая директория удалена",
		slog.String("kind", string(kind)),
		slog.String("name", name),
	)
	return true
}
