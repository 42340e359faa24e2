// promopurge.go — фоновая очистка истёкших продвижений.
//
// Продвижения с прошедшим сроком окончания перестают влиять на выдачу
// сразу (фильтр по expiration_date в запросах), но строки накапливаются.
// Purger периодически удаляет их из таблицы.
//
// Запускается как горутина с периодическим тикером.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики purger-а
var (
	// promoPurgeRunsTotal — количество запусков очистки.
	promoPurgeRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ml_promo_purge_runs_total",
		Help: "Общее количество запусков очистки истёкших продвижений",
	})

	// promoPurgedTotal — количество удалённых продвижений.
	promoPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ml_promo_purged_total",
		Help: "Общее количество удалённых истёкших продвижений",
	})
)

// PromoPurger — фоновая очистка истёкших продвижений.
type PromoPurger struct {
	promotions *PromotionsService
	interval   time.Duration
	logger     *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewPromoPurger создаёт фоновую очистку продвижений.
func NewPromoPurger(promotions *PromotionsService, interval time.Duration, logger *slog.Logger) *PromoPurger {
	return &PromoPurger{
		promotions: promotions,
		interval:   interval,
		logger:     logger.With(slog.String("component", "promo_purger")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (p *PromoPurger) Start(ctx context.Context) {
	purgeCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.run(purgeCtx)

	p.logger.Info("Очистка продвижений запущена",
		slog.String("interval", p.interval.String()),
	)
}

// Stop останавливает фоновый процесс.
func (p *PromoPurger) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.logger.Info("Очистка продвижений остановлена")
}

// run — основной цикл фоновой горутины.
func (p *PromoPurger) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (p *PromoPurger) RunOnce(ctx context.Context) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	deleted, serr := p.promotions.PurgeExpired(ctx)
	promoPurgeRunsTotal.Inc()
	if serr != nil {
		p.logger.Error("Ошибка очистки продвижений", slog.String("error", serr.Message))
		return 0
	}
	promoPurgedTotal.Add(float64(deleted))
	return deleted
}
