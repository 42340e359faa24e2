// cache.go — LRU-кэш публичных URL картинок с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ml_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш URL картинок.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ml_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша URL картинок.",
	})
)

// PictureURLCache — LRU-кэш списков публичных URL картинок с TTL.
// Каждый экземпляр API имеет собственный in-memory кэш. Запись
// инвалидируется явно при любой мутации набора картинок сущности.
type PictureURLCache struct {
	cache *expirable.LRU[string, []string]
}

// NewPictureURLCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewPictureURLCache(maxSize int, ttl time.Duration) *PictureURLCache {
	cache := expirable.NewLRU[string, []string](maxSize, nil, ttl)
	return &PictureURLCache{cache: cache}
}

// cacheKey строит ключ кэша для сущности.
func cacheKey(kind picstore.Kind, entityID string) string {
	return fmt.Sprintf("%s/%s", kind, entityID)
}

// Get возвращает список URL из кэша.
// Возвращает (urls, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *PictureURLCache) Get(kind picstore.Kind, entityID string) ([]string, bool) {
	val, ok := c.cache.Get(cacheKey(kind, entityID))
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *PictureURLCache) Set(kind picstore.Kind, entityID string, urls []string) {
	c.cache.Add(cacheKey(kind, entityID), urls)
}

// Invalidate удаляет запись сущности из кэша.
func (c *PictureURLCache) Invalidate(kind picstore.Kind, entityID string) {
	c.cache.Remove(cacheKey(kind, entityID))
}

// Len возвращает текущее количество записей в кэше.
func (c *PictureURLCache) Len() int {
	return c.cache.Len()
}
