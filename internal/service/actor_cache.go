// ActorCache — LRU-кэш сотрудников с TTL для middleware аутентификации.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// Prometheus-метрики кэша.
var (
	actorCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ed_actor_cache_hits_total",
		Help: "Общее количество попаданий в кэш сотрудников.",
	})
	actorCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ed_actor_cache_misses_total",
		Help: "Общее количество промахов кэша сотрудников.",
	})
)

// ActorCache кэширует сотрудника вместе с прямыми правами.
// Каждый экземпляр сервиса держит собственный кэш; изменения сотрудника
// на другом экземпляре видны после истечения TTL.
type ActorCache struct {
	cache *expirable.LRU[string, *model.Actor]
	repos repository.Repositories
}

// NewActorCache создаёт кэш с указанным размером и TTL записи.
func NewActorCache(repos repository.Repositories, maxSize int, ttl time.Duration) *ActorCache {
	return &ActorCache{
		cache: expirable.NewLRU[string, *model.Actor](maxSize, nil, ttl),
		repos: repos,
	}
}

// Get возвращает сотрудника по ID, при промахе читает из БД.
func (c *ActorCache) Get(ctx context.Context, id string) (*model.Actor, error) {
	if a, ok := c.cache.Get(id); ok {
		actorCacheHitsTotal.Inc()
		return a, nil
	}
	actorCacheMissesTotal.Inc()

	a, err := c.repos.Actors().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "сотрудник "+id)
	}
	c.cache.Add(id, a)
	return a, nil
}

// Invalidate удаляет сотрудника из кэша (изменение, удаление, выход).
func (c *ActorCache) Invalidate(id string) {
	c.cache.Remove(id)
}

// Len возвращает количество записей в кэше.
func (c *ActorCache) Len() int {
	return c.cache.Len()
}
