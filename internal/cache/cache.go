package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/in-nis/untis-back/internal/metrics"
)

// Cache serves repeated week and exam requests from a Store and collapses
// identical in-flight loads into one provider fetch.
type Cache struct {
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Invalidate drops the cached entries under prefix; "" drops all of them.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	return c.store.DeletePrefix(ctx, prefix)
}

// WeekKey and ExamsKey name the cached responses.
func WeekKey(grade string, weekStart time.Time) string {
	return fmt.Sprintf("week:%s:%s", grade, weekStart.Format("2006-01-02"))
}

func ExamsKey(grade string, start, end time.Time, examTypeID int) string {
	return fmt.Sprintf("exams:%s:%s:%s:%d", grade, start.Format("2006-01-02"), end.Format("2006-01-02"), examTypeID)
}

// GetOrLoad returns the cached value for key, or calls load once for all
// concurrent callers and caches its result. cached reports whether the value
// came from the store. Failed loads are not cached. A broken store is logged
// and bypassed.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (value T, cached bool, err error) {
	if c == nil || c.ttl <= 0 {
		value, err = load(ctx)
		return value, false, err
	}

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		metrics.CacheResults.WithLabelValues("error").Inc()
		log.Printf("⚠️ cache get %s: %v", key, err)
	} else if ok {
		if err := json.Unmarshal(raw, &value); err == nil {
			metrics.CacheResults.WithLabelValues("hit").Inc()
			return value, true, nil
		}
		log.Printf("⚠️ cache entry %s is unreadable, reloading", key)
	}

	// The shared load must outlive any single caller giving up.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		metrics.CacheResults.WithLabelValues("miss").Inc()
		res, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(res); err == nil {
			if err := c.store.Set(loadCtx, key, raw, c.ttl); err != nil {
				log.Printf("⚠️ cache set %s: %v", key, err)
			}
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err()
	case r := <-ch:
		if r.Shared {
			metrics.CacheResults.WithLabelValues("shared").Inc()
		}
		if r.Err != nil {
			return value, false, r.Err
		}
		return r.Val.(T), false, nil
	}
}
