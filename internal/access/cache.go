package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"privata/internal/access/metrics"
	"privata/internal/cache"
	"privata/internal/storage"
	"privata/pkg/platform/circuit"
)

const recordCacheName = "records"

// recordCache is the best-effort read-through cache in front of the regional
// stores. Reads and fills go through the breaker; invalidations are always
// attempted so an open circuit cannot preserve a stale entry.
type recordCache struct {
	cache        cache.Cache
	breaker      *circuit.Breaker
	ttl          time.Duration
	cacheMetrics *cache.Metrics
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func (c *recordCache) get(ctx context.Context, key string) (storage.Record, bool) {
	if c == nil {
		return nil, false
	}
	var raw []byte
	var hit bool
	ran, err := c.breaker.Do(func() error {
		var err error
		raw, hit, err = c.cache.Get(ctx, key)
		return err
	})
	switch {
	case !ran:
		c.metrics.IncrementCacheBypassed()
		return nil, false
	case err != nil:
		c.cacheMetrics.Error(recordCacheName, "get")
		c.logger.WarnContext(ctx, "record cache read failed", "error", err)
		return nil, false
	case !hit:
		c.cacheMetrics.Miss(recordCacheName)
		return nil, false
	}
	var rec storage.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.cacheMetrics.Error(recordCacheName, "decode")
		return nil, false
	}
	c.cacheMetrics.Hit(recordCacheName)
	return rec, true
}

func (c *recordCache) set(ctx context.Context, key string, rec storage.Record) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	ran, err := c.breaker.Do(func() error {
		return c.cache.Set(ctx, key, raw, c.ttl)
	})
	if !ran {
		c.metrics.IncrementCacheBypassed()
		return
	}
	if err != nil {
		c.cacheMetrics.Error(recordCacheName, "set")
		c.logger.WarnContext(ctx, "record cache fill failed", "error", err)
	}
}

func (c *recordCache) invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	err := c.cache.Delete(ctx, keys...)
	c.breaker.Record(err)
	if err != nil {
		c.cacheMetrics.Error(recordCacheName, "delete")
		c.logger.ErrorContext(ctx, "record cache invalidation failed, entries expire by ttl",
			"keys", keys,
			"error", err,
		)
	}
}
