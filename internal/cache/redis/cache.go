// Package redis implements the cache contract on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"privata/internal/cache"
)

const scanBatch = 500

// Cache stores values under a key prefix.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	name    string
	metrics *cache.Metrics
}

// Option configures the Cache.
type Option func(*Cache)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithMetrics records hits and misses under name.
func WithMetrics(name string, m *cache.Metrics) Option {
	return func(c *Cache) {
		c.name = name
		c.metrics = m
	}
}

// New creates a Redis-backed cache.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	if client == nil {
		panic("redis cache: client is required")
	}
	c := &Cache{client: client, prefix: "privata:", name: "redis"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string { return c.prefix + k }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.Miss(c.name)
		return nil, false, nil
	}
	if err != nil {
		c.metrics.Error(c.name, "get")
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	c.metrics.Hit(c.name)
	return v, true, nil
}

func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		c.metrics.Error(c.name, "mget")
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			c.metrics.Miss(c.name)
			continue
		}
		c.metrics.Hit(c.name)
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.metrics.Error(c.name, "set")
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, c.key(k), v, ttl)
		}
		return nil
	})
	if err != nil {
		c.metrics.Error(c.name, "mset")
		return fmt.Errorf("cache set many: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.metrics.Error(c.name, "del")
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Invalidate deletes keys matching pattern with SCAN so large keyspaces do
// not block the server.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(pattern), scanBatch).Result()
		if err != nil {
			c.metrics.Error(c.name, "scan")
			return removed, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.metrics.Error(c.name, "del")
				return removed, fmt.Errorf("cache invalidate: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
