// Package memory is an in-process cache with TTL expiry.
package memory

import (
	"context"
	"path"
	"slices"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a map-backed cache. Expired entries are dropped lazily.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures the Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false, nil
	}
	return slices.Clone(e.value), true, nil
}

func (c *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok, _ := c.Get(ctx, k)
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.entry(value, ttl)
	return nil
}

func (c *Cache) SetMany(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.entries[k] = c.entry(v, ttl)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// Invalidate removes keys matching a glob pattern.
func (c *Cache) Invalidate(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return n, err
		}
		if ok {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func (c *Cache) entry(value []byte, ttl time.Duration) entry {
	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	return e
}
