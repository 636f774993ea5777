// Package redis connects the shared go-redis client used by the record and
// region caches, and exports its pool statistics.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"privata/internal/platform/config"
)

// Client is the process-wide Redis connection.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies the connection. An empty URL means Redis is
// not configured and yields a nil client.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: rc}, nil
}

func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

// Health is the readiness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

var (
	descHits     = prometheus.NewDesc("privata_redis_pool_hits_total", "Connections found idle in the pool.", nil, nil)
	descMisses   = prometheus.NewDesc("privata_redis_pool_misses_total", "Connections that had to be dialed.", nil, nil)
	descTimeouts = prometheus.NewDesc("privata_redis_pool_timeouts_total", "Waits for a pooled connection that timed out.", nil, nil)
	descStale    = prometheus.NewDesc("privata_redis_pool_stale_conns_total", "Stale connections dropped from the pool.", nil, nil)
	descTotal    = prometheus.NewDesc("privata_redis_pool_conns", "Open connections in the pool.", nil, nil)
	descIdle     = prometheus.NewDesc("privata_redis_pool_idle_conns", "Idle connections in the pool.", nil, nil)
)

// poolCollector reads the pool statistics at scrape time.
type poolCollector struct {
	client *redis.Client
}

func (p poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{descHits, descMisses, descTimeouts, descStale, descTotal, descIdle} {
		ch <- d
	}
}

func (p poolCollector) Collect(ch chan<- prometheus.Metric) {
	st := p.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(descMisses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(descTimeouts, prometheus.CounterValue, float64(st.Timeouts))
	ch <- prometheus.MustNewConstMetric(descStale, prometheus.CounterValue, float64(st.StaleConns))
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.GaugeValue, float64(st.TotalConns))
	ch <- prometheus.MustNewConstMetric(descIdle, prometheus.GaugeValue, float64(st.IdleConns))
}

// RegisterPoolMetrics exposes the pool statistics on reg. Registering a
// second client is a no-op.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) error {
	err := reg.Register(poolCollector{client: c.Client})
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
