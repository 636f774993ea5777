//go:build integration

// Package containers starts the backing services integration suites run
// against. Each service is started at most once per test binary.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	postgres lazy[*PostgresContainer]
	kafka    lazy[*KafkaContainer]
	redis    lazy[*RedisContainer]
	mongo    lazy[*MongoContainer]
}

// lazy starts a container on first use. A failed start is retried by the
// next caller since t.Fatalf stops the goroutine before the value is set.
type lazy[T any] struct {
	mu  sync.Mutex
	val T
	ok  bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.val = start(t)
		l.ok = true
	}
	return l.val
}

var manager = &Manager{}

func GetManager() *Manager { return manager }

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, NewPostgresContainer)
}

// GetKafka returns the Redpanda broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, NewRedisContainer)
}

func (m *Manager) GetMongo(t *testing.T) *MongoContainer {
	t.Helper()
	return m.mongo.get(t, NewMongoContainer)
}
