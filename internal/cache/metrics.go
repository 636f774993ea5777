package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts cache lookups by cache name and outcome.
type Metrics struct {
	lookups *prometheus.CounterVec
	errors  *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide cache metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			lookups: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_cache_lookups_total",
				Help: "Cache lookups by cache and result (hit, miss)",
			}, []string{"cache", "result"}),
			errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_cache_errors_total",
				Help: "Cache operation failures by cache and operation",
			}, []string{"cache", "op"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) Hit(name string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(name, "hit").Inc()
}

func (m *Metrics) Miss(name string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(name, "miss").Inc()
}

func (m *Metrics) Error(name, op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(name, op).Inc()
}
