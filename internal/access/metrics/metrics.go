package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the data access engine.
type Metrics struct {
	Operations     *prometheus.CounterVec
	StrippedFields *prometheus.CounterVec
	CacheBypassed  prometheus.Counter
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide access metrics.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			Operations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_access_operations_total",
				Help: "Data access operations by operation and result (ok, denied, error)",
			}, []string{"operation", "result"}),
			StrippedFields: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_access_stripped_fields_total",
				Help: "Fields removed from reads or dropped from writes by a partial decision",
			}, []string{"operation"}),
			CacheBypassed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "privata_access_cache_bypassed_total",
				Help: "Record cache calls skipped because the circuit was open",
			}),
		}
	})
	return instance
}

func (m *Metrics) IncrementOperation(operation, result string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) AddStrippedFields(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.StrippedFields.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) IncrementCacheBypassed() {
	if m == nil {
		return
	}
	m.CacheBypassed.Inc()
}
