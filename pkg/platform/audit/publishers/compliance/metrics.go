package compliance

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit sink.
type Metrics struct {
	PersistDuration prometheus.Histogram
	PersistFailures prometheus.Counter
	EventsLogged    *prometheus.CounterVec
	ExportedEvents  *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the singleton Metrics instance.
// Safe to call multiple times; metrics are only registered once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_audit_persist_duration_seconds",
				Help:    "Time taken to persist audit events",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			}),
			PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "privata_audit_persist_failures_total",
				Help: "Audit events that could not be persisted (the triggering operation was rejected)",
			}),
			EventsLogged: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_audit_events_logged_total",
				Help: "Audit events persisted, by action",
			}, []string{"action"}),
			ExportedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_audit_exported_events_total",
				Help: "Audit events written to exports, by format",
			}, []string{"format"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) observePersist(seconds float64) {
	if m != nil {
		m.PersistDuration.Observe(seconds)
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) incLogged(action string) {
	if m != nil {
		m.EventsLogged.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) addExported(format string, n int) {
	if m != nil {
		m.ExportedEvents.WithLabelValues(format).Add(float64(n))
	}
}
