package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentsGranted     *prometheus.CounterVec
	ConsentsWithdrawn   *prometheus.CounterVec
	ConsentChecks       *prometheus.CounterVec
	ConsentCheckErrors  prometheus.Counter
	ConsentGrantLatency prometheus.Histogram
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide consent metrics, registering them on first use.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ConsentsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_consents_granted_total",
				Help: "Total number of consents granted, labeled by purpose",
			}, []string{"purpose"}),
			ConsentsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_consents_withdrawn_total",
				Help: "Total number of consents withdrawn, labeled by purpose",
			}, []string{"purpose"}),
			ConsentChecks: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_consent_checks_total",
				Help: "Consent checks by purpose and result (granted, absent)",
			}, []string{"purpose", "result"}),
			ConsentCheckErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "privata_consent_check_errors_total",
				Help: "Consent checks that failed closed because the ledger was unreadable",
			}),
			ConsentGrantLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_consent_grant_latency_seconds",
				Help:    "Latency of consent grant operations in seconds",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return instance
}

func (m *Metrics) IncrementConsentsGranted(purpose string) {
	if m == nil {
		return
	}
	m.ConsentsGranted.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentsWithdrawn(purpose string) {
	if m == nil {
		return
	}
	m.ConsentsWithdrawn.WithLabelValues(purpose).Inc()
}

func (m *Metrics) IncrementConsentCheck(purpose string, granted bool) {
	if m == nil {
		return
	}
	result := "absent"
	if granted {
		result = "granted"
	}
	m.ConsentChecks.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) IncrementConsentCheckErrors() {
	if m == nil {
		return
	}
	m.ConsentCheckErrors.Inc()
}

func (m *Metrics) ObserveConsentGrantLatency(start time.Time) {
	if m == nil {
		return
	}
	m.ConsentGrantLatency.Observe(time.Since(start).Seconds())
}
