package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for gate evaluations.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	DeniedFields     *prometheus.CounterVec
	EvaluationErrors *prometheus.CounterVec
	EvaluateLatency  prometheus.Histogram
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide gate metrics.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_gate_decisions_total",
				Help: "Completed gate evaluations by outcome and mode",
			}, []string{"outcome", "mode"}),
			DeniedFields: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_gate_denied_fields_total",
				Help: "Fields denied by the gate, labeled by reason",
			}, []string{"reason"}),
			EvaluationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_gate_evaluation_errors_total",
				Help: "Evaluations that ended in an error instead of a decision, by error code",
			}, []string{"code"}),
			EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_gate_evaluate_duration_seconds",
				Help:    "Gate evaluation latency including consent and audit I/O",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return instance
}

func (m *Metrics) IncrementDecision(outcome, mode string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome, mode).Inc()
}

func (m *Metrics) IncrementDeniedField(reason string) {
	if m == nil {
		return
	}
	m.DeniedFields.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementEvaluationError(code string) {
	if m == nil {
		return
	}
	m.EvaluationErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveEvaluateLatency(start time.Time) {
	if m == nil {
		return
	}
	m.EvaluateLatency.Observe(time.Since(start).Seconds())
}
