package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the rights workflow.
type Metrics struct {
	Submitted      *prometheus.CounterVec
	Finished       *prometheus.CounterVec
	StepAttempts   *prometheus.CounterVec
	StepOutcomes   *prometheus.CounterVec
	ExecuteLatency *prometheus.HistogramVec
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide rights metrics.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_rights_requests_submitted_total",
				Help: "Rights requests accepted, by kind",
			}, []string{"kind"}),
			Finished: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_rights_requests_finished_total",
				Help: "Rights request executions reaching a terminal status",
			}, []string{"kind", "status"}),
			StepAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_rights_step_attempts_total",
				Help: "Step attempts including retries, by action",
			}, []string{"action"}),
			StepOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "privata_rights_steps_total",
				Help: "Finished steps by action and status",
			}, []string{"action", "status"}),
			ExecuteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "privata_rights_execute_duration_seconds",
				Help:    "Wall time of one Execute call",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			}, []string{"kind"}),
		}
	})
	return instance
}

func (m *Metrics) IncrementSubmitted(kind string) {
	if m == nil {
		return
	}
	m.Submitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementFinished(kind, status string) {
	if m == nil {
		return
	}
	m.Finished.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncrementStepAttempt(action string) {
	if m == nil {
		return
	}
	m.StepAttempts.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementStep(action, status string) {
	if m == nil {
		return
	}
	m.StepOutcomes.WithLabelValues(action, status).Inc()
}

func (m *Metrics) ObserveExecute(kind string, start time.Time) {
	if m == nil {
		return
	}
	m.ExecuteLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
