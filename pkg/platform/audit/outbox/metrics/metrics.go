package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit outbox worker.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	PollDuration    prometheus.Histogram
}

var (
	once     sync.Once
	instance *Metrics
)

// New returns the process-wide outbox metrics, registering them on first use.
func New() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			PendingDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "privata_outbox_pending_total",
				Help: "Current number of audit events waiting to be streamed",
			}),
			PublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "privata_outbox_published_total",
				Help: "Audit events streamed to Kafka",
			}),
			PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "privata_outbox_publish_failures_total",
				Help: "Outbox fetch or publish failures",
			}),
			PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_outbox_publish_duration_seconds",
				Help:    "Time taken to publish one outbox entry",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			}),
			BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_outbox_batch_size",
				Help:    "Entries fetched per poll",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			}),
			PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "privata_outbox_poll_duration_seconds",
				Help:    "Time taken for each poll cycle",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			}),
		}
	})
	return instance
}

// SetPendingDepth sets the current number of pending entries.
func (m *Metrics) SetPendingDepth(count int64) {
	if m != nil {
		m.PendingDepth.Set(float64(count))
	}
}

// IncPublished increments the published counter.
func (m *Metrics) IncPublished() {
	if m != nil {
		m.PublishedTotal.Inc()
	}
}

// IncPublishFailures increments the publish failures counter.
func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// ObservePublishDuration records the publish latency.
func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m != nil {
		m.PublishDuration.Observe(seconds)
	}
}

// ObserveBatchSize records the size of a fetched batch.
func (m *Metrics) ObserveBatchSize(size int) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
	}
}

// ObservePollDuration records the poll cycle latency.
func (m *Metrics) ObservePollDuration(seconds float64) {
	if m != nil {
		m.PollDuration.Observe(seconds)
	}
}
