package request

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds HTTP latency collectors.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide HTTP collectors.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "privata_http_request_duration_seconds",
				Help:    "Latency of endpoints in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"endpoint"}),
		}
	})
	return metricsInstance
}

// ObserveEndpointLatency records one request's duration.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
