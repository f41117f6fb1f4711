package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for context gathering.
type Metrics struct {
	GatherTotal    *prometheus.CounterVec
	GatherDuration prometheus.Histogram
	BundleTokens   prometheus.Histogram
}

// NewMetrics registers the gather metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GatherTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gav_context_gather_total",
				Help: "Total number of context gathers by strategy",
			}, []string{"strategy"}),
			GatherDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "gav_context_gather_duration_seconds",
				Help:    "Time spent assembling context bundles",
				Buckets: prometheus.DefBuckets,
			}),
			BundleTokens: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "gav_context_bundle_tokens",
				Help:    "Estimated tokens used by returned bundles",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			}),
		}
	})
	return globalMetrics
}
