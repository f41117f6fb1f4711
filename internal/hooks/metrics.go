package hooks

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for hook execution.
type Metrics struct {
	RunsTotal *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics registers the hook metrics once per process.
//
// Outcomes are success, failure, timeout, cancelled and spawn_error.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gav_hook_runs_total",
				Help: "Total number of hook executions by event and outcome",
			}, []string{"event", "outcome"}),
			Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "gav_hook_duration_seconds",
				Help:    "Hook execution time",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			}, []string{"event"}),
		}
	})
	return globalMetrics
}
