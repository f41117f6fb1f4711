package verification

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for verification.
type Metrics struct {
	VerifyTotal *prometheus.CounterVec
	CheckTotal  *prometheus.CounterVec
}

// NewMetrics registers the verification metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			VerifyTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gav_verify_total",
				Help: "Total number of verifications by outcome (passed, failed, blocked, error)",
			}, []string{"outcome"}),
			CheckTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "gav_verify_checks_total",
				Help: "Total number of static checks by kind and result",
			}, []string{"kind", "result"}),
		}
	})
	return globalMetrics
}
