package contextcache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for context caches.
type Metrics struct {
	HitsTotal      prometheus.Counter
	MissesTotal    prometheus.Counter
	CoalescedTotal prometheus.Counter
	EvictionsTotal prometheus.Counter
	Size           prometheus.Gauge
}

// NewMetrics registers the cache metrics once per process.
//
// Metrics:
//   - gav_context_cache_hits_total
//   - gav_context_cache_misses_total
//   - gav_context_cache_coalesced_total - misses served by another caller's computation
//   - gav_context_cache_evictions_total - entries dropped by capacity, TTL or clear
//   - gav_context_cache_size
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gav_context_cache_hits_total",
				Help: "Total number of context cache hits",
			}),
			MissesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gav_context_cache_misses_total",
				Help: "Total number of context cache misses",
			}),
			CoalescedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gav_context_cache_coalesced_total",
				Help: "Total number of misses that joined an in-flight computation",
			}),
			EvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gav_context_cache_evictions_total",
				Help: "Total number of context cache evictions",
			}),
			Size: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gav_context_cache_size",
				Help: "Current number of cached context bundles",
			}),
		}
	})
	return globalMetrics
}
