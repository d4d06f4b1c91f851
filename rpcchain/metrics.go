package rpcchain

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ChainMetrics is the monotonic counter set FallbackChain maintains across
// its lifetime. Readers may observe partial updates but counters never
// decrease.
type ChainMetrics struct {
	TotalRequests      uint64
	SuccessfulRequests uint64
	FailedRequests     uint64
	FallbacksTriggered uint64
}

type chainMetricsRegistry struct {
	mu sync.Mutex
	m  ChainMetrics

	promRequests  *prometheus.CounterVec
	promFallbacks prometheus.Counter
}

// newChainMetricsRegistry constructs the in-process counters plus, when a
// non-nil prometheus.Registerer is supplied, exported Prometheus metrics
// mirroring the teacher's health/prometheus.go exporter shape.
func newChainMetricsRegistry(chainName string, reg prometheus.Registerer) *chainMetricsRegistry {
	c := &chainMetricsRegistry{
		promRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solcore",
			Subsystem: "fallback_chain",
			Name:      "requests_total",
			Help:      "Total requests processed by the fallback chain, labeled by outcome.",
			ConstLabels: prometheus.Labels{
				"chain": chainName,
			},
		}, []string{"outcome"}),
		promFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solcore",
			Subsystem: "fallback_chain",
			Name:      "fallbacks_triggered_total",
			Help:      "Number of attempts, successful or failed, made on a non-first candidate endpoint.",
			ConstLabels: prometheus.Labels{
				"chain": chainName,
			},
		}),
	}
	if reg != nil {
		reg.MustRegister(c.promRequests, c.promFallbacks)
	}
	return c
}

func (c *chainMetricsRegistry) recordSuccess() {
	c.mu.Lock()
	c.m.TotalRequests++
	c.m.SuccessfulRequests++
	c.mu.Unlock()
	c.promRequests.WithLabelValues("success").Inc()
}

func (c *chainMetricsRegistry) recordFailure() {
	c.mu.Lock()
	c.m.TotalRequests++
	c.m.FailedRequests++
	c.mu.Unlock()
	c.promRequests.WithLabelValues("failure").Inc()
}

func (c *chainMetricsRegistry) recordFallback() {
	c.mu.Lock()
	c.m.FallbacksTriggered++
	c.mu.Unlock()
	c.promFallbacks.Inc()
}

func (c *chainMetricsRegistry) snapshot() ChainMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m
}
