// Package metrics exposes prometheus instrumentation for the ledger core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the wallet metric families. A nil *Collector is valid and
// records nothing, which keeps tests and DB-less tools free of a registry.
type Collector struct {
	operations  *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	exhaustions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

func New(namespace string) *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Ledger operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "version_conflicts_total",
				Help:      "Optimistic-concurrency conflicts that triggered a retry",
			},
			[]string{"op"},
		),
		exhaustions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_exhaustions_total",
				Help:      "Operations that ran out of optimistic retries",
			},
			[]string{"op"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_seconds",
				Help:      "Ledger operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.operations, c.conflicts, c.exhaustions, c.latency} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) IncConflict(op string) {
	if c == nil {
		return
	}
	c.conflicts.WithLabelValues(op).Inc()
}

func (c *Collector) IncExhaustion(op string) {
	if c == nil {
		return
	}
	c.exhaustions.WithLabelValues(op).Inc()
}
