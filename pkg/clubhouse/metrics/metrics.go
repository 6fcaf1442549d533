// Package metrics defines the Prometheus collectors exported by clubhouse.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clubhouse"

// Store collects membership store metrics. A nil *Store is valid and records nothing.
type Store struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
	lockWaits       prometheus.Histogram
}

// NewStore creates the store collectors and registers them on reg.
func NewStore(reg prometheus.Registerer) *Store {
	m := &Store{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by name and result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "retries_total",
			Help:      "Transient storage failures that were retried.",
		}, []string{"operation"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "inconsistencies_total",
			Help:      "Membership index inconsistencies detected.",
		}, []string{"kind"}),
		lockWaits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for membership key locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.retries, m.inconsistencies, m.lockWaits)
	}
	return m
}

// Observe records one finished operation.
func (m *Store) Observe(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Retry records a retried attempt.
func (m *Store) Retry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// Inconsistency records a detected index inconsistency.
func (m *Store) Inconsistency(kind string) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(kind).Inc()
}

// LockWait records how long a key lock acquisition took.
func (m *Store) LockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lockWaits.Observe(elapsed.Seconds())
}
