// Package metrics exposes Prometheus instrumentation for the data buffer:
// lane occupancy gauges, per-operation counters, eviction counters and
// transfer-latency histograms.
//
// A Collector wraps its own prometheus.Registry so a buffer can be
// instantiated multiple times in the same process (e.g. in tests) without
// colliding on the default global registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus collectors used by a single buffer
// instance. The zero value is not usable; construct with New or NewNoop.
type Collector struct {
	registry *prometheus.Registry

	memoryBytes  prometheus.Gauge
	diskBytes    prometheus.Gauge
	operations   *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	workerErrors prometheus.Counter
	transferTime prometheus.Histogram

	noop bool
}

// Label values used with IncOperation and IncEviction.
const (
	OpStore  = "store"
	OpGet    = "get"
	OpDelete = "delete"

	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"

	EvictionPopCallback         = "pop_callback"
	EvictionBackpressureRelease = "backpressure_release"
)

// New creates a Collector registered against a fresh, private
// prometheus.Registry, reachable through Registry so callers can mount it
// behind an HTTP handler (see zephyrcache's telemetry.MetricsHandler for
// the analogous pattern).
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Current bytes held in the memory lane.",
		}),
		diskBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "disk_bytes",
			Help:      "Current bytes accounted to the disk lane, including space reserved by writes still in flight.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total Store/Get/Delete calls, by outcome.",
		}, []string{"op", "result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total disk-lane evictions, by reason.",
		}, []string{"reason"}),
		workerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_errors_total",
			Help:      "Total fatal transfer-worker errors observed.",
		}),
		transferTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Latency of memory-to-disk transfers performed by the worker.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	reg.MustRegister(c.memoryBytes, c.diskBytes, c.operations, c.evictions, c.workerErrors, c.transferTime)
	return c
}

// NewNoop returns a Collector whose methods are safe to call but record
// nothing and are not attached to any registry. Used as the buffer's
// default when Config.Metrics is nil.
func NewNoop() *Collector {
	return &Collector{noop: true}
}

// Registry returns the Collector's private registry, or nil for a no-op
// collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetMemoryBytes records the memory lane's current occupancy.
func (c *Collector) SetMemoryBytes(n uint64) {
	if c.noop {
		return
	}
	c.memoryBytes.Set(float64(n))
}

// SetDiskBytes records the disk lane's current occupancy.
func (c *Collector) SetDiskBytes(n uint64) {
	if c.noop {
		return
	}
	c.diskBytes.Set(float64(n))
}

// IncOperation records the outcome of a Store/Get/Delete call.
func (c *Collector) IncOperation(op, result string) {
	if c.noop {
		return
	}
	c.operations.WithLabelValues(op, result).Inc()
}

// IncEviction records a disk-lane eviction.
func (c *Collector) IncEviction(reason string) {
	if c.noop {
		return
	}
	c.evictions.WithLabelValues(reason).Inc()
}

// IncWorkerError records that the transfer worker has stopped with an
// error.
func (c *Collector) IncWorkerError() {
	if c.noop {
		return
	}
	c.workerErrors.Inc()
}

// ObserveTransfer records how long a single memory-to-disk transfer took.
func (c *Collector) ObserveTransfer(d time.Duration) {
	if c.noop {
		return
	}
	c.transferTime.Observe(d.Seconds())
}
