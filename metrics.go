package malloc

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the atomic counters every Pool and LockFreePool maintains.
// All counters are sync/atomic values (which are sequentially consistent;
// Go offers no relaxed mode) — they are observational, never used for
// synchronization between allocate/free and any other operation.
type Metrics struct {
	allocCalls    atomic.Uint64
	freeCalls     atomic.Uint64
	allocFailures atomic.Uint64
	casFailures   atomic.Uint64
	inUse         atomic.Int64
	highWatermark atomic.Int64
}

func (m *Metrics) recordAllocCall()    { m.allocCalls.Add(1) }
func (m *Metrics) recordFreeCall()     { m.freeCalls.Add(1) }
func (m *Metrics) recordAllocFailure() { m.allocFailures.Add(1) }
func (m *Metrics) recordCASFailure()   { m.casFailures.Add(1) }

// recordAcquire bumps in_use and advances high_watermark monotonically
// via a compare-and-swap retry loop.
func (m *Metrics) recordAcquire() {
	n := m.inUse.Add(1)
	for {
		hw := m.highWatermark.Load()
		if n <= hw {
			return
		}
		if m.highWatermark.CompareAndSwap(hw, n) {
			return
		}
	}
}

func (m *Metrics) recordRelease() {
	m.inUse.Add(-1)
}

// MetricsSnapshot is a value copy of a Metrics' counters, safe to retain
// and compare after the fact.
type MetricsSnapshot struct {
	AllocCalls    uint64
	FreeCalls     uint64
	AllocFailures uint64
	CASFailures   uint64
	InUse         int64
	HighWatermark int64
}

// Snapshot returns a value copy of m's current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		AllocCalls:    m.allocCalls.Load(),
		FreeCalls:     m.freeCalls.Load(),
		AllocFailures: m.allocFailures.Load(),
		CASFailures:   m.casFailures.Load(),
		InUse:         m.inUse.Load(),
		HighWatermark: m.highWatermark.Load(),
	}
}

// metricsCollector adapts a Metrics into a prometheus.Collector, labeled
// by pool name so a host process can register metrics from several pools
// against one registry without name collisions. Unlike the promauto
// package-level-var idiom this package's domain stack donor
// (23skdu-longbow) uses for its own singleton service metrics, this
// library may have many independent pool instances per process, so each
// collector carries its own *prometheus.Desc set built from a per-pool
// label rather than global promauto variables.
type metricsCollector struct {
	m                 *Metrics
	allocCallsDesc    *prometheus.Desc
	freeCallsDesc     *prometheus.Desc
	allocFailuresDesc *prometheus.Desc
	casFailuresDesc   *prometheus.Desc
	inUseDesc         *prometheus.Desc
	highWatermarkDesc *prometheus.Desc
}

// NewPrometheusCollector returns a prometheus.Collector exporting m's
// counters under the "malloc_pool" metric family, labeled by name. The
// returned collector must be registered with a prometheus.Registerer by
// the host process; this package never registers anything on its own.
func NewPrometheusCollector(name string, m *Metrics) prometheus.Collector {
	constLabels := prometheus.Labels{"pool": name}
	return &metricsCollector{
		m: m,
		allocCallsDesc: prometheus.NewDesc(
			"malloc_pool_alloc_calls_total", "Total allocate() calls.", nil, constLabels),
		freeCallsDesc: prometheus.NewDesc(
			"malloc_pool_free_calls_total", "Total deallocate() calls.", nil, constLabels),
		allocFailuresDesc: prometheus.NewDesc(
			"malloc_pool_alloc_failures_total", "Total allocate() calls that returned nil.", nil, constLabels),
		casFailuresDesc: prometheus.NewDesc(
			"malloc_pool_cas_failures_total", "Total CAS retries in the lock-free pool.", nil, constLabels),
		inUseDesc: prometheus.NewDesc(
			"malloc_pool_in_use", "Current number of outstanding allocations.", nil, constLabels),
		highWatermarkDesc: prometheus.NewDesc(
			"malloc_pool_high_watermark", "Maximum observed in-use count.", nil, constLabels),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocCallsDesc
	ch <- c.freeCallsDesc
	ch <- c.allocFailuresDesc
	ch <- c.casFailuresDesc
	ch <- c.inUseDesc
	ch <- c.highWatermarkDesc
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.allocCallsDesc, prometheus.CounterValue, float64(s.AllocCalls))
	ch <- prometheus.MustNewConstMetric(c.freeCallsDesc, prometheus.CounterValue, float64(s.FreeCalls))
	ch <- prometheus.MustNewConstMetric(c.allocFailuresDesc, prometheus.CounterValue, float64(s.AllocFailures))
	ch <- prometheus.MustNewConstMetric(c.casFailuresDesc, prometheus.CounterValue, float64(s.CASFailures))
	ch <- prometheus.MustNewConstMetric(c.inUseDesc, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.highWatermarkDesc, prometheus.GaugeValue, float64(s.HighWatermark))
}
