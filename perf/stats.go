package perf

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the performance layer's counters/gauges to Prometheus.
// Values are sampled from Pool/Cache/WorkerPool snapshots rather than
// incremented inline, keeping the hot paths in cache.go/pool.go/
// processor.go free of Prometheus call overhead.
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheInserts   prometheus.Counter
	CacheEvictions prometheus.Counter

	ValidatorActive    prometheus.Gauge
	ValidatorHitRatio  prometheus.Gauge
	BufferActive       prometheus.Gauge
	BufferHitRatio     prometheus.Gauge

	WorkerQueueDepth prometheus.Gauge
}

// NewMetrics registers every gauge/counter against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "cache", Name: "hits_total",
			Help: "Response cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "cache", Name: "misses_total",
			Help: "Response cache misses.",
		}),
		CacheInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "cache", Name: "inserts_total",
			Help: "Response cache insertions.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge", Subsystem: "cache", Name: "evictions_total",
			Help: "Response cache evictions (LRU or TTL).",
		}),
		ValidatorActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge", Subsystem: "validator_pool", Name: "active",
			Help: "Validator handles currently checked out.",
		}),
		ValidatorHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge", Subsystem: "validator_pool", Name: "hit_ratio",
			Help: "Fraction of Get() calls served without allocating a new validator.",
		}),
		BufferActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge", Subsystem: "buffer_pool", Name: "active",
			Help: "Buffer handles currently checked out.",
		}),
		BufferHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge", Subsystem: "buffer_pool", Name: "hit_ratio",
			Help: "Fraction of Get() calls served without allocating a new buffer.",
		}),
		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge", Subsystem: "worker_pool", Name: "queue_depth",
			Help: "Pending tasks in the worker pool's bounded queue.",
		}),
	}
	reg.MustRegister(
		m.CacheHits, m.CacheMisses, m.CacheInserts, m.CacheEvictions,
		m.ValidatorActive, m.ValidatorHitRatio,
		m.BufferActive, m.BufferHitRatio,
		m.WorkerQueueDepth,
	)
	return m
}

// SampleCache copies a CacheStats snapshot into the counters. Counters only
// move forward, so this adds the delta since the last sample.
func (m *Metrics) SampleCache(prev, cur CacheStats) {
	if d := cur.Hits - prev.Hits; d > 0 {
		m.CacheHits.Add(float64(d))
	}
	if d := cur.Misses - prev.Misses; d > 0 {
		m.CacheMisses.Add(float64(d))
	}
	if d := cur.Inserts - prev.Inserts; d > 0 {
		m.CacheInserts.Add(float64(d))
	}
	if d := cur.Evictions - prev.Evictions; d > 0 {
		m.CacheEvictions.Add(float64(d))
	}
}

func (m *Metrics) SampleValidatorPool(s Stats) {
	m.ValidatorActive.Set(float64(s.Active))
	m.ValidatorHitRatio.Set(s.HitRatio)
}

func (m *Metrics) SampleBufferPool(s Stats) {
	m.BufferActive.Set(float64(s.Active))
	m.BufferHitRatio.Set(s.HitRatio)
}

func (m *Metrics) SampleWorkerQueueDepth(depth int) {
	m.WorkerQueueDepth.Set(float64(depth))
}
