package perf

import (
	"sync"
	"time"

	"github.com/tsukushibito/unity-mcp-bridge/hk"
)

// Stats mirrors the original's ObjectPoolStats: hit ratio is the share of
// Get calls served from an idle item rather than a fresh factory call, and
// both moving averages use a 10% weight exponential moving average.
type Stats struct {
	Created           uint64
	Acquired          uint64
	Returned          uint64
	Active            uint64
	Available         int
	HitRatio          float64
	AvgAcquisitionNs  uint64
	AvgHoldMs         float64
}

type pooledItem[T any] struct {
	value    T
	lastUsed time.Time
}

// Pool is a bounded, generic object pool: acquisitions below MaxSize create
// new values on miss; returns below MaxSize are kept (after Reset, if set)
// for reuse; a housekeeper job evicts items idle past MaxIdle while leaving
// at least MinSize resident. Ported from
// original_source/server/src/grpc/performance/resource_pool.rs's
// ObjectPool<T>/PooledObject<T>.
type Pool[T any] struct {
	mu        sync.Mutex
	available []pooledItem[T]
	stats     Stats
	hits      uint64 // Get calls served from available

	sem chan struct{} // bounds active+idle to maxSize; acquired in Get, released in Put

	factory func() T
	reset   func(*T)
	minSize int
	maxSize int
	maxIdle time.Duration
	hkName  string
}

// NewPool creates a pool and registers its idle-eviction scavenger with
// DefaultHK. factory must never be nil; reset may be nil when values need no
// cleanup between uses (e.g. plain service handles). Concurrent checkouts
// are bounded at maxSize: Get blocks once that many values are checked out
// (idle values do not count), mirroring ObjectPool<T>'s fixed capacity.
func NewPool[T any](name string, minSize, maxSize int, factory func() T, reset func(*T), maxIdle time.Duration) *Pool[T] {
	p := &Pool[T]{
		factory: factory,
		reset:   reset,
		minSize: minSize,
		maxSize: maxSize,
		maxIdle: maxIdle,
		hkName:  "pool-scavenger-" + name,
		sem:     make(chan struct{}, maxSize),
	}
	p.preallocate(minSize)
	hk.Reg(p.hkName, p.scavenge, maxIdle)
	return p
}

func (p *Pool[T]) preallocate(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for i := 0; i < n && len(p.available) < p.maxSize; i++ {
		p.available = append(p.available, pooledItem[T]{value: p.factory(), lastUsed: now})
		p.stats.Created++
	}
}

// Handle is a smart-pointer-style acquisition: it must be returned via Put
// exactly once. Accessing Value after Put is a programmer error.
type Handle[T any] struct {
	value     T
	consumed  bool
	pool      *Pool[T]
	acquired  time.Time
}

// Value dereferences the handle. Panics if the handle was already returned,
// matching the original's deliberate panic-on-reuse contract.
func (h *Handle[T]) Value() *T {
	if h.consumed {
		panic("perf: use of Handle after Put — programmer error")
	}
	return &h.value
}

// Get acquires a value from the pool, creating one on miss. It blocks once
// maxSize handles are concurrently checked out, until a Put frees a slot.
func (p *Pool[T]) Get() *Handle[T] {
	p.sem <- struct{}{}
	start := time.Now()
	p.mu.Lock()
	var v T
	if n := len(p.available); n > 0 {
		v = p.available[n-1].value
		p.available = p.available[:n-1]
		p.hits++
	} else {
		v = p.factory()
		p.stats.Created++
	}
	p.stats.Acquired++
	p.stats.Active++
	p.stats.Available = len(p.available)
	if p.stats.Acquired > 0 {
		p.stats.HitRatio = float64(p.hits) / float64(p.stats.Acquired)
	}
	p.mu.Unlock()

	acquisitionNs := uint64(time.Since(start).Nanoseconds())
	p.mu.Lock()
	p.stats.AvgAcquisitionNs = ema(p.stats.AvgAcquisitionNs, acquisitionNs, 0.1)
	p.mu.Unlock()

	return &Handle[T]{value: v, pool: p, acquired: time.Now()}
}

// Put returns the handle's value to the pool, applying Reset first. Safe to
// call at most once per handle.
func (p *Pool[T]) Put(h *Handle[T]) {
	if h.consumed {
		return
	}
	h.consumed = true
	hold := time.Since(h.acquired)

	if p.reset != nil {
		p.reset(&h.value)
	}

	p.mu.Lock()
	if len(p.available) < p.maxSize {
		p.available = append(p.available, pooledItem[T]{value: h.value, lastUsed: time.Now()})
	}
	p.stats.Returned++
	if p.stats.Active > 0 {
		p.stats.Active--
	}
	// AvgHoldMs is float64 (sub-millisecond precision matters for hot
	// short-lived handles), so it uses its own EMA rather than the
	// uint64-based ema() helper used for AvgAcquisitionNs.
	newHoldMs := float64(hold.Microseconds()) / 1000.0
	if p.stats.AvgHoldMs == 0 {
		p.stats.AvgHoldMs = newHoldMs
	} else {
		p.stats.AvgHoldMs = p.stats.AvgHoldMs*0.9 + newHoldMs*0.1
	}
	p.mu.Unlock()
	<-p.sem
}

func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// scavenge evicts idle items past MaxIdle while keeping at least MinSize
// resident, then reschedules itself through the housekeeper.
func (p *Pool[T]) scavenge() time.Duration {
	p.mu.Lock()
	now := time.Now()
	kept := p.available[:0]
	for _, item := range p.available {
		if len(kept) < p.minSize || now.Sub(item.lastUsed) <= p.maxIdle {
			kept = append(kept, item)
		}
	}
	p.available = kept
	p.stats.Available = len(p.available)
	p.mu.Unlock()
	return p.maxIdle
}

func ema(current, next uint64, alpha float64) uint64 {
	if current == 0 {
		return next
	}
	return uint64(float64(current)*(1-alpha) + float64(next)*alpha)
}
