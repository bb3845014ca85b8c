// Package perf implements the streaming performance-optimization layer:
// bounded back-pressure, a fixed worker pool, an LRU+TTL response cache, and
// generic object/validator pools — grounded on
// original_source/server/src/grpc/performance/{resource_pool,worker_pool,
// cache,config,processor}.rs.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package perf

import (
	"fmt"
	"runtime"
	"time"
)

// Config tunes every knob in the performance layer. Ported from the
// original's OptimizationConfig, trimmed of batch-processing fields that
// have no counterpart in this spec's per-request streaming model.
type Config struct {
	// Worker pool (C11)
	WorkerCount    int
	QueueCapacity  int
	WorkerTimeout  time.Duration

	// Response cache (C12)
	CacheCapacity     int
	CacheTTL          time.Duration
	CacheCompression  bool
	CompressThreshold int // bytes; payloads above this are lz4-compressed
	CachePersist      bool // enable the buntdb overflow tier

	// Object/validator pools (C9/C10)
	ValidatorPoolMax int
	ValidatorPoolMin int
	BufferPoolMax    int
	BufferPoolMin    int
	BufferInitialCap int
	PoolMaxIdle      time.Duration

	// Back-pressure / streaming (C8)
	OutboundCapacity   int
	MaxMessageBytes    int
	ReassemblyWindow   int
	RateLimitPerSecond int
}

func Default() Config {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		cpu = 2
	}
	return Config{
		WorkerCount:        cpu,
		QueueCapacity:      1000,
		WorkerTimeout:      30 * time.Second,
		CacheCapacity:      1000,
		CacheTTL:           5 * time.Minute,
		CacheCompression:   false,
		CompressThreshold:  4096,
		CachePersist:       false,
		ValidatorPoolMax:   10,
		ValidatorPoolMin:   1,
		BufferPoolMax:      100,
		BufferPoolMin:      10,
		BufferInitialCap:   8192,
		PoolMaxIdle:        5 * time.Minute,
		OutboundCapacity:   1000,
		MaxMessageBytes:    16 << 20,
		ReassemblyWindow:   256,
		RateLimitPerSecond: 200,
	}
}

// HighPerformance trades memory for throughput: more workers, a bigger
// cache, a higher back-pressure ceiling.
func HighPerformance() Config {
	c := Default()
	c.WorkerCount = runtime.NumCPU() * 2
	c.CacheCapacity = 5000
	c.OutboundCapacity = 2000
	return c
}

// MemoryEfficient shrinks the worker count, the cache, and the validator and
// buffer pools for constrained hosts; queue and outbound capacities keep
// their defaults.
func MemoryEfficient() Config {
	c := Default()
	c.WorkerCount = 2
	c.CacheCapacity = 100
	c.ValidatorPoolMax = 3
	c.BufferPoolMax = 10
	c.BufferInitialCap = 1024
	return c
}

// Development shortens every timeout for fast local iteration.
func Development() Config {
	c := Default()
	c.WorkerTimeout = 5 * time.Second
	c.PoolMaxIdle = 10 * time.Second
	return c
}

func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be > 0")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be > 0")
	}
	if c.OutboundCapacity <= 0 {
		return fmt.Errorf("outbound capacity must be > 0")
	}
	if c.ReassemblyWindow <= 0 {
		return fmt.Errorf("reassembly window must be > 0")
	}
	return nil
}
