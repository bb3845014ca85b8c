package perf

import (
	"container/list"
	"sync"
	"time"

	"github.com/pierrec/lz4/v3"
	cuckoo "github.com/seiflotfy/cuckoofilter"
	"github.com/tidwall/buntdb"

	"github.com/tsukushibito/unity-mcp-bridge/hk"
)

// CacheStats tracks hit/miss/insert counters for the response cache.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Evictions uint64
}

type cacheEntry struct {
	fingerprint string
	payload     []byte
	compressed  bool
	insertedAt  time.Time
	ttl         time.Duration
}

// Cache is a size-bounded, time-bounded LRU+TTL cache of
// (request-fingerprint -> response payload), ported from
// original_source/server/src/grpc/performance/cache.rs's StreamCache<K,V>
// and extended with TTL-at-read eviction, optional lz4 compression above a
// byte threshold, and an optional buntdb-backed overflow tier for payloads
// evicted from the in-memory LRU but still within their TTL.
type Cache struct {
	mu       sync.Mutex
	ll       *list.List // front = most recently used
	index    map[string]*list.Element
	capacity int
	ttl      time.Duration

	compressThreshold int
	compress          bool

	seen *cuckoo.Filter // cheap "have we ever inserted this key" probe

	scratch *BufferPool // compress/decompress scratch buffers

	overflow *buntdb.DB // nil unless Config.CachePersist
	stats    CacheStats
}

func NewCache(cfg Config) (*Cache, error) {
	c := &Cache{
		ll:                list.New(),
		index:             make(map[string]*list.Element),
		capacity:          cfg.CacheCapacity,
		ttl:               cfg.CacheTTL,
		compressThreshold: cfg.CompressThreshold,
		compress:          cfg.CacheCompression,
		seen:              cuckoo.NewDefaultCuckooFilter(),
		scratch:           NewBufferPool(cfg),
	}
	if cfg.CachePersist {
		db, err := buntdb.Open(":memory:")
		if err != nil {
			return nil, err
		}
		c.overflow = db
	}
	hk.Reg("response-cache-sweep", c.sweep, cfg.CacheTTL)
	return c, nil
}

// Get looks up fingerprint, honoring TTL-at-read expiry and promoting the
// entry to most-recently-used on hit.
func (c *Cache) Get(fingerprint string) ([]byte, bool) {
	if !c.seen.Lookup([]byte(fingerprint)) {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	if el, ok := c.index[fingerprint]; ok {
		e := el.Value.(*cacheEntry)
		if time.Since(e.insertedAt) > e.ttl {
			c.removeLocked(el)
			c.mu.Unlock()
			return c.getFromOverflow(fingerprint)
		}
		c.ll.MoveToFront(el)
		payload := e.payload
		compressed := e.compressed
		c.stats.Hits++
		c.mu.Unlock()
		return c.decompress(payload, compressed), true
	}
	c.mu.Unlock()
	return c.getFromOverflow(fingerprint)
}

func (c *Cache) getFromOverflow(fingerprint string) ([]byte, bool) {
	if c.overflow == nil {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}
	var raw string
	err := c.overflow.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(fingerprint)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return []byte(raw), true
}

// Put inserts or refreshes fingerprint -> payload. Only idempotent
// operations (per an explicit allow-list enforced by the caller, see
// AllowCache) should ever reach here.
func (c *Cache) Put(fingerprint string, payload []byte) {
	stored, compressed := c.maybeCompress(payload)

	c.mu.Lock()
	c.seen.InsertUnique([]byte(fingerprint))
	if el, ok := c.index[fingerprint]; ok {
		e := el.Value.(*cacheEntry)
		e.payload, e.compressed, e.insertedAt = stored, compressed, time.Now()
		c.ll.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	e := &cacheEntry{fingerprint: fingerprint, payload: stored, compressed: compressed, insertedAt: time.Now(), ttl: c.ttl}
	el := c.ll.PushFront(e)
	c.index[fingerprint] = el
	c.stats.Inserts++

	for c.ll.Len() > c.capacity {
		c.evictOldestLocked()
	}
	c.mu.Unlock()

	if c.overflow != nil {
		c.overflow.Update(func(tx *buntdb.Tx) error {
			_, _, err := tx.Set(fingerprint, string(payload), &buntdb.SetOptions{Expires: true, TTL: c.ttl})
			return err
		})
	}
}

func (c *Cache) evictOldestLocked() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.stats.Evictions++
}

// removeLocked must be called with c.mu held.
func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*cacheEntry)
	delete(c.index, e.fingerprint)
	c.ll.Remove(el)
}

func (c *Cache) maybeCompress(payload []byte) ([]byte, bool) {
	if !c.compress || len(payload) <= c.compressThreshold {
		return payload, false
	}
	h := c.scratch.Acquire()
	buf := h.Value()
	need := lz4.CompressBlockBound(len(payload))
	if cap(*buf) < need {
		*buf = make([]byte, need)
	}
	*buf = (*buf)[:need]

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(payload, *buf, ht[:])
	if err != nil || n == 0 {
		c.scratch.Release(h)
		return payload, false
	}
	// Copy out of the pooled buffer before releasing it: the scavenger or
	// a concurrent Acquire could otherwise reuse/overwrite this memory
	// while it's still referenced by a stored cache entry.
	out := make([]byte, n)
	copy(out, (*buf)[:n])
	c.scratch.Release(h)
	return out, true
}

func (c *Cache) decompress(payload []byte, compressed bool) []byte {
	if !compressed {
		return payload
	}
	out := make([]byte, len(payload)*4+64)
	for {
		n, err := lz4.UncompressBlock(payload, out)
		if err == nil {
			return out[:n]
		}
		out = make([]byte, len(out)*2)
	}
}

// sweep drops entries past TTL, rescheduled through the housekeeper.
func (c *Cache) sweep() time.Duration {
	c.mu.Lock()
	now := time.Now()
	var next *list.Element
	for el := c.ll.Back(); el != nil; el = next {
		next = el.Prev()
		e := el.Value.(*cacheEntry)
		if now.Sub(e.insertedAt) > e.ttl {
			c.removeLocked(el)
			c.stats.Evictions++
		}
	}
	c.mu.Unlock()
	return c.ttl
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// BufferStats reports the compression scratch-buffer pool's stats, for
// metrics sampling.
func (c *Cache) BufferStats() Stats {
	return c.scratch.Stats()
}
