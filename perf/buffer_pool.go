package perf

// BufferPool hands out reusable []byte scratch buffers (C10, the generic
// Pool[T] specialized to byte buffers rather than validators), grounded on
// the same resource_pool.rs lineage as ValidatorPool. Used by the response
// cache's compression path so a hot compress/decompress loop doesn't
// allocate a fresh scratch buffer per call.
type BufferPool struct {
	pool *Pool[[]byte]
}

func NewBufferPool(cfg Config) *BufferPool {
	factory := func() []byte { return make([]byte, 0, cfg.BufferInitialCap) }
	reset := func(b *[]byte) { *b = (*b)[:0] }
	return &BufferPool{
		pool: NewPool("buffer", cfg.BufferPoolMin, cfg.BufferPoolMax, factory, reset, cfg.PoolMaxIdle),
	}
}

// Acquire checks out a scratch buffer; the caller must Release it exactly
// once and must not retain slices derived from it past Release.
func (bp *BufferPool) Acquire() *Handle[[]byte] {
	return bp.pool.Get()
}

func (bp *BufferPool) Release(h *Handle[[]byte]) {
	bp.pool.Put(h)
}

func (bp *BufferPool) Stats() Stats {
	return bp.pool.Stats()
}
