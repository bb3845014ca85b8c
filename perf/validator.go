package perf

import (
	"context"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/tsukushibito/unity-mcp-bridge/cos"
)

// Validator is a reusable, stateful request validator: Reset clears any
// scratch state left by a prior use so the instance can be handed to the
// next caller via the pool.
type Validator struct {
	errs    *cos.Errs
	scratch []byte
}

// Reset clears accumulated validation errors and truncates scratch state,
// keeping the underlying backing array to avoid reallocation. Errs holds a
// mutex, so it's reallocated rather than copied over, keeping Validator
// itself safe to pass by value into the pool's backing slice.
func (v *Validator) Reset() {
	v.errs = &cos.Errs{}
	v.scratch = v.scratch[:0]
}

// ValidatePath appends a path-hygiene violation, if any, into the
// validator's error accumulator, and reports whether it was clean.
func (v *Validator) ValidatePath(p string) bool {
	if msg := cos.PathHygiene(p); msg != "" {
		v.errs.Add(cos.NewErrValidation("path", msg))
		return false
	}
	return true
}

// ValidateMove applies path hygiene to both endpoints of a move operation
// and additionally rejects an identical source/destination, per spec.md
// §4.8's "Move operations additionally reject identical source and
// destination" rule.
func (v *Validator) ValidateMove(src, dst string) bool {
	srcOK := v.ValidatePath(src)
	dstOK := v.ValidatePath(dst)
	if srcOK && dstOK && strings.TrimSpace(src) == strings.TrimSpace(dst) {
		v.errs.Add(cos.NewErrValidation("path", "move source and destination must differ"))
		return false
	}
	return srcOK && dstOK
}

// ValidateSize appends a size violation if n exceeds max.
func (v *Validator) ValidateSize(n, max int) bool {
	if n > max {
		v.errs.Add(cos.NewErrValidation("size", "payload exceeds maximum size"))
		return false
	}
	return true
}

// Err returns the accumulated validation error, or nil if none were added.
func (v *Validator) Err() error {
	if v.errs == nil || v.errs.Cnt() == 0 {
		return nil
	}
	return v.errs
}

// ValidatorPool hands out scoped Validator instances (C9), grounded on the
// same resource_pool.rs lineage as the generic Pool[T], specialized to the
// request-validation concern. A weighted semaphore additionally caps
// concurrent acquisitions at ValidatorPoolMax ahead of Pool[T]'s own
// internal bound, so a blocked Acquire honors ctx cancellation instead of
// hanging on the pool's buffered-channel semaphore wait.
type ValidatorPool struct {
	pool *Pool[Validator]
	sem  *semaphore.Weighted
}

func NewValidatorPool(cfg Config) *ValidatorPool {
	factory := func() Validator { return Validator{errs: &cos.Errs{}} }
	reset := func(v *Validator) { v.Reset() }
	return &ValidatorPool{
		pool: NewPool(
			"validator",
			cfg.ValidatorPoolMin,
			cfg.ValidatorPoolMax,
			factory,
			reset,
			cfg.PoolMaxIdle,
		),
		sem: semaphore.NewWeighted(int64(cfg.ValidatorPoolMax)),
	}
}

// Acquire blocks until a concurrent-validation slot is free (or ctx is
// done), then checks out a Validator; the caller must Release it exactly
// once.
func (vp *ValidatorPool) Acquire(ctx context.Context) (*Handle[Validator], error) {
	if err := vp.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return vp.pool.Get(), nil
}

func (vp *ValidatorPool) Release(h *Handle[Validator]) {
	vp.pool.Put(h)
	vp.sem.Release(1)
}

func (vp *ValidatorPool) Stats() Stats {
	return vp.pool.Stats()
}
