package perf

import (
	"context"
	"testing"
	"time"
)

func TestValidatorPoolBoundsConcurrentAcquisitions(t *testing.T) {
	cfg := Default()
	cfg.ValidatorPoolMax = 1
	cfg.ValidatorPoolMin = 0
	vp := NewValidatorPool(cfg)

	h1, err := vp.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := vp.Acquire(ctx); err == nil {
		t.Fatal("expected the second acquisition to block past the pool max and time out")
	}

	vp.Release(h1)
	h2, err := vp.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	vp.Release(h2)
}

func TestValidatorRejectsIdenticalMoveEndpoints(t *testing.T) {
	cfg := Default()
	vp := NewValidatorPool(cfg)
	h, err := vp.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer vp.Release(h)

	v := h.Value()
	if v.ValidateMove("Assets/a.png", "Assets/a.png") {
		t.Fatal("expected identical source/destination to be rejected")
	}
	if v.Err() == nil {
		t.Fatal("expected a validation error after a rejected move")
	}
}

func TestValidatorValidatesPathAndSize(t *testing.T) {
	cfg := Default()
	vp := NewValidatorPool(cfg)
	h, err := vp.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer vp.Release(h)

	v := h.Value()
	if v.ValidatePath("Assets/../../etc/passwd") {
		t.Fatal("expected path traversal to be rejected")
	}
	if v.Err() == nil {
		t.Fatal("expected a validation error after a rejected path")
	}
}
