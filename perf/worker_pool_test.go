package perf

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	wp := NewWorkerPool(4, 100)
	var n int64
	for i := 0; i < 100; i++ {
		wp.Spawn(func() { atomic.AddInt64(&n, 1) })
	}
	wp.Shutdown()
	if n != 100 {
		t.Fatalf("expected 100 tasks run, got %d", n)
	}
}

func TestWorkerPoolTrySpawnFailsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1)
	block := make(chan struct{})
	wp.Spawn(func() { <-block }) // occupies the single worker
	wp.Spawn(func() {})          // fills the queue of capacity 1

	ok := wp.TrySpawn(func() {})
	if ok {
		t.Fatal("expected TrySpawn to fail when queue is full")
	}
	close(block)
	wp.Shutdown()
}
