package perf

import (
	"testing"
	"time"
)

func TestPoolBoundsActivePlusIdle(t *testing.T) {
	p := NewPool("test", 1, 3, func() int { return 0 }, nil, time.Minute)

	h1 := p.Get()
	h2 := p.Get()
	h3 := p.Get()

	fourth := make(chan *Handle[int], 1)
	go func() { fourth <- p.Get() }()

	select {
	case <-fourth:
		t.Fatal("Get should block once maxSize=3 handles are concurrently checked out")
	case <-time.After(50 * time.Millisecond):
	}

	p.Put(h1)
	h4 := <-fourth // releasing a slot must unblock the pending acquisition

	p.Put(h2)
	p.Put(h3)
	p.Put(h4)

	s := p.Stats()
	if s.Available > 3 {
		t.Fatalf("pool retained more than maxSize=3 idle items: %d", s.Available)
	}
}

func TestHandleValueAfterPutPanics(t *testing.T) {
	p := NewPool("test2", 0, 2, func() int { return 7 }, nil, time.Minute)
	h := p.Get()
	p.Put(h)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic accessing Value after Put")
		}
	}()
	h.Value()
}

func TestPoolResetAppliedOnReturn(t *testing.T) {
	type box struct{ n int }
	resetCalls := 0
	p := NewPool("test3", 0, 2, func() *box { return &box{} }, func(b **box) {
		resetCalls++
		(*b).n = 0
	}, time.Minute)

	h := p.Get()
	h.Value()
	p.Put(h)

	if resetCalls != 1 {
		t.Fatalf("expected reset called once, got %d", resetCalls)
	}
}

func TestPoolScavengeKeepsMinSize(t *testing.T) {
	p := NewPool("test4", 2, 5, func() int { return 1 }, nil, time.Millisecond)
	h1, h2, h3 := p.Get(), p.Get(), p.Get()
	p.Put(h1)
	p.Put(h2)
	p.Put(h3)

	time.Sleep(5 * time.Millisecond)
	p.scavenge()

	s := p.Stats()
	if s.Available < 2 {
		t.Fatalf("scavenger evicted below minSize=2: available=%d", s.Available)
	}
}
