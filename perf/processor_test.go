package perf

import (
	"testing"
	"time"
)

func newTestStream(t *testing.T, cfg Config, handler func(Request) ([]byte, error)) *Stream {
	t.Helper()
	cache, err := NewCache(cfg)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	limiter := NewRateLimiter(cfg.RateLimitPerSecond)
	validators := NewValidatorPool(cfg)
	workers := NewWorkerPool(cfg.WorkerCount, cfg.QueueCapacity)
	return NewStream("client-1", cfg, limiter, cache, validators, workers, handler)
}

func TestStreamPathTraversalRejected(t *testing.T) {
	cfg := Default()
	dispatched := false
	s := newTestStream(t, cfg, func(req Request) ([]byte, error) {
		dispatched = true
		return nil, nil
	})

	s.Submit(Request{ClientID: "client-1", Seq: 0, OpKind: "assets_import", Path: "Assets/../etc/passwd"})

	resp := <-s.Outbound()
	if resp.Err == nil {
		t.Fatal("expected a validation error for a path-traversal attempt")
	}
	if dispatched {
		t.Fatal("handler must not run when validation fails")
	}
}

func TestStreamOrdersResponsesByRequestSequence(t *testing.T) {
	cfg := Default()
	cfg.ReassemblyWindow = 16
	release := make(chan struct{})
	s := newTestStream(t, cfg, func(req Request) ([]byte, error) {
		if req.Seq == 0 {
			<-release // hold request 0 so request 1 finishes first
		}
		return []byte(req.OpKind), nil
	})

	s.Submit(Request{ClientID: "client-1", Seq: 0, OpKind: "slow", Path: "Assets/a"})
	time.Sleep(10 * time.Millisecond)
	s.Submit(Request{ClientID: "client-1", Seq: 1, OpKind: "fast", Path: "Assets/b"})
	time.Sleep(20 * time.Millisecond)
	close(release)

	first := <-s.Outbound()
	second := <-s.Outbound()
	if first.Seq != 0 || second.Seq != 1 {
		t.Fatalf("expected in-order delivery, got seqs %d then %d", first.Seq, second.Seq)
	}
}

func TestStreamEmitEvictsOldestWhenSaturated(t *testing.T) {
	cfg := Default()
	cfg.OutboundCapacity = 2
	s := newTestStream(t, cfg, func(req Request) ([]byte, error) { return nil, nil })

	// Fill Outbound to capacity without ever draining it, then push one
	// more completion past saturation.
	s.complete(0, Response{Seq: 0})
	s.complete(1, Response{Seq: 1})
	s.complete(2, Response{Seq: 2})

	var got []Response
drain:
	for {
		select {
		case r := <-s.Outbound():
			got = append(got, r)
		default:
			break drain
		}
	}

	if len(got) != cfg.OutboundCapacity {
		t.Fatalf("expected outbound to retain exactly OutboundCapacity=%d responses, got %d", cfg.OutboundCapacity, len(got))
	}
	var sawSeq2 bool
	for _, r := range got {
		if r.Seq == 2 {
			sawSeq2 = true
			if r.Err != ErrResourceExhausted {
				t.Fatalf("expected seq 2 to carry a ResourceExhausted substitute since the channel was saturated, got err=%v", r.Err)
			}
		}
	}
	if !sawSeq2 {
		t.Fatal("seq 2's completion was silently dropped instead of evicting an older buffered entry for it")
	}
}

func TestStreamBackPressureEmitsResourceExhausted(t *testing.T) {
	cfg := Default()
	cfg.OutboundCapacity = 2
	cfg.QueueCapacity = 2000
	cfg.WorkerCount = 4

	s := newTestStream(t, cfg, func(req Request) ([]byte, error) {
		return []byte("ok"), nil
	})

	const total = 50
	collected := make(chan Response, total)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			collected <- <-s.Outbound()
		}
	}()

	for i := uint64(0); i < total; i++ {
		s.Submit(Request{ClientID: "client-1", Seq: i, OpKind: "assets_import", Path: "Assets/a"})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all responses; reader appears stalled")
	}
	close(collected)

	var ok, exhausted int
	for resp := range collected {
		if resp.Err == nil {
			ok++
		} else {
			exhausted++
		}
	}
	if ok+exhausted != total {
		t.Fatalf("expected %d total responses, got %d", total, ok+exhausted)
	}
}
