package ipc

import "testing"

func TestMultiplexerAllocateUniqueCids(t *testing.T) {
	m := newMultiplexer()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		cid, _ := m.allocate()
		if seen[cid] {
			t.Fatalf("duplicate correlation id %s", cid)
		}
		seen[cid] = true
	}
}

func TestMultiplexerDeliverThenNoLeak(t *testing.T) {
	m := newMultiplexer()
	cid, ch := m.allocate()
	if m.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", m.Len())
	}
	m.deliver(Envelope{CorrelationId: cid, Kind: KindResponseMsg})
	resp := <-ch
	if resp.CorrelationId != cid {
		t.Fatalf("delivered wrong envelope")
	}
	if m.Len() != 0 {
		t.Fatalf("expected no pending entry after delivery, got %d", m.Len())
	}
}

func TestMultiplexerLateResponseDropped(t *testing.T) {
	m := newMultiplexer()
	cid, ch := m.allocate()
	m.release(cid) // simulate a timeout releasing the slot first

	m.deliver(Envelope{CorrelationId: cid, Kind: KindResponseMsg})
	select {
	case <-ch:
		t.Fatal("a late response should not be delivered to the original awaiter")
	default:
	}
	if m.lateResponseCount() != 1 {
		t.Fatalf("expected late response counted, got %d", m.lateResponseCount())
	}
}

func TestMultiplexerCloseAllUnblocksAwaiters(t *testing.T) {
	m := newMultiplexer()
	_, ch := m.allocate()
	m.closeAll()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed, not a value")
	}
}
