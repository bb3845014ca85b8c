package ipc

import (
	"sync"
	"sync/atomic"
)

// multiplexer is the pending-response table (C5): correlation id -> a
// one-shot response sink. Grounded on original_source/server/src/ipc/
// client.rs's Inner.pending, with Go channels standing in for oneshot
// senders. A single coarse mutex guards it, per spec.md §5's "short
// critical sections" guidance.
type multiplexer struct {
	cids    *cidGenerator
	mu      sync.Mutex
	pending map[string]chan Envelope

	lateResponses uint64
}

func newMultiplexer() *multiplexer {
	return &multiplexer{cids: newCidGenerator(), pending: make(map[string]chan Envelope)}
}

// allocate inserts a pending slot for a fresh correlation id strictly
// before the caller hands the encoded request to the writer, satisfying
// invariant (a) from spec.md §3's PendingTable invariants.
func (m *multiplexer) allocate() (string, chan Envelope) {
	cid := m.cids.Next()
	ch := make(chan Envelope, 1)
	m.mu.Lock()
	m.pending[cid] = ch
	m.mu.Unlock()
	return cid, ch
}

// release removes the entry for cid if present, returning whether it was
// found. Called on every terminal path — response received, deadline
// elapsed, or connection closed — satisfying invariant (b).
func (m *multiplexer) release(cid string) bool {
	m.mu.Lock()
	_, ok := m.pending[cid]
	delete(m.pending, cid)
	m.mu.Unlock()
	return ok
}

// deliver routes a decoded response envelope to its awaiter, if any. A late
// or unmatched response (no pending entry, or the channel already fired) is
// dropped without side effects other than the late-responses counter, per
// spec.md §3's resolution of its second Open Question.
func (m *multiplexer) deliver(env Envelope) {
	m.mu.Lock()
	ch, ok := m.pending[env.CorrelationId]
	if ok {
		delete(m.pending, env.CorrelationId)
	}
	m.mu.Unlock()

	if !ok {
		atomic.AddUint64(&m.lateResponses, 1)
		return
	}
	select {
	case ch <- env:
	default:
		// Channel has capacity 1 and is only ever written once; a full
		// channel here means deliver raced release() and lost — count it
		// as late rather than block.
		atomic.AddUint64(&m.lateResponses, 1)
	}
}

// closeAll drains every pending slot, used when the connection is lost so
// in-flight callers observe Closed instead of hanging.
func (m *multiplexer) closeAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string]chan Envelope)
	m.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (m *multiplexer) lateResponseCount() uint64 {
	return atomic.LoadUint64(&m.lateResponses)
}

// Len reports in-flight request count, for tests and diagnostics.
func (m *multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
