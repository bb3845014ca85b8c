package ipc

import "sync"

// Event is a decoded Event-kind envelope delivered to subscribers.
type Event struct {
	OpName  string
	Payload []byte
}

// EventOrLag is what a subscriber receives: either a real Event, or a
// Lagged marker reporting how many events were dropped because the
// subscriber fell behind. Exactly one of the two is meaningful; check
// Lagged first.
type EventOrLag struct {
	Event  Event
	Lagged int // > 0 means Event is the zero value and this many were dropped
}

// broadcaster is a ring-buffered multi-subscriber fan-out: the producer
// side never blocks, and a slow subscriber observes a Lagged(n) marker
// instead of stalling the producer or other subscribers. Grounded on the
// teacher's transport/bundle stream-bundle fan-out idiom, generalized from
// byte streams to typed events.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	ch     chan EventOrLag
	closed bool
}

const subscriberBuffer = 256

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel delivering events published after this call,
// plus an unsubscribe func the caller must invoke when done.
func (b *broadcaster) Subscribe() (<-chan EventOrLag, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	sub := &subscriber{ch: make(chan EventOrLag, subscriberBuffer)}
	b.subs[id] = sub
	return sub.ch, func() { b.unsubscribe(id) }
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		delete(b.subs, id)
	}
}

// Publish fans ev out to every subscriber, non-blocking: for a subscriber
// whose buffer is full, the oldest queued entry is evicted and a Lagged
// marker counting both it and ev is queued instead (when the evicted entry
// was itself a marker, its count is folded in), rather than blocking the
// producer.
func (b *broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- EventOrLag{Event: ev}:
		default:
			b.bumpLagLocked(sub)
		}
	}
}

func (b *broadcaster) bumpLagLocked(sub *subscriber) {
	select {
	case msg := <-sub.ch:
		dropped := 2 // the evicted event plus the one being published
		if msg.Lagged > 0 {
			dropped = msg.Lagged + 1
		}
		select {
		case sub.ch <- EventOrLag{Lagged: dropped}:
		default:
		}
		return
	default:
	}
	select {
	case sub.ch <- EventOrLag{Lagged: 1}:
	default:
	}
}

// closeAll shuts every subscriber channel down, e.g. when the client itself
// closes permanently.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		delete(b.subs, id)
	}
}
