package perf

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/tsukushibito/unity-mcp-bridge/cos"
)

// ErrResourceExhausted is returned when the rate limiter refuses a request
// or the outbound channel is saturated.
var ErrResourceExhausted = errors.New("resource exhausted")

// ErrMessageTooLarge is returned when a request payload exceeds the
// configured maximum.
var ErrMessageTooLarge = errors.New("message too large")

// ErrStreamDraining names the draining condition. Submit does not return or
// emit it: a request submitted after Cancel or Close is dropped without a
// response.
var ErrStreamDraining = errors.New("stream is draining")

// StreamState is the per-stream lifecycle: Open -> Draining -> Closed.
type StreamState int

const (
	StreamOpen StreamState = iota
	StreamDraining
	StreamClosed
)

// Request is one inbound message on a stream, carrying enough to validate,
// rate-limit, cache-probe, and dispatch it per spec.md §4.8.
type Request struct {
	ClientID  string
	Seq       uint64
	OpKind    string
	Path      string // asset path, if this op carries one; "" to skip hygiene check
	DestPath  string // move destination; non-"" marks this as a move op (src/dst must differ)
	Args      []byte
	Cacheable bool // only idempotent ops may be cache-probed/inserted
}

// Response is the outcome of one Request, always emitted in request order
// per client regardless of which worker produced it.
type Response struct {
	Seq     uint64
	Payload []byte
	Err     error
}

// pendingResult holds an out-of-order worker completion until it's its turn
// to be emitted, per the small reassembly window spec.md §4.8 calls for.
type pendingResult struct {
	resp Response
	has  bool
}

// Stream processes one client's sequence of requests into a sequence of
// responses, in order, using the shared validator/cache/worker-pool
// machinery. Grounded on transport/sendmsg.go's MsgStream idle/send state
// machine, generalized from raw object transfer to typed request/response.
type Stream struct {
	clientID string

	mu           sync.Mutex
	state        StreamState
	nextToEmit   uint64
	reassembly   map[uint64]pendingResult
	window       int

	outbound chan Response

	cfg       Config
	limiter   *RateLimiter
	cache     *Cache
	validator *ValidatorPool
	workers   *WorkerPool
	handler   func(Request) ([]byte, error)
}

// NewStream wires one client's stream against the shared processor
// collaborators. handler executes the actual operation once validation,
// rate-limiting, and the cache probe have passed.
func NewStream(clientID string, cfg Config, limiter *RateLimiter, cache *Cache, validator *ValidatorPool, workers *WorkerPool, handler func(Request) ([]byte, error)) *Stream {
	return &Stream{
		clientID:   clientID,
		state:      StreamOpen,
		reassembly: make(map[uint64]pendingResult),
		window:     cfg.ReassemblyWindow,
		outbound:   make(chan Response, cfg.OutboundCapacity),
		cfg:        cfg,
		limiter:    limiter,
		cache:      cache,
		validator:  validator,
		workers:    workers,
		handler:    handler,
	}
}

// Outbound is the stream's in-order response channel.
func (s *Stream) Outbound() <-chan Response { return s.outbound }

// Submit processes one inbound request: payload-size check, rate-limit,
// cache-probe, then dispatch to the worker pool. Path hygiene (and the
// move-endpoint check) runs on the worker, after dispatch and before the
// handler, so a request with a bad path occupies a queue slot but never
// reaches the handler. The response (or a synthetic error response) is
// eventually delivered on Outbound, in request order.
func (s *Stream) Submit(req Request) {
	s.mu.Lock()
	if s.state != StreamOpen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if len(req.Args) > s.cfg.MaxMessageBytes {
		s.complete(req.Seq, Response{Seq: req.Seq, Err: ErrMessageTooLarge})
		return
	}

	if !s.limiter.Allow(req.ClientID) {
		s.complete(req.Seq, Response{Seq: req.Seq, Err: ErrResourceExhausted})
		return
	}

	var fingerprint string
	if req.Cacheable {
		fingerprint = fingerprintOf(req)
		if payload, ok := s.cache.Get(fingerprint); ok {
			s.complete(req.Seq, Response{Seq: req.Seq, Payload: payload})
			return
		}
	}

	dispatched := s.workers.TrySpawn(func() {
		h, err := s.validator.Acquire(context.Background())
		if err != nil {
			s.complete(req.Seq, Response{Seq: req.Seq, Err: err})
			return
		}
		v := h.Value()
		if req.DestPath != "" {
			v.ValidateMove(req.Path, req.DestPath)
		} else if req.Path != "" {
			v.ValidatePath(req.Path)
		}
		v.ValidateSize(len(req.Args), s.cfg.MaxMessageBytes)
		verr := v.Err()
		s.validator.Release(h)

		if verr != nil {
			s.complete(req.Seq, Response{Seq: req.Seq, Err: verr})
			return
		}

		payload, err := s.handler(req)
		if err == nil && req.Cacheable {
			s.cache.Put(fingerprint, payload)
		}
		s.complete(req.Seq, Response{Seq: req.Seq, Payload: payload, Err: err})
	})
	if !dispatched {
		s.complete(req.Seq, Response{Seq: req.Seq, Err: ErrResourceExhausted})
	}
}

// complete buffers a completed response and emits every contiguous,
// in-order response now available starting at nextToEmit. Completions
// arriving window or more slots ahead of nextToEmit are emitted
// immediately out of order rather than stalling forever — an overflow the
// caller should treat as a reassembly-window exhaustion signal — and their
// sequence number is skipped once nextToEmit reaches it.
func (s *Stream) complete(seq uint64, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StreamDraining || s.state == StreamClosed {
		return
	}

	if seq == s.nextToEmit {
		s.emitLocked(resp)
		s.nextToEmit++
		for {
			pr, ok := s.reassembly[s.nextToEmit]
			if !ok {
				break
			}
			delete(s.reassembly, s.nextToEmit)
			if pr.has {
				s.emitLocked(pr.resp)
			}
			s.nextToEmit++
		}
		return
	}

	if int(seq-s.nextToEmit) >= s.window {
		s.emitLocked(resp) // window exhausted: emit out of order rather than stall
		s.reassembly[seq] = pendingResult{} // already emitted; skipped in order
		return
	}
	s.reassembly[seq] = pendingResult{resp: resp, has: true}
}

// emitLocked must be called with s.mu held; it applies back-pressure to the
// *most recent* request by substituting a ResourceExhausted response rather
// than blocking, per spec.md §4.8 item 5. When the channel is saturated, the
// oldest buffered response is evicted to guarantee room for the substitute —
// otherwise both sends below would fail non-blocking and the response would
// be dropped silently instead of completing with ResourceExhausted.
func (s *Stream) emitLocked(resp Response) {
	select {
	case s.outbound <- resp:
		return
	default:
	}

	select {
	case <-s.outbound:
	default:
	}

	select {
	case s.outbound <- Response{Seq: resp.Seq, Err: ErrResourceExhausted}:
	default:
	}
}

// Cancel enters Draining: outstanding workers are allowed to finish but
// their results are discarded, and new requests are rejected.
func (s *Stream) Cancel() {
	s.mu.Lock()
	s.state = StreamDraining
	s.mu.Unlock()
}

// Close transitions to Closed and releases the outbound channel. Must only
// be called once no further Submit calls are in flight.
func (s *Stream) Close() {
	s.mu.Lock()
	s.state = StreamClosed
	s.mu.Unlock()
	s.limiter.Forget(s.clientID)
	close(s.outbound)
}

func fingerprintOf(req Request) string {
	args := append([]byte(req.Path+"\x00"+req.DestPath+"\x00"), req.Args...)
	return cos.Fingerprint(req.OpKind, args)
}
