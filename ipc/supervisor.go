package ipc

import (
	"math/rand"
	"sync"
	"time"
)

// SupervisorState is the reconnect state machine from spec.md §4.7,
// generalized from the teacher's node-health retry loops (ais package) and
// the stream-bundle collector/retry idiom in transport/bundle, since the
// original client.rs has no reconnect loop of its own.
type SupervisorState int

const (
	StateDisconnected SupervisorState = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateFailing
)

func (s SupervisorState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateFailing:
		return "failing"
	default:
		return "disconnected"
	}
}

// ConnectionState is the status-accessor snapshot from spec.md §3/§6,
// readable at all times regardless of connection state.
type ConnectionState struct {
	Connected              bool
	State                  SupervisorState
	Attempt                uint32
	LastError              string
	NextRetryDeadline      time.Time
	Endpoint               string
	NegotiatedFeatures     FeatureSet
	NegotiatedFeaturesRaw  []string
	SessionID              string
	LateResponses          uint64
}

const (
	backoffBase   = 500 * time.Millisecond
	backoffMax    = 30 * time.Second
	backoffFactor = 2.0
)

// backoffDelay returns min(backoffMax, base*2^(attempt-1)) plus jitter
// uniform over [0, base), per spec.md §4.7. attempt is 1-indexed (the first
// retry after a connection failure passes attempt=1, using exponent 0).
func backoffDelay(attempt uint32) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	d := float64(backoffBase)
	for i := uint32(0); i < attempt-1; i++ {
		d *= backoffFactor
		if d >= float64(backoffMax) {
			d = float64(backoffMax)
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(backoffBase)))
	return time.Duration(d) + jitter
}

// supervisor records the connection lifecycle as a ConnectionState that
// Client.Run updates as it drives connect/handshake attempts and retries
// with backoff until max_reconnect_attempts (if set) is exhausted.
type supervisor struct {
	mu    sync.RWMutex
	state ConnectionState
}

func newSupervisor(endpoint string) *supervisor {
	s := &supervisor{}
	s.state = ConnectionState{Endpoint: endpoint, State: StateDisconnected}
	return s
}

func (s *supervisor) snapshot() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *supervisor) setConnecting(attempt uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = StateConnecting
	s.state.Connected = false
	s.state.Attempt = attempt
}

func (s *supervisor) setHandshaking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = StateHandshaking
}

func (s *supervisor) setConnected(features FeatureSet, raw []string, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = StateConnected
	s.state.Connected = true
	s.state.LastError = ""
	s.state.NegotiatedFeatures = features
	s.state.NegotiatedFeaturesRaw = raw
	s.state.SessionID = sessionID
}

func (s *supervisor) setFailing(err error, nextRetry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = StateFailing
	s.state.Connected = false
	if err != nil {
		s.state.LastError = err.Error()
	}
	s.state.NextRetryDeadline = nextRetry
}

func (s *supervisor) setDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.State = StateDisconnected
	s.state.Connected = false
	if err != nil {
		s.state.LastError = err.Error()
	}
}

func (s *supervisor) setLateResponses(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LateResponses = n
}
