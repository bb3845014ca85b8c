package perf

import (
	"sync"
	"time"
)

// tokenBucket is a simple per-client token bucket, refilled continuously at
// ratePerSecond up to a burst of the same size.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	rate     float64
	last     time.Time
}

func newTokenBucket(ratePerSecond int) *tokenBucket {
	return &tokenBucket{tokens: float64(ratePerSecond), rate: float64(ratePerSecond), last: time.Now()}
}

// Allow reports whether one token is available, consuming it if so.
func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.rate {
		b.tokens = b.rate
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter holds one token bucket per client id, grounded on the same
// per-tenant throttling idiom as the teacher's xact (per-job) concurrency
// caps, here applied per streaming client instead of per xaction.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    int
}

func NewRateLimiter(ratePerSecond int) *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*tokenBucket), rate: ratePerSecond}
}

func (r *RateLimiter) Allow(clientID string) bool {
	r.mu.Lock()
	b, ok := r.buckets[clientID]
	if !ok {
		b = newTokenBucket(r.rate)
		r.buckets[clientID] = b
	}
	r.mu.Unlock()
	return b.Allow()
}

// Forget drops a client's bucket, e.g. once its stream closes.
func (r *RateLimiter) Forget(clientID string) {
	r.mu.Lock()
	delete(r.buckets, clientID)
	r.mu.Unlock()
}
