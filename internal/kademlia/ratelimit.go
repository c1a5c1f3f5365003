package kademlia

import (
	"sync"
	"time"
)

// tokenBucket is a simple rate limiter: tokens accumulate at a fixed rate up to a burst
// ceiling and are spent by Allow.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time

	rate  float64 // tokens per second
	burst float64
}

// NewTokenBucket constructs a limiter that refills at rate tokens/second up to burst tokens.
func NewTokenBucket(rate, burst float64) *tokenBucket {
	return &tokenBucket{tokens: burst, last: time.Now(), rate: rate, burst: burst}
}

// Allow reports whether cost tokens are available right now, spending them if so.
func (t *tokenBucket) Allow(cost float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.last).Seconds()
	t.last = now

	t.tokens += elapsed * t.rate
	if t.tokens > t.burst {
		t.tokens = t.burst
	}

	if t.tokens < cost {
		return false
	}
	t.tokens -= cost
	return true
}

// RateLimiter guards inbound FIND_NODE query volume per peer so a single noisy or hostile
// neighbor cannot monopolize this node's lookup-answering capacity.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64
	burst   float64
}

// NewRateLimiter constructs a per-peer-address rate limiter.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*tokenBucket), rate: rate, burst: burst}
}

// Allow reports whether a query from addr should be served right now.
func (r *RateLimiter) Allow(addr string) bool {
	r.mu.Lock()
	b, ok := r.buckets[addr]
	if !ok {
		b = NewTokenBucket(r.rate, r.burst)
		r.buckets[addr] = b
	}
	r.mu.Unlock()
	return b.Allow(1)
}
