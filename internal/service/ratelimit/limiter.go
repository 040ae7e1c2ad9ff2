package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key, e.g. per client IP.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// New builds a keyed limiter refilling refillPerSec tokens per second up to
// capacity. A non-positive refill rate disables limiting.
func New(capacity int, refillPerSec float64) *Limiter {
	limit := rate.Limit(refillPerSec)
	if refillPerSec <= 0 {
		limit = rate.Inf
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{m: make(map[string]*rate.Limiter), limit: limit, burst: capacity}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// Keys returns how many keys are tracked.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
