package tools

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleEviction = 2 * time.Hour

// RateLimiter caps tool executions per session using a token bucket per key.
// Stale per-key buckets are evicted lazily so long-running processes don't
// accumulate limiters for dead sessions.
type RateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	perMin   int
	burst    int
	lastSwep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute executions with the
// given burst. Returns nil (disabled) when perMinute <= 0.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		entries:  make(map[string]*limiterEntry),
		perMin:   perMinute,
		burst:    burst,
		lastSwep: time.Now(),
	}
}

// Allow reports whether one more tool execution is permitted for the key.
// Returns nil if allowed, or an error describing the limit.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSwep) > limiterIdleEviction {
		for k, e := range rl.entries {
			if now.Sub(e.lastSeen) > limiterIdleEviction {
				delete(rl.entries, k)
			}
		}
		rl.lastSwep = now
	}

	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMin)/60.0), rl.burst),
		}
		rl.entries[key] = entry
	}
	entry.lastSeen = now

	if !entry.limiter.Allow() {
		return fmt.Errorf("tool rate limit exceeded: %d executions/minute for session %s", rl.perMin, key)
	}
	return nil
}
