package guard

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements a per-key sliding window rate limiter.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter allowing limit hits per key per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a hit for key if it is within the limit.
func (rl *RateLimiter) Allow(key string) Result {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.trim(key, now)

	if len(valid) >= rl.limit {
		return Result{
			Allowed:    false,
			Reason:     fmt.Sprintf("rate limit exceeded: %d per %s", rl.limit, rl.window),
			Guard:      "rate_limiter",
			RetryAfter: valid[0].Add(rl.window).Sub(now),
		}
	}

	rl.windows[key] = append(valid, now)
	return allow()
}

// trim drops expired hits for key and returns what is left. Caller holds mu.
func (rl *RateLimiter) trim(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.windows, key)
		return nil
	}
	rl.windows[key] = valid
	return valid
}

// Prune forgets keys with no hits inside the window. Run it periodically so
// one-off clients do not accumulate.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key := range rl.windows {
		if rl.trim(key, now) == nil {
			removed++
		}
	}
	return removed
}

// Keys returns how many keys are currently tracked.
func (rl *RateLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
