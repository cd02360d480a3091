package signal

import (
	"sync"
	"time"
)

// AttemptLimiter bounds sensitive attempts (identity allocation, session
// recovery) per source key within a sliding window.
type AttemptLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

// NewAttemptLimiter falls back to 5 attempts per minute for unset values.
func NewAttemptLimiter(limit int, interval time.Duration) *AttemptLimiter {
	if limit <= 0 {
		limit = 5
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &AttemptLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *AttemptLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[key][:0]
	for _, t := range rl.history[key] {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}
