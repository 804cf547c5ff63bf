package guard

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RateLimiter is a sliding-window limiter keyed by client IP. Histories live
// in a bounded LRU so an address sweep cannot grow memory without limit.
type RateLimiter struct {
	mu       sync.Mutex
	history  *expirable.LRU[string, []time.Time]
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration, maxKeys int) *RateLimiter {
	return &RateLimiter{
		history:  expirable.NewLRU[string, []time.Time](maxKeys, nil, interval),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts, _ := rl.history.Get(key)
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history.Add(key, fresh)
		return false
	}

	fresh = append(fresh, now)
	rl.history.Add(key, fresh)
	return true
}
