package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a provider's request budget is spent.
// The gateway treats it like any other provider failure and falls through
// to the next provider in priority order.
var ErrRateLimited = errors.New("provider request budget exhausted")

// RateLimit caps a provider's outbound calls. A zero field disables that
// window, so the zero value means unlimited.
type RateLimit struct {
	PerMinute int
	PerDay    int
}

// rateLimiter tracks one provider's spend over a sliding one-minute window
// and a UTC calendar day. The check is non-blocking: callers that hit the
// cap skip the provider rather than queue behind it.
type rateLimiter struct {
	mu     sync.Mutex
	limit  RateLimit
	minute []time.Time // call times within the last minute
	day    time.Time   // UTC midnight of the day dayCount covers
	count  int         // calls made on day

	now func() time.Time // injectable clock
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	return &rateLimiter{limit: limit, now: time.Now}
}

// allow records one call and reports whether it fits the budget. A nil
// limiter allows everything.
func (r *rateLimiter) allow() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	if r.limit.PerDay > 0 {
		midnight := now.Truncate(24 * time.Hour)
		if !midnight.Equal(r.day) {
			r.day = midnight
			r.count = 0
		}
		if r.count >= r.limit.PerDay {
			return false
		}
	}

	if r.limit.PerMinute > 0 {
		cutoff := now.Add(-time.Minute)
		kept := r.minute[:0]
		for _, t := range r.minute {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.minute = kept
		if len(r.minute) >= r.limit.PerMinute {
			return false
		}
		r.minute = append(r.minute, now)
	}

	if r.limit.PerDay > 0 {
		r.count++
	}
	return true
}
