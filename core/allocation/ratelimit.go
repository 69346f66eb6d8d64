package allocation

import "time"

// RateLimiter admits at most one request per minimum interval. Rejected
// requests leave its state untouched. It is not safe for concurrent use; the
// Allocator serializes access.
type RateLimiter struct {
	minInterval time.Duration
	last        time.Time
	accepted    bool
}

// NewRateLimiter returns a limiter with the given minimum interval.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{minInterval: minInterval}
}

// TryAccept reports whether a request arriving at now is admitted and records
// it as the last accepted one when it is.
func (r *RateLimiter) TryAccept(now time.Time) bool {
	if r.accepted && now.Sub(r.last) < r.minInterval {
		return false
	}
	r.last = now
	r.accepted = true
	return true
}

// LastAccepted returns the time of the last admitted request and whether any
// request was admitted yet.
func (r *RateLimiter) LastAccepted() (time.Time, bool) { return r.last, r.accepted }

// MinInterval returns the configured interval.
func (r *RateLimiter) MinInterval() time.Duration { return r.minInterval }
