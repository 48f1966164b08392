package analysis

import "time"

// RateLimiter caps dispatches to the provider over a sliding window.
// It is process-local to one manager instance; two surfaces each running
// a manager can together exceed the cap, which is acceptable because the
// provider rate-limits independently.
type RateLimiter struct {
	window time.Duration
	cap    int
	stamps []time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing cap requests per window.
// cap <= 0 disables limiting.
func NewRateLimiter(cap int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{window: window, cap: cap, now: now}
}

// Allow records and admits one request, or refuses without recording.
func (r *RateLimiter) Allow() bool {
	if r.cap <= 0 {
		return true
	}
	now := r.now()
	r.prune(now)
	if len(r.stamps) >= r.cap {
		return false
	}
	r.stamps = append(r.stamps, now)
	return true
}

// InWindow returns how many requests were admitted in the current window.
func (r *RateLimiter) InWindow() int {
	r.prune(r.now())
	return len(r.stamps)
}

func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}
