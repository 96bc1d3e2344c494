// Package ratelimit implements client-side admission control for outbound API
// requests. A Limiter hands out send slots from a token bucket shared by every
// request issued through one connector, either failing fast (Manual) or
// suspending the caller until the next token returns (Automatic).
package ratelimit

import (
	"time"
)

// Redis keys for shared limiter state. The configured key prefix is prepended.
const (
	RedisKeyAdmissions   = "reqt:rate_limit:admissions"
	RedisKeyBlockedUntil = "reqt:rate_limit:blocked_until"
)

// Defaults applied when a Config leaves a field zero.
const (
	DefaultCapacity = 1
	DefaultPeriod   = time.Second
)

// State is a point-in-time snapshot of a limiter.
type State struct {
	// Tokens is the number of requests that could be admitted right now.
	// Never negative and never above Capacity.
	Tokens int `json:"tokens"`

	// Capacity is the maximum number of requests per Period.
	Capacity int `json:"capacity"`

	// Period is the window the capacity applies to.
	Period time.Duration `json:"period"`

	// LastRefill is when a token last returned to the bucket.
	// Zero when the store does not track it.
	LastRefill time.Time `json:"last_refill"`

	// BlockedUntil is the end of a throttle suspension, zero if none.
	BlockedUntil time.Time `json:"blocked_until"`

	// Waiting is the number of automatic-mode callers queued for a token.
	Waiting int `json:"waiting"`
}

// IsSuspended reports whether admissions are paused after a throttling response.
func (s State) IsSuspended(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilResume returns how long the current suspension still lasts.
// Returns 0 if not suspended.
func (s State) TimeUntilResume(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
