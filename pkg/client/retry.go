package client

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig holds the throttling retry policy.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry when the server sent
	// no Retry-After.
	BaseDelay time.Duration

	// MaxDelay caps computed backoff. Retry-After values are not capped.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
	}
}

// Validate checks the configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		return fmt.Errorf("base delay %v exceeds max delay %v", c.BaseDelay, c.MaxDelay)
	}
	return nil
}

// Backoff returns the delay before retry number attempt (1-based):
// BaseDelay * 2^(attempt-1) with ±20% jitter, never above MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}

	// Add jitter (±20% randomness)
	d *= 0.8 + rand.Float64()*0.4
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// maxRetryAfterSeconds is the largest delta-seconds value a time.Duration holds.
const maxRetryAfterSeconds = int64(math.MaxInt64 / time.Second)

// RetryAfter parses a Retry-After header given either as delta-seconds or as
// an HTTP date. Dates in the past yield 0. Negative, fractional or
// out-of-range seconds are not a hint.
func RetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}

	secs, err := strconv.ParseInt(raw, 10, 64)
	switch {
	case err == nil:
		if secs < 0 || secs > maxRetryAfterSeconds {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	case errors.Is(err, strconv.ErrRange):
		return 0, false
	}

	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}

	return 0, false
}

// throttleDelay decides how long to wait after the attempt-th throttled
// response. A server hint wins over the computed backoff.
func (c RetryConfig) throttleDelay(header http.Header, attempt int, now time.Time) (time.Duration, string) {
	if d, ok := RetryAfter(header, now); ok {
		return d, "retry_after"
	}
	return c.Backoff(attempt), "backoff"
}
