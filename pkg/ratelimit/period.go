package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named rate limit window as advertised by APIs in
// X-<Period>-RateLimit-Limit response headers.
type Period int

const (
	Second Period = iota
	Minute
	Hour
	Day
)

// periods lists every Period, shortest first.
var periods = []Period{Second, Minute, Hour, Day}

// Duration returns the length of the window.
func (p Period) Duration() time.Duration {
	switch p {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	default:
		return time.Second
	}
}

func (p Period) String() string {
	switch p {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "second"
	}
}

// headerNames returns the limit headers announcing this period.
// "Dayly" is accepted because some APIs shipped the misspelling.
func (p Period) headerNames() []string {
	switch p {
	case Minute:
		return []string{"X-Minute-RateLimit-Limit"}
	case Hour:
		return []string{"X-Hourly-RateLimit-Limit"}
	case Day:
		return []string{"X-Daily-RateLimit-Limit", "X-Dayly-RateLimit-Limit"}
	default:
		return []string{"X-Secondly-RateLimit-Limit"}
	}
}

// ParsePeriod parses "second", "minute", "hour" or "day" (case-insensitive,
// "s", "m", "h", "d" and the -ly forms are accepted).
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "second", "seconds", "secondly", "s", "sec":
		return Second, nil
	case "minute", "minutes", "minutely", "m", "min":
		return Minute, nil
	case "hour", "hours", "hourly", "h":
		return Hour, nil
	case "day", "days", "daily", "dayly", "d":
		return Day, nil
	default:
		return Second, fmt.Errorf("unknown rate limit period %q", s)
	}
}
