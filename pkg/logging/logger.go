// Package logging configures the process-wide zerolog logger shared by the
// connector packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service, when set, is attached to every event as "service".
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name. Matching is case-insensitive and
// "warning" is accepted for LevelWarn.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the global zerolog logger. Packages that derive their
// loggers from the global one (client, auth, ratelimit, cache) pick it up
// at construction time.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// zerologLevel converts LogLevel to zerolog.Level. Unknown levels log at info.
func zerologLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow details
//   - Cache hits, conditional requests, 304 revalidations
//   - Throttling retries and their backoff source
//   - Token invalidation, connector construction
//
// Info: normal operation events
//   - Token refreshed
//   - Proxy startup/shutdown
//
// Warn: degraded but continuing
//   - Limiter suspended after a 429
//   - Retry attempts exhausted
//   - Cache errors (request continues without the cache)
//   - Malformed pages, 4xx/5xx responses
//
// Error: failures requiring attention
//   - Transport failures
//   - Token refresh failures
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package (reqt-client, auth, rate-limiter, cache)
//   - api: connector scope (host of the base URL by default)
//   - method, route: request being executed
//   - status: HTTP status code
//   - error_class: client, server, rate_limit or network
//   - attempt, backoff, source: throttling retry details
//   - page: page number during traversal
