package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrRateLimitExceeded is returned by manual-mode Acquire when no token is
// available. The caller decides whether to wait, drop or escalate.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Mode selects what Acquire does when the bucket is empty.
type Mode int

const (
	// Automatic suspends the caller until a token is available.
	Automatic Mode = iota
	// Manual fails immediately with ErrRateLimitExceeded.
	Manual
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "automatic"
}

// ParseMode parses "manual" or "automatic" ("auto" is accepted).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "manual":
		return Manual, nil
	case "automatic", "auto", "":
		return Automatic, nil
	default:
		return Automatic, fmt.Errorf("unknown rate limit mode %q", s)
	}
}

// Config holds the limiter configuration.
type Config struct {
	// Capacity is the number of requests allowed per Period.
	Capacity int

	// Period is the window Capacity applies to.
	Period time.Duration

	// Mode is the default mode used by callers that do not choose one.
	Mode Mode

	// Adaptive lowers Capacity (and switches Period) when responses
	// advertise a stricter limit through X-<Period>-RateLimit-Limit headers.
	Adaptive bool

	// Store holds the bucket. Defaults to a new MemoryStore.
	Store Store
}

// DefaultConfig returns one request per second in automatic mode.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Period:   DefaultPeriod,
		Mode:     Automatic,
	}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the limiter logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter gates outbound requests. It is safe for concurrent use; all
// requests issued through one connector share one Limiter.
type Limiter struct {
	store  Store
	logger zerolog.Logger

	mu       sync.Mutex
	capacity int
	period   time.Duration
	mode     Mode
	adaptive bool
	queue    []*waiter
}

// waiter is a queued automatic-mode caller. turn is closed once the waiter
// reaches the head of the queue.
type waiter struct {
	turn chan struct{}
}

// New creates a limiter.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("capacity must be >= 0 (got %d)", cfg.Capacity)
	}
	if cfg.Period < 0 {
		return nil, fmt.Errorf("period must be >= 0 (got %v)", cfg.Period)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	l := &Limiter{
		store:    cfg.Store,
		logger:   log.With().Str("component", "rate-limiter").Logger(),
		capacity: cfg.Capacity,
		period:   cfg.Period,
		mode:     cfg.Mode,
		adaptive: cfg.Adaptive,
	}
	for _, opt := range opts {
		opt(l)
	}

	capacityGauge.Set(float64(cfg.Capacity))
	return l, nil
}

// Mode returns the configured default mode.
func (l *Limiter) Mode() Mode {
	return l.mode
}

// Acquire obtains a send slot.
//
// In Manual mode it consumes a token or fails with ErrRateLimitExceeded
// without waiting. In Automatic mode it blocks until a token is available;
// concurrent callers are served in arrival order. Cancelling ctx abandons the
// wait without consuming a token.
func (l *Limiter) Acquire(ctx context.Context, mode Mode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if mode == Manual {
		return l.tryAcquire(ctx)
	}
	return l.wait(ctx)
}

// tryAcquire is the manual-mode admission.
func (l *Limiter) tryAcquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Tokens returning now belong to queued automatic callers.
	if len(l.queue) > 0 {
		rejectedTotal.Inc()
		return fmt.Errorf("%w: %d callers waiting", ErrRateLimitExceeded, len(l.queue))
	}

	delay, err := l.store.Take(ctx, time.Now(), l.capacity, l.period)
	if err != nil {
		return fmt.Errorf("take token: %w", err)
	}
	if delay > 0 {
		rejectedTotal.Inc()
		l.logger.Debug().Dur("retry_in", delay).Msg("Manual acquire rejected")
		return fmt.Errorf("%w: next token in %v", ErrRateLimitExceeded, delay)
	}

	admittedTotal.WithLabelValues(Manual.String()).Inc()
	return nil
}

// wait is the automatic-mode admission.
func (l *Limiter) wait(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	if len(l.queue) == 0 {
		delay, err := l.store.Take(ctx, time.Now(), l.capacity, l.period)
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("take token: %w", err)
		}
		if delay == 0 {
			l.mu.Unlock()
			admittedTotal.WithLabelValues(Automatic.String()).Inc()
			waitSeconds.Observe(0)
			return nil
		}
	}

	w := &waiter{turn: make(chan struct{})}
	l.queue = append(l.queue, w)
	if len(l.queue) == 1 {
		close(w.turn)
	}
	position := len(l.queue)
	l.mu.Unlock()

	defer l.leave(w)

	l.logger.Debug().Int("position", position).Msg("Waiting for rate limit slot")

	select {
	case <-w.turn:
	case <-ctx.Done():
		return fmt.Errorf("wait for rate limit slot: %w", ctx.Err())
	}

	for {
		l.mu.Lock()
		delay, err := l.store.Take(ctx, time.Now(), l.capacity, l.period)
		l.mu.Unlock()
		if err != nil {
			return fmt.Errorf("take token: %w", err)
		}

		if delay == 0 {
			waited := time.Since(start)
			admittedTotal.WithLabelValues(Automatic.String()).Inc()
			waitSeconds.Observe(waited.Seconds())
			l.logger.Debug().Dur("waited", waited).Msg("Rate limit slot acquired")
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for rate limit slot: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// leave removes w from the queue and hands the turn to the next waiter.
func (l *Limiter) leave(w *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, q := range l.queue {
		if q != w {
			continue
		}
		l.queue = append(l.queue[:i], l.queue[i+1:]...)
		if i == 0 && len(l.queue) > 0 {
			close(l.queue[0].turn)
		}
		return
	}
}

// Suspend stops all admissions for d, in reaction to a throttling response.
// A longer suspension already in place is kept.
func (l *Limiter) Suspend(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	until := time.Now().Add(d)
	if err := l.store.Block(ctx, until); err != nil {
		return fmt.Errorf("suspend admissions: %w", err)
	}

	suspensionsTotal.Inc()
	l.logger.Warn().
		Dur("duration", d).
		Time("until", until).
		Msg("Rate limiter suspended after throttling")

	return nil
}

// Observe learns limits advertised by a response. It only acts in adaptive
// mode and never raises the capacity.
func (l *Limiter) Observe(headers http.Header) {
	if !l.adaptive || headers == nil {
		return
	}

	for _, p := range periods {
		for _, name := range p.headerNames() {
			raw := headers.Get(name)
			if raw == "" {
				continue
			}

			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				l.logger.Warn().Str("header", name).Str("value", raw).Msg("Ignoring invalid rate limit header")
				return
			}

			l.adapt(p, limit)
			return
		}
	}
}

func (l *Limiter) adapt(p Period, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	if d := p.Duration(); d != l.period {
		l.period = d
		changed = true
	}
	if limit < l.capacity {
		l.capacity = limit
		changed = true
	}
	if !changed {
		return
	}

	capacityGauge.Set(float64(l.capacity))
	l.logger.Info().
		Int("capacity", l.capacity).
		Str("period", p.String()).
		Msg("Rate limit adapted from response headers")
}

// State returns a snapshot of the limiter.
func (l *Limiter) State(ctx context.Context) (State, error) {
	l.mu.Lock()
	capacity, period, waiting := l.capacity, l.period, len(l.queue)
	l.mu.Unlock()

	state, err := l.store.Snapshot(ctx, time.Now(), capacity, period)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: %w", err)
	}
	state.Waiting = waiting
	return state, nil
}
