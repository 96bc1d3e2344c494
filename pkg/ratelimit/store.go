package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store holds the bucket state behind a Limiter. Every method must be atomic
// with respect to the others; the Limiter serializes its own calls but a
// shared store may also be used by other processes.
//
// Tokens return to the bucket exactly one period after they were consumed, so
// no more than capacity admissions ever fall inside any window of that length.
type Store interface {
	// Take consumes one token at now and returns 0, or consumes nothing and
	// returns the delay until a token becomes available.
	Take(ctx context.Context, now time.Time, capacity int, period time.Duration) (time.Duration, error)

	// Block pauses admissions until the given time. An existing later
	// deadline is kept.
	Block(ctx context.Context, until time.Time) error

	// Snapshot reports the bucket as of now.
	Snapshot(ctx context.Context, now time.Time, capacity int, period time.Duration) (State, error)
}

// MemoryStore keeps the admission log of a single process.
type MemoryStore struct {
	mu           sync.Mutex
	admissions   []time.Time
	lastRefill   time.Time
	blockedUntil time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lastRefill: time.Now()}
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, now time.Time, capacity int, period time.Duration) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The log stays in time order even when callers race on the clock.
	if n := len(s.admissions); n > 0 && now.Before(s.admissions[n-1]) {
		now = s.admissions[n-1]
	}

	s.refill(now, period)

	if now.Before(s.blockedUntil) {
		return s.blockedUntil.Sub(now), nil
	}

	if n := len(s.admissions); n >= capacity {
		// The token consumed at admissions[n-capacity] is the next one back.
		return s.admissions[n-capacity].Add(period).Sub(now), nil
	}

	s.admissions = append(s.admissions, now)
	return 0, nil
}

// Block implements Store.
func (s *MemoryStore) Block(_ context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until.After(s.blockedUntil) {
		s.blockedUntil = until
	}
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(_ context.Context, now time.Time, capacity int, period time.Duration) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refill(now, period)

	tokens := capacity - len(s.admissions)
	if tokens < 0 {
		tokens = 0
	}

	return State{
		Tokens:       tokens,
		Capacity:     capacity,
		Period:       period,
		LastRefill:   s.lastRefill,
		BlockedUntil: s.blockedUntil,
	}, nil
}

// refill drops admissions that left the window, returning their tokens.
func (s *MemoryStore) refill(now time.Time, period time.Duration) {
	cutoff := now.Add(-period)

	i := 0
	for i < len(s.admissions) && !s.admissions[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}

	s.lastRefill = s.admissions[i-1].Add(period)
	s.admissions = append(s.admissions[:0], s.admissions[i:]...)
}
