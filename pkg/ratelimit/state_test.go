package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsSuspended(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{
			name:     "never suspended",
			state:    State{},
			expected: false,
		},
		{
			name:     "suspension in the future",
			state:    State{BlockedUntil: now.Add(2 * time.Second)},
			expected: true,
		},
		{
			name:     "suspension elapsed",
			state:    State{BlockedUntil: now.Add(-time.Millisecond)},
			expected: false,
		},
		{
			name:     "suspension ends exactly now",
			state:    State{BlockedUntil: now},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsSuspended(now); got != tt.expected {
				t.Errorf("IsSuspended() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_TimeUntilResume(t *testing.T) {
	now := time.Now()

	state := State{BlockedUntil: now.Add(1500 * time.Millisecond)}
	if got := state.TimeUntilResume(now); got != 1500*time.Millisecond {
		t.Errorf("TimeUntilResume() = %v, want 1.5s", got)
	}

	state = State{BlockedUntil: now.Add(-time.Second)}
	if got := state.TimeUntilResume(now); got != 0 {
		t.Errorf("TimeUntilResume() after suspension = %v, want 0", got)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input    string
		expected Period
		wantErr  bool
	}{
		{input: "second", expected: Second},
		{input: "Minute", expected: Minute},
		{input: "hourly", expected: Hour},
		{input: "dayly", expected: Day},
		{input: "d", expected: Day},
		{input: "fortnight", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParsePeriod(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePeriod(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParsePeriod(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPeriod_Duration(t *testing.T) {
	expected := map[Period]time.Duration{
		Second: time.Second,
		Minute: time.Minute,
		Hour:   time.Hour,
		Day:    24 * time.Hour,
	}

	for p, want := range expected {
		if got := p.Duration(); got != want {
			t.Errorf("%v.Duration() = %v, want %v", p, got, want)
		}
	}
}
