package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestFromResponse(t *testing.T) {
	lastModified := time.Now().Add(-1 * time.Hour).UTC().Truncate(time.Second)

	header := http.Header{
		"Expires":       []string{time.Now().Add(1 * time.Hour).Format(http.TimeFormat)},
		"Last-Modified": []string{lastModified.Format(http.TimeFormat)},
		"Etag":          []string{`"abc123"`},
		"Content-Type":  []string{"application/json"},
	}

	entry := FromResponse(http.StatusOK, header, []byte(`[1,2,3]`))
	if entry == nil {
		t.Fatal("FromResponse() returned nil entry")
	}
	if string(entry.Body) != "[1,2,3]" {
		t.Errorf("Body = %s", entry.Body)
	}
	if entry.ETag != `"abc123"` {
		t.Errorf("ETag = %v, want %v", entry.ETag, `"abc123"`)
	}
	if !entry.LastModified.Equal(lastModified) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastModified)
	}
	if ttl := entry.TTL(); ttl < 59*time.Minute || ttl > 61*time.Minute {
		t.Errorf("TTL() = %v, want ~1h", ttl)
	}

	// The entry must not alias the response header.
	header.Set("Etag", `"changed"`)
	if entry.Header.Get("Etag") != `"abc123"` {
		t.Error("entry header changed with the response header")
	}
}

func TestFromResponse_NoStore(t *testing.T) {
	header := http.Header{"Cache-Control": []string{"private, no-store"}}
	if entry := FromResponse(http.StatusOK, header, []byte(`{}`)); entry != nil {
		t.Errorf("FromResponse() = %+v, want nil for no-store", entry)
	}
}

func TestFreshUntil(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		header   http.Header
		expected time.Duration
	}{
		{
			name:     "no caching headers",
			header:   http.Header{},
			expected: DefaultTTL,
		},
		{
			name:     "max-age",
			header:   http.Header{"Cache-Control": []string{"public, max-age=120"}},
			expected: 2 * time.Minute,
		},
		{
			name: "max-age wins over expires",
			header: http.Header{
				"Cache-Control": []string{"max-age=60"},
				"Expires":       []string{now.Add(time.Hour).Format(http.TimeFormat)},
			},
			expected: time.Minute,
		},
		{
			name:     "expires in the past",
			header:   http.Header{"Expires": []string{now.Add(-time.Hour).Format(http.TimeFormat)}},
			expected: 0,
		},
		{
			name:     "invalid expires",
			header:   http.Header{"Expires": []string{"0"}},
			expected: DefaultTTL,
		},
		{
			name:     "invalid max-age",
			header:   http.Header{"Cache-Control": []string{"max-age=soon"}},
			expected: DefaultTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := freshUntil(tt.header, now).Sub(now)
			// Expires has second precision.
			if diff := got - tt.expected; diff < -time.Second || diff > time.Second {
				t.Errorf("freshUntil() = now+%v, want now+%v", got, tt.expected)
			}
		})
	}
}

func TestConditionalHeaders(t *testing.T) {
	lastModified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		entry    *Entry
		header   string
		expected string
	}{
		{
			name:     "etag preferred",
			entry:    &Entry{ETag: `"v1"`, LastModified: lastModified},
			header:   "If-None-Match",
			expected: `"v1"`,
		},
		{
			name:     "last-modified fallback",
			entry:    &Entry{LastModified: lastModified},
			header:   "If-Modified-Since",
			expected: "Fri, 01 Mar 2024 12:00:00 GMT",
		},
		{
			name:     "no validators",
			entry:    &Entry{},
			header:   "If-None-Match",
			expected: "",
		},
		{
			name:     "nil entry",
			entry:    nil,
			header:   "If-None-Match",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConditionalHeaders(tt.entry).Get(tt.header); got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.expected)
			}
		})
	}
}

func TestRevalidated(t *testing.T) {
	entry := &Entry{
		Body:    []byte(`[1]`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(-time.Minute),
	}

	next := Revalidated(entry, http.Header{"Cache-Control": []string{"max-age=300"}})

	if next.IsExpired() {
		t.Error("revalidated entry should be fresh")
	}
	if string(next.Body) != "[1]" || next.ETag != `"v1"` {
		t.Errorf("revalidated entry = %+v, want body and etag kept", next)
	}
	if !entry.IsExpired() {
		t.Error("Revalidated() must not modify the original entry")
	}
}
