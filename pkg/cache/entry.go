package cache

import (
	"net/http"
	"time"
)

// Entry is a cached response.
type Entry struct {
	// Body is the response body
	Body []byte `json:"body"`

	// ETag validator (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// LastModified validator (If-Modified-Since)
	LastModified time.Time `json:"last_modified,omitzero"`

	// Expires is the end of the freshness lifetime
	Expires time.Time `json:"expires"`

	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`

	// CachedAt is when the response was stored or last revalidated
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true once the entry is stale.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the remaining freshness lifetime, or 0 if stale.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Revalidatable reports whether a conditional request can be made for the
// entry.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
