package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the freshness lifetime of responses without caching headers.
const DefaultTTL = 5 * time.Minute

// FromResponse builds an entry from a successful response. It returns nil
// when the response forbids storing.
func FromResponse(status int, header http.Header, body []byte) *Entry {
	if noStore(header) {
		return nil
	}

	now := time.Now()
	entry := &Entry{
		Body:       body,
		ETag:       header.Get("ETag"),
		StatusCode: status,
		Header:     header.Clone(),
		CachedAt:   now,
		Expires:    freshUntil(header, now),
	}

	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			entry.LastModified = t
		}
	}

	return entry
}

// freshUntil derives the end of the freshness lifetime. max-age wins over
// Expires; a missing or unparsable value falls back to DefaultTTL.
func freshUntil(header http.Header, now time.Time) time.Time {
	if maxAge, ok := cacheControlMaxAge(header); ok {
		return now.Add(maxAge)
	}

	raw := header.Get("Expires")
	if raw == "" {
		return now.Add(DefaultTTL)
	}
	expires, err := http.ParseTime(raw)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if expires.Before(now) {
		return now
	}
	return expires
}

func cacheControlMaxAge(header http.Header) (time.Duration, bool) {
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func noStore(header http.Header) bool {
	for _, directive := range strings.Split(header.Get("Cache-Control"), ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return true
		}
	}
	return false
}

// ConditionalHeaders returns If-None-Match, or If-Modified-Since when the
// entry has no ETag. It returns an empty header for entries without
// validators.
func ConditionalHeaders(entry *Entry) http.Header {
	h := http.Header{}
	if entry == nil {
		return h
	}

	if entry.ETag != "" {
		h.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		h.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
	return h
}

// Revalidated returns a copy of entry refreshed by a 304 response. The
// stored body is kept; validators and freshness come from the new headers
// when present.
func Revalidated(entry *Entry, header http.Header) *Entry {
	next := *entry
	now := time.Now()

	next.CachedAt = now
	next.Expires = freshUntil(header, now)
	if etag := header.Get("ETag"); etag != "" {
		next.ETag = etag
	}
	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			next.LastModified = t
		}
	}
	return &next
}
