package cache

import (
	"strings"
)

// KeyPrefix prefixes every cache key in Redis.
const KeyPrefix = "reqt:cache"

// Key identifies a cached response.
type Key struct {
	// Scope separates APIs (and credentials) sharing one Redis, e.g. the
	// API base URL or a tenant name.
	Scope string

	// Route is the request path relative to the API base URL.
	Route string

	// Query is the encoded query string. Composed queries are already in a
	// deterministic order, so equal requests produce equal keys.
	Query string
}

// String renders the Redis key.
//
// Example:
//
//	reqt:cache:github:repos/golang/go/issues?state=open&page[number]=1
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if k.Scope != "" {
		b.WriteByte(':')
		b.WriteString(k.Scope)
	}

	b.WriteByte(':')
	b.WriteString(strings.Trim(k.Route, "/"))

	if k.Query != "" {
		b.WriteByte('?')
		b.WriteString(k.Query)
	}

	return b.String()
}
