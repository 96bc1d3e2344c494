// Package cache stores GET responses in Redis and revalidates them with
// conditional requests.
//
// Entries are kept past their freshness lifetime for a retention window so
// that a stale entry carrying an ETag or Last-Modified validator can be
// revalidated. A 304 Not Modified answer then serves the stored body.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Scope: "github",
//		Route: "/repos/golang/go/issues",
//		Query: "state=open&page[number]=1&page[size]=100",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// send the request unconditionally
//	case entry.IsExpired():
//		header := cache.ConditionalHeaders(entry)
//		// send the request with If-None-Match / If-Modified-Since
//	default:
//		// serve entry.Body
//	}
//
// # Freshness
//
// The freshness lifetime comes from Cache-Control max-age, then Expires,
// then DefaultTTL. Responses marked no-store are not cached.
//
// # Metrics
//
//   - reqt_cache_hits_total{state="fresh|stale"}
//   - reqt_cache_misses_total
//   - reqt_cache_size_bytes
//   - reqt_cache_not_modified_total
//   - reqt_cache_errors_total{operation}
package cache
