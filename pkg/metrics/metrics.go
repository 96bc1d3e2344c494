// Package metrics exposes the Prometheus metrics of the connector packages.
// Metrics are defined next to the code that records them (client, auth,
// ratelimit, cache) and registered via promauto on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every reqt metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Prefix is shared by every reqt metric name.
const Prefix = "reqt_"

// Handler returns an HTTP handler serving the metrics in the Prometheus
// text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - reqt_requests_total{method, status} (Counter): Requests sent by method and HTTP status
//   - reqt_request_duration_seconds{method} (Histogram): Request duration by method
//   - reqt_errors_total{class} (Counter): Failures by class (client, server, rate_limit, network)
//   - reqt_pages_total (Counter): Pages fetched by paginated requests
//
// Retry Metrics (pkg/client):
//   - reqt_retries_total{reason} (Counter): Resent attempts (throttled, unauthorized)
//   - reqt_retry_backoff_seconds{source} (Histogram): Wait before a throttled retry (retry_after, backoff)
//   - reqt_retry_exhausted_total (Counter): Requests throttled on every attempt
//
// Rate Limit Metrics (pkg/ratelimit):
//   - reqt_ratelimit_admitted_total{mode} (Counter): Admitted requests by mode
//   - reqt_ratelimit_rejected_total (Counter): Manual-mode rejections
//   - reqt_ratelimit_wait_seconds (Histogram): Automatic-mode wait for a token
//   - reqt_ratelimit_suspensions_total (Counter): Suspensions after throttling
//   - reqt_ratelimit_capacity (Gauge): Current limiter capacity
//
// Auth Metrics (pkg/auth):
//   - reqt_auth_refresh_total{scheme, result} (Counter): Token exchanges
//   - reqt_auth_refresh_duration_seconds (Histogram): Token exchange duration
//
// Cache Metrics (pkg/cache):
//   - reqt_cache_hits_total{state} (Counter): Cache hits (fresh, stale)
//   - reqt_cache_misses_total (Counter): Cache misses
//   - reqt_cache_size_bytes (Gauge): Bytes written to the cache
//   - reqt_cache_not_modified_total (Counter): 304 responses served from cache
//   - reqt_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Throttling rate
//   rate(reqt_retries_total{reason="throttled"}[5m])
//
//   # Fresh cache hit rate
//   sum(rate(reqt_cache_hits_total{state="fresh"}[5m])) /
//   (sum(rate(reqt_cache_hits_total[5m])) + sum(rate(reqt_cache_misses_total[5m])))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(reqt_request_duration_seconds_bucket[5m]))
//
//   # P95 rate limit wait
//   histogram_quantile(0.95, rate(reqt_ratelimit_wait_seconds_bucket[5m]))
