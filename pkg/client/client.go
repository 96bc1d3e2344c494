// Package client provides the API connector: a long-lived handle on one
// remote REST API combining authorization, rate limiting, query policy,
// pagination, throttling retries and optional response caching.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/reqt/pkg/auth"
	"github.com/Sternrassler/reqt/pkg/cache"
	"github.com/Sternrassler/reqt/pkg/pagination"
	"github.com/Sternrassler/reqt/pkg/query"
	"github.com/Sternrassler/reqt/pkg/ratelimit"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "reqt/1.0"

// Config holds the connector configuration.
type Config struct {
	// BaseURL is prepended to every route, e.g. "https://api.example.com/v2".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Headers are sent with every request.
	Headers http.Header

	// Auth selects the authorization scheme and its credentials.
	Auth auth.Config

	// RateLimit configures the limiter shared by every request.
	RateLimit ratelimit.Config

	// Retry configures throttling retries.
	Retry RetryConfig

	// Pagination is the default rule of Pages and Collect. Defaults to
	// pagination.OneShot().
	Pagination pagination.Rule

	// PageSize is the default page size. Defaults to pagination.DefaultPageSize.
	PageSize int

	// Default query policy. Requests may replace each dimension.
	Filter query.Fragment
	Sort   query.Fragment
	Range  query.Fragment

	// Timeout of a single HTTP exchange when Transport is nil.
	Timeout time.Duration

	// Transport sends requests. Defaults to an HTTPTransport.
	Transport Transport

	// Redis, when set, shares the rate limit state between processes (unless
	// RateLimit.Store is set) and backs the response cache.
	Redis *redis.Client

	// EnableCache stores GET responses in Redis and revalidates them with
	// conditional requests. Requires Redis.
	EnableCache bool

	// Scope namespaces the Redis keys of this API. Defaults to the host of
	// BaseURL.
	Scope string
}

// DefaultConfig returns a configuration with safe defaults for baseURL:
// one request per second, three attempts on throttling, one page per call.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		UserAgent:  DefaultUserAgent,
		RateLimit:  ratelimit.DefaultConfig(),
		Retry:      DefaultRetryConfig(),
		Pagination: pagination.OneShot(),
		PageSize:   pagination.DefaultPageSize,
		Timeout:    30 * time.Second,
	}
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the connector logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// API is a connector to one remote API. It is safe for concurrent use; all
// requests share its rate limiter and authorization state.
type API struct {
	baseURL   string
	scope     string
	userAgent string
	headers   http.Header

	auth      *auth.Provider
	limiter   *ratelimit.Limiter
	transport Transport
	cache     *cache.Manager

	retry    RetryConfig
	rule     pagination.Rule
	pageSize int
	defaults query.Set

	logger zerolog.Logger
}

// New validates cfg and creates a connector.
func New(cfg Config, opts ...Option) (*API, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	if cfg.Pagination == nil {
		cfg.Pagination = pagination.OneShot()
	}
	if err := pagination.Validate(cfg.Pagination); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pagination.DefaultPageSize
	}

	if cfg.EnableCache && cfg.Redis == nil {
		return nil, fmt.Errorf("response cache requires a redis client")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Scope == "" {
		cfg.Scope = base.Host
	}

	a := &API{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		scope:     cfg.Scope,
		userAgent: cfg.UserAgent,
		headers:   cfg.Headers.Clone(),
		transport: cfg.Transport,
		retry:     cfg.Retry,
		rule:      cfg.Pagination,
		pageSize:  cfg.PageSize,
		defaults:  query.Set{Filter: cfg.Filter, Sort: cfg.Sort, Range: cfg.Range},
		logger:    log.With().Str("component", "reqt-client").Str("api", cfg.Scope).Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.transport == nil {
		a.transport = NewHTTPTransport(cfg.Timeout)
	}

	a.auth, err = auth.NewProvider(cfg.Auth, auth.WithLogger(a.logger.With().Str("component", "auth").Logger()))
	if err != nil {
		return nil, err
	}

	limits := cfg.RateLimit
	if limits.Store == nil && cfg.Redis != nil {
		limits.Store = ratelimit.NewRedisStore(cfg.Redis, cfg.Scope+":")
	}
	a.limiter, err = ratelimit.New(limits, ratelimit.WithLogger(a.logger.With().Str("component", "rate-limiter").Logger()))
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	if cfg.EnableCache {
		a.cache = cache.NewManager(cfg.Redis)
	}

	a.logger.Debug().
		Str("base_url", a.baseURL).
		Str("auth", cfg.Auth.Scheme.String()).
		Bool("cache", a.cache != nil).
		Msg("API connector created")

	return a, nil
}

// Limiter returns the connector's rate limiter.
func (a *API) Limiter() *ratelimit.Limiter {
	return a.limiter
}

// Auth returns the connector's authorization provider.
func (a *API) Auth() *auth.Provider {
	return a.auth
}

// BaseURL returns the base URL routes are resolved against.
func (a *API) BaseURL() string {
	return a.baseURL
}

// NewRequest starts a request for method and route.
func (a *API) NewRequest(method, route string) *Request {
	return &Request{method: method, route: route}
}

// Get starts a GET request.
func (a *API) Get(route string) *Request { return a.NewRequest(http.MethodGet, route) }

// Post starts a POST request.
func (a *API) Post(route string) *Request { return a.NewRequest(http.MethodPost, route) }

// Put starts a PUT request.
func (a *API) Put(route string) *Request { return a.NewRequest(http.MethodPut, route) }

// Patch starts a PATCH request.
func (a *API) Patch(route string) *Request { return a.NewRequest(http.MethodPatch, route) }

// Delete starts a DELETE request.
func (a *API) Delete(route string) *Request { return a.NewRequest(http.MethodDelete, route) }

func (a *API) url(route string) string {
	return a.baseURL + "/" + strings.TrimLeft(route, "/")
}
