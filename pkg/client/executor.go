package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/reqt/pkg/cache"
	"github.com/Sternrassler/reqt/pkg/pagination"
	"github.com/Sternrassler/reqt/pkg/query"
)

// Response is the result of a successful request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is set when the body was served from the response cache,
	// either fresh or after a 304 revalidation.
	FromCache bool
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do executes req once, without pagination parameters.
func (a *API) Do(ctx context.Context, req *Request) (*Response, error) {
	return a.execute(ctx, req, nil)
}

// Pages executes req page by page. Each page goes through rate limiting,
// authorization and throttling retries on its own. Pages are fetched only as
// the loop consumes them; breaking out of the loop stops the traversal.
func (a *API) Pages(ctx context.Context, req *Request) iter.Seq2[*pagination.Page, error] {
	rule := req.rule
	if rule == nil {
		rule = a.rule
	}
	size := req.pageSize
	if size <= 0 {
		size = a.pageSize
	}

	fetch := func(ctx context.Context, fragment query.Params, cursor pagination.Cursor) (*pagination.Page, error) {
		resp, err := a.execute(ctx, req, fragment)
		if err != nil {
			return nil, err
		}
		page, err := pagination.Decode(resp.Body, resp.Header, &cursor)
		if err != nil {
			a.logger.Warn().Err(err).Str("route", req.route).Int("page", cursor.Number).Msg("Malformed page")
			return nil, err
		}
		pagesTotal.Inc()
		return page, nil
	}

	pager, err := pagination.NewPager(rule, size, fetch, pagination.WithLogger(a.logger))
	if err != nil {
		return func(yield func(*pagination.Page, error) bool) {
			yield(nil, err)
		}
	}
	return pager.All(ctx)
}

// Collect drains every page of req into one list. On failure it returns the
// items of the pages fetched so far together with the error.
func (a *API) Collect(ctx context.Context, req *Request) ([]json.RawMessage, error) {
	var items []json.RawMessage
	for page, err := range a.Pages(ctx, req) {
		if err != nil {
			return items, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// CollectAs drains every page of req and decodes each item as T. On failure
// it returns the items decoded so far together with the error.
func CollectAs[T any](ctx context.Context, a *API, req *Request) ([]T, error) {
	raw, err := a.Collect(ctx, req)

	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if decodeErr := json.Unmarshal(item, &v); decodeErr != nil {
			return out, fmt.Errorf("decode item %d: %w", i, decodeErr)
		}
		out = append(out, v)
	}
	return out, err
}

// execute runs the attempt loop for one page (or one unpaginated call):
// wait for a send slot, authorize, send, then interpret the response.
// Throttled responses are retried up to the configured attempts; a 401 on a
// token scheme triggers one refresh and resend.
func (a *API) execute(ctx context.Context, req *Request, page query.Params) (*Response, error) {
	if req.bodyErr != nil {
		return nil, req.bodyErr
	}

	params := query.Compose(a.defaults, req.overrides, page)
	params = append(params, req.extra...)

	mode := a.limiter.Mode()
	if req.mode != nil {
		mode = *req.mode
	}

	logger := a.logger.With().Str("method", req.method).Str("route", req.route).Logger()

	cacheKey, cached := a.lookup(ctx, req, params)
	if cached != nil && !cached.IsExpired() {
		logger.Debug().Msg("Serving fresh response from cache")
		return &Response{StatusCode: cached.StatusCode, Header: cached.Header, Body: cached.Body, FromCache: true}, nil
	}

	throttled := 0
	refreshed := false

	for {
		if err := a.limiter.Acquire(ctx, mode); err != nil {
			return nil, fmt.Errorf("acquire rate limit slot: %w", err)
		}

		out, err := a.outbound(ctx, req, params, cached)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		in, err := a.transport.Send(ctx, out)
		requestDuration.WithLabelValues(req.method).Observe(time.Since(start).Seconds())

		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(req.method, "network_error").Inc()
			logger.Error().Err(err).Msg("Request failed")
			return nil, &TransportError{Method: req.method, URL: out.URL, Err: err}
		}

		requestsTotal.WithLabelValues(req.method, strconv.Itoa(in.StatusCode)).Inc()
		a.limiter.Observe(in.Header)

		switch {
		case in.StatusCode == http.StatusTooManyRequests:
			throttled++
			if throttled >= a.retry.MaxAttempts {
				retryExhaustedTotal.Inc()
				errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
				logger.Warn().Int("attempts", throttled).Msg("Retry attempts exhausted")
				return nil, fmt.Errorf("%w: %s %s throttled on %d attempts", ErrRetriesExhausted, req.method, out.URL, throttled)
			}

			delay, source := a.retry.throttleDelay(in.Header, throttled, time.Now())
			if err := a.limiter.Suspend(ctx, delay); err != nil {
				logger.Warn().Err(err).Msg("Failed to suspend rate limiter")
			}

			retriesTotal.WithLabelValues("throttled").Inc()
			retryBackoffSeconds.WithLabelValues(source).Observe(delay.Seconds())
			logger.Debug().
				Int("attempt", throttled).
				Dur("backoff", delay).
				Str("source", source).
				Msg("Throttled, retrying after backoff")

			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("wait for retry: %w", err)
			}
			continue

		case in.StatusCode == http.StatusUnauthorized && a.auth.Scheme().Stateful() && !refreshed:
			refreshed = true
			retriesTotal.WithLabelValues("unauthorized").Inc()
			logger.Debug().Msg("Token rejected, refreshing")

			a.auth.Invalidate()
			if err := a.auth.EnsureValid(ctx); err != nil {
				return nil, err
			}
			continue

		case in.StatusCode == http.StatusNotModified && cached != nil:
			cache.NotModifiedResponses.Inc()
			a.store(ctx, logger, cacheKey, cache.Revalidated(cached, in.Header))
			logger.Debug().Msg("304 Not Modified - using cache")
			return &Response{StatusCode: cached.StatusCode, Header: cached.Header, Body: cached.Body, FromCache: true}, nil

		case in.StatusCode >= 400:
			statusErr := newStatusError(out, in)
			errorsTotal.WithLabelValues(string(statusErr.ErrorClass)).Inc()
			logger.Warn().
				Int("status", in.StatusCode).
				Str("error_class", string(statusErr.ErrorClass)).
				Msg("Request error")
			return nil, statusErr
		}

		if a.cache != nil && req.method == http.MethodGet && in.StatusCode == http.StatusOK {
			if entry := cache.FromResponse(in.StatusCode, in.Header, in.Body); entry != nil {
				a.store(ctx, logger, cacheKey, entry)
			}
		}

		return &Response{StatusCode: in.StatusCode, Header: in.Header, Body: in.Body}, nil
	}
}

// outbound builds one attempt. Authorization is materialized per attempt so
// that a refreshed token is picked up.
func (a *API) outbound(ctx context.Context, req *Request, params query.Params, cached *cache.Entry) (*Outbound, error) {
	header := http.Header{}
	for name, values := range a.headers {
		header[name] = append([]string(nil), values...)
	}
	header.Set("User-Agent", a.userAgent)
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	for name, values := range req.header {
		header[name] = append([]string(nil), values...)
	}

	authHeader, err := a.auth.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize request: %w", err)
	}
	for name, values := range authHeader {
		header[name] = values
	}

	if cached.Revalidatable() {
		for name, values := range cache.ConditionalHeaders(cached) {
			header[name] = values
		}
	}

	header.Set("X-Request-ID", uuid.NewString())

	return &Outbound{
		Method: req.method,
		URL:    a.url(req.route),
		Header: header,
		Query:  params,
		Body:   req.body,
	}, nil
}

// lookup returns the cache key of a GET request and its cached entry, if any.
func (a *API) lookup(ctx context.Context, req *Request, params query.Params) (cache.Key, *cache.Entry) {
	if a.cache == nil || req.method != http.MethodGet {
		return cache.Key{}, nil
	}

	key := cache.Key{Scope: a.scope, Route: req.route, Query: params.Encode()}
	entry, err := a.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return key, nil
	}
	return key, entry
}

func (a *API) store(ctx context.Context, logger zerolog.Logger, key cache.Key, entry *cache.Entry) {
	if err := a.cache.Set(ctx, key, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache response")
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
