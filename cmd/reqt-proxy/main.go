// Command reqt-proxy exposes one remote API through a local HTTP endpoint,
// applying the connector's authorization, rate limiting, throttling retries
// and response cache to every proxied call.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/reqt/pkg/client"
	"github.com/Sternrassler/reqt/pkg/config"
	"github.com/Sternrassler/reqt/pkg/logging"
	"github.com/Sternrassler/reqt/pkg/metrics"
	"github.com/Sternrassler/reqt/pkg/pagination"
	"github.com/Sternrassler/reqt/pkg/query"
	"github.com/Sternrassler/reqt/pkg/ratelimit"
)

// pagesParam selects pagination for a proxied call: "all" or a page count.
// It is consumed by the proxy and not forwarded.
const pagesParam = "_pages"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := cfg.Logging()
	logCfg.Service = "reqt-proxy"
	logging.Setup(logCfg)
	logger := logging.NewLogger("proxy")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cfg.RedisClient()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid Redis configuration")
	}
	if rdb != nil {
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("addr", rdb.Options().Addr).Msg("Connected to Redis")
	}

	clientCfg, err := cfg.Client(rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid connector configuration")
	}
	api, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API connector")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newMux(api, rdb),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("base_url", api.BaseURL()).
		Str("user_agent", clientCfg.UserAgent).
		Msg("Starting proxy server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Proxy server stopped")
}

func newMux(api *client.API, rdb *redis.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(rdb))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/", proxyHandler(api))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready when the shared Redis, if any, answers.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// proxyHandler forwards /api/<route> to <base url>/<route>. Query parameters
// are forwarded after the connector's query policy; the _pages parameter
// collects several pages into one JSON array.
func proxyHandler(api *client.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route := strings.TrimPrefix(r.URL.Path, "/api")

		values := r.URL.Query()
		pages := values.Get(pagesParam)
		values.Del(pagesParam)

		req := api.NewRequest(r.Method, route)
		for _, p := range query.FromValues(values) {
			req.WithQuery(p.Key, p.Value)
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			req.WithHeader("Content-Type", ct)
		}
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "read request body", http.StatusBadRequest)
				return
			}
			if len(body) > 0 {
				req.WithBody(body)
			}
		}

		if pages != "" {
			collect(r.Context(), w, api, req, pages)
			return
		}

		resp, err := api.Do(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		copyHeaders(w.Header(), resp.Header)
		if resp.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			log.Debug().Err(err).Msg("Failed to write response")
		}
	}
}

func collect(ctx context.Context, w http.ResponseWriter, api *client.API, req *client.Request, pages string) {
	if pages == "all" {
		req.WithPagination(pagination.All())
	} else {
		n, err := strconv.Atoi(pages)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s: %q", pagesParam, pages), http.StatusBadRequest)
			return
		}
		req.WithPagination(pagination.Fixed(n))
	}

	items, err := api.Collect(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Total", strconv.Itoa(len(items)))
	if err := json.NewEncoder(w).Encode(items); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// writeError maps connector failures to proxy responses. Upstream error
// statuses are passed through.
func writeError(w http.ResponseWriter, err error) {
	var statusErr *client.StatusError
	switch {
	case errors.As(err, &statusErr):
		if ct := statusErr.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(statusErr.StatusCode)
		if _, err := w.Write(statusErr.Body); err != nil {
			log.Debug().Err(err).Msg("Failed to write error response")
		}
	case errors.Is(err, ratelimit.ErrRateLimitExceeded), errors.Is(err, client.ErrRetriesExhausted):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, pagination.ErrInvalidRule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// hopHeaders are not copied from upstream responses.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
