// Package testutil provides a scriptable REST API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Paths served by MockAPI.
const (
	PathItems = "/items"
	PathToken = "/token"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request is a request received by MockAPI.
type Request struct {
	Method string
	Path   string
	// Query is the raw query string as sent.
	Query  string
	Header http.Header
	Body   []byte
}

// MockAPI is a configurable REST API for testing. It serves a paginated item
// collection at PathItems and an OAuth2 token endpoint at PathToken. Any
// other path answers 404 unless a handler is registered.
type MockAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc

	items       []json.RawMessage
	etag        string
	maxAge      *time.Duration
	reportTotal bool

	throttle   int
	retryAfter string

	tokenCount int
	tokens     map[string]bool
	rejected   map[string]bool

	requests         []Request
	conditionalCount int
}

// NewMockAPI starts a mock API serving count generated items of the form
// {"id": n}.
func NewMockAPI(count int) *MockAPI {
	m := &MockAPI{
		handlers:    make(map[string]http.HandlerFunc),
		tokens:      make(map[string]bool),
		rejected:    make(map[string]bool),
		etag:        `"items-v1"`,
		reportTotal: true,
	}
	for i := 1; i <= count; i++ {
		m.items = append(m.items, json.RawMessage(fmt.Sprintf(`{"id":%d}`, i)))
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// TokenURL returns the URL of the token endpoint.
func (m *MockAPI) TokenURL() string {
	return m.server.URL + PathToken
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears recorded requests and counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.conditionalCount = 0
	m.tokenCount = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// Throttle answers the next n requests (token requests excluded) with 429.
// A non-empty retryAfter is sent as the Retry-After header.
func (m *MockAPI) Throttle(n int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttle = n
	m.retryAfter = retryAfter
}

// Reject makes the server answer 401 to requests carrying access token tok.
func (m *MockAPI) Reject(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[tok] = true
}

// SetMaxAge sends Cache-Control max-age=d with item responses. Zero makes
// them stale immediately. By default no Cache-Control header is sent.
func (m *MockAPI) SetMaxAge(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAge = &d
}

// ReportTotal controls whether item responses carry X-Total.
func (m *MockAPI) ReportTotal(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportTotal = on
}

// Requests returns the requests received so far, excluding token requests.
func (m *MockAPI) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// RequestCount returns the number of requests received, excluding token
// requests.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ConditionalCount returns the number of conditional requests.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// TokenCount returns the number of tokens issued.
func (m *MockAPI) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenCount
}

func (m *MockAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == PathToken {
		m.serveToken(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditionalCount++
	}

	throttled := m.throttle > 0
	if throttled {
		m.throttle--
	}
	retryAfter := m.retryAfter
	handler, custom := m.handlers[r.URL.Path]
	unauthorized := m.unauthorized(r)
	m.mu.Unlock()

	if throttled {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		writeJSON(w, http.StatusTooManyRequests, `{"error":"too many requests"}`)
		return
	}
	if unauthorized {
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid token"}`)
		return
	}
	if custom {
		handler(w, r)
		return
	}
	if r.URL.Path == PathItems {
		m.serveItems(w, r)
		return
	}

	writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
}

// unauthorized reports whether r carries a rejected or unknown bearer token.
// Requests without a bearer token are accepted. Callers hold m.mu.
func (m *MockAPI) unauthorized(r *http.Request) bool {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	if m.rejected[tok] {
		return true
	}
	if len(m.tokens) > 0 && !m.tokens[tok] {
		return true
	}
	return false
}

func (m *MockAPI) serveItems(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	etag, maxAge, reportTotal := m.etag, m.maxAge, m.reportTotal
	items := m.items
	m.mu.Unlock()

	w.Header().Set("ETag", etag)
	if maxAge != nil {
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(maxAge.Seconds())))
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	q := r.URL.Query()
	number, size := 1, len(items)
	if n, err := strconv.Atoi(q.Get("page[number]")); err == nil && n > 0 {
		number = n
	}
	if s, err := strconv.Atoi(q.Get("page[size]")); err == nil && s > 0 {
		size = s
	}

	start := min((number-1)*size, len(items))
	end := min(start+size, len(items))
	page := append([]json.RawMessage{}, items[start:end]...)

	data, err := json.Marshal(page)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, `{"error":"encode"}`)
		return
	}
	if reportTotal {
		w.Header().Set("X-Total", strconv.Itoa(len(items)))
		w.Header().Set("X-Per-Page", strconv.Itoa(size))
	}
	writeJSON(w, http.StatusOK, string(data))
}

func (m *MockAPI) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_request"}`)
		return
	}

	m.mu.Lock()
	m.tokenCount++
	access := fmt.Sprintf("access-%d", m.tokenCount)
	m.tokens[access] = true
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, fmt.Sprintf(
		`{"access_token":%q,"token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-%d"}`,
		access, m.tokenCount))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":         `"test-etag-123"`,
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
