package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/reqt/pkg/pagination"
	"github.com/Sternrassler/reqt/pkg/query"
	"github.com/Sternrassler/reqt/pkg/ratelimit"
)

// Request is a single call against an API. Each With method replaces the
// connector default for its dimension as a whole; a Request is meant to be
// executed once.
type Request struct {
	method string
	route  string

	rule      pagination.Rule
	pageSize  int
	overrides query.Set
	extra     query.Params
	header    http.Header
	body      []byte
	bodyErr   error
	mode      *ratelimit.Mode
}

// Method returns the HTTP method.
func (r *Request) Method() string { return r.method }

// Route returns the route relative to the API base URL.
func (r *Request) Route() string { return r.route }

// WithPagination replaces the pagination rule.
func (r *Request) WithPagination(rule pagination.Rule) *Request {
	r.rule = rule
	return r
}

// WithPageSize replaces the page size.
func (r *Request) WithPageSize(size int) *Request {
	r.pageSize = size
	return r
}

// WithFilter replaces the connector's filters. An empty filter removes them.
func (r *Request) WithFilter(f query.Fragment) *Request {
	r.overrides.Filter = f
	return r
}

// WithSort replaces the connector's sort order.
func (r *Request) WithSort(s query.Fragment) *Request {
	r.overrides.Sort = s
	return r
}

// WithRange replaces the connector's ranges.
func (r *Request) WithRange(rg query.Fragment) *Request {
	r.overrides.Range = rg
	return r
}

// WithQuery appends a parameter after the composed policy and pagination
// parameters.
func (r *Request) WithQuery(key, value string) *Request {
	r.extra = r.extra.Add(key, value)
	return r
}

// WithHeader sets a request header, overriding connector headers.
func (r *Request) WithHeader(key, value string) *Request {
	if r.header == nil {
		r.header = http.Header{}
	}
	r.header.Set(key, value)
	return r
}

// WithBody sets the request body. A []byte is sent as is; any other value
// is encoded as JSON.
func (r *Request) WithBody(v any) *Request {
	switch b := v.(type) {
	case nil:
		r.body = nil
	case []byte:
		r.body = b
	default:
		data, err := json.Marshal(v)
		if err != nil {
			r.bodyErr = fmt.Errorf("encode request body: %w", err)
			return r
		}
		r.body = data
		if r.header.Get("Content-Type") == "" {
			r.WithHeader("Content-Type", "application/json")
		}
	}
	return r
}

// WithMode selects the rate limit mode for this request instead of the
// connector's.
func (r *Request) WithMode(mode ratelimit.Mode) *Request {
	r.mode = &mode
	return r
}
