package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/reqt/pkg/query"
)

// Outbound is a fully built request attempt.
type Outbound struct {
	Method string
	// URL is the request URL without query string.
	URL    string
	Header http.Header
	Query  query.Params
	Body   []byte
}

// FullURL returns URL with the encoded query appended.
func (o *Outbound) FullURL() string {
	if len(o.Query) == 0 {
		return o.URL
	}
	return o.URL + "?" + o.Query.Encode()
}

// Inbound is a received response with its body fully read.
type Inbound struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport exchanges one request with the server. An error means no usable
// response was received; any HTTP status, including errors, is returned as
// an Inbound.
type Transport interface {
	Send(ctx context.Context, out *Outbound) (*Inbound, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, out *Outbound) (*Inbound, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, out *Outbound) (*Inbound, error) {
	return f(ctx, out)
}

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 64 << 20

// HTTPTransport sends requests with a net/http client.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns a transport with the given request timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, out *Outbound) (*Inbound, error) {
	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}

	req, err := http.NewRequestWithContext(ctx, out.Method, out.FullURL(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range out.Header {
		req.Header[name] = append([]string(nil), values...)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Inbound{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
