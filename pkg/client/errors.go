package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRetriesExhausted is returned when a request was throttled on every
// allowed attempt. No further request is sent after it is returned.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classify maps a response status to an ErrorClass, or "" for success.
func classify(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// maxExcerpt bounds the response body kept in a StatusError.
const maxExcerpt = 512

// StatusError is returned for responses with a status >= 400 that are not
// handled by throttling or token refresh.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Header     http.Header

	// Body is the beginning of the response body.
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %s error (status %d)", e.Method, e.URL, e.ErrorClass, e.StatusCode)
	if len(e.Body) > 0 {
		msg += ": " + string(e.Body)
	}
	return msg
}

func newStatusError(out *Outbound, in *Inbound) *StatusError {
	body := in.Body
	if len(body) > maxExcerpt {
		body = body[:maxExcerpt]
	}
	return &StatusError{
		Method:     out.Method,
		URL:        out.URL,
		StatusCode: in.StatusCode,
		ErrorClass: classify(in.StatusCode),
		Header:     in.Header,
		Body:       append([]byte(nil), body...),
	}
}

// TransportError wraps a failure to exchange a request with the server.
// Transport failures are not retried.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, ErrorClassNetwork, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Class returns the error class of err, or "" if err is not a request
// failure.
func Class(err error) ErrorClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ErrorClass
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorClassNetwork
	}
	if errors.Is(err, ErrRetriesExhausted) {
		return ErrorClassRateLimit
	}
	return ""
}
