package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{status: http.StatusOK, want: ""},
		{status: http.StatusNotModified, want: ""},
		{status: http.StatusBadRequest, want: ErrorClassClient},
		{status: http.StatusNotFound, want: ErrorClassClient},
		{status: http.StatusTooManyRequests, want: ErrorClassRateLimit},
		{status: http.StatusInternalServerError, want: ErrorClassServer},
		{status: http.StatusBadGateway, want: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := classify(tt.status); got != tt.want {
				t.Errorf("classify(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusError_Error(t *testing.T) {
	out := &Outbound{Method: http.MethodGet, URL: "https://api.example.com/items"}
	in := &Inbound{StatusCode: http.StatusNotFound, Header: http.Header{}, Body: []byte(`{"error":"missing"}`)}

	err := newStatusError(out, in)

	want := `GET https://api.example.com/items: client error (status 404): {"error":"missing"}`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStatusError_BodyExcerpt(t *testing.T) {
	body := []byte(strings.Repeat("x", 2*maxExcerpt))
	out := &Outbound{Method: http.MethodGet, URL: "https://api.example.com"}
	in := &Inbound{StatusCode: http.StatusBadGateway, Body: body}

	err := newStatusError(out, in)

	if len(err.Body) != maxExcerpt {
		t.Errorf("len(Body) = %d, want %d", len(err.Body), maxExcerpt)
	}

	// the excerpt must not alias the response buffer
	body[0] = 'y'
	if err.Body[0] != 'x' {
		t.Error("Body shares memory with the response")
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("wrapped: %w", &TransportError{Method: http.MethodGet, URL: "https://x", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find the cause")
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatal("errors.As() did not find *TransportError")
	}
	if !strings.Contains(transportErr.Error(), "network error") {
		t.Errorf("Error() = %q, want network class", transportErr.Error())
	}
}

func TestClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{
			name: "status error",
			err:  &StatusError{StatusCode: 503, ErrorClass: ErrorClassServer},
			want: ErrorClassServer,
		},
		{
			name: "wrapped status error",
			err:  fmt.Errorf("fetch: %w", &StatusError{StatusCode: 400, ErrorClass: ErrorClassClient}),
			want: ErrorClassClient,
		},
		{
			name: "transport error",
			err:  &TransportError{Err: errors.New("timeout")},
			want: ErrorClassNetwork,
		},
		{
			name: "retries exhausted",
			err:  fmt.Errorf("%w: GET /x", ErrRetriesExhausted),
			want: ErrorClassRateLimit,
		},
		{
			name: "unrelated error",
			err:  errors.New("boom"),
			want: "",
		},
		{
			name: "nil",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Class(tt.err); got != tt.want {
				t.Errorf("Class() = %q, want %q", got, tt.want)
			}
		})
	}
}
