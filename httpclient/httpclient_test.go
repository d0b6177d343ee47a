/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/log/logtest"
)

type headersRecorder struct {
	mu      sync.Mutex
	headers []http.Header
}

func (h *headersRecorder) handler(code int) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.headers = append(h.headers, r.Header.Clone())
		h.mu.Unlock()
		rw.WriteHeader(code)
	})
}

func TestNew(t *testing.T) {
	rec := &headersRecorder{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	logger := logtest.NewRecorder()
	client, err := New(Opts{Logger: logger, RequestType: "admission", UserAgent: "windowlimit-test"})
	require.NoError(t, err)

	resp, err := client.Get(server.URL + "/api/v1/admissions/user_123")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, rec.headers, 1)
	require.Equal(t, "windowlimit-test", rec.headers[0].Get("User-Agent"))
	requestID := rec.headers[0].Get(RequestIDHeader)
	require.NotEmpty(t, requestID)

	entry, found := logger.FindEntry("client http request done")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	require.Equal(t, http.MethodGet, entry.FieldString("method"))
	require.Equal(t, "admission", entry.FieldString("req_type"))
	require.Equal(t, requestID, entry.FieldString("request_id"))
	status, _ := entry.FindField("status")
	require.Equal(t, int64(http.StatusOK), status.Int)
}

func TestNew_Retries(t *testing.T) {
	server := newCodeSequenceServer([]int{http.StatusTooManyRequests}, "3")
	defer server.Close()

	var sleeps []time.Duration
	client, err := New(Opts{
		MaxRetryAttempts: 1,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	})
	require.NoError(t, err)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []time.Duration{3 * time.Second}, sleeps)
	require.Len(t, server.Requests(), 2)
}

func TestNew_WithoutRetries(t *testing.T) {
	server := newCodeSequenceServer([]int{http.StatusTooManyRequests}, "3")
	defer server.Close()

	client := Must(Opts{})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Len(t, server.Requests(), 1)
}

func TestNew_InvalidOpts(t *testing.T) {
	_, err := New(Opts{MaxRetryAttempts: -5})
	require.EqualError(t, err, "create retryable round tripper: incorrect max retry attempts -5")
	require.Panics(t, func() { Must(Opts{MaxRetryAttempts: -5}) })
}

func TestRequestIDRoundTripper(t *testing.T) {
	rec := &headersRecorder{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	rt := &RequestIDRoundTripper{Delegate: http.DefaultTransport, NewID: func() string { return "generated" }}
	client := &http.Client{Transport: rt}

	doGet := func(ctx context.Context, header string) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}
	doGet(context.Background(), "")
	doGet(middleware.NewContextWithRequestID(context.Background(), "incoming"), "")
	doGet(context.Background(), "explicit")

	require.Len(t, rec.headers, 3)
	require.Equal(t, "generated", rec.headers[0].Get(RequestIDHeader))
	require.Equal(t, "incoming", rec.headers[1].Get(RequestIDHeader))
	require.Equal(t, "explicit", rec.headers[2].Get(RequestIDHeader))
}

func TestLoggingRoundTripper_Modes(t *testing.T) {
	server := newCodeSequenceServer([]int{http.StatusOK, http.StatusTooManyRequests}, "")
	defer server.Close()

	logger := logtest.NewRecorder()
	client := &http.Client{Transport: NewLoggingRoundTripperWithOpts(http.DefaultTransport, "protected",
		LoggingRoundTripperOpts{Logger: logger, Mode: LoggingModeFailed})}
	for i := 0; i < 2; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}
	entries := logger.Entries()
	require.Len(t, entries, 1)
	status, _ := entries[0].FindField("status")
	require.Equal(t, int64(http.StatusTooManyRequests), status.Int)

	// The context logger has priority.
	ctxLogger := logtest.NewRecorder()
	req, err := http.NewRequestWithContext(
		middleware.NewContextWithLogger(context.Background(), ctxLogger), http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)
	_, err = (&http.Client{Transport: NewLoggingRoundTripper(http.DefaultTransport, "protected")}).Do(req)
	require.Error(t, err)
	entry, found := ctxLogger.FindEntry("client http request failed")
	require.True(t, found)
	require.Equal(t, log.LevelError, entry.Level)

	require.True(t, LoggingModeAll.IsValid())
	require.False(t, LoggingMode("some").IsValid())
}

func TestRateLimitingRoundTripper(t *testing.T) {
	server := newCodeSequenceServer(nil, "")
	defer server.Close()

	_, err := NewRateLimitingRoundTripper(http.DefaultTransport, 0)
	require.EqualError(t, err, "rate limit must be positive, got 0")
	_, err = NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 1, RateLimitingRoundTripperOpts{Burst: -1})
	require.EqualError(t, err, "burst must be positive, got -1")

	rt, err := NewRateLimitingRoundTripperWithOpts(http.DefaultTransport, 0.001,
		RateLimitingRoundTripperOpts{WaitTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	client := &http.Client{Transport: rt}

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	// The next slot is ~1000s away, the wait cannot fit into the timeout.
	_, err = client.Get(server.URL)
	var waitErr *RateLimitingWaitError
	require.True(t, errors.As(err, &waitErr))
	require.Len(t, server.Requests(), 1)
}
