/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
)

// LoggingMode represents a mode of logging.
type LoggingMode string

// Logging modes.
const (
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
	LoggingModeNone   LoggingMode = "none"
)

// IsValid checks if the logging mode is valid.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripperOpts represents options for LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// Logger is used when the request context carries no logger.
	Logger log.FieldLogger
	// Mode is LoggingModeAll by default.
	Mode LoggingMode
	// SlowRequestThreshold suppresses logging of requests faster than this.
	SlowRequestThreshold time.Duration
}

// LoggingRoundTripper logs every outgoing request with its status code and duration.
type LoggingRoundTripper struct {
	Delegate http.RoundTripper
	ReqType  string
	Opts     LoggingRoundTripperOpts
}

// NewLoggingRoundTripper creates a LoggingRoundTripper that uses the logger from the request context.
func NewLoggingRoundTripper(delegate http.RoundTripper, reqType string) http.RoundTripper {
	return NewLoggingRoundTripperWithOpts(delegate, reqType, LoggingRoundTripperOpts{})
}

// NewLoggingRoundTripperWithOpts creates a LoggingRoundTripper with the given options.
func NewLoggingRoundTripperWithOpts(
	delegate http.RoundTripper, reqType string, opts LoggingRoundTripperOpts,
) http.RoundTripper {
	if opts.Mode == "" {
		opts.Mode = LoggingModeAll
	}
	return &LoggingRoundTripper{Delegate: delegate, ReqType: reqType, Opts: opts}
}

func (rt *LoggingRoundTripper) getLogger(ctx context.Context) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(ctx); logger != nil {
		return logger
	}
	return rt.Opts.Logger
}

// RoundTrip sends the request and logs its outcome.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(r)
	}
	logger := rt.getLogger(r.Context())

	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)

	if logger == nil || elapsed < rt.Opts.SlowRequestThreshold {
		return resp, err
	}
	if err == nil && rt.Opts.Mode == LoggingModeFailed && resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}

	fields := []log.Field{
		log.String("method", r.Method),
		log.String("uri", r.URL.String()),
		log.String("req_type", rt.ReqType),
		log.DurationIn(elapsed, time.Millisecond),
	}
	if requestID := r.Header.Get(RequestIDHeader); requestID != "" {
		fields = append(fields, log.String("request_id", requestID))
	}
	if err != nil {
		logger.Error("client http request failed", append(fields, log.Error(err))...)
		return resp, err
	}
	logger.Info("client http request done", append(fields, log.Int("status", resp.StatusCode))...)
	return resp, err
}
