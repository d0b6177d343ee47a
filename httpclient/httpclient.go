/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides an HTTP client for services protected by a window limiter.
// The client retries rejected requests honoring the Retry-After header and can pace outgoing requests.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/retry"
)

// Opts represents options for New.
type Opts struct {
	// Delegate is the innermost RoundTripper. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper
	// Logger is used when the request context carries no logger.
	Logger log.FieldLogger
	// RequestType is added to log lines of outgoing requests (e.g. "admission").
	RequestType string
	// UserAgent is set in requests that have no User-Agent header.
	UserAgent string
	// Timeout limits the whole exchange including retries. Zero means no limit.
	Timeout time.Duration
	// MaxRetryAttempts enables retries. Zero disables them, UnlimitedRetryAttempts leaves stopping to BackoffPolicy.
	MaxRetryAttempts int
	// BackoffPolicy computes delays when a response has no Retry-After header.
	BackoffPolicy retry.Policy
	// IgnoreRetryAfter makes the client use BackoffPolicy even if the server sent Retry-After.
	IgnoreRetryAfter bool
	// RateLimit paces outgoing requests to this number per second. Zero disables pacing.
	RateLimit float64
	// Sleep waits between retry attempts. It should return ctx.Err() early if ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New builds an HTTP client wrapping the delegate into logging, rate limiting, user agent,
// request id and retryable round trippers.
func New(opts Opts) (*http.Client, error) {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	delegate = NewLoggingRoundTripperWithOpts(delegate, opts.RequestType, LoggingRoundTripperOpts{Logger: opts.Logger})

	if opts.RateLimit > 0 {
		rlRT, err := NewRateLimitingRoundTripper(delegate, opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
		delegate = rlRT
	}

	if opts.UserAgent != "" {
		delegate = NewUserAgentRoundTripper(delegate, opts.UserAgent)
	}

	delegate = NewRequestIDRoundTripper(delegate)

	if opts.MaxRetryAttempts != 0 {
		retryRT, err := NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{
			Logger:           opts.Logger,
			MaxRetryAttempts: opts.MaxRetryAttempts,
			BackoffPolicy:    opts.BackoffPolicy,
			IgnoreRetryAfter: opts.IgnoreRetryAfter,
			Sleep:            opts.Sleep,
		})
		if err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
		delegate = retryRT
	}

	return &http.Client{Transport: delegate, Timeout: opts.Timeout}, nil
}

// Must is the same as New but panics on error.
func Must(opts Opts) *http.Client {
	client, err := New(opts)
	if err != nil {
		panic(err)
	}
	return client
}

// CloneHTTPRequest creates a shallow copy of the request along with a deep copy of the headers.
func CloneHTTPRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = req.Header.Clone()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r
}
