/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default parameter values for RateLimitingRoundTripper.
const (
	DefaultRateLimitingBurst       = 1
	DefaultRateLimitingWaitTimeout = 15 * time.Second
)

// RateLimitingRoundTripperOpts represents options for RateLimitingRoundTripper.
type RateLimitingRoundTripperOpts struct {
	Burst       int
	WaitTimeout time.Duration
}

// RateLimitingRoundTripper paces outgoing requests so the client does not exceed the server-side limit.
type RateLimitingRoundTripper struct {
	Delegate    http.RoundTripper
	RateLimit   float64
	Burst       int
	WaitTimeout time.Duration

	limiter *rate.Limiter
}

// NewRateLimitingRoundTripper creates a RateLimitingRoundTripper allowing rateLimit requests per second.
func NewRateLimitingRoundTripper(delegate http.RoundTripper, rateLimit float64) (*RateLimitingRoundTripper, error) {
	return NewRateLimitingRoundTripperWithOpts(delegate, rateLimit, RateLimitingRoundTripperOpts{})
}

// NewRateLimitingRoundTripperWithOpts creates a RateLimitingRoundTripper with the given options.
// Zero options are replaced with defaults.
func NewRateLimitingRoundTripperWithOpts(
	delegate http.RoundTripper, rateLimit float64, opts RateLimitingRoundTripperOpts,
) (*RateLimitingRoundTripper, error) {
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %v", rateLimit)
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must be positive, got %d", opts.Burst)
	}
	if opts.Burst == 0 {
		opts.Burst = DefaultRateLimitingBurst
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultRateLimitingWaitTimeout
	}
	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		RateLimit:   rateLimit,
		Burst:       opts.Burst,
		WaitTimeout: opts.WaitTimeout,
		limiter:     rate.NewLimiter(rate.Limit(rateLimit), opts.Burst),
	}, nil
}

// RoundTrip waits for the pacer and sends the request.
func (rt *RateLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()
	if err := rt.limiter.Wait(ctx); err != nil {
		if r.Body != nil {
			_ = r.Body.Close() // Per RoundTripper contract.
		}
		return nil, &RateLimitingWaitError{Inner: err}
	}
	return rt.Delegate.RoundTrip(r)
}

// RateLimitingWaitError is returned when the request could not get a pacing slot in time.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}
