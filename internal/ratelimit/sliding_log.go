/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"

	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// SlidingLogLimiter admits at most maxRate.Count requests per key within any trailing maxRate.Duration.
// It keeps exact admission timestamps, so there is no burst at window boundaries.
type SlidingLogLimiter struct {
	limiter *windowlimit.Limiter
}

// NewSlidingLogLimiter creates a new sliding log rate limiter.
func NewSlidingLogLimiter(maxRate Rate, opts windowlimit.Opts) (*SlidingLogLimiter, error) {
	lim, err := windowlimit.NewWithOpts(maxRate.Count, maxRate.Duration, opts)
	if err != nil {
		return nil, err
	}
	return &SlidingLogLimiter{lim}, nil
}

// NewSlidingLogLimiterFrom wraps an existing windowlimit.Limiter, so it can be shared with other components.
func NewSlidingLogLimiterFrom(limiter *windowlimit.Limiter) *SlidingLogLimiter {
	return &SlidingLogLimiter{limiter}
}

// Allow checks if the request should be allowed based on the rate limit.
func (l *SlidingLogLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	allow, retryAfter = l.limiter.AllowWithRetryAfter(key)
	return allow, retryAfter, nil
}

// Unwrap returns the underlying windowlimit.Limiter.
func (l *SlidingLogLimiter) Unwrap() *windowlimit.Limiter {
	return l.limiter
}
