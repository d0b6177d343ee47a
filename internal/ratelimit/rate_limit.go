/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// Rate describes the frequency of requests.
type Rate struct {
	Count    int
	Duration time.Duration
}

// String returns a human-readable representation of the rate ("5/1m0s").
func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Duration)
}

// Limiter interface defines the rate limiting contract.
type Limiter interface {
	Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error)
}

// Alg represents a rate limiting algorithm.
type Alg string

// Rate limiting algorithms.
const (
	AlgSlidingLog    Alg = "sliding_log"
	AlgSlidingWindow Alg = "sliding_window"
	AlgLeakyBucket   Alg = "leaky_bucket"
)

// DefaultMaxKeys is used by the sliding window algorithm when the number of keys is not limited explicitly.
const DefaultMaxKeys = 10000

// LimiterParams contains parameters for NewLimiter.
type LimiterParams struct {
	Alg      Alg
	MaxRate  Rate
	MaxBurst int // leaky bucket only
	MaxKeys  int
	// SlidingLogOpts are passed to the sliding log limiter. MaxKeys overrides SlidingLogOpts.MaxKeys if set.
	SlidingLogOpts windowlimit.Opts
}

// NewLimiter creates a Limiter that implements the requested algorithm.
func NewLimiter(params LimiterParams) (Limiter, error) {
	if params.MaxRate.Count <= 0 {
		return nil, fmt.Errorf("maximum rate count should be positive, got %d", params.MaxRate.Count)
	}
	if params.MaxRate.Duration <= 0 {
		return nil, fmt.Errorf("maximum rate duration should be positive, got %s", params.MaxRate.Duration)
	}
	if params.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", params.MaxKeys)
	}
	switch params.Alg {
	case AlgSlidingLog, "":
		opts := params.SlidingLogOpts
		if params.MaxKeys > 0 {
			opts.MaxKeys = params.MaxKeys
		}
		return NewSlidingLogLimiter(params.MaxRate, opts)
	case AlgSlidingWindow:
		return NewSlidingWindowLimiter(params.MaxRate, params.MaxKeys)
	case AlgLeakyBucket:
		return NewLeakyBucketLimiter(params.MaxRate, params.MaxBurst, params.MaxKeys)
	default:
		return nil, fmt.Errorf("unknown rate limiting algorithm %q", params.Alg)
	}
}
