/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/windowlimit/go-windowlimit/lrucache"
)

// DefaultBacklogTimeout determines the default timeout for waiting in the backlog.
const DefaultBacklogTimeout = time.Second * 5

// Params contains common data that relates to the rate limiting procedure.
type Params struct {
	Key                 string
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

// RequestHandler abstracts a single request that is subject to rate limiting.
type RequestHandler interface {
	// GetContext returns the request context.
	GetContext() context.Context

	// GetKey extracts the rate limiting key from the request.
	// Returns key, bypass (whether to bypass rate limiting), and error.
	GetKey() (key string, bypass bool, err error)

	// Execute processes the actual request.
	Execute() error

	// OnReject handles request rejection when rate limit is exceeded.
	OnReject(params Params) error

	// OnError handles errors that occur during rate limiting.
	OnError(params Params, err error) error
}

// BacklogParams defines parameters for the backlog processing.
// Limit 0 disables backlogging, MaxKeys 0 makes all keys share a single backlog.
type BacklogParams struct {
	MaxKeys int
	Limit   int
	Timeout time.Duration
}

// RequestProcessor applies a Limiter to requests, optionally holding rejected requests in a backlog.
type RequestProcessor struct {
	limiter        Limiter
	backlogSlots   func(key string) chan struct{}
	backlogTimeout time.Duration
}

// NewRequestProcessor creates a new request processor.
func NewRequestProcessor(limiter Limiter, backlogParams BacklogParams) (*RequestProcessor, error) {
	if backlogParams.Limit < 0 {
		return nil, fmt.Errorf("backlog limit should not be negative, got %d", backlogParams.Limit)
	}
	if backlogParams.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys for backlog should not be negative, got %d", backlogParams.MaxKeys)
	}
	p := &RequestProcessor{limiter: limiter, backlogTimeout: backlogParams.Timeout}
	if p.backlogTimeout == 0 {
		p.backlogTimeout = DefaultBacklogTimeout
	}
	if backlogParams.Limit > 0 {
		var err error
		if p.backlogSlots, err = newBacklogSlotsProvider(backlogParams.Limit, backlogParams.MaxKeys); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ProcessRequest checks the request against the limiter and either executes it or rejects it.
func (p *RequestProcessor) ProcessRequest(rh RequestHandler) error {
	key, bypass, err := rh.GetKey()
	if err != nil {
		return rh.OnError(Params{Key: key}, fmt.Errorf("get key for rate limit: %w", err))
	}
	if bypass {
		return rh.Execute()
	}

	allow, retryAfter, err := p.limiter.Allow(rh.GetContext(), key)
	if err != nil {
		return rh.OnError(Params{Key: key}, fmt.Errorf("rate limit: %w", err))
	}
	if allow {
		return rh.Execute()
	}
	if p.backlogSlots == nil {
		return rh.OnReject(Params{Key: key, EstimatedRetryAfter: retryAfter})
	}
	return p.processBacklog(rh, key, retryAfter)
}

func (p *RequestProcessor) processBacklog(rh RequestHandler, key string, retryAfter time.Duration) error {
	ctx := rh.GetContext()

	slots := p.backlogSlots(key)
	select {
	case slots <- struct{}{}:
	default:
		// backlog is full
		return rh.OnReject(Params{Key: key, EstimatedRetryAfter: retryAfter})
	}
	defer func() { <-slots }()

	backlogParams := func() Params {
		return Params{Key: key, RequestBacklogged: true, EstimatedRetryAfter: retryAfter}
	}

	timeoutTimer := time.NewTimer(p.backlogTimeout)
	defer timeoutTimer.Stop()
	retryTimer := time.NewTimer(retryAfter)
	defer retryTimer.Stop()

	for {
		select {
		case <-retryTimer.C:
		case <-timeoutTimer.C:
			return rh.OnReject(backlogParams())
		case <-ctx.Done():
			return rh.OnError(backlogParams(), ctx.Err())
		}

		allow, nextRetryAfter, err := p.limiter.Allow(ctx, key)
		if err != nil {
			return rh.OnError(backlogParams(), fmt.Errorf("rate limit: %w", err))
		}
		if allow {
			return rh.Execute()
		}
		retryAfter = nextRetryAfter
		retryTimer.Reset(retryAfter)
	}
}

func newBacklogSlotsProvider(backlogLimit, maxKeys int) (func(key string) chan struct{}, error) {
	if maxKeys == 0 {
		slots := make(chan struct{}, backlogLimit)
		return func(string) chan struct{} { return slots }, nil
	}
	keys, err := lrucache.New[string, chan struct{}](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for backlog keys: %w", err)
	}
	return func(key string) chan struct{} {
		slots, _ := keys.GetOrAdd(key, func() chan struct{} {
			return make(chan struct{}, backlogLimit)
		})
		return slots
	}, nil
}
