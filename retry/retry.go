/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs operations with retries according to backoff policies.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable defines a func that can tell if error is retryable as opposed to persistent.
type IsRetryable func(error) bool

// RetryableFunc is function that does some work and can be potentially retried.
type RetryableFunc func(ctx context.Context) error

// Notify is called on every failed attempt that will be retried, with the error and the delay before the next attempt.
type Notify = backoff.Notify

// Policy defines backoff strategy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// Opts represents options for DoWithRetryOpts.
type Opts struct {
	// IsRetryable defines which errors lead to retry attempt (nil means any error).
	IsRetryable IsRetryable
	// Notify receives a notification on every retry (may be nil).
	Notify Notify
	// Sleep waits between attempts. If nil, real timers are used.
	Sleep func(time.Duration)
}

// DoWithRetry executes fn with retry according to policy p and with respect to context ctx.
// IsRetryable defines which errors lead to retry attempt (can be nil for any error).
// Notify can be used to receive notification on every retry with error and backoff delay
// (can be nil if no notifications required).
func DoWithRetry(ctx context.Context, p Policy, isRetryable IsRetryable, notify Notify, fn RetryableFunc) error {
	return DoWithRetryOpts(ctx, p, Opts{IsRetryable: isRetryable, Notify: notify}, fn)
}

// DoWithRetryOpts is the same as DoWithRetry but accepts options,
// including a custom sleep function which allows running retries against a fake clock.
func DoWithRetryOpts(ctx context.Context, p Policy, opts Opts, fn RetryableFunc) error {
	bctx := backoff.WithContext(p.NewBackOff(), ctx)
	op := func() error {
		err := fn(bctx.Context())
		if err != nil && opts.IsRetryable != nil && !opts.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if opts.Sleep != nil {
		return backoff.RetryNotifyWithTimer(op, bctx, opts.Notify, newSleepTimer(opts.Sleep))
	}
	return backoff.RetryNotify(op, bctx, opts.Notify)
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialBackoffPolicy means repeat up to max times with exponentially growing delays (1.5 multiplier).
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with given initial interval and max retry attempt count.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	return withMaxRetries(eb, p.maxAttempts)
}

// ConstantBackoffPolicy means repeat up to max times with constant interval delays.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with given interval and max retry attempt count.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	return withMaxRetries(backoff.NewConstantBackOff(p.interval), p.maxAttempts)
}

func withMaxRetries(b backoff.BackOff, maxAttempts int) backoff.BackOff {
	if maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxAttempts))
	}
	b.Reset()
	return b
}

// sleepTimer implements backoff.Timer on top of a blocking sleep function.
type sleepTimer struct {
	sleep func(time.Duration)
	c     chan time.Time
}

func newSleepTimer(sleep func(time.Duration)) *sleepTimer {
	return &sleepTimer{sleep: sleep, c: make(chan time.Time, 1)}
}

func (t *sleepTimer) Start(d time.Duration) {
	t.sleep(d)
	t.c <- time.Time{}
}

func (t *sleepTimer) Stop() {
	select {
	case <-t.c:
	default:
	}
}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
