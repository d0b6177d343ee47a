/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/retry"
)

// Default parameter values for RetryableRoundTripper.
const (
	DefaultMaxRetryAttempts                  = 3
	DefaultExponentialBackoffInitialInterval = time.Second
	DefaultExponentialBackoffMultiplier      = 2
)

// UnlimitedRetryAttempts should be used as RetryableRoundTripperOpts.MaxRetryAttempts value
// when retries are stopped only by the backoff policy or the request context.
const UnlimitedRetryAttempts = -1

// RetryAttemptNumberHeader contains the serial number of the retry attempt.
const RetryAttemptNumberHeader = "X-Retry-Attempt"

// CheckRetryFunc is called after every attempt and tells whether the next one is needed.
type CheckRetryFunc func(ctx context.Context, resp *http.Response, roundTripErr error, doneRetryAttempts int) (bool, error)

// RetryableRoundTripper retries requests rejected by a rate limiter or failed on the server side.
// The delay before the next attempt is taken from the Retry-After header when present.
type RetryableRoundTripper struct {
	Delegate         http.RoundTripper
	Logger           log.FieldLogger
	MaxRetryAttempts int
	CheckRetry       CheckRetryFunc
	IgnoreRetryAfter bool
	BackoffPolicy    retry.Policy
	Sleep            func(ctx context.Context, d time.Duration) error
}

// RetryableRoundTripperOpts represents options for RetryableRoundTripper.
type RetryableRoundTripperOpts struct {
	// Logger is used when the request context carries no logger.
	Logger log.FieldLogger
	// MaxRetryAttempts is the number of attempts after the first one.
	// DefaultMaxRetryAttempts is used by default.
	MaxRetryAttempts int
	// CheckRetryFunc is DefaultCheckRetry by default.
	CheckRetryFunc CheckRetryFunc
	// IgnoreRetryAfter makes BackoffPolicy the only source of delays.
	IgnoreRetryAfter bool
	// BackoffPolicy is DefaultBackoffPolicy by default.
	BackoffPolicy retry.Policy
	// Sleep waits between attempts. A timer-based wait is used by default.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryableRoundTripper returns a new RetryableRoundTripper with default options.
func NewRetryableRoundTripper(delegate http.RoundTripper) (*RetryableRoundTripper, error) {
	return NewRetryableRoundTripperWithOpts(delegate, RetryableRoundTripperOpts{})
}

// NewRetryableRoundTripperWithOpts returns a new RetryableRoundTripper with the given options.
func NewRetryableRoundTripperWithOpts(
	delegate http.RoundTripper, opts RetryableRoundTripperOpts,
) (*RetryableRoundTripper, error) {
	if opts.MaxRetryAttempts < 0 && opts.MaxRetryAttempts != UnlimitedRetryAttempts {
		return nil, fmt.Errorf("incorrect max retry attempts %d", opts.MaxRetryAttempts)
	}
	if opts.MaxRetryAttempts == 0 {
		opts.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.CheckRetryFunc == nil {
		opts.CheckRetryFunc = DefaultCheckRetry
	}
	if opts.BackoffPolicy == nil {
		opts.BackoffPolicy = DefaultBackoffPolicy
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &RetryableRoundTripper{
		Delegate:         delegate,
		Logger:           opts.Logger,
		MaxRetryAttempts: opts.MaxRetryAttempts,
		CheckRetry:       opts.CheckRetryFunc,
		IgnoreRetryAfter: opts.IgnoreRetryAfter,
		BackoffPolicy:    opts.BackoffPolicy,
		Sleep:            opts.Sleep,
	}, nil
}

// RoundTrip performs the request, retrying it while CheckRetry allows.
func (rt *RetryableRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rewindReqBody := func(*http.Request) error { return nil }
	if req.Body != nil && req.Body != http.NoBody {
		originalReqBody := req.Body
		defer func() {
			_ = originalReqBody.Close() // Per RoundTripper contract.
		}()
		var err error
		if rewindReqBody, err = makeRequestBodyRewindable(req); err != nil {
			return nil, &RetryableRoundTripperError{Inner: err}
		}
	}

	reqCtx := req.Context()
	logger := rt.logger(reqCtx)
	nextWaitTime := rt.makeNextWaitTimeProvider()
	reqCloned := false

	var resp *http.Response
	var roundTripErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if !reqCloned {
				req, reqCloned = req.Clone(reqCtx), true // Per RoundTripper contract.
			}
			if err := rewindReqBody(req); err != nil {
				logger.Error(fmt.Sprintf("failed to rewind request body, %d request(s) done", attempt), log.Error(err))
				return resp, roundTripErr
			}
			req.Header.Set(RetryAttemptNumberHeader, strconv.Itoa(attempt))
		}

		resp, roundTripErr = rt.Delegate.RoundTrip(req)

		needRetry, checkErr := rt.CheckRetry(reqCtx, resp, roundTripErr, attempt)
		if checkErr != nil {
			logger.Error(fmt.Sprintf("failed to check if retry is needed, %d request(s) done", attempt+1),
				log.Error(checkErr))
			return resp, roundTripErr
		}
		if !needRetry {
			return resp, roundTripErr
		}
		logger.Warn(fmt.Sprintf("attempt %d failed", attempt+1), attemptResultField(resp, roundTripErr))

		if rt.MaxRetryAttempts > 0 && attempt >= rt.MaxRetryAttempts {
			logger.Warn(fmt.Sprintf("max retry attempts exceeded (%d), %d request(s) done",
				rt.MaxRetryAttempts, attempt+1))
			return resp, roundTripErr
		}
		waitTime, stop := nextWaitTime(resp)
		if stop {
			return resp, roundTripErr
		}

		if resp != nil {
			drainResponseBody(resp, logger)
		}
		logger.Info("waiting before retrying", log.Duration("wait", waitTime), log.Int("attempt", attempt+1))
		if err := rt.Sleep(reqCtx, waitTime); err != nil {
			logger.Warn(fmt.Sprintf("context canceled (%v) while waiting for the next retry attempt, %d request(s) done",
				err, attempt+1))
			return nil, err
		}
	}
}

func attemptResultField(resp *http.Response, roundTripErr error) log.Field {
	if roundTripErr != nil {
		return log.Error(roundTripErr)
	}
	return log.Int("status", resp.StatusCode)
}

type waitTimeProvider func(resp *http.Response) (waitTime time.Duration, stop bool)

func (rt *RetryableRoundTripper) makeNextWaitTimeProvider() waitTimeProvider {
	bf := rt.BackoffPolicy.NewBackOff()
	return func(resp *http.Response) (time.Duration, bool) {
		if resp != nil && !rt.IgnoreRetryAfter {
			if retryAfter, ok := parseRetryAfterFromResponse(resp, time.Now()); ok {
				return retryAfter, false
			}
		}
		waitTime := bf.NextBackOff()
		return waitTime, waitTime == backoff.Stop
	}
}

func (rt *RetryableRoundTripper) logger(ctx context.Context) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(ctx); logger != nil {
		return logger
	}
	return rt.Logger
}

// RetryableRoundTripperError is returned when the original request cannot be prepared for retries.
type RetryableRoundTripperError struct {
	Inner error
}

func (e *RetryableRoundTripperError) Error() string {
	return fmt.Sprintf("retryable round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RetryableRoundTripperError) Unwrap() error {
	return e.Inner
}

// DefaultCheckRetry retries temporary network errors, 429 and 5xx responses.
func DefaultCheckRetry(
	_ context.Context, resp *http.Response, roundTripErr error, _ int,
) (needRetry bool, err error) {
	if roundTripErr != nil {
		return CheckErrorIsTemporary(roundTripErr), nil
	}
	if resp == nil {
		return false, fmt.Errorf("both response and round trip error are nil")
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError, nil
}

// DefaultBackoffPolicy is an exponential backoff starting at one second and doubling.
var DefaultBackoffPolicy = retry.PolicyFunc(func() backoff.BackOff {
	bf := backoff.NewExponentialBackOff()
	bf.InitialInterval = DefaultExponentialBackoffInitialInterval
	bf.Multiplier = DefaultExponentialBackoffMultiplier
	bf.Reset()
	return bf
})

// CheckErrorIsTemporary reports whether the round trip error is worth retrying.
func CheckErrorIsTemporary(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var terr interface{ Temporary() bool }
	return errors.As(err, &terr) && terr.Temporary()
}

// parseRetryAfterFromResponse supports both forms of the header: delay-seconds and HTTP-date.
func parseRetryAfterFromResponse(resp *http.Response, now time.Time) (time.Duration, bool) {
	val := resp.Header.Get("Retry-After")
	if val == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	at, err := http.ParseTime(val)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func makeRequestBodyRewindable(req *http.Request) (func(*http.Request) error, error) {
	if req.GetBody != nil {
		return func(r *http.Request) error {
			body, err := r.GetBody()
			if err != nil {
				return fmt.Errorf("get body for retry: %w", err)
			}
			r.Body = body
			return nil
		}, nil
	}
	if seeker, ok := req.Body.(io.ReadSeeker); ok {
		offset, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("seek request body before doing first request: %w", err)
		}
		req.Body = io.NopCloser(seeker)
		return func(r *http.Request) error {
			if _, seekErr := seeker.Seek(offset, io.SeekStart); seekErr != nil {
				return fmt.Errorf("seek request body (offset=%d) for retry: %w", offset, seekErr)
			}
			r.Body = io.NopCloser(seeker)
			return nil
		}, nil
	}
	buffered, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read all request body before doing first request: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(buffered))
	return func(r *http.Request) error {
		r.Body = io.NopCloser(bytes.NewReader(buffered))
		return nil
	}, nil
}

// drainResponseBody discards the body of a response that will be replaced by the next attempt.
func drainResponseBody(resp *http.Response, logger log.FieldLogger) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close previous response body between retry attempts", log.Error(closeErr))
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		logger.Error("failed to discard previous response body between retry attempts", log.Error(err))
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
