/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/windowlimit/go-windowlimit/internal/ratelimit"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/restapi"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// DefaultRateLimitBacklogTimeout determines how long the HTTP request may be in the backlog status.
const DefaultRateLimitBacklogTimeout = ratelimit.DefaultBacklogTimeout

// RateLimitErrCode is an error code that is used in a response body
// if the request is rejected by the middleware that limits the rate of HTTP requests.
const RateLimitErrCode = "tooManyRequests"

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

// RateLimitAlg represents a rate limiting algorithm.
type RateLimitAlg = ratelimit.Alg

// Supported rate-limiting algorithms.
const (
	RateLimitAlgSlidingLog    = ratelimit.AlgSlidingLog
	RateLimitAlgSlidingWindow = ratelimit.AlgSlidingWindow
	RateLimitAlgLeakyBucket   = ratelimit.AlgLeakyBucket
)

// Rate describes the frequency of requests.
type Rate = ratelimit.Rate

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter = ratelimit.Limiter

// NewSharedSlidingLogLimiter wraps an existing windowlimit.Limiter,
// so the middleware shares the admission history with other users of the limiter.
func NewSharedSlidingLogLimiter(limiter *windowlimit.Limiter) RateLimiter {
	return ratelimit.NewSlidingLogLimiterFrom(limiter)
}

// RateLimitParams contains data that relates to the rate limiting procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ErrDomain           string
	ResponseStatusCode  int
	Key                 string
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when an error occurs during rate limiting.
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting key for rate limiting.
// If bypass is true, the request is not rate limited.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// Alg is used when Limiter is nil. Sliding log is the default.
	Alg      RateLimitAlg
	MaxBurst int
	// Limiter overrides Alg, MaxBurst and MaxKeys. It allows sharing one limiter between the middleware and other components.
	Limiter RateLimiter
	// GetKey returns a key for rate limiting. If nil, all requests share a single empty key.
	GetKey RateLimitGetKeyFunc
	// IncludedKeys and ExcludedKeys are glob patterns ("user_*").
	// Only keys matching IncludedKeys are limited, keys matching ExcludedKeys bypass limiting.
	// They cannot be used together.
	IncludedKeys       []string
	ExcludedKeys       []string
	MaxKeys            int
	ResponseStatusCode int
	DryRun             bool
	BacklogLimit       int
	BacklogTimeout     time.Duration

	OnReject         RateLimitOnRejectFunc
	OnRejectInDryRun RateLimitOnRejectFunc
	OnError          RateLimitOnErrorFunc
}

type rateLimitHandler struct {
	next           http.Handler
	processor      *ratelimit.RequestProcessor
	getKey         RateLimitGetKeyFunc
	errDomain      string
	respStatusCode int
	onReject       RateLimitOnRejectFunc
	onError        RateLimitOnErrorFunc
}

// RateLimit is a middleware that limits the rate of HTTP requests using the sliding log algorithm.
// Rejected requests get 429 status code and the Retry-After header.
func RateLimit(maxRate Rate, errDomain string) (func(next http.Handler) http.Handler, error) {
	return RateLimitWithOpts(maxRate, errDomain, RateLimitOpts{})
}

// MustRateLimit is a version of RateLimit that panics if an error occurs.
func MustRateLimit(maxRate Rate, errDomain string) func(next http.Handler) http.Handler {
	mw, err := RateLimit(maxRate, errDomain)
	if err != nil {
		panic(err)
	}
	return mw
}

// RateLimitWithOpts is a configurable version of a middleware to limit the rate of HTTP requests.
func RateLimitWithOpts(maxRate Rate, errDomain string, opts RateLimitOpts) (func(next http.Handler) http.Handler, error) {
	getKey, err := makeRateLimitGetKeyFunc(opts.GetKey, opts.IncludedKeys, opts.ExcludedKeys)
	if err != nil {
		return nil, err
	}

	limiter := opts.Limiter
	if limiter == nil {
		if limiter, err = ratelimit.NewLimiter(ratelimit.LimiterParams{
			Alg: opts.Alg, MaxRate: maxRate, MaxBurst: opts.MaxBurst, MaxKeys: opts.MaxKeys,
		}); err != nil {
			return nil, fmt.Errorf("new rate limiter: %w", err)
		}
	}

	backlogParams := ratelimit.BacklogParams{MaxKeys: opts.MaxKeys, Limit: opts.BacklogLimit, Timeout: opts.BacklogTimeout}
	if opts.DryRun {
		backlogParams.Limit = 0 // requests are never held in dry-run mode
	}
	processor, err := ratelimit.NewRequestProcessor(limiter, backlogParams)
	if err != nil {
		return nil, fmt.Errorf("new rate limit request processor: %w", err)
	}

	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}

	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{
			next:           next,
			processor:      processor,
			getKey:         getKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			onReject:       makeRateLimitOnRejectFunc(opts),
			onError:        makeRateLimitOnErrorFunc(opts),
		}
	}, nil
}

// MustRateLimitWithOpts is a version of RateLimitWithOpts that panics if an error occurs.
func MustRateLimitWithOpts(maxRate Rate, errDomain string, opts RateLimitOpts) func(next http.Handler) http.Handler {
	mw, err := RateLimitWithOpts(maxRate, errDomain, opts)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	// Errors are reported to the client in OnReject/OnError, so the result is always nil.
	_ = h.processor.ProcessRequest(&rateLimitRequestHandler{rw: rw, r: r, parent: h})
}

// rateLimitRequestHandler implements ratelimit.RequestHandler for HTTP requests.
type rateLimitRequestHandler struct {
	rw     http.ResponseWriter
	r      *http.Request
	parent *rateLimitHandler
}

func (h *rateLimitRequestHandler) GetContext() context.Context {
	return h.r.Context()
}

func (h *rateLimitRequestHandler) GetKey() (key string, bypass bool, err error) {
	if h.parent.getKey == nil {
		return "", false, nil
	}
	return h.parent.getKey(h.r)
}

func (h *rateLimitRequestHandler) Execute() error {
	h.parent.next.ServeHTTP(h.rw, h.r)
	return nil
}

func (h *rateLimitRequestHandler) OnReject(params ratelimit.Params) error {
	h.parent.onReject(h.rw, h.r, h.convertParams(params), h.parent.next, GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *rateLimitRequestHandler) OnError(params ratelimit.Params, err error) error {
	h.parent.onError(h.rw, h.r, h.convertParams(params), err, h.parent.next, GetLoggerFromContext(h.r.Context()))
	return nil
}

func (h *rateLimitRequestHandler) convertParams(params ratelimit.Params) RateLimitParams {
	return RateLimitParams{
		ErrDomain:           h.parent.errDomain,
		ResponseStatusCode:  h.parent.respStatusCode,
		Key:                 params.Key,
		RequestBacklogged:   params.RequestBacklogged,
		EstimatedRetryAfter: params.EstimatedRetryAfter,
	}
}

// RetryAfterSeconds converts the estimated retry-after interval to the value of the Retry-After header.
// Fractions are rounded up, so a client that respects the header never retries too early.
func RetryAfterSeconds(estimated time.Duration) int {
	return int(math.Ceil(estimated.Seconds()))
}

// DefaultRateLimitOnReject responds with the configured status code (429 by default),
// Retry-After header and error in JSON format.
func DefaultRateLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, _ http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
			log.Bool("backlogged", params.RequestBacklogged),
		)
	}
	rw.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(params.EstimatedRetryAfter)))
	apiErr := restapi.NewError(params.ErrDomain, RateLimitErrCode, restapi.ErrMessageTooManyRequests)
	restapi.RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// DefaultRateLimitOnError responds with 500 status code when the error occurs during rate limiting.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, _ *http.Request, params RateLimitParams, err error, _ http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultRateLimitOnRejectInDryRun logs the rejection and serves the request anyway.
func DefaultRateLimitOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("too many requests, serving will be continued because of dry run mode",
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeRateLimitOnRejectFunc(opts RateLimitOpts) RateLimitOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultRateLimitOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultRateLimitOnReject
}

func makeRateLimitOnErrorFunc(opts RateLimitOpts) RateLimitOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultRateLimitOnError
}

// RateLimitKeyByHeader returns RateLimitGetKeyFunc that uses the value of the given request header as a key.
// Requests with an empty header bypass limiting unless noBypassEmpty is true.
func RateLimitKeyByHeader(headerName string, noBypassEmpty bool) RateLimitGetKeyFunc {
	return func(r *http.Request) (string, bool, error) {
		val := strings.TrimSpace(r.Header.Get(headerName))
		return val, val == "" && !noBypassEmpty, nil
	}
}

// RateLimitKeyByRemoteAddr returns RateLimitGetKeyFunc that uses the client IP address as a key.
func RateLimitKeyByRemoteAddr() RateLimitGetKeyFunc {
	return func(r *http.Request) (string, bool, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		return host, false, err
	}
}

func makeRateLimitGetKeyFunc(getKey RateLimitGetKeyFunc, includedKeys, excludedKeys []string) (RateLimitGetKeyFunc, error) {
	if len(includedKeys) != 0 && len(excludedKeys) != 0 {
		return nil, fmt.Errorf("included and excluded keys cannot be used together")
	}
	if getKey == nil || (len(includedKeys) == 0 && len(excludedKeys) == 0) {
		return getKey, nil
	}

	exclude := len(excludedKeys) != 0
	patterns := includedKeys
	if exclude {
		patterns = excludedKeys
	}
	matchers := make([]func(s string) bool, 0, len(patterns))
	for _, pattern := range patterns {
		matchers = append(matchers, glob.Compile(pattern))
	}
	return func(r *http.Request) (string, bool, error) {
		key, bypass, err := getKey(r)
		if err != nil || bypass {
			return key, bypass, err
		}
		matched := false
		for _, match := range matchers {
			if match(key) {
				matched = true
				break
			}
		}
		return key, matched == exclude, nil
	}, nil
}
