/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/windowlimit/go-windowlimit/log"
)

const (
	userAgentLogFieldKey = "user_agent"

	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// LoggingOpts represents an options for Logging middleware.
type LoggingOpts struct {
	RequestStart bool
	// ExcludedEndpoints are not logged unless the response status is >= 400.
	ExcludedEndpoints []string
}

type loggingHandler struct {
	next   http.Handler
	logger log.FieldLogger
	opts   LoggingOpts
}

// Logging is a middleware that logs info about HTTP request and response.
// Also, it puts logger (with external and internal request's ids in fields) into request's context.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return LoggingWithOpts(logger, LoggingOpts{})
}

// LoggingWithOpts is a more configurable version of Logging middleware.
func LoggingWithOpts(logger log.FieldLogger, opts LoggingOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &loggingHandler{next: next, logger: logger, opts: opts}
	}
}

func (h *loggingHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startTime := GetRequestStartTimeFromContext(ctx)
	if startTime.IsZero() {
		startTime = time.Now()
		ctx = NewContextWithRequestStartTime(ctx, startTime)
	}

	loggerForNext := h.logger.With(
		log.String("request_id", GetRequestIDFromContext(ctx)),
		log.String("int_request_id", GetInternalRequestIDFromContext(ctx)),
	)
	logger := loggerForNext.With(
		log.String("method", r.Method),
		log.String("uri", r.RequestURI),
		log.String("remote_addr", r.RemoteAddr),
		log.String(userAgentLogFieldKey, r.UserAgent()),
	)
	if originAddr := getOriginAddr(r); originAddr != "" {
		logger = logger.With(log.String("origin_addr", originAddr))
	}

	noLog := isLoggingDisabled(r.URL.Path, h.opts.ExcludedEndpoints)
	if h.opts.RequestStart && !noLog {
		logger.Info("request started")
	}

	wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	h.next.ServeHTTP(wrw, r.WithContext(NewContextWithLogger(ctx, loggerForNext)))

	status := wrw.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if noLog && status < http.StatusBadRequest {
		return
	}
	duration := time.Since(startTime)
	logger.Info(fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
		log.Int64("duration_ms", duration.Milliseconds()),
		log.Int("status", status),
		log.Int("bytes_sent", wrw.BytesWritten()),
	)
}

func isLoggingDisabled(urlPath string, noLogEndpoints []string) bool {
	for _, endpoint := range noLogEndpoints {
		if urlPath == endpoint {
			return true
		}
	}
	return false
}

func getOriginAddr(r *http.Request) string {
	if forwardFor := r.Header.Get(headerForwardedFor); forwardFor != "" {
		if first := strings.IndexByte(forwardFor, ','); first != -1 {
			forwardFor = forwardFor[:first]
		}
		return strings.TrimSpace(forwardFor)
	}
	return strings.TrimSpace(r.Header.Get(headerRealIP))
}
