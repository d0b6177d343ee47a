/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/restapi"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// StatusClientClosedRequest is a special HTTP status code used by Nginx to show that the client
// closed the request before the server could send a response
const StatusClientClosedRequest = 499

// HealthCheckComponentLimiter is the name of the always present component in the health-check response.
const HealthCheckComponentLimiter = "limiter"

// HealthCheckStatus is a resulting status of the health-check.
type HealthCheckStatus int

// Health-check statuses.
const (
	HealthCheckStatusOK HealthCheckStatus = iota
	HealthCheckStatusFail
)

// HealthCheckResult maps component names to their statuses.
type HealthCheckResult = map[string]HealthCheckStatus

// HealthCheck checks additional components of the service.
type HealthCheck = func(ctx context.Context) (HealthCheckResult, error)

type healthCheckResponseData struct {
	Components  map[string]bool `json:"components"`
	TrackedKeys int             `json:"trackedKeys"`
}

// HealthCheckHandler implements http.Handler and does health-check of a service.
type HealthCheckHandler struct {
	limiter       *windowlimit.Limiter
	healthCheckFn HealthCheck
}

// NewHealthCheckHandler creates a new http.Handler for doing health-check.
// fn may be nil, then only the limiter is reported.
func NewHealthCheckHandler(limiter *windowlimit.Limiter, fn HealthCheck) *HealthCheckHandler {
	if fn == nil {
		fn = func(ctx context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{}, ctx.Err()
		}
	}
	return &HealthCheckHandler{limiter: limiter, healthCheckFn: fn}
}

// ServeHTTP serves heath-check HTTP request.
// 503 is returned if any component is unhealthy.
func (h *HealthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerFromContext(r.Context())

	hcResult, err := h.healthCheckFn(r.Context())
	if err != nil {
		if logger != nil {
			logger.Error("error while checking health", log.Error(err))
		}
		if errors.Is(err, context.Canceled) {
			rw.WriteHeader(StatusClientClosedRequest)
			return
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	respData := healthCheckResponseData{
		Components:  map[string]bool{HealthCheckComponentLimiter: true},
		TrackedKeys: h.limiter.Len(),
	}
	respStatus := http.StatusOK
	for name, status := range hcResult {
		respData.Components[name] = status == HealthCheckStatusOK
		if status != HealthCheckStatusOK {
			respStatus = http.StatusServiceUnavailable
		}
	}
	restapi.RespondCodeAndJSON(rw, respStatus, respData, logger)
}
