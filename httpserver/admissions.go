/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/restapi"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// AdmissionResponse is returned by POST /api/v1/admissions/{key}.
// The status code is 200 for both outcomes, Allowed tells whether the request was admitted.
type AdmissionResponse struct {
	Key          string `json:"key"`
	Allowed      bool   `json:"allowed"`
	Count        int    `json:"count"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

// UsageResponse is returned by GET /api/v1/admissions/{key}.
type UsageResponse struct {
	Key      string `json:"key"`
	Count    int    `json:"count"`
	Limit    int    `json:"limit"`
	WindowMs int64  `json:"windowMs"`
}

type protectedResponse struct {
	Status string `json:"status"`
}

type admissionsHandler struct {
	limiter   *windowlimit.Limiter
	errDomain string
}

func (h *admissionsHandler) admit(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromRequest(rw, r)
	if !ok {
		return
	}
	allowed, count, retryAfter := h.limiter.AllowWithCount(key)
	resp := AdmissionResponse{
		Key:          key,
		Allowed:      allowed,
		Count:        count,
		RetryAfterMs: ceilMilliseconds(retryAfter),
	}
	restapi.RespondJSON(rw, resp, middleware.GetLoggerFromContext(r.Context()))
}

func (h *admissionsHandler) count(rw http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFromRequest(rw, r)
	if !ok {
		return
	}
	resp := UsageResponse{
		Key:      key,
		Count:    h.limiter.CurrentCount(key),
		Limit:    h.limiter.Limit(),
		WindowMs: h.limiter.Window().Milliseconds(),
	}
	restapi.RespondJSON(rw, resp, middleware.GetLoggerFromContext(r.Context()))
}

func (h *admissionsHandler) keyFromRequest(rw http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if key == "" {
		apiErr := restapi.NewErrorForStatus(h.errDomain, http.StatusBadRequest, "Key cannot be empty.")
		restapi.RespondError(rw, http.StatusBadRequest, apiErr, middleware.GetLoggerFromContext(r.Context()))
		return "", false
	}
	return key, true
}

func serveProtected(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondJSON(rw, protectedResponse{Status: "ok"}, middleware.GetLoggerFromContext(r.Context()))
}

// ceilMilliseconds rounds up, so a client never retries before the window admits it.
func ceilMilliseconds(d time.Duration) int64 {
	ms := d.Milliseconds()
	if d > time.Duration(ms)*time.Millisecond {
		ms++
	}
	return ms
}
