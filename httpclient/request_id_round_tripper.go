/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
)

// RequestIDHeader is the header the request id is sent in.
const RequestIDHeader = "X-Request-ID"

// RequestIDRoundTripper sets the X-Request-ID header. The id of the incoming request is propagated
// when the context has one, otherwise a new id is generated.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
	NewID    func() string
}

// NewRequestIDRoundTripper creates a RequestIDRoundTripper generating ids with xid.
func NewRequestIDRoundTripper(delegate http.RoundTripper) http.RoundTripper {
	return &RequestIDRoundTripper{Delegate: delegate, NewID: func() string { return xid.New().String() }}
}

// RoundTrip adds the X-Request-ID header to the request if it is missing.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(RequestIDHeader) != "" {
		return rt.Delegate.RoundTrip(r)
	}
	requestID := middleware.GetRequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = rt.NewID()
	}
	r = CloneHTTPRequest(r)
	r.Header.Set(RequestIDHeader, requestID)
	return rt.Delegate.RoundTrip(r)
}
