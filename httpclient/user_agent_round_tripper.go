/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import "net/http"

// UserAgentRoundTripper sets the User-Agent header in outgoing requests that have none.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = CloneHTTPRequest(req)
	req.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(req)
}
