/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockRequestIDNextHandler struct {
	called            int
	requestID         string
	internalRequestID string
}

func (h *mockRequestIDNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.called++
	h.requestID = GetRequestIDFromContext(r.Context())
	h.internalRequestID = GetInternalRequestIDFromContext(r.Context())
}

func TestRequestIDHandler_ServeHTTP(t *testing.T) {
	t.Run("id is passed in header", func(t *testing.T) {
		const requestID = "c0l8t2iv4rdhgmvb8abg"
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(headerRequestID, requestID)
		resp := httptest.NewRecorder()
		next := &mockRequestIDNextHandler{}
		RequestIDWithOpts(RequestIDOpts{GenerateInternalID: func() string { return "int-1" }})(next).ServeHTTP(resp, req)

		require.Equal(t, 1, next.called)
		require.Equal(t, requestID, next.requestID)
		require.Equal(t, "int-1", next.internalRequestID)
		require.Equal(t, requestID, resp.Header().Get(headerRequestID))
		require.Equal(t, "int-1", resp.Header().Get(headerInternalRequestID))
	})

	t.Run("id is generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp := httptest.NewRecorder()
		next := &mockRequestIDNextHandler{}
		RequestID()(next).ServeHTTP(resp, req)

		require.Equal(t, 1, next.called)
		require.Len(t, next.requestID, 20) // xid string length
		require.Len(t, next.internalRequestID, 20)
		require.NotEqual(t, next.requestID, next.internalRequestID)
		require.Equal(t, next.requestID, resp.Header().Get(headerRequestID))
		require.Equal(t, next.internalRequestID, resp.Header().Get(headerInternalRequestID))
	})
}
