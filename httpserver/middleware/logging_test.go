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

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/log/logtest"
)

type mockLoggingNextHandler struct {
	respStatusCode int
	respBody       []byte
	logger         log.FieldLogger
}

func (h *mockLoggingNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.logger = GetLoggerFromContext(r.Context())
	rw.WriteHeader(h.respStatusCode)
	_, _ = rw.Write(h.respBody)
}

func TestLoggingHandler_ServeHTTP(t *testing.T) {
	t.Run("response is logged", func(t *testing.T) {
		logger := logtest.NewRecorder()
		next := &mockLoggingNextHandler{respStatusCode: http.StatusTeapot, respBody: []byte("short and stout")}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admissions/user_123", nil)
		req.Header.Set(headerForwardedFor, "10.1.1.1, 10.2.2.2")
		req.Header.Set("User-Agent", "http-client")
		req = req.WithContext(NewContextWithRequestID(req.Context(), "ext-id"))
		resp := httptest.NewRecorder()

		LoggingWithOpts(logger, LoggingOpts{RequestStart: true})(next).ServeHTTP(resp, req)

		require.NotNil(t, next.logger)
		entries := logger.Entries()
		require.Len(t, entries, 2)
		require.Equal(t, "request started", entries[0].Text)

		respEntry := entries[1]
		require.Equal(t, log.LevelInfo, respEntry.Level)
		require.Contains(t, respEntry.Text, "response completed in")
		for key, want := range map[string]string{
			"request_id":  "ext-id",
			"method":      http.MethodPost,
			"uri":         "/api/v1/admissions/user_123",
			"user_agent":  "http-client",
			"origin_addr": "10.1.1.1",
		} {
			require.Equal(t, want, respEntry.FieldString(key), key)
		}
		statusField, ok := respEntry.FindField("status")
		require.True(t, ok)
		require.EqualValues(t, http.StatusTeapot, statusField.Int)
		bytesField, ok := respEntry.FindField("bytes_sent")
		require.True(t, ok)
		require.EqualValues(t, len(next.respBody), bytesField.Int)
	})

	t.Run("excluded endpoint is logged only on error", func(t *testing.T) {
		logger := logtest.NewRecorder()
		mw := LoggingWithOpts(logger, LoggingOpts{ExcludedEndpoints: []string{"/healthz"}})

		next := &mockLoggingNextHandler{respStatusCode: http.StatusOK}
		mw(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Empty(t, logger.Entries())

		next = &mockLoggingNextHandler{respStatusCode: http.StatusServiceUnavailable}
		mw(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Len(t, logger.Entries(), 1)
	})
}
