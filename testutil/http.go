/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

type errorRespData struct {
	Domain string `json:"domain"`
	Code   string `json:"code"`
}

type wrappedErrorRespData struct {
	Error errorRespData `json:"error"`
}

// RequireErrorInRecorder asserts that passing httptest.ResponseRecorder contains error.
func RequireErrorInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code)
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	var respData wrappedErrorRespData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&respData))
	require.Equal(t, wantErrDomain, respData.Error.Domain)
	require.Equal(t, wantErrCode, respData.Error.Code)
}

// RequireJSONInRecorder asserts that passing httptest.ResponseRecorder contains JSON body with the specified status code
// and decodes it into dst.
func RequireJSONInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, dst interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code)
	require.Equal(t, contentTypeAppJSON, resp.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}
