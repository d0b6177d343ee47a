/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/log/logtest"
	"github.com/windowlimit/go-windowlimit/restapi"
	"github.com/windowlimit/go-windowlimit/testutil"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

type AdmissionAPITestSuite struct {
	suite.Suite
	clock   *testutil.FakeClock
	limiter *windowlimit.Limiter
	server  *HTTPServer
	reg     *prometheus.Registry
}

func TestAdmissionAPI(t *testing.T) {
	suite.Run(t, new(AdmissionAPITestSuite))
}

func (s *AdmissionAPITestSuite) SetupTest() {
	s.clock = testutil.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	var err error
	s.limiter, err = windowlimit.NewWithOpts(5, time.Minute, windowlimit.Opts{Clock: s.clock})
	s.Require().NoError(err)
	s.reg = prometheus.NewRegistry()
	s.server, err = New(NewDefaultConfig(), s.limiter, log.NewDisabledLogger(), Opts{Registry: s.reg})
	s.Require().NoError(err)
}

func (s *AdmissionAPITestSuite) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for name, values := range header {
		req.Header[name] = values
	}
	resp := httptest.NewRecorder()
	s.server.HTTPServer.Handler.ServeHTTP(resp, req)
	return resp
}

func (s *AdmissionAPITestSuite) TestAdmit() {
	for i := 1; i <= 5; i++ {
		var respData AdmissionResponse
		resp := s.do(http.MethodPost, "/api/v1/admissions/user_123", nil)
		testutil.RequireJSONInRecorder(s.T(), resp, http.StatusOK, &respData)
		s.Require().Equal(AdmissionResponse{Key: "user_123", Allowed: true, Count: i}, respData)
		s.clock.Advance(time.Second)
	}

	var respData AdmissionResponse
	testutil.RequireJSONInRecorder(s.T(), s.do(http.MethodPost, "/api/v1/admissions/user_123", nil), http.StatusOK, &respData)
	s.Require().Equal(AdmissionResponse{Key: "user_123", Allowed: false, Count: 5, RetryAfterMs: 55001}, respData)

	s.clock.Advance(56 * time.Second)
	testutil.RequireJSONInRecorder(s.T(), s.do(http.MethodPost, "/api/v1/admissions/user_123", nil), http.StatusOK, &respData)
	s.Require().True(respData.Allowed)
	s.Require().Equal(5, respData.Count)
}

func (s *AdmissionAPITestSuite) TestAdmit_ConcurrentRequestsReportOwnCount() {
	const callers = 40
	responses := make([]*httptest.ResponseRecorder, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			responses[i] = s.do(http.MethodPost, "/api/v1/admissions/user_123", nil)
		}(i)
	}
	close(start)
	wg.Wait()

	admittedCounts := make(map[int]int)
	for _, resp := range responses {
		s.Require().Equal(http.StatusOK, resp.Code)
		var respData AdmissionResponse
		s.Require().NoError(json.Unmarshal(resp.Body.Bytes(), &respData))
		s.Require().LessOrEqual(respData.Count, 5)
		if respData.Allowed {
			admittedCounts[respData.Count]++
		} else {
			s.Require().Equal(5, respData.Count)
			s.Require().Equal(int64(60001), respData.RetryAfterMs)
		}
	}
	s.Require().Equal(map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1}, admittedCounts)
}

func (s *AdmissionAPITestSuite) TestUsage() {
	var respData UsageResponse
	testutil.RequireJSONInRecorder(s.T(), s.do(http.MethodGet, "/api/v1/admissions/user_123", nil), http.StatusOK, &respData)
	s.Require().Equal(UsageResponse{Key: "user_123", Count: 0, Limit: 5, WindowMs: 60000}, respData)
	s.Require().Equal(0, s.limiter.Len(), "reading usage must not create a key")

	s.do(http.MethodPost, "/api/v1/admissions/user_123", nil)
	s.do(http.MethodPost, "/api/v1/admissions/user_123", nil)
	testutil.RequireJSONInRecorder(s.T(), s.do(http.MethodGet, "/api/v1/admissions/user_123", nil), http.StatusOK, &respData)
	s.Require().Equal(2, respData.Count)
}

func (s *AdmissionAPITestSuite) TestProtected() {
	header := http.Header{"X-Client-Id": []string{"user_123"}}
	for i := 0; i < 5; i++ {
		s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/protected", header).Code)
	}
	resp := s.do(http.MethodGet, "/api/v1/protected", header)
	testutil.RequireErrorInRecorder(s.T(), resp, http.StatusTooManyRequests, DefaultErrorDomain, restapi.ErrCodeTooManyRequests)
	s.Require().Equal("61", resp.Header().Get("Retry-After"))

	// The protected resource shares history with the admission API.
	var respData UsageResponse
	testutil.RequireJSONInRecorder(s.T(), s.do(http.MethodGet, "/api/v1/admissions/user_123", nil), http.StatusOK, &respData)
	s.Require().Equal(5, respData.Count)

	// Requests without the key header are not limited.
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/protected", nil).Code)
}

func (s *AdmissionAPITestSuite) TestNotFoundAndMethodNotAllowed() {
	testutil.RequireErrorInRecorder(s.T(), s.do(http.MethodGet, "/api/v2/admissions/user_123", nil),
		http.StatusNotFound, DefaultErrorDomain, restapi.ErrCodeNotFound)
	testutil.RequireErrorInRecorder(s.T(), s.do(http.MethodDelete, "/api/v1/admissions/user_123", nil),
		http.StatusMethodNotAllowed, DefaultErrorDomain, restapi.ErrCodeMethodNotAllowed)
}

func (s *AdmissionAPITestSuite) TestMetrics() {
	s.do(http.MethodPost, "/api/v1/admissions/user_123", nil)
	s.do(http.MethodGet, "/healthz", nil)

	resp := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, resp.Code)
	body := resp.Body.String()
	s.Require().Contains(body, `http_request_duration_seconds_count{method="POST",route_pattern="/api/v1/admissions/{key}",status_code="200"} 1`)
	s.Require().NotContains(body, `route_pattern="/healthz"`)
}

func TestNew_InvalidProtectedConfig(t *testing.T) {
	limiter, err := windowlimit.New(5, time.Minute)
	require.NoError(t, err)
	cfg := NewDefaultConfig()
	cfg.Protected.Alg = "token_bucket"
	_, err = New(cfg, limiter, log.NewDisabledLogger(), Opts{})
	require.ErrorContains(t, err, `unknown rate limiting algorithm "token_bucket"`)
}

func TestHTTPServer_Run(t *testing.T) {
	limiter, err := windowlimit.New(2, time.Minute)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logRecorder := logtest.NewRecorder()
	srv, err := New(NewDefaultConfig(), limiter, logRecorder, Opts{Listener: listener})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.GetPort() != 0 }, time.Second*5, time.Millisecond*10)
	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/admissions/user_123", srv.GetPort())

	for _, wantAllowed := range []bool{true, true, false} {
		httpResp, postErr := http.Post(url, "application/json", strings.NewReader(""))
		require.NoError(t, postErr)
		body, readErr := io.ReadAll(httpResp.Body)
		require.NoError(t, readErr)
		require.NoError(t, httpResp.Body.Close())
		require.Equal(t, http.StatusOK, httpResp.StatusCode)

		var respData AdmissionResponse
		require.NoError(t, json.Unmarshal(body, &respData))
		require.Equal(t, wantAllowed, respData.Allowed)
	}

	cancel()
	select {
	case err = <-runErr:
		require.NoError(t, err)
	case <-time.After(time.Second * 10):
		t.Fatal("server was not shut down")
	}
	_, found := logRecorder.FindEntry("application HTTP server shut down")
	require.True(t, found)
}

func TestHTTPServer_RunListenError(t *testing.T) {
	limiter, err := windowlimit.New(2, time.Minute)
	require.NoError(t, err)
	cfg := NewDefaultConfig()
	cfg.Address = "invalid-address"
	srv, err := New(cfg, limiter, log.NewDisabledLogger(), Opts{})
	require.NoError(t, err)
	require.ErrorContains(t, srv.Run(context.Background()), "listen invalid-address")
}
