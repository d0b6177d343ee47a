/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/windowlimit/go-windowlimit/httpserver"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/log/logtest"
	"github.com/windowlimit/go-windowlimit/testutil"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

type AdmissionClientTestSuite struct {
	suite.Suite
	clock   *testutil.FakeClock
	limiter *windowlimit.Limiter
	server  *httptest.Server
}

func TestAdmissionClient(t *testing.T) {
	suite.Run(t, new(AdmissionClientTestSuite))
}

func (s *AdmissionClientTestSuite) SetupTest() {
	s.clock = testutil.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	var err error
	s.limiter, err = windowlimit.NewWithOpts(2, time.Minute, windowlimit.Opts{Clock: s.clock})
	s.Require().NoError(err)
	srv, err := httpserver.New(httpserver.NewDefaultConfig(), s.limiter, log.NewDisabledLogger(), httpserver.Opts{})
	s.Require().NoError(err)
	s.server = httptest.NewServer(srv.HTTPServer.Handler)
}

func (s *AdmissionClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *AdmissionClientTestSuite) TestAdmitAndUsage() {
	client, err := NewAdmissionClient(s.server.URL+"/", nil)
	s.Require().NoError(err)
	ctx := context.Background()

	usage, err := client.Usage(ctx, "user 1")
	s.Require().NoError(err)
	s.Require().Equal(httpserver.UsageResponse{Key: "user 1", Count: 0, Limit: 2, WindowMs: 60000}, usage)

	for i := 1; i <= 2; i++ {
		resp, admitErr := client.Admit(ctx, "user 1")
		s.Require().NoError(admitErr)
		s.Require().Equal(httpserver.AdmissionResponse{Key: "user 1", Allowed: true, Count: i}, resp)
	}
	s.clock.Advance(20 * time.Second)
	resp, err := client.Admit(ctx, "user 1")
	s.Require().NoError(err)
	s.Require().Equal(httpserver.AdmissionResponse{Key: "user 1", Allowed: false, Count: 2, RetryAfterMs: 40001}, resp)

	usage, err = client.Usage(ctx, "user 1")
	s.Require().NoError(err)
	s.Require().Equal(2, usage.Count)

	_, err = client.Admit(ctx, "")
	s.Require().EqualError(err, "key cannot be empty")
}

func (s *AdmissionClientTestSuite) TestUnexpectedStatus() {
	client, err := NewAdmissionClient(s.server.URL+"/unknown", nil)
	s.Require().NoError(err)
	_, err = client.Admit(context.Background(), "user_123")
	var statusErr *UnexpectedStatusError
	s.Require().True(errors.As(err, &statusErr))
	s.Require().Equal(http.StatusNotFound, statusErr.StatusCode)
	s.Require().Contains(statusErr.Body, `"notFound"`)
}

func (s *AdmissionClientTestSuite) TestInvalidBaseURL() {
	_, err := NewAdmissionClient("ftp://127.0.0.1", nil)
	s.Require().EqualError(err, `base url "ftp://127.0.0.1" should have http or https scheme`)
}

// The protected resource rejects with 429 and Retry-After, the retrying client waits exactly that long.
func (s *AdmissionClientTestSuite) TestProtectedResourceWithRetries() {
	logger := logtest.NewRecorder()
	var sleeps []time.Duration
	client, err := New(Opts{
		Logger:           logger,
		MaxRetryAttempts: 2,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			s.clock.Advance(d)
			return nil
		},
	})
	s.Require().NoError(err)

	get := func() int {
		req, reqErr := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/protected", nil)
		s.Require().NoError(reqErr)
		req.Header.Set("X-Client-ID", "user_123")
		resp, doErr := client.Do(req)
		s.Require().NoError(doErr)
		s.Require().NoError(resp.Body.Close())
		return resp.StatusCode
	}
	s.Require().Equal(http.StatusOK, get())
	s.Require().Equal(http.StatusOK, get())
	s.Require().Empty(sleeps)

	s.Require().Equal(http.StatusOK, get())
	s.Require().Equal([]time.Duration{61 * time.Second}, sleeps)
	_, found := logger.FindEntry("attempt 1 failed")
	s.Require().True(found)
	s.Require().Equal(1, s.limiter.CurrentCount("user_123"))
}
