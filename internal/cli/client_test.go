/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"net/http/httptest"
	"time"

	"github.com/windowlimit/go-windowlimit/httpserver"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

func (s *CLITestSuite) startServer(limit int) (*windowlimit.Limiter, *httptest.Server) {
	limiter, err := windowlimit.NewWithOpts(limit, time.Minute, windowlimit.Opts{Clock: s.clock})
	s.Require().NoError(err)
	srv, err := httpserver.New(httpserver.NewDefaultConfig(), limiter, log.NewDisabledLogger(), httpserver.Opts{})
	s.Require().NoError(err)
	server := httptest.NewServer(srv.HTTPServer.Handler)
	s.T().Cleanup(server.Close)
	return limiter, server
}

func (s *CLITestSuite) TestFetch() {
	limiter, server := s.startServer(1)
	target := server.URL + "/api/v1/protected"

	s.Require().NoError(s.execute("", "fetch", target, "-H", "X-Client-ID: user_123"))
	s.Require().Equal("HTTP 200 OK\n{\"status\":\"ok\"}\n", s.stdout.String())

	// Rejected with Retry-After: 61, the next attempt happens after the fake clock moved.
	s.stdout.Reset()
	s.Require().NoError(s.execute("", "fetch", target, "-H", "X-Client-ID: user_123"))
	s.Require().Equal("HTTP 200 OK\n{\"status\":\"ok\"}\n", s.stdout.String())
	s.Require().Equal(time.Date(2025, 3, 1, 10, 1, 1, 0, time.UTC), s.clock.Now())
	s.Require().Contains(s.stderr.String(), "attempt 1 failed")
	s.Require().Equal(1, limiter.CurrentCount("user_123"))

	s.stdout.Reset()
	err := s.execute("", "fetch", target, "-H", "X-Client-ID: user_123", "--max-attempts", "1")
	s.Require().EqualError(err, "all 1 attempts failed, last status: 429 Too Many Requests")
	s.Require().Contains(s.stdout.String(), "HTTP 429 Too Many Requests\n")
	s.Require().Contains(s.stdout.String(), `"tooManyRequests"`)
}

func (s *CLITestSuite) TestFetchErrors() {
	_, server := s.startServer(1)

	err := s.execute("", "fetch", server.URL+"/api/v1/unknown")
	s.Require().EqualError(err, "request failed with status 404 Not Found")

	err = s.execute("", "fetch", server.URL, "-H", "no-colon")
	s.Require().EqualError(err, `header "no-colon" should be in "Name: value" form`)

	err = s.execute("", "fetch", server.URL, "--max-attempts", "0")
	s.Require().EqualError(err, "max-attempts should be positive, got 0")

	err = s.execute("", "fetch", "http://127.0.0.1:1/", "--max-attempts", "1")
	s.Require().ErrorContains(err, "all 1 attempts failed, last error:")
}

func (s *CLITestSuite) TestAdmit() {
	_, server := s.startServer(2)
	args := []string{"admit", "user_123", "--server", server.URL}

	s.Require().NoError(s.execute("", args...))
	s.Require().NoError(s.execute("", args...))
	s.Require().NoError(s.execute("", args...))
	s.Require().Equal(`key="user_123" allowed=true count_in_window=1
key="user_123" allowed=true count_in_window=2
key="user_123" allowed=false count_in_window=2 retry_after=1m0.001s
`, s.stdout.String())

	s.stdout.Reset()
	s.Require().NoError(s.execute("", append(args, "--wait")...))
	s.Require().Equal(`key="user_123" allowed=false count_in_window=2 retry_after=1m0.001s
key="user_123" allowed=true count_in_window=1
`, s.stdout.String())
	s.Require().Contains(s.stderr.String(), "request rejected, waiting for the window to slide")

	s.stdout.Reset()
	s.Require().NoError(s.execute("", append(args, "--usage")...))
	s.Require().Equal("key=\"user_123\" count_in_window=1 limit=2 window=1m0s\n", s.stdout.String())
}

func (s *CLITestSuite) TestServerURLFromAddress() {
	s.Require().Equal("http://127.0.0.1:8080", serverURLFromAddress(":8080"))
	s.Require().Equal("http://localhost:9090", serverURLFromAddress("localhost:9090"))
}
