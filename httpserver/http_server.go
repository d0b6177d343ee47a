/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/service"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// DefaultErrorDomain is used in error responses if Opts.ErrorDomain is empty.
const DefaultErrorDomain = "WindowLimit"

// systemEndpoints are not involved in metrics collecting.
var systemEndpoints = []string{"/metrics", "/healthz"}

// Opts represents options for creating HTTPServer.
type Opts struct {
	// ErrorDomain is used for error response formatting.
	ErrorDomain string
	// Registry is used for registering HTTP metrics and is exposed on /metrics.
	// A new registry is created if nil.
	Registry *prometheus.Registry
	// MetricsNamespace is a namespace of HTTP metrics.
	MetricsNamespace string
	// HealthCheck is called on /healthz. The limiter is always reported as a healthy component.
	HealthCheck HealthCheck
	// Listener is a pre-configured network listener to use instead of creating a new one.
	Listener net.Listener
}

// HTTPServer serves the admission API over the Limiter.
// It implements service.Worker, so it can be run within service.Service.
type HTTPServer struct {
	HTTPServer      *http.Server
	HTTPRouter      chi.Router
	Logger          log.FieldLogger
	ShutdownTimeout time.Duration

	listener net.Listener
	port     atomic.Int32
}

var _ service.Worker = (*HTTPServer)(nil)

// New creates a new HTTPServer with predefined logging, metrics collecting,
// recovering after panics and health-checking functionality.
func New(cfg *Config, limiter *windowlimit.Limiter, logger log.FieldLogger, opts Opts) (*HTTPServer, error) {
	if opts.ErrorDomain == "" {
		opts.ErrorDomain = DefaultErrorDomain
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	protectedRateLimit, err := makeProtectedRateLimitMiddleware(cfg.Protected, limiter, opts.ErrorDomain)
	if err != nil {
		return nil, err
	}

	metricsCollector := middleware.NewHTTPRequestMetricsCollector(opts.MetricsNamespace)
	if err = registerCollector(opts.Registry, metricsCollector.Durations, metricsCollector.InFlight); err != nil {
		return nil, fmt.Errorf("register HTTP request metrics: %w", err)
	}

	router := chi.NewRouter()
	router.Use(
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(rw, r.WithContext(middleware.NewContextWithRequestStartTime(r.Context(), time.Now())))
			})
		},
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{
			RequestStart:      cfg.Log.RequestStart,
			ExcludedEndpoints: cfg.Log.ExcludedEndpoints,
		}),
		middleware.Recovery(opts.ErrorDomain),
		middleware.HTTPRequestMetrics(metricsCollector, GetChiRoutePattern, systemEndpoints...),
	)
	configureRouter(router, limiter, logger, RouterOpts{
		ErrorDomain:        opts.ErrorDomain,
		HealthCheck:        opts.HealthCheck,
		MetricsGatherer:    opts.Registry,
		ProtectedRateLimit: protectedRateLimit,
	})

	return &HTTPServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			WriteTimeout:      cfg.Timeouts.Write,
			ReadTimeout:       cfg.Timeouts.Read,
			ReadHeaderTimeout: cfg.Timeouts.ReadHeader,
			IdleTimeout:       cfg.Timeouts.Idle,
			Handler:           router,
		},
		HTTPRouter:      router,
		Logger:          logger,
		ShutdownTimeout: cfg.Timeouts.Shutdown,
		listener:        opts.Listener,
	}, nil
}

func makeProtectedRateLimitMiddleware(
	cfg ProtectedConfig, limiter *windowlimit.Limiter, errDomain string,
) (func(http.Handler) http.Handler, error) {
	opts := middleware.RateLimitOpts{
		Alg:                cfg.Alg,
		GetKey:             middleware.RateLimitKeyByHeader(cfg.KeyHeader, false),
		IncludedKeys:       cfg.IncludedKeys,
		ExcludedKeys:       cfg.ExcludedKeys,
		DryRun:             cfg.DryRun,
		BacklogLimit:       cfg.BacklogLimit,
		BacklogTimeout:     cfg.BacklogTimeout,
		ResponseStatusCode: cfg.ResponseStatusCode,
	}
	if cfg.Alg == "" || cfg.Alg == middleware.RateLimitAlgSlidingLog {
		// The protected resource and the admission API share the same history.
		opts.Limiter = middleware.NewSharedSlidingLogLimiter(limiter)
	}
	maxRate := middleware.Rate{Count: limiter.Limit(), Duration: limiter.Window()}
	mw, err := middleware.RateLimitWithOpts(maxRate, errDomain, opts)
	if err != nil {
		return nil, fmt.Errorf("create rate limit middleware for protected resource: %w", err)
	}
	return mw, nil
}

func registerCollector(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails.
// On cancellation, the server is shut down gracefully within ShutdownTimeout.
func (s *HTTPServer) Run(ctx context.Context) error {
	logger := s.Logger.With(
		log.String("address", s.HTTPServer.Addr),
		log.Duration("write_timeout", s.HTTPServer.WriteTimeout),
		log.Duration("read_timeout", s.HTTPServer.ReadTimeout),
		log.Duration("shutdown_timeout", s.ShutdownTimeout),
	)

	if s.listener == nil {
		listener, err := net.Listen("tcp", s.HTTPServer.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.HTTPServer.Addr, err)
		}
		s.listener = listener
	}
	if err := s.storePort(); err != nil {
		_ = s.listener.Close()
		return err
	}

	logger.Info("starting application HTTP server...", log.Int("port", s.GetPort()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.HTTPServer.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("application HTTP server error", log.Error(err))
		return fmt.Errorf("serve HTTP: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down application HTTP server...")
	if err := s.HTTPServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("application HTTP server shutting down error", log.Error(err))
		_ = s.HTTPServer.Close()
		return fmt.Errorf("shut down HTTP server: %w", err)
	}
	<-serveErr
	logger.Info("application HTTP server shut down")
	return nil
}

func (s *HTTPServer) storePort() error {
	if s.listener.Addr().Network() != "tcp" {
		return nil
	}
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return fmt.Errorf("unexpected format of TCP listener address: %w", err)
	}
	port, err := strconv.ParseInt(portStr, 10, 32)
	if err != nil {
		return fmt.Errorf("unexpected format of TCP listener address: no numeric port: %w", err)
	}
	s.port.Store(int32(port))
	return nil
}

// GetPort returns the TCP port the server listens on, or 0 if the server is not started yet.
func (s *HTTPServer) GetPort() int {
	return int(s.port.Load())
}
