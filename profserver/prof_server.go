/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides an HTTP server exposing pprof handlers.
package profserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/service"
)

const readHeaderTimeout = 5 * time.Second

// ProfServer represents HTTP server for profiling. pprof is used under the hood.
// It implements service.Worker interface.
type ProfServer struct {
	HTTPServer *http.Server
	Logger     log.FieldLogger

	listener net.Listener
}

var _ service.Worker = (*ProfServer)(nil)

// New creates a new HTTP server (pprof) for profiling.
// If listener is nil, the server listens on cfg.Address when it is run.
func New(cfg *Config, logger log.FieldLogger, listener net.Listener) *ProfServer {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.LoggingWithOpts(logger, middleware.LoggingOpts{RequestStart: true}),
	)
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		HTTPServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		Logger:   logger,
		listener: listener,
	}
}

// Run serves profiling requests until ctx is cancelled. The server is always closed in a non-graceful way.
func (s *ProfServer) Run(ctx context.Context) error {
	if s.listener == nil {
		listener, err := net.Listen("tcp", s.HTTPServer.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.HTTPServer.Addr, err)
		}
		s.listener = listener
	}
	logger := s.Logger.With(log.String("address", s.listener.Addr().String()))
	logger.Info("starting profiling HTTP server...")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.HTTPServer.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("profiling HTTP server error", log.Error(err))
		return fmt.Errorf("serve profiling HTTP: %w", err)
	case <-ctx.Done():
	}

	logger.Info("closing profiling HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-serveErr
	logger.Info("profiling HTTP server closed")
	return nil
}
