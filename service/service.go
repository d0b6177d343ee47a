/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs a set of long-living workers as a single process lifecycle
// that ends on context cancellation, an OS shutdown signal or the first fatal error.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/windowlimit/go-windowlimit/log"
)

// Opts represents an options for Service.
type Opts struct {
	ShutdownSignals []os.Signal
}

// Service runs workers concurrently and stops all of them together.
type Service struct {
	Workers []Worker
	Signals chan os.Signal
	Logger  log.FieldLogger
	Opts    Opts
}

// New creates new Service which will run the passed workers and stop them on SIGINT or SIGTERM.
func New(logger log.FieldLogger, workers ...Worker) *Service {
	return NewWithOpts(logger, Opts{ShutdownSignals: []os.Signal{syscall.SIGINT, syscall.SIGTERM}}, workers...)
}

// NewWithOpts is a more configurable version of New.
func NewWithOpts(logger log.FieldLogger, opts Opts, workers ...Worker) *Service {
	return &Service{
		Workers: workers,
		Signals: make(chan os.Signal, 1),
		Logger:  logger,
		Opts:    opts,
	}
}

// Run starts all workers and blocks until ctx is done, a shutdown signal is received or any worker fails.
// In all cases the context passed to the workers is cancelled and Run waits for them to return.
// The first worker error (if any) is returned.
func (s *Service) Run(ctx context.Context) error {
	workersCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if len(s.Opts.ShutdownSignals) != 0 {
		signal.Notify(s.Signals, s.Opts.ShutdownSignals...)
		defer signal.Stop(s.Signals)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fatalErr := make(chan struct{})
	for _, w := range s.Workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			if err := w.Run(workersCtx); err != nil && !isStoppedByContext(workersCtx, err) {
				errOnce.Do(func() {
					firstErr = err
					close(fatalErr)
				})
			}
		}(w)
	}

	select {
	case <-ctx.Done():
		s.Logger.Info("context is canceled, service will be stopped")
	case sig := <-s.Signals:
		s.Logger.Info("service got signal", log.String("signal", sig.String()))
	case <-fatalErr:
		s.Logger.Error("service fatal error", log.Error(firstErr))
	}
	cancel()
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("fatal error: %w", firstErr)
	}
	return nil
}

// isStoppedByContext reports whether the worker error only reflects that its context is done.
// A deadline error is a failure unless the deadline belongs to the workers context itself.
func isStoppedByContext(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded)
}
