/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/windowlimit/go-windowlimit/log"
)

// ErrPeriodicWorkerStop is an error that may be used for interrupting PeriodicWorker's loop.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorker represents a worker that runs underlying worker periodically.
type PeriodicWorker struct {
	name              string
	worker            Worker
	logger            log.FieldLogger
	initialDelay      time.Duration
	intervalDelay     time.Duration
	intervalDelayFunc func(err error) time.Duration
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	// Name is added to every log message of the worker.
	Name         string
	InitialDelay time.Duration
	// IntervalDelayFunc overrides the interval delay depending on the result of the last run.
	IntervalDelayFunc func(err error) time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with constant delays.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts creates a new instance of PeriodicWorker
// with an ability to specify different optional parameters.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	if opts.Name != "" {
		logger = logger.With(log.String("worker", opts.Name))
	}
	return &PeriodicWorker{
		name:              opts.Name,
		worker:            worker,
		logger:            logger,
		initialDelay:      opts.InitialDelay,
		intervalDelay:     intervalDelay,
		intervalDelayFunc: opts.IntervalDelayFunc,
	}
}

// Run runs PeriodicWorker loop until ctx is done or the underlying worker returns ErrPeriodicWorkerStop.
// Other errors of the underlying worker are logged and the loop goes on.
func (pw *PeriodicWorker) Run(ctx context.Context) (resErr error) {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			pw.logger.Error(fmt.Sprintf("panic: %+v", p), log.String("stack", string(stack)))
			panic(p)
		}
		pw.logger.Info("periodic worker stopped")
	}()

	pw.logger.Info("running periodic worker",
		log.Duration("initial_delay", pw.initialDelay), log.Duration("interval_delay", pw.intervalDelay))

	timer := time.NewTimer(pw.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		err := pw.worker.Run(ctx)
		if err != nil {
			if errors.Is(err, ErrPeriodicWorkerStop) {
				return nil
			}
			pw.logger.Error("periodically running worker finished with error", log.Error(err))
		}

		nextDelay := pw.intervalDelay
		if pw.intervalDelayFunc != nil {
			nextDelay = pw.intervalDelayFunc(err)
		}
		timer.Reset(nextDelay)
	}
}

// Sweeper forgets state that is no longer needed and reports how many entries were dropped.
type Sweeper interface {
	Sweep() int
}

// NewSweepWorker returns a PeriodicWorker that calls s.Sweep every interval.
func NewSweepWorker(s Sweeper, interval time.Duration, logger log.FieldLogger) *PeriodicWorker {
	sweep := WorkerFunc(func(ctx context.Context) error {
		if n := s.Sweep(); n > 0 {
			logger.Debug("idle keys swept", log.Int("dropped_keys", n))
		}
		return nil
	})
	return NewPeriodicWorkerWithOpts(sweep, interval, logger, PeriodicWorkerOpts{Name: "sweeper", InitialDelay: interval})
}
