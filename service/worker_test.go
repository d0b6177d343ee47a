/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/log/logtest"
)

func TestPeriodicWorker_Run(t *testing.T) {
	t.Run("run and stop by context timeout", func(t *testing.T) {
		const iterations = 5

		var c atomic.Int32
		periodicWorker := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			c.Add(1)
			return nil
		}), time.Millisecond*100, log.NewDisabledLogger())

		ctx, ctxCancel := context.WithTimeout(context.Background(), time.Millisecond*100*iterations)
		defer ctxCancel()

		require.NoError(t, periodicWorker.Run(ctx))
		require.GreaterOrEqual(t, int(c.Load()), iterations)
		// the last iteration may start right before the context is canceled
		require.LessOrEqual(t, int(c.Load()), iterations+1)
		require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	})

	t.Run("run and stop by error", func(t *testing.T) {
		c := 0
		periodicWorker := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			c++
			if c == 2 {
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Millisecond*10, log.NewDisabledLogger())
		ctx, ctxCancel := context.WithTimeout(context.Background(), time.Minute)
		defer ctxCancel()

		require.NoError(t, periodicWorker.Run(ctx))
		require.Equal(t, 2, c)
		require.NoError(t, ctx.Err())
	})

	t.Run("failed run uses interval delay func", func(t *testing.T) {
		var delays []error
		c := 0
		periodicWorker := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
			c++
			switch c {
			case 1:
				return errors.New("non-stop error")
			case 3:
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Hour, log.NewDisabledLogger(), PeriodicWorkerOpts{
			IntervalDelayFunc: func(err error) time.Duration {
				delays = append(delays, err)
				return time.Millisecond
			},
		})

		require.NoError(t, periodicWorker.Run(context.Background()))
		require.Equal(t, 3, c)
		require.Len(t, delays, 2)
		require.EqualError(t, delays[0], "non-stop error")
		require.NoError(t, delays[1])
	})
}

type sweeperMock struct {
	calls atomic.Int32
}

func (s *sweeperMock) Sweep() int {
	return int(s.calls.Add(1))
}

func TestSweepWorker(t *testing.T) {
	sweeper := &sweeperMock{}
	logRecorder := logtest.NewRecorder()
	worker := NewSweepWorker(sweeper, time.Millisecond*20, logRecorder)

	ctx, ctxCancel := context.WithTimeout(context.Background(), time.Millisecond*110)
	defer ctxCancel()
	require.NoError(t, worker.Run(ctx))

	require.GreaterOrEqual(t, int(sweeper.calls.Load()), 3)
	swept := logRecorder.FindAllEntriesByFilter(func(e logtest.RecordedEntry) bool { return e.Text == "idle keys swept" })
	require.Len(t, swept, int(sweeper.calls.Load()))
	entry, found := logRecorder.FindEntry("running periodic worker")
	require.True(t, found)
	require.Equal(t, "sweeper", entry.FieldString("worker"))
}
