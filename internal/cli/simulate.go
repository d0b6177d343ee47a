/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/retry"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

const timeLayout = "15:04:05"

var errRequestRejected = errors.New("request rejected")

type simulateFlags struct {
	limit         int
	window        time.Duration
	requests      int
	key           string
	wait          time.Duration
	rps           float64
	retries       int
	retryInterval time.Duration
}

func newSimulateCommand(env Env, rootFlags *rootFlags) *cobra.Command {
	flags := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Send a burst of requests for one key through the limiter and print every decision",
		Long: `Sends --requests requests for --key through a sliding window limiter, prints the decision
and the number of admissions in the window for every request, then waits until the window slides
and sends one more request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(rootFlags)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("limit") {
				flags.limit = cfg.RateLimit.Limit
			}
			if !cmd.Flags().Changed("window") {
				flags.window = cfg.RateLimit.Window
			}
			logger, closeLogger := log.NewLoggerWithWriter(cfg.Log, env.Stderr)
			defer closeLogger()
			return runSimulation(cmd.Context(), env, flags, logger)
		},
	}
	cmd.Flags().IntVar(&flags.limit, "limit", windowlimit.DefaultLimit, "maximum admissions per key within the window")
	cmd.Flags().DurationVar(&flags.window, "window", windowlimit.DefaultWindow, "duration of the sliding window")
	cmd.Flags().IntVar(&flags.requests, "requests", 10, "number of requests to send")
	cmd.Flags().StringVar(&flags.key, "key", "user_123", "key the requests are counted against")
	cmd.Flags().DurationVar(&flags.wait, "wait", 0, "pause before the final request (default: window + 1s)")
	cmd.Flags().Float64Var(&flags.rps, "rps", 0, "pace requests to this rate per second (0 - send as fast as possible)")
	cmd.Flags().IntVar(&flags.retries, "retry", 0, "retry a rejected request up to this many times")
	cmd.Flags().DurationVar(&flags.retryInterval, "retry-interval", time.Second, "pause between retries of a rejected request")
	return cmd
}

func runSimulation(ctx context.Context, env Env, flags *simulateFlags, logger log.FieldLogger) error {
	if flags.requests < 0 {
		return fmt.Errorf("requests should not be negative, got %d", flags.requests)
	}
	if flags.rps < 0 {
		return fmt.Errorf("rps should not be negative, got %v", flags.rps)
	}
	if flags.retries < 0 {
		return fmt.Errorf("retry should not be negative, got %d", flags.retries)
	}

	limiter, err := windowlimit.NewWithOpts(flags.limit, flags.window, windowlimit.Opts{Clock: env.Clock})
	if err != nil {
		return err
	}
	sim := &simulation{env: env, flags: flags, limiter: limiter, logger: logger.With(log.Key(flags.key))}

	var pacer *rate.Limiter
	if flags.rps > 0 {
		pacer = rate.NewLimiter(rate.Limit(flags.rps), 1)
	}

	fmt.Fprintf(env.Stdout, "Simulating %d requests for key %q (limit %d per %s)\n",
		flags.requests, flags.key, flags.limit, flags.window)

	admitted := 0
	for i := 1; i <= flags.requests; i++ {
		if pacer != nil {
			now := env.Clock.Now()
			if err = env.Sleep(ctx, pacer.ReserveN(now, 1).DelayFrom(now)); err != nil {
				return err
			}
		}
		allowed, sendErr := sim.send(ctx)
		if sendErr != nil {
			return sendErr
		}
		if allowed {
			admitted++
		}
		sim.printDecision(fmt.Sprintf("[%d]", i), allowed)
	}
	fmt.Fprintf(env.Stdout, "Admitted %d of %d requests\n", admitted, flags.requests)

	wait := flags.wait
	if wait <= 0 {
		wait = flags.window + time.Second
	}
	fmt.Fprintf(env.Stdout, "Waiting %s for the window to slide...\n", wait)
	if err = env.Sleep(ctx, wait); err != nil {
		return err
	}
	sim.printDecision("[after wait]", limiter.Allow(flags.key))
	return nil
}

type simulation struct {
	env     Env
	flags   *simulateFlags
	limiter *windowlimit.Limiter
	logger  log.FieldLogger
}

// send makes one admission attempt, retrying a rejected request if retries are enabled.
func (s *simulation) send(ctx context.Context) (bool, error) {
	if s.flags.retries == 0 {
		return s.limiter.Allow(s.flags.key), nil
	}

	attempt := 0
	var sleepErr error
	err := retry.DoWithRetryOpts(ctx, retry.NewConstantBackoffPolicy(s.flags.retryInterval, s.flags.retries), retry.Opts{
		IsRetryable: func(err error) bool { return errors.Is(err, errRequestRejected) },
		Notify: func(err error, d time.Duration) {
			attempt++
			s.logger.Info("request rejected, retrying", log.Int("attempt", attempt), log.Duration("backoff", d))
		},
		Sleep: func(d time.Duration) {
			if err := s.env.Sleep(ctx, d); err != nil && sleepErr == nil {
				sleepErr = err
			}
		},
	}, func(ctx context.Context) error {
		// An interrupted wait stops the retries, the request is not attempted again.
		if sleepErr != nil {
			return sleepErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.limiter.Allow(s.flags.key) {
			return nil
		}
		return errRequestRejected
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errRequestRejected):
		s.logger.Warn("request rejected, retry attempts exhausted", log.Int("attempts", attempt))
		return false, nil
	default:
		return false, err
	}
}

func (s *simulation) printDecision(label string, allowed bool) {
	printDecision(s.env.Stdout, label, s.env.Clock.Now(), allowed, s.limiter.CurrentCount(s.flags.key))
}

func printDecision(w io.Writer, label string, at time.Time, allowed bool, count int) {
	fmt.Fprintf(w, "%s %s allowed=%t count_in_window=%d\n", label, at.Format(timeLayout), allowed, count)
}
