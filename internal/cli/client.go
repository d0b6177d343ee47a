/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/windowlimit/go-windowlimit/httpclient"
	"github.com/windowlimit/go-windowlimit/internal/libinfo"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/retry"
)

const maxPrintedBodySize = 64 * 1024

type clientFlags struct {
	maxAttempts int
	delay       time.Duration
	rps         float64
	timeout     time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 3, "total number of attempts including the first one")
	cmd.Flags().DurationVar(&f.delay, "delay", time.Second, "pause between attempts when the server sends no Retry-After")
	cmd.Flags().Float64Var(&f.rps, "rps", 0, "pace requests to this rate per second (0 - no pacing)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "overall timeout including retries (0 - no timeout)")
}

func (f *clientFlags) newHTTPClient(env Env, logger log.FieldLogger, reqType string) (*http.Client, error) {
	if f.maxAttempts < 1 {
		return nil, fmt.Errorf("max-attempts should be positive, got %d", f.maxAttempts)
	}
	if f.delay < 0 {
		return nil, fmt.Errorf("delay should not be negative, got %s", f.delay)
	}
	if f.rps < 0 {
		return nil, fmt.Errorf("rps should not be negative, got %v", f.rps)
	}
	return httpclient.New(httpclient.Opts{
		Logger:           logger,
		RequestType:      reqType,
		UserAgent:        "windowlimit/" + libinfo.GetLibVersion(),
		Timeout:          f.timeout,
		MaxRetryAttempts: f.maxAttempts - 1,
		BackoffPolicy:    retry.NewConstantBackoffPolicy(f.delay, 0),
		RateLimit:        f.rps,
		Sleep:            env.Sleep,
	})
}

type fetchFlags struct {
	clientFlags
	method  string
	headers []string
	data    string
}

func newFetchCommand(env Env, rootFlags *rootFlags) *cobra.Command {
	flags := &fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Send an HTTP request, retrying it while the server rejects it",
		Long: `Sends an HTTP request and retries it on 429 and 5xx responses and on temporary network errors.
The pause before the next attempt is taken from the Retry-After header, --delay is used when there is none.
Prints the status and the body of the last response.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(rootFlags)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closeLogger := log.NewLoggerWithWriter(cfg.Log, env.Stderr)
			defer closeLogger()
			return runFetch(cmd.Context(), env, args[0], flags, logger)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, `request header in "Name: value" form, may be repeated`)
	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "request body")
	return cmd
}

func runFetch(ctx context.Context, env Env, target string, flags *fetchFlags, logger log.FieldLogger) error {
	client, err := flags.newHTTPClient(env, logger, "fetch")
	if err != nil {
		return err
	}
	var body io.Reader
	if flags.data != "" {
		body = strings.NewReader(flags.data)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(flags.method), target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for _, h := range flags.headers {
		name, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(name) == "" {
			return fmt.Errorf("header %q should be in \"Name: value\" form", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("all %d attempts failed, last error: %w", flags.maxAttempts, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxPrintedBodySize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	fmt.Fprintf(env.Stdout, "HTTP %s\n", resp.Status)
	if len(respBody) != 0 {
		fmt.Fprintln(env.Stdout, strings.TrimRight(string(respBody), "\n"))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("all %d attempts failed, last status: %s", flags.maxAttempts, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}

type admitFlags struct {
	clientFlags
	server string
	usage  bool
	wait   bool
}

func newAdmitCommand(env Env, rootFlags *rootFlags) *cobra.Command {
	flags := &admitFlags{}
	cmd := &cobra.Command{
		Use:   "admit KEY",
		Short: "Ask a running windowlimit server to admit one request for the key",
		Long: `Calls the admission API of a windowlimit server and prints the decision.
With --wait a rejected request is repeated after the delay reported by the server,
up to --max-attempts times. With --usage the current count is printed and nothing is recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(rootFlags)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("server") {
				flags.server = serverURLFromAddress(cfg.Server.Address)
			}
			logger, closeLogger := log.NewLoggerWithWriter(cfg.Log, env.Stderr)
			defer closeLogger()
			return runAdmit(cmd.Context(), env, args[0], flags, logger)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.server, "server", "", "base URL of the server (default: derived from server.address)")
	cmd.Flags().BoolVar(&flags.usage, "usage", false, "print the current count without recording an admission")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "repeat a rejected request after the delay reported by the server")
	return cmd
}

func serverURLFromAddress(address string) string {
	if strings.HasPrefix(address, ":") {
		address = "127.0.0.1" + address
	}
	return "http://" + address
}

func runAdmit(ctx context.Context, env Env, key string, flags *admitFlags, logger log.FieldLogger) error {
	httpClient, err := flags.newHTTPClient(env, logger, "admission")
	if err != nil {
		return err
	}
	client, err := httpclient.NewAdmissionClient(flags.server, httpClient)
	if err != nil {
		return err
	}

	if flags.usage {
		usage, usageErr := client.Usage(ctx, key)
		if usageErr != nil {
			return usageErr
		}
		fmt.Fprintf(env.Stdout, "key=%q count_in_window=%d limit=%d window=%s\n",
			usage.Key, usage.Count, usage.Limit, time.Duration(usage.WindowMs)*time.Millisecond)
		return nil
	}

	logger = logger.With(log.Key(key))
	for attempt := 1; ; attempt++ {
		resp, admitErr := client.Admit(ctx, key)
		if admitErr != nil {
			return admitErr
		}
		retryAfter := time.Duration(resp.RetryAfterMs) * time.Millisecond
		if resp.Allowed {
			fmt.Fprintf(env.Stdout, "key=%q allowed=true count_in_window=%d\n", resp.Key, resp.Count)
			return nil
		}
		fmt.Fprintf(env.Stdout, "key=%q allowed=false count_in_window=%d retry_after=%s\n", resp.Key, resp.Count, retryAfter)
		if !flags.wait || attempt >= flags.maxAttempts {
			return nil
		}
		logger.Info("request rejected, waiting for the window to slide",
			log.Int("attempt", attempt), log.Duration("wait", retryAfter))
		if err = env.Sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}
