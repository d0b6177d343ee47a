/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/windowlimit/go-windowlimit/httpserver"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/lrucache"
	"github.com/windowlimit/go-windowlimit/profserver"
	"github.com/windowlimit/go-windowlimit/service"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

const metricsNamespace = "windowlimit"

func newServeCommand(env Env, rootFlags *rootFlags) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admission HTTP API",
		Long: `Serves POST/GET /api/v1/admissions/{key}, a rate limited /api/v1/protected resource,
/healthz and /metrics until SIGINT or SIGTERM is received.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(rootFlags)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if address != "" {
				cfg.Server.Address = address
			}
			logger, closeLogger := log.NewLogger(cfg.Log)
			defer closeLogger()
			return runServer(cmd.Context(), env, cfg, logger, nil)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "address to listen on, overrides the config")
	return cmd
}

func runServer(ctx context.Context, env Env, cfg *appConfig, logger log.FieldLogger, listener net.Listener) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiterMetrics := windowlimit.NewPrometheusMetricsWithOpts(windowlimit.PrometheusMetricsOpts{Namespace: metricsNamespace})
	limiterMetrics.MustRegister(reg)
	limiterOpts := windowlimit.Opts{Clock: env.Clock, MetricsCollector: limiterMetrics}
	if cfg.RateLimit.MaxKeys != 0 {
		keysMetrics := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace: metricsNamespace, ConstLabels: prometheus.Labels{"cache": "limiter_keys"},
		})
		keysMetrics.MustRegister(reg)
		limiterOpts.KeysMetricsCollector = keysMetrics
	}
	limiter, err := windowlimit.NewFromConfig(cfg.RateLimit, limiterOpts)
	if err != nil {
		return fmt.Errorf("create limiter: %w", err)
	}

	srv, err := httpserver.New(cfg.Server, limiter, logger, httpserver.Opts{
		Registry:         reg,
		MetricsNamespace: metricsNamespace,
		Listener:         listener,
	})
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}

	workers := []service.Worker{srv}
	if cfg.ProfServer.Enabled {
		workers = append(workers, profserver.New(cfg.ProfServer, logger, nil))
	}
	if cfg.RateLimit.SweepInterval > 0 {
		workers = append(workers, service.NewSweepWorker(limiter, cfg.RateLimit.SweepInterval, logger))
	}
	logger.Info("starting admission service",
		log.Int("limit", limiter.Limit()),
		log.Duration("window", limiter.Window()),
		log.Int("max_keys", cfg.RateLimit.MaxKeys),
	)
	return service.New(logger, workers...).Run(ctx)
}
