/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package cli implements the windowlimit command-line tool.
package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/windowlimit/go-windowlimit/config"
	"github.com/windowlimit/go-windowlimit/httpserver"
	"github.com/windowlimit/go-windowlimit/internal/libinfo"
	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/profserver"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// EnvVarsPrefix is a prefix of environment variables that override configuration values
// (e.g. WINDOWLIMIT_RATELIMIT_LIMIT).
const EnvVarsPrefix = "WINDOWLIMIT"

// Env contains dependencies of commands. Zero fields are replaced with the process defaults.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Clock  windowlimit.Clock
	// Sleep blocks for the given duration. It should return early with ctx.Err() if ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e *Env) setDefaults() {
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Clock == nil {
		e.Clock = windowlimit.SystemClock
	}
	if e.Sleep == nil {
		e.Sleep = sleepWithContext
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type rootFlags struct {
	configFile string
	logLevel   string
}

// NewRootCommand creates the root command with all subcommands.
func NewRootCommand(env Env) *cobra.Command {
	env.setDefaults()
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "windowlimit",
		Short:         "Per-key sliding window rate limiter",
		Long:          "windowlimit admits at most N requests per key within any trailing time window.",
		Version:       libinfo.GetLibVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(env.Stdin)
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"log level (error, warn, info, debug), overrides the config")

	rootCmd.AddCommand(
		newSimulateCommand(env, flags),
		newAnalyzeCommand(env),
		newServeCommand(env, flags),
		newConfigCommand(env, flags),
		newFetchCommand(env, flags),
		newAdmitCommand(env, flags),
	)
	return rootCmd
}

// Execute runs the root command with the process environment.
func Execute(ctx context.Context) error {
	return NewRootCommand(Env{}).ExecuteContext(ctx)
}

// appConfig is a set of all configuration objects of the tool.
type appConfig struct {
	Log        *log.Config         `yaml:"log"`
	RateLimit  *windowlimit.Config `yaml:"rateLimit"`
	Server     *httpserver.Config  `yaml:"server"`
	ProfServer *profserver.Config  `yaml:"profServer"`
}

func loadAppConfig(flags *rootFlags) (*appConfig, error) {
	cfg := &appConfig{
		Log:        log.NewConfig(),
		RateLimit:  windowlimit.NewConfig(),
		Server:     httpserver.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
	loader := config.NewDefaultLoader(EnvVarsPrefix)
	if flags.logLevel != "" {
		loader.DataProvider.Set(cfg.Log.KeyPrefix()+".level", flags.logLevel)
	}
	var err error
	if flags.configFile != "" {
		err = loader.LoadFromFile(flags.configFile, config.DataTypeYAML, cfg.Log, cfg.RateLimit, cfg.Server, cfg.ProfServer)
	} else {
		err = loader.Load(cfg.Log, cfg.RateLimit, cfg.Server, cfg.ProfServer)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
