/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/windowlimit/go-windowlimit/config"
	"github.com/windowlimit/go-windowlimit/httpserver/middleware"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyServerAddress                     = "address"
	cfgKeyServerTimeoutsWrite               = "timeouts.write"
	cfgKeyServerTimeoutsRead                = "timeouts.read"
	cfgKeyServerTimeoutsReadHeader          = "timeouts.readHeader"
	cfgKeyServerTimeoutsIdle                = "timeouts.idle"
	cfgKeyServerTimeoutsShutdown            = "timeouts.shutdown"
	cfgKeyServerLogRequestStart             = "log.requestStart"
	cfgKeyServerLogExcludedEndpoints        = "log.excludedEndpoints"
	cfgKeyServerProtectedAlg                = "protected.alg"
	cfgKeyServerProtectedKeyHeader          = "protected.keyHeader"
	cfgKeyServerProtectedIncludedKeys       = "protected.includedKeys"
	cfgKeyServerProtectedExcludedKeys       = "protected.excludedKeys"
	cfgKeyServerProtectedDryRun             = "protected.dryRun"
	cfgKeyServerProtectedBacklogLimit       = "protected.backlogLimit"
	cfgKeyServerProtectedBacklogTimeout     = "protected.backlogTimeout"
	cfgKeyServerProtectedResponseStatusCode = "protected.responseStatusCode"
)

const (
	defaultServerAddress            = ":8080"
	defaultServerTimeoutsWrite      = time.Minute
	defaultServerTimeoutsRead       = time.Second * 15
	defaultServerTimeoutsReadHeader = time.Second * 10
	defaultServerTimeoutsIdle       = time.Minute
	defaultServerTimeoutsShutdown   = time.Second * 5
	defaultProtectedKeyHeader       = "X-Client-ID"
)

var availableRateLimitAlgs = []string{
	string(middleware.RateLimitAlgSlidingLog),
	string(middleware.RateLimitAlgSlidingWindow),
	string(middleware.RateLimitAlgLeakyBucket),
}

// Config represents a set of configuration parameters for HTTPServer.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	Address   string          `mapstructure:"address" yaml:"address" json:"address"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
	Protected ProtectedConfig `mapstructure:"protected" yaml:"protected" json:"protected"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Address = defaultServerAddress
	cfg.Timeouts = TimeoutsConfig{
		Write:      defaultServerTimeoutsWrite,
		Read:       defaultServerTimeoutsRead,
		ReadHeader: defaultServerTimeoutsReadHeader,
		Idle:       defaultServerTimeoutsIdle,
		Shutdown:   defaultServerTimeoutsShutdown,
	}
	cfg.Protected = ProtectedConfig{
		Alg:            middleware.RateLimitAlgSlidingLog,
		KeyHeader:      defaultProtectedKeyHeader,
		BacklogTimeout: middleware.DefaultRateLimitBacklogTimeout,
	}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for HTTPServer in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, defaultServerAddress)

	dp.SetDefault(cfgKeyServerTimeoutsWrite, defaultServerTimeoutsWrite.String())
	dp.SetDefault(cfgKeyServerTimeoutsRead, defaultServerTimeoutsRead.String())
	dp.SetDefault(cfgKeyServerTimeoutsReadHeader, defaultServerTimeoutsReadHeader.String())
	dp.SetDefault(cfgKeyServerTimeoutsIdle, defaultServerTimeoutsIdle.String())
	dp.SetDefault(cfgKeyServerTimeoutsShutdown, defaultServerTimeoutsShutdown.String())

	dp.SetDefault(cfgKeyServerLogRequestStart, false)

	dp.SetDefault(cfgKeyServerProtectedAlg, string(middleware.RateLimitAlgSlidingLog))
	dp.SetDefault(cfgKeyServerProtectedKeyHeader, defaultProtectedKeyHeader)
	dp.SetDefault(cfgKeyServerProtectedDryRun, false)
	dp.SetDefault(cfgKeyServerProtectedBacklogLimit, 0)
	dp.SetDefault(cfgKeyServerProtectedBacklogTimeout, middleware.DefaultRateLimitBacklogTimeout.String())
	dp.SetDefault(cfgKeyServerProtectedResponseStatusCode, 0)
}

// TimeoutsConfig represents a set of configuration parameters for HTTPServer relating to timeouts.
type TimeoutsConfig struct {
	Write      time.Duration `mapstructure:"write" yaml:"write" json:"write"`
	Read       time.Duration `mapstructure:"read" yaml:"read" json:"read"`
	ReadHeader time.Duration `mapstructure:"readHeader" yaml:"readHeader" json:"readHeader"`
	Idle       time.Duration `mapstructure:"idle" yaml:"idle" json:"idle"`
	Shutdown   time.Duration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// Set sets timeout server configuration values from config.DataProvider.
func (t *TimeoutsConfig) Set(dp config.DataProvider) error {
	for _, item := range []struct {
		key string
		dst *time.Duration
	}{
		{cfgKeyServerTimeoutsWrite, &t.Write},
		{cfgKeyServerTimeoutsRead, &t.Read},
		{cfgKeyServerTimeoutsReadHeader, &t.ReadHeader},
		{cfgKeyServerTimeoutsIdle, &t.Idle},
		{cfgKeyServerTimeoutsShutdown, &t.Shutdown},
	} {
		dur, err := dp.GetDuration(item.key)
		if err != nil {
			return err
		}
		if dur < 0 {
			return dp.WrapKeyErr(item.key, fmt.Errorf("should be >= 0"))
		}
		*item.dst = dur
	}
	return nil
}

// LogConfig represents a set of configuration parameters for HTTPServer relating to logging.
type LogConfig struct {
	RequestStart      bool     `mapstructure:"requestStart" yaml:"requestStart" json:"requestStart"`
	ExcludedEndpoints []string `mapstructure:"excludedEndpoints" yaml:"excludedEndpoints" json:"excludedEndpoints"`
}

// Set sets log server configuration values from config.DataProvider.
func (l *LogConfig) Set(dp config.DataProvider) error {
	var err error
	if l.RequestStart, err = dp.GetBool(cfgKeyServerLogRequestStart); err != nil {
		return err
	}
	if l.ExcludedEndpoints, err = dp.GetStringSlice(cfgKeyServerLogExcludedEndpoints); err != nil {
		return err
	}
	return nil
}

// ProtectedConfig configures the rate limiting middleware in front of the protected resource.
type ProtectedConfig struct {
	Alg                middleware.RateLimitAlg `mapstructure:"alg" yaml:"alg" json:"alg"`
	KeyHeader          string                  `mapstructure:"keyHeader" yaml:"keyHeader" json:"keyHeader"`
	IncludedKeys       []string                `mapstructure:"includedKeys" yaml:"includedKeys" json:"includedKeys"`
	ExcludedKeys       []string                `mapstructure:"excludedKeys" yaml:"excludedKeys" json:"excludedKeys"`
	DryRun             bool                    `mapstructure:"dryRun" yaml:"dryRun" json:"dryRun"`
	BacklogLimit       int                     `mapstructure:"backlogLimit" yaml:"backlogLimit" json:"backlogLimit"`
	BacklogTimeout     time.Duration           `mapstructure:"backlogTimeout" yaml:"backlogTimeout" json:"backlogTimeout"`
	ResponseStatusCode int                     `mapstructure:"responseStatusCode" yaml:"responseStatusCode" json:"responseStatusCode"`
}

// Set sets configuration values of the protected resource from config.DataProvider.
func (p *ProtectedConfig) Set(dp config.DataProvider) error {
	alg, err := dp.GetStringFromSet(cfgKeyServerProtectedAlg, availableRateLimitAlgs, true)
	if err != nil {
		return err
	}
	p.Alg = middleware.RateLimitAlg(strings.ToLower(alg))

	if p.KeyHeader, err = dp.GetString(cfgKeyServerProtectedKeyHeader); err != nil {
		return err
	}
	if p.KeyHeader == "" {
		return dp.WrapKeyErr(cfgKeyServerProtectedKeyHeader, fmt.Errorf("cannot be empty"))
	}

	if p.IncludedKeys, err = dp.GetStringSlice(cfgKeyServerProtectedIncludedKeys); err != nil {
		return err
	}
	if p.ExcludedKeys, err = dp.GetStringSlice(cfgKeyServerProtectedExcludedKeys); err != nil {
		return err
	}
	if len(p.IncludedKeys) != 0 && len(p.ExcludedKeys) != 0 {
		return dp.WrapKeyErr(cfgKeyServerProtectedIncludedKeys,
			fmt.Errorf("cannot be used together with %q", cfgKeyServerProtectedExcludedKeys))
	}

	if p.DryRun, err = dp.GetBool(cfgKeyServerProtectedDryRun); err != nil {
		return err
	}

	if p.BacklogLimit, err = dp.GetInt(cfgKeyServerProtectedBacklogLimit); err != nil {
		return err
	}
	if p.BacklogLimit < 0 {
		return dp.WrapKeyErr(cfgKeyServerProtectedBacklogLimit, fmt.Errorf("should be >= 0"))
	}
	if p.BacklogTimeout, err = dp.GetDuration(cfgKeyServerProtectedBacklogTimeout); err != nil {
		return err
	}

	if p.ResponseStatusCode, err = dp.GetInt(cfgKeyServerProtectedResponseStatusCode); err != nil {
		return err
	}
	if p.ResponseStatusCode != 0 && (p.ResponseStatusCode < 400 || p.ResponseStatusCode > 599) {
		return dp.WrapKeyErr(cfgKeyServerProtectedResponseStatusCode, fmt.Errorf("should be 4xx or 5xx"))
	}

	return nil
}

// Set sets HTTPServer configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Address, err = dp.GetString(cfgKeyServerAddress); err != nil {
		return err
	}
	if c.Address == "" {
		return dp.WrapKeyErr(cfgKeyServerAddress, fmt.Errorf("cannot be empty"))
	}

	if err = c.Timeouts.Set(dp); err != nil {
		return err
	}
	if err = c.Log.Set(dp); err != nil {
		return err
	}
	return c.Protected.Set(dp)
}
