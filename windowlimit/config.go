/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import (
	"fmt"
	"time"

	"github.com/windowlimit/go-windowlimit/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyLimit         = "limit"
	cfgKeyWindow        = "window"
	cfgKeyMaxKeys       = "maxKeys"
	cfgKeyShards        = "shards"
	cfgKeySweepInterval = "sweepInterval"
)

// Default values.
const (
	DefaultLimit         = 5
	DefaultWindow        = time.Minute
	DefaultSweepInterval = time.Minute
)

// Config represents a set of configuration parameters of the Limiter.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// Limit is the maximum number of admissions per key within the window.
	Limit int `mapstructure:"limit" yaml:"limit" json:"limit"`

	// Window is the duration of the trailing window.
	Window time.Duration `mapstructure:"window" yaml:"window" json:"window"`

	// MaxKeys bounds the number of tracked keys (0 - no bound).
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	// Shards is the number of key store shards (0 - DefaultShardsNum).
	Shards int `mapstructure:"shards" yaml:"shards" json:"shards"`

	// SweepInterval determines how often idle keys are forgotten by a host process
	// that runs Limiter.Sweep periodically. 0 disables sweeping.
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`

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
	cfg.Limit = DefaultLimit
	cfg.Window = DefaultWindow
	cfg.SweepInterval = DefaultSweepInterval
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyMaxKeys, 0)
	dp.SetDefault(cfgKeyShards, 0)
	dp.SetDefault(cfgKeySweepInterval, DefaultSweepInterval.String())
}

// Set sets limiter configuration values from config.DataProvider.
// Implements config.Config interface.
// Non-positive limit or window is reported as an error wrapping ErrInvalidConfig.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyLimit, fmt.Errorf("%w: should be > 0", ErrInvalidConfig))
	}

	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("%w: should be > 0", ErrInvalidConfig))
	}

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("%w: should be >= 0", ErrInvalidConfig))
	}

	if c.Shards, err = dp.GetInt(cfgKeyShards); err != nil {
		return err
	}
	if c.Shards < 0 {
		return dp.WrapKeyErr(cfgKeyShards, fmt.Errorf("%w: should be >= 0", ErrInvalidConfig))
	}

	if c.SweepInterval, err = dp.GetDuration(cfgKeySweepInterval); err != nil {
		return err
	}
	if c.SweepInterval < 0 {
		return dp.WrapKeyErr(cfgKeySweepInterval, fmt.Errorf("%w: should be >= 0", ErrInvalidConfig))
	}

	return nil
}
