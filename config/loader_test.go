/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServerConfig struct {
	Address string
	Timeout time.Duration
}

func (c *testServerConfig) KeyPrefix() string {
	return "server"
}

func (c *testServerConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("address", ":8080")
	dp.SetDefault("timeout", "5s")
}

func (c *testServerConfig) Set(dp DataProvider) (err error) {
	if c.Address, err = dp.GetString("address"); err != nil {
		return err
	}
	if c.Timeout, err = dp.GetDuration("timeout"); err != nil {
		return err
	}
	return nil
}

type testLimitConfig struct {
	Limit int
	Keys  []string
}

func (c *testLimitConfig) KeyPrefix() string {
	return "rateLimit"
}

func (c *testLimitConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("limit", 5)
}

func (c *testLimitConfig) Set(dp DataProvider) (err error) {
	if c.Limit, err = dp.GetInt("limit"); err != nil {
		return err
	}
	if c.Keys, err = dp.GetStringSlice("keys"); err != nil {
		return err
	}
	return nil
}

type testAppConfig struct {
	Server    *testServerConfig
	RateLimit *testLimitConfig
	Skipped   *testLimitConfig
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		serverCfg, limitCfg := &testServerConfig{}, &testLimitConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(`{}`), DataTypeJSON, serverCfg, limitCfg)
		require.NoError(t, err)
		require.Equal(t, ":8080", serverCfg.Address)
		require.Equal(t, 5*time.Second, serverCfg.Timeout)
		require.Equal(t, 5, limitCfg.Limit)
		require.Empty(t, limitCfg.Keys)
	})

	t.Run("yaml", func(t *testing.T) {
		const cfgData = `
server:
  address: ":9090"
  timeout: 1m
rateLimit:
  limit: 10
  keys: [user_1, user_2]
`
		serverCfg, limitCfg := &testServerConfig{}, &testLimitConfig{}
		err := NewLoader(NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), DataTypeYAML, serverCfg, limitCfg)
		require.NoError(t, err)
		require.Equal(t, ":9090", serverCfg.Address)
		require.Equal(t, time.Minute, serverCfg.Timeout)
		require.Equal(t, 10, limitCfg.Limit)
		require.Equal(t, []string{"user_1", "user_2"}, limitCfg.Keys)
	})

	t.Run("invalid value", func(t *testing.T) {
		err := NewLoader(NewViperAdapter()).LoadFromReader(
			bytes.NewBufferString(`{"rateLimit":{"limit":"many"}}`), DataTypeJSON, &testLimitConfig{})
		require.ErrorContains(t, err, "rateLimit.limit")
	})
}

func TestLoader_LoadFromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  address: \":7070\"\n"), 0o600))

	serverCfg := &testServerConfig{}
	require.NoError(t, NewLoader(NewViperAdapter()).LoadFromFile(cfgPath, DataTypeYAML, serverCfg))
	require.Equal(t, ":7070", serverCfg.Address)

	err := NewLoader(NewViperAdapter()).LoadFromFile(filepath.Join(t.TempDir(), "missing.yml"), DataTypeYAML, serverCfg)
	require.Error(t, err)
}

func TestLoader_EnvVars(t *testing.T) {
	t.Setenv("WLTEST_RATELIMIT_LIMIT", "42")
	t.Setenv("WLTEST_RATELIMIT_KEYS", "a, b")

	limitCfg := &testLimitConfig{}
	require.NoError(t, NewDefaultLoader("wltest").Load(limitCfg))
	require.Equal(t, 42, limitCfg.Limit)
	require.Equal(t, []string{"a", "b"}, limitCfg.Keys)
}

func TestCallForFields(t *testing.T) {
	dp := NewViperAdapter()
	dp.Set("server.address", ":1234")

	appCfg := &testAppConfig{Server: &testServerConfig{}, RateLimit: &testLimitConfig{}}
	CallSetProviderDefaultsForFields(appCfg, dp)
	require.NoError(t, CallSetForFields(appCfg, dp))
	require.Equal(t, ":1234", appCfg.Server.Address)
	require.Equal(t, 5*time.Second, appCfg.Server.Timeout)
	require.Equal(t, 5, appCfg.RateLimit.Limit)
	require.Nil(t, appCfg.Skipped)
}
