/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windowlimit/go-windowlimit/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "defaults",
			cfgData:     `{}`,
			expectedCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name: "file output with rotation",
			cfgData: `
log:
  level: WARN
  format: text
  output: file
  file:
    path: windowlimit-{{pid}}.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 42
      maxAgeDays: 7
  addCaller: true
  error:
    noVerbose: true
    verboseSuffix: _details
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelWarn
				cfg.Format = FormatText
				cfg.Output = OutputFile
				cfg.File.Path = "windowlimit-{{pid}}.log"
				cfg.File.Rotation.Compress = true
				cfg.File.Rotation.MaxSize = 100 * 1024 * 1024
				cfg.File.Rotation.MaxBackups = 42
				cfg.File.Rotation.MaxAgeDays = 7
				cfg.AddCaller = true
				cfg.Error.NoVerbose = true
				cfg.Error.VerboseSuffix = "_details"
				return cfg
			},
		},
		{
			name: "k8s size suffix",
			cfgData: `
log:
  file:
    rotation:
      maxSize: 512Mi
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.File.Rotation.MaxSize = 512 * 1024 * 1024
				return cfg
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), cfg)
		})
	}
}

func TestConfigWithKeyPrefix(t *testing.T) {
	cfg := NewConfig(WithKeyPrefix("app.logging"))
	cfgData := `
app:
  logging:
    level: debug
    format: text
`
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, cfg.Level)
	require.Equal(t, FormatText, cfg.Format)
}

func TestConfigValidationErrors(t *testing.T) {
	tests := []struct {
		name           string
		yamlData       string
		expectedErrMsg string
	}{
		{
			name:           "error, unknown log level",
			yamlData:       "log:\n  level: invalid-level\n",
			expectedErrMsg: `log.level: unknown value "invalid-level", should be one of [error warn info debug]`,
		},
		{
			name:           "error, unknown log format",
			yamlData:       "log:\n  format: invalid-format\n",
			expectedErrMsg: `log.format: unknown value "invalid-format", should be one of [json text]`,
		},
		{
			name:           "error, unknown log output",
			yamlData:       "log:\n  output: invalid-output\n",
			expectedErrMsg: `log.output: unknown value "invalid-output", should be one of [stdout stderr file]`,
		},
		{
			name:           "error, file output without path",
			yamlData:       "log:\n  output: file\n",
			expectedErrMsg: `log.file.path: cannot be empty when "file" output is used`,
		},
		{
			name:           "error, too small rotation size",
			yamlData:       "log:\n  file:\n    rotation:\n      maxSize: 10K\n",
			expectedErrMsg: `log.file.rotation.maxSize: should be >= 1M`,
		},
		{
			name:           "error, too few backups",
			yamlData:       "log:\n  file:\n    rotation:\n      maxBackups: 0\n",
			expectedErrMsg: `log.file.rotation.maxBackups: should be >= 1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.yamlData), config.DataTypeYAML, cfg)
			require.EqualError(t, err, tt.expectedErrMsg)
		})
	}
}
