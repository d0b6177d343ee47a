/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerJSONFormat(t *testing.T) {
	tests := []struct {
		level Level
		msg   string
		err   error
	}{
		{level: LevelInfo, msg: "request admitted"},
		{level: LevelWarn, msg: "request rejected"},
		{level: LevelError, msg: "sweep failed", err: errors.New("some error")},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			cfg := NewDefaultConfig()
			logger, closeFunc := NewLoggerWithWriter(cfg, &buf)
			switch tt.level {
			case LevelWarn:
				logger.Warn(tt.msg, Key("user_123"))
			case LevelError:
				logger.Error(tt.msg, Key("user_123"), Error(tt.err))
			default:
				logger.Info(tt.msg, Key("user_123"))
			}
			closeFunc()

			var j map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &j))
			require.Equal(t, string(tt.level), j["level"])
			require.Equal(t, tt.msg, j["msg"])
			require.Equal(t, "user_123", j["key"])
			require.Equal(t, os.Getpid(), int(j["pid"].(float64)))
			if tt.err != nil {
				require.Equal(t, tt.err.Error(), j["error"])
			}
		})
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Format = FormatText
	cfg.NoColor = true
	logger, closeFunc := NewLoggerWithWriter(cfg, &buf)
	logger.AtLevel(LevelError, func(logFunc LogFunc) {
		logFunc("test", Error(errors.New("some error")))
	})
	closeFunc()

	require.Contains(t, buf.String(), `|ERRO|`)
	require.Contains(t, buf.String(), ` test `)
	require.Contains(t, buf.String(), `error="some error"`)
	require.Contains(t, buf.String(), fmt.Sprintf(`pid=%d`, os.Getpid()))
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = LevelWarn
	logger, closeFunc := NewLoggerWithWriter(cfg, &buf)
	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.WithLevel(LevelError).Warn("suppressed")
	logger.With(String("component", "sweeper")).Errorf("error %d", 4)
	closeFunc()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"msg":"warn 3"`)
	require.Contains(t, lines[1], `"msg":"error 4"`)
	require.Contains(t, lines[1], `"component":"sweeper"`)
}

func TestResolvePlaceholders(t *testing.T) {
	path := resolvePlaceholders("/var/log/app-{{pid}}.log")
	require.Equal(t, fmt.Sprintf("/var/log/app-%d.log", os.Getpid()), path)
	require.NotContains(t, resolvePlaceholders("app-{{starttime}}.log"), "{{")
}

func TestDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	logger.Info("nothing")
	logger.With(Int("n", 1)).Errorf("nothing %d", 1)
}
