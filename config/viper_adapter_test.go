/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViperAdapter_GetSizeInBytes(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    uint64
		wantErr bool
	}{
		{name: "not set", value: nil, want: 0},
		{name: "empty string", value: "", want: 0},
		{name: "number", value: 1024, want: 1024},
		{name: "megabytes", value: "250M", want: 250 * 1024 * 1024},
		{name: "k8s suffix", value: "512Ki", want: 512 * 1024},
		{name: "invalid", value: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			va := NewViperAdapter()
			if tt.value != nil {
				va.Set("size", tt.value)
			}
			got, err := va.GetSizeInBytes("size")
			if tt.wantErr {
				require.ErrorContains(t, err, "size")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	va.Set("format", "JSON")

	got, err := va.GetStringFromSet("format", []string{"json", "text"}, true)
	require.NoError(t, err)
	require.Equal(t, "JSON", got)

	_, err = va.GetStringFromSet("format", []string{"json", "text"}, false)
	require.EqualError(t, err, `format: unknown value "JSON", should be one of [json text]`)
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	va := NewViperAdapter()
	dp := NewKeyPrefixedDataProvider(va, "log")
	dp.SetDefault("level", "info")
	dp.Set("output", "stderr")

	require.Equal(t, "info", va.Get("log.level"))
	require.True(t, dp.IsSet("output"))
	level, err := dp.GetString("level")
	require.NoError(t, err)
	require.Equal(t, "info", level)
	require.EqualError(t, dp.WrapKeyErr("level", errTest), "log.level: test error")
}

type testError struct{}

func (testError) Error() string { return "test error" }

var errTest = testError{}
