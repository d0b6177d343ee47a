/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestExtractLibVersion(t *testing.T) {
	tests := []struct {
		name        string
		buildInfo   *debug.BuildInfo
		expectedVer string
	}{
		{
			name:        "nil build info",
			buildInfo:   nil,
			expectedVer: "",
		},
		{
			name: "dependency",
			buildInfo: &debug.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName, Version: "v1.2.3"}},
			},
			expectedVer: "v1.2.3",
		},
		{
			name: "dependency with major version suffix",
			buildInfo: &debug.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "/v2", Version: "v2.0.1"}},
			},
			expectedVer: "v2.0.1",
		},
		{
			name: "main module",
			buildInfo: &debug.BuildInfo{
				Main: debug.Module{Path: moduleName, Version: "v0.3.0"},
			},
			expectedVer: "v0.3.0",
		},
		{
			name: "main module built from sources",
			buildInfo: &debug.BuildInfo{
				Main: debug.Module{Path: moduleName, Version: "(devel)"},
			},
			expectedVer: "",
		},
		{
			name: "similar module path",
			buildInfo: &debug.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "-extra", Version: "v1.0.0"}},
			},
			expectedVer: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedVer, extractLibVersion(tt.buildInfo, moduleName))
		})
	}
}

func TestAddPrometheusLibVersionLabel(t *testing.T) {
	labels := prometheus.Labels{"service": "gateway"}
	got := AddPrometheusLibVersionLabel(labels)
	require.Equal(t, "gateway", got["service"])
	require.Equal(t, GetLibVersion(), got[PrometheusLibVersionLabel])
	require.NotContains(t, labels, PrometheusLibVersionLabel)
	require.NotEmpty(t, GetLibVersion())
}
