/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertCollectorValue asserts that the passed collector (counter or gauge, possibly a vector with a single series)
// has the specified value.
func AssertCollectorValue(t assert.TestingT, collector prometheus.Collector, want float64) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, want, promtestutil.ToFloat64(collector))
}

// RequireCollectorValue calls AssertCollectorValue and fails test immediately in case of error.
func RequireCollectorValue(t require.TestingT, collector prometheus.Collector, want float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertCollectorValue(t, collector, want) {
		return
	}
	t.FailNow()
}

// AssertSeriesCount asserts that the passed collector exposes the specified number of series.
func AssertSeriesCount(t assert.TestingT, collector prometheus.Collector, want int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, want, promtestutil.CollectAndCount(collector))
}
