/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package windowlimit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/windowlimit/go-windowlimit/internal/libinfo"
)

// Values of the "decision" label.
const (
	DecisionAdmitted = "admitted"
	DecisionRejected = "rejected"
)

// MetricsCollector collects metrics of the Limiter.
type MetricsCollector interface {
	// IncAdmitted increments the number of admitted requests.
	IncAdmitted()

	// IncRejected increments the number of rejected requests.
	IncRejected()

	// SetKeysAmount sets the number of tracked keys.
	SetKeysAmount(int)

	// AddDroppedKeys increments the number of keys forgotten by Sweep.
	AddDroppedKeys(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics of the Limiter.
type PrometheusMetrics struct {
	DecisionsTotal   *prometheus.CounterVec
	KeysAmount       prometheus.Gauge
	DroppedKeysTotal prometheus.Counter
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	constLabels := libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)
	return &PrometheusMetrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "window_limiter_decisions_total",
			Help:        "Number of admission decisions made by the sliding window limiter.",
			ConstLabels: constLabels,
		}, []string{"decision"}),
		KeysAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "window_limiter_keys_amount",
			Help:        "Number of keys tracked by the sliding window limiter.",
			ConstLabels: constLabels,
		}),
		DroppedKeysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "window_limiter_dropped_keys_total",
			Help:        "Number of idle keys forgotten by the sliding window limiter.",
			ConstLabels: constLabels,
		}),
	}
}

// MustRegister does registration of metrics collector in the given registerer and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(pm.DecisionsTotal, pm.KeysAmount, pm.DroppedKeysTotal)
}

// Unregister cancels registration of metrics collector in the given registerer.
func (pm *PrometheusMetrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(pm.DecisionsTotal)
	reg.Unregister(pm.KeysAmount)
	reg.Unregister(pm.DroppedKeysTotal)
}

// IncAdmitted increments the number of admitted requests.
func (pm *PrometheusMetrics) IncAdmitted() {
	pm.DecisionsTotal.WithLabelValues(DecisionAdmitted).Inc()
}

// IncRejected increments the number of rejected requests.
func (pm *PrometheusMetrics) IncRejected() {
	pm.DecisionsTotal.WithLabelValues(DecisionRejected).Inc()
}

// SetKeysAmount sets the number of tracked keys.
func (pm *PrometheusMetrics) SetKeysAmount(n int) {
	pm.KeysAmount.Set(float64(n))
}

// AddDroppedKeys increments the number of keys forgotten by Sweep.
func (pm *PrometheusMetrics) AddDroppedKeys(n int) {
	pm.DroppedKeysTotal.Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted()       {}
func (disabledMetrics) IncRejected()       {}
func (disabledMetrics) SetKeysAmount(int)  {}
func (disabledMetrics) AddDroppedKeys(int) {}

var disabledMetricsCollector = disabledMetrics{}
