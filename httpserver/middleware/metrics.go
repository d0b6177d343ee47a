/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	httpRequestMetricsLabelMethod       = "method"
	httpRequestMetricsLabelRoutePattern = "route_pattern"
	httpRequestMetricsLabelStatusCode   = "status_code"
)

// DefaultHTTPRequestDurationBuckets is default buckets into which observations of serving HTTP requests are counted.
var DefaultHTTPRequestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// RoutePatternGetterFunc is a function for getting route pattern from the request.
type RoutePatternGetterFunc func(r *http.Request) string

// HTTPRequestMetricsCollector represents collector of metrics for incoming HTTP requests.
type HTTPRequestMetricsCollector struct {
	Durations *prometheus.HistogramVec
	InFlight  prometheus.Gauge
}

// NewHTTPRequestMetricsCollector creates a new metrics collector.
func NewHTTPRequestMetricsCollector(namespace string) *HTTPRequestMetricsCollector {
	return &HTTPRequestMetricsCollector{
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "A histogram of the HTTP request durations.",
				Buckets:   DefaultHTTPRequestDurationBuckets,
			},
			[]string{httpRequestMetricsLabelMethod, httpRequestMetricsLabelRoutePattern, httpRequestMetricsLabelStatusCode},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (c *HTTPRequestMetricsCollector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.Durations, c.InFlight)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (c *HTTPRequestMetricsCollector) Unregister(reg prometheus.Registerer) {
	reg.Unregister(c.InFlight)
	reg.Unregister(c.Durations)
}

type httpRequestMetricsHandler struct {
	next              http.Handler
	collector         *HTTPRequestMetricsCollector
	getRoutePattern   RoutePatternGetterFunc
	excludedEndpoints []string
}

// HTTPRequestMetrics is a middleware that collects metrics for incoming HTTP requests using Prometheus data types.
// The route pattern is resolved after the request is served, so routers that fill it in while routing are supported.
func HTTPRequestMetrics(
	collector *HTTPRequestMetricsCollector, getRoutePattern RoutePatternGetterFunc, excludedEndpoints ...string,
) func(next http.Handler) http.Handler {
	if getRoutePattern == nil {
		panic("function for getting route pattern cannot be nil")
	}
	return func(next http.Handler) http.Handler {
		return &httpRequestMetricsHandler{
			next: next, collector: collector, getRoutePattern: getRoutePattern, excludedEndpoints: excludedEndpoints,
		}
	}
}

func (h *httpRequestMetricsHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	for _, endpoint := range h.excludedEndpoints {
		if r.URL.Path == endpoint {
			h.next.ServeHTTP(rw, r)
			return
		}
	}

	startTime := GetRequestStartTimeFromContext(r.Context())
	if startTime.IsZero() {
		startTime = time.Now()
		r = r.WithContext(NewContextWithRequestStartTime(r.Context(), startTime))
	}

	h.collector.InFlight.Inc()
	defer h.collector.InFlight.Dec()

	wrw := chimw.NewWrapResponseWriter(rw, r.ProtoMajor)
	h.next.ServeHTTP(wrw, r)

	status := wrw.Status()
	if status == 0 {
		status = http.StatusOK
	}
	h.collector.Durations.With(prometheus.Labels{
		httpRequestMetricsLabelMethod:       r.Method,
		httpRequestMetricsLabelRoutePattern: h.getRoutePattern(r),
		httpRequestMetricsLabelStatusCode:   strconv.Itoa(status),
	}).Observe(time.Since(startTime).Seconds())
}
