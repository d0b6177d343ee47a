/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/windowlimit/go-windowlimit/log"
	"github.com/windowlimit/go-windowlimit/restapi"
	"github.com/windowlimit/go-windowlimit/windowlimit"
)

// RouterOpts represents options for creating chi.Router.
type RouterOpts struct {
	ErrorDomain string
	HealthCheck HealthCheck
	// MetricsGatherer is exposed on /metrics. prometheus.DefaultGatherer is used if nil.
	MetricsGatherer prometheus.Gatherer
	// ProtectedRateLimit guards /api/v1/protected. The resource is not limited if nil.
	ProtectedRateLimit func(http.Handler) http.Handler
}

// NewRouter creates a new chi.Router with the admission API routes.
func NewRouter(limiter *windowlimit.Limiter, logger log.FieldLogger, opts RouterOpts) chi.Router {
	router := chi.NewRouter()
	configureRouter(router, limiter, logger, opts)
	return router
}

func configureRouter(router chi.Router, limiter *windowlimit.Limiter, logger log.FieldLogger, opts RouterOpts) {
	gatherer := opts.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Method(http.MethodGet, "/healthz", NewHealthCheckHandler(limiter, opts.HealthCheck))

	admissions := &admissionsHandler{limiter: limiter, errDomain: opts.ErrorDomain}
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/admissions/{key}", admissions.admit)
		r.Get("/admissions/{key}", admissions.count)

		protected := http.Handler(http.HandlerFunc(serveProtected))
		if opts.ProtectedRateLimit != nil {
			protected = opts.ProtectedRateLimit(protected)
		}
		r.Method(http.MethodGet, "/protected", protected)
	})

	router.NotFound(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeNotFound, restapi.ErrMessageNotFound)
		restapi.RespondError(rw, http.StatusNotFound, apiErr, logger)
	})

	router.MethodNotAllowed(func(rw http.ResponseWriter, r *http.Request) {
		apiErr := restapi.NewError(opts.ErrorDomain, restapi.ErrCodeMethodNotAllowed, restapi.ErrMessageMethodNotAllowed)
		restapi.RespondError(rw, http.StatusMethodNotAllowed, apiErr, logger)
	})
}

// GetChiRoutePattern extracts chi route pattern from request.
func GetChiRoutePattern(r *http.Request) string {
	// modified code from https://github.com/go-chi/chi/issues/270#issuecomment-479184559
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	routePath := r.URL.RawPath
	if routePath == "" {
		routePath = r.URL.Path
	}

	tctx := chi.NewRouteContext()
	if !rctx.Routes.Match(tctx, r.Method, routePath) {
		return ""
	}
	return tctx.RoutePattern()
}
