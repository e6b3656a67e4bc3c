// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handler and middleware into the Chi route tree.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router over the given handler and middleware factory.
func NewRouter(handler *Handler, mw *Middleware) *Router {
	if mw == nil {
		mw = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw}
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	// Health endpoints get permissive rate limiting so monitoring tools can
	// poll frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Pricing endpoints.
	r.Route("/api/v1/pricing", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Post("/calculate", router.handler.CalculatePrice)
		r.Post("/batch", router.handler.CalculateBatch)
		r.Post("/rules/refresh", router.handler.RefreshRules)
	})

	// Market data ingestion.
	r.Route("/api/v1/market-data", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Put("/", router.handler.UpdateMarketData)
	})

	// Audit trail queries.
	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Get("/decisions", router.handler.QueryAuditDecisions)
		r.Get("/stats", router.handler.AuditStats)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
