// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/epitrack/internal/middleware"
	"github.com/tomtom215/epitrack/internal/models"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	r.Use(chimiddleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondAPIError(w, http.StatusNotFound, &models.APIError{Code: codeNotFound, Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondAPIError(w, http.StatusMethodNotAllowed, &models.APIError{Code: codeMethodNotAllowed, Message: "Method not allowed"})
	})

	r.Handle("/metrics", promhttp.Handler())

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/health", h.Health)

		r.Get("/bulletin/series", h.BulletinSeries)
		r.Get("/trends/series", h.TrendsSeries)
		r.Get("/trends/monthly", h.TrendsMonthly)
		r.Get("/adplatform/series", h.AdPlatformSeries)

		r.Get("/phrases", h.ListPhrases)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitWrite)).Post("/phrases", h.AddPhrases)

		r.With(router.chiMiddleware.RateLimitCustom(RateLimitSync)).Post("/sync", h.TriggerSync)
	})

	return r
}
