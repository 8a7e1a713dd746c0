// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package middleware provides the infrastructure HTTP middleware shared by the
epitrack router.

  - RequestID: tags each request with an X-Request-ID (UUID v4 unless a
    well-formed ID arrives from upstream) and stores it in the context so
    logging.Ctx includes it.
  - PrometheusMetrics: counts requests and records durations per chi route
    pattern, method and status code.

Both follow the chi signature func(http.Handler) http.Handler:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
