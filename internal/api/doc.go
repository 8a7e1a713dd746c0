// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package api implements the epitrack HTTP interface on a chi router.

# Endpoints

	GET  /api/v1/health                 database, last sync and quota status
	GET  /api/v1/bulletin/series        weekly influenza rate (sync-then-read)
	GET  /api/v1/trends/series          weekly search interest of a phrase (sync-then-read)
	GET  /api/v1/trends/monthly         trends folded into months, normalized to 0..100
	GET  /api/v1/adplatform/series      monthly ad-platform impressions of a phrase
	GET  /api/v1/phrases                registered phrases
	POST /api/v1/phrases                register phrases
	POST /api/v1/sync                   run one cycle of every source now
	GET  /metrics                       Prometheus exposition

Series endpoints accept year, start_week and end_week (or start_month and
end_month). Missing bounds default to the configured sync year, weeks 1..52
and months 1..12.

# Response Format

Every JSON response uses models.APIResponse:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","cached":true}}
	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}

Error codes are VALIDATION_ERROR, NOT_FOUND, SYNC_ERROR, DATABASE_ERROR,
RATE_LIMITED and METHOD_NOT_ALLOWED.

# Caching

Series responses are cached per query string for Server.CacheTTL (180s by
default). The cache is cleared after every completed sync cycle.

# Middleware

RequestID, RealIP, Recoverer, go-chi/cors and response compression apply to
every route; go-chi/httprate limits /api/v1 per client IP and
PrometheusMetrics records request metrics by route pattern.
*/
package api
