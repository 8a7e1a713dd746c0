// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package metrics exposes Prometheus collectors for epitrack.

Collectors are registered on the default registry through promauto and served
at /metrics by the HTTP layer:

	curl http://localhost:8080/metrics

Families:
  - epitrack_db_*: persistence gateway query latency and errors
  - epitrack_sync_*: per-source cycle duration, inserted rows, removed duplicates
  - epitrack_provider_*: upstream calls and retries
  - epitrack_adplatform_*: report chunk outcomes and remaining quota
  - epitrack_circuit_breaker_*: breaker state and transitions
  - epitrack_api_*: HTTP request counts and latency
*/
package metrics
