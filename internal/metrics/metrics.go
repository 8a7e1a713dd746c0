// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epitrack_db_query_duration_seconds",
			Help:    "Duration of persistence gateway queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_db_query_errors_total",
			Help: "Total number of persistence gateway query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epitrack_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 180},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epitrack_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	// Sync Metrics
	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epitrack_sync_cycle_duration_seconds",
			Help:    "Duration of one source sync cycle in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"source"},
	)

	SyncRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_sync_rows_inserted_total",
			Help: "Rows inserted by sync cycles",
		},
		[]string{"source"},
	)

	SyncDuplicatesRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_sync_duplicates_removed_total",
			Help: "Rows removed by the post-insert de-duplication pass",
		},
		[]string{"source"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_sync_errors_total",
			Help: "Sync cycle failures by source and error kind",
		},
		[]string{"source", "kind"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epitrack_sync_last_success_timestamp",
			Help: "Unix time of the last successful cycle per source",
		},
		[]string{"source"},
	)

	// Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_provider_requests_total",
			Help: "Requests sent to upstream providers by outcome",
		},
		[]string{"source", "outcome"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_provider_retries_total",
			Help: "Retry attempts against upstream providers",
		},
		[]string{"source"},
	)

	ReportChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_adplatform_report_chunks_total",
			Help: "AdPlatform report chunks by terminal state",
		},
		[]string{"state"},
	)

	QuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epitrack_adplatform_quota_remaining",
			Help: "Phrases still available in the current AdPlatform quota window",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_cache_hits_total",
			Help: "Response cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_cache_misses_total",
			Help: "Response cache misses",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epitrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epitrack_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Phrase import
	PhrasesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epitrack_phrases_imported_total",
			Help: "Phrases read from bulk CSV imports",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epitrack_app_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

// kinded is implemented by errors that carry a stable metric label.
type kinded interface {
	Kind() string
}

// ErrorKind returns the metric label of err: the Kind of the first wrapped
// error implementing Kind() string, "none" for nil, "other" otherwise.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "other"
}

// RecordDBQuery records a persistence gateway query.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncCycle records the outcome of one source cycle.
func RecordSyncCycle(source string, duration time.Duration, inserted int, removed int64, err error) {
	SyncCycleDuration.WithLabelValues(source).Observe(duration.Seconds())
	SyncRowsInserted.WithLabelValues(source).Add(float64(inserted))
	SyncDuplicatesRemoved.WithLabelValues(source).Add(float64(removed))
	if err != nil {
		SyncErrors.WithLabelValues(source, ErrorKind(err)).Inc()
		return
	}
	SyncLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
}

// RecordProviderRequest counts one upstream call; outcome is ok, no_data,
// parse_miss, error or timeout.
func RecordProviderRequest(source, outcome string) {
	ProviderRequests.WithLabelValues(source, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
		return
	}
	CacheMisses.WithLabelValues(cache).Inc()
}
