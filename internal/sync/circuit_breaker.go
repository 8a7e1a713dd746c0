// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
)

// breaker wraps provider calls with a circuit breaker.
//
// The breaker uses real time for its interval and timeout. Tests that need
// deterministic behavior should exercise the wrapped client directly.
type breaker struct {
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

// newBreaker creates a breaker:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func newBreaker(name string) *breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		// Empty results and caller cancellation say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNoData) ||
				errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &breaker{cb: cb, name: name}
}

// execute runs fn through the breaker. A rejection by an open breaker is
// reported as ErrProviderRejected so callers retry or degrade as usual.
func (b *breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderRejected, b.name, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerTrendsClient protects a TrendsClient with a circuit breaker.
type CircuitBreakerTrendsClient struct {
	client TrendsClient
	b      *breaker
}

// NewCircuitBreakerTrendsClient wraps client.
func NewCircuitBreakerTrendsClient(client TrendsClient) *CircuitBreakerTrendsClient {
	return &CircuitBreakerTrendsClient{client: client, b: newBreaker("trends-api")}
}

// InterestOverTime queries the wrapped client with circuit breaker protection.
func (c *CircuitBreakerTrendsClient) InterestOverTime(ctx context.Context, phrase string, from, to time.Time) ([]TrendSample, error) {
	return castResult[[]TrendSample](c.b.execute(func() (interface{}, error) {
		return c.client.InterestOverTime(ctx, phrase, from, to)
	}))
}

// CircuitBreakerAdPlatformClient protects an AdPlatformClient with a circuit breaker.
type CircuitBreakerAdPlatformClient struct {
	client AdPlatformClient
	b      *breaker
}

// NewCircuitBreakerAdPlatformClient wraps client.
func NewCircuitBreakerAdPlatformClient(client AdPlatformClient) *CircuitBreakerAdPlatformClient {
	return &CircuitBreakerAdPlatformClient{client: client, b: newBreaker("adplatform-api")}
}

// CreateReport submits a report with circuit breaker protection.
func (c *CircuitBreakerAdPlatformClient) CreateReport(ctx context.Context, phrases []string, geoIDs []int) (int, error) {
	return castResult[int](c.b.execute(func() (interface{}, error) {
		return c.client.CreateReport(ctx, phrases, geoIDs)
	}))
}

// ReportStatuses lists report statuses with circuit breaker protection.
func (c *CircuitBreakerAdPlatformClient) ReportStatuses(ctx context.Context) (map[int]string, error) {
	return castResult[map[int]string](c.b.execute(func() (interface{}, error) {
		return c.client.ReportStatuses(ctx)
	}))
}

// GetReport downloads a report with circuit breaker protection.
func (c *CircuitBreakerAdPlatformClient) GetReport(ctx context.Context, id int) ([]ReportEntry, error) {
	return castResult[[]ReportEntry](c.b.execute(func() (interface{}, error) {
		return c.client.GetReport(ctx, id)
	}))
}

// DeleteReport deletes a report with circuit breaker protection.
func (c *CircuitBreakerAdPlatformClient) DeleteReport(ctx context.Context, id int) error {
	_, err := c.b.execute(func() (interface{}, error) {
		return nil, c.client.DeleteReport(ctx, id)
	})
	return err
}
