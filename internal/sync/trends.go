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

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// TrendsAdapter fetches weekly search interest per phrase, retrying each
// phrase on a fixed step until its budget is spent.
type TrendsAdapter struct {
	client  TrendsClient
	clock   Clock
	step    time.Duration
	budget  time.Duration
	workers int
}

// NewTrendsAdapter creates an adapter around client.
func NewTrendsAdapter(client TrendsClient, clock Clock, cfg *config.TrendsConfig) *TrendsAdapter {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &TrendsAdapter{
		client:  client,
		clock:   clock,
		step:    cfg.RetryStep,
		budget:  cfg.RetryBudget,
		workers: workers,
	}
}

// Fetch returns the weekly points of phrase for the range. Retryable
// failures are retried every step until budget elapses; the last error is
// returned when the budget runs out. Year of every point is from.Year().
func (a *TrendsAdapter) Fetch(ctx context.Context, phrase string, from, to time.Time) ([]models.StatPoint, error) {
	source := string(models.SourceTrends)
	var lastErr error

	for elapsed := time.Duration(0); elapsed < a.budget; elapsed += a.step {
		if elapsed > 0 {
			metrics.ProviderRetries.WithLabelValues(source).Inc()
			if err := a.clock.Sleep(ctx, a.step); err != nil {
				return nil, err
			}
		}

		samples, err := a.client.InterestOverTime(ctx, phrase, from, to)
		if err == nil {
			metrics.RecordProviderRequest(source, "ok")
			return BucketWeeks(phrase, from.Year(), samples), nil
		}
		metrics.RecordProviderRequest(source, outcome(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		logging.Ctx(ctx).Debug().Err(err).Str("phrase", phrase).Dur("elapsed", elapsed).Msg("Trends query failed, will retry")
	}

	return nil, fmt.Errorf("trends phrase %q: retry budget %s exhausted: %w", phrase, a.budget, lastErr)
}

// FetchAll fetches phrases concurrently. Phrases that fail or have no data
// are logged and contribute nothing.
func (a *TrendsAdapter) FetchAll(ctx context.Context, phrases []string, from, to time.Time) []models.StatPoint {
	slots := make([][]models.StatPoint, len(phrases))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, phrase := range phrases {
		g.Go(func() error {
			points, err := a.Fetch(ctx, phrase, from, to)
			if err != nil {
				event := logging.Ctx(ctx).Warn()
				if errors.Is(err, ErrNoData) {
					event = logging.Ctx(ctx).Info()
				}
				event.Err(err).Str("phrase", phrase).Msg("Trends phrase skipped")
				return nil
			}
			slots[i] = points
			return nil
		})
	}
	_ = g.Wait()

	var out []models.StatPoint
	for _, points := range slots {
		out = append(out, points...)
	}
	return out
}

// BucketWeeks converts Sunday-anchored samples to weekly points keyed by
// ISO week. When the first sample falls in ISO week 52 of the previous year
// it becomes week 0 and the whole series shifts by one, so the first week of
// the year is always week 1. Every other sample outside the ISO year is
// dropped, as is any period above 53 after the shift.
func BucketWeeks(phrase string, year int, samples []TrendSample) []models.StatPoint {
	if len(samples) == 0 {
		return nil
	}

	shift := 0
	var points []models.StatPoint
	for i, s := range samples {
		isoYear, week := s.Time.ISOWeek()
		switch {
		case i == 0 && isoYear == year-1 && week == 52:
			shift = 1
			week = 0
		case isoYear != year:
			continue
		}
		period := week + shift
		if period > 53 {
			continue
		}
		points = append(points, models.StatPoint{
			Source: models.SourceTrends,
			Entity: phrase,
			Year:   year,
			Period: period,
			Value:  s.Value,
		})
	}
	return points
}
