// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// BulletinAdapter scrapes the weekly influenza bulletin.
type BulletinAdapter struct {
	baseURL string
	http    *requester
	workers int
	timeout time.Duration
}

// NewBulletinAdapter creates a bulletin adapter from configuration.
func NewBulletinAdapter(cfg *config.BulletinConfig) *BulletinAdapter {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BulletinAdapter{
		baseURL: cfg.URL,
		http:    newRequester(string(models.SourceBulletin), timeout, cfg.RateLimit, 2),
		workers: workers,
		timeout: timeout,
	}
}

func (a *BulletinAdapter) pageURL(year, week int) string {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("week", fmt.Sprintf("%02d", week))
	return a.baseURL + "?" + q.Encode()
}

func (a *BulletinAdapter) get(ctx context.Context, target string) ([]byte, error) {
	return a.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
}

// WeekNumbers returns the weeks published for year, read from the week
// selector of the first week's page.
func (a *BulletinAdapter) WeekNumbers(ctx context.Context, year int) ([]int, error) {
	body, err := a.get(ctx, a.pageURL(year, 1))
	if err != nil {
		return nil, err
	}
	return parseWeekList(bytes.NewReader(body))
}

// WeekRate fetches and parses the incidence rate for one week.
func (a *BulletinAdapter) WeekRate(ctx context.Context, year, week int) (float64, error) {
	body, err := a.get(ctx, a.pageURL(year, week))
	if err != nil {
		return 0, err
	}
	return parseWeekRate(bytes.NewReader(body), year, week)
}

// FetchWeeks fetches weeks concurrently with at most a.workers in flight.
// Weeks that fail or do not parse are logged and omitted; the result is in
// the order of weeks.
func (a *BulletinAdapter) FetchWeeks(ctx context.Context, year int, weeks []int) []models.StatPoint {
	slots := make([]*models.StatPoint, len(weeks))
	source := string(models.SourceBulletin)

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, week := range weeks {
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			value, err := a.WeekRate(opCtx, year, week)
			metrics.RecordProviderRequest(source, outcome(err))
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Int("year", year).Int("week", week).Msg("Bulletin week skipped")
				return nil
			}
			slots[i] = &models.StatPoint{
				Source: models.SourceBulletin,
				Year:   year,
				Period: week,
				Value:  value,
			}
			return nil
		})
	}
	_ = g.Wait()

	points := make([]models.StatPoint, 0, len(weeks))
	for _, p := range slots {
		if p != nil {
			points = append(points, *p)
		}
	}
	return points
}
