// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/epitrack/internal/cache"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
	syncpkg "github.com/tomtom215/epitrack/internal/sync"
)

const (
	defaultStartWeek  = 1
	defaultEndWeek    = 52
	defaultStartMonth = 1
	defaultEndMonth   = 12
)

// seriesRead describes one series lookup. refresh, when set, runs before
// the read on a cache miss.
type seriesRead struct {
	source  models.Source
	query   models.SeriesQuery
	refresh func(ctx context.Context) syncpkg.CycleResult
	// monthly folds a weekly trends range into months starting at query.From.
	monthly bool
}

// BulletinSeries handles GET /api/v1/bulletin/series.
func (h *Handler) BulletinSeries(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseWeekQuery(r, false)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	read := seriesRead{source: models.SourceBulletin, query: q}
	if h.syncBeforeRead() {
		read.refresh = func(ctx context.Context) syncpkg.CycleResult {
			return h.sync.SyncSource(ctx, models.SourceBulletin, q.Year)
		}
	}
	h.serveSeries(w, r, read)
}

// TrendsSeries handles GET /api/v1/trends/series.
func (h *Handler) TrendsSeries(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseWeekQuery(r, true)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	read := seriesRead{source: models.SourceTrends, query: q}
	if h.syncBeforeRead() {
		read.refresh = func(ctx context.Context) syncpkg.CycleResult {
			return h.sync.SyncTrendsPhrase(ctx, q.Year, q.Phrase)
		}
	}
	h.serveSeries(w, r, read)
}

// TrendsMonthly handles GET /api/v1/trends/monthly. Stored weekly values
// covering the requested months are summed per month and normalized to
// 0..100 against the busiest month.
func (h *Handler) TrendsMonthly(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseMonthQuery(r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	read := seriesRead{source: models.SourceTrends, query: q, monthly: true}
	if h.syncBeforeRead() {
		read.refresh = func(ctx context.Context) syncpkg.CycleResult {
			return h.sync.SyncTrendsPhrase(ctx, q.Year, q.Phrase)
		}
	}
	h.serveSeries(w, r, read)
}

// AdPlatformSeries handles GET /api/v1/adplatform/series. The quota makes
// on-demand fetches unsafe, so this endpoint only reads stored months.
func (h *Handler) AdPlatformSeries(w http.ResponseWriter, r *http.Request) {
	q, apiErr := h.parseMonthQuery(r)
	if apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}
	h.serveSeries(w, r, seriesRead{source: models.SourceAdPlatform, query: q})
}

func (h *Handler) serveSeries(w http.ResponseWriter, r *http.Request, read seriesRead) {
	start := time.Now()
	key := cache.GenerateKey(r.URL.Path, r.URL.Query())

	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			if resp, ok := cached.(*models.SeriesResponse); ok {
				respondSuccess(w, http.StatusOK, resp, models.Metadata{
					QueryTimeMS: time.Since(start).Milliseconds(),
					Cached:      true,
				})
				return
			}
		}
	}

	ctx := r.Context()
	if read.refresh != nil {
		// A failed refresh still serves whatever is stored.
		if res := read.refresh(ctx); res.Err != nil {
			logging.Ctx(ctx).Warn().Err(res.Err).
				Str("source", string(read.source)).
				Msg("Sync before read failed, serving stored data")
		}
	}

	points, err := h.readPoints(ctx, read)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeDatabase, "Failed to read series", err)
		return
	}
	if len(points) == 0 {
		respondAPIError(w, http.StatusNotFound, &models.APIError{
			Code:    codeNotFound,
			Message: "No data for the requested range",
		})
		return
	}

	kind := read.source.PeriodKind()
	if read.monthly {
		kind = models.PeriodMonth
	}
	resp := &models.SeriesResponse{
		Source:     read.source,
		Phrase:     read.query.Phrase,
		Year:       read.query.Year,
		PeriodKind: kind,
		From:       read.query.From,
		To:         read.query.To,
		Points:     points,
	}
	if h.cache != nil {
		h.cache.Set(key, resp)
	}
	respondSuccess(w, http.StatusOK, resp, models.Metadata{QueryTimeMS: time.Since(start).Milliseconds()})
}

func (h *Handler) readPoints(ctx context.Context, read seriesRead) ([]models.SeriesPoint, error) {
	q := read.query
	if !read.monthly {
		return h.store.ReadRange(ctx, read.source, q.Phrase, q.Year, q.From, q.To)
	}
	startWeek, endWeek := syncpkg.MonthWeekRange(q.Year, q.From, q.To)
	weekly, err := h.store.ReadRange(ctx, read.source, q.Phrase, q.Year, startWeek, endWeek)
	if err != nil {
		return nil, err
	}
	return syncpkg.AggregateMonths(q.Year, weekly, q.From), nil
}

func (h *Handler) syncBeforeRead() bool {
	return h.sync != nil && h.config.Sync.SyncBeforeRead
}

func (h *Handler) defaultYear() int {
	return h.config.SyncYear(h.now())
}

// parseWeekQuery reads year, start_week, end_week and, when needPhrase is
// set, a mandatory phrase.
func (h *Handler) parseWeekQuery(r *http.Request, needPhrase bool) (models.SeriesQuery, *models.APIError) {
	vals, apiErr := intParams(r,
		[]string{"year", "start_week", "end_week"},
		[]int{h.defaultYear(), defaultStartWeek, defaultEndWeek})
	if apiErr != nil {
		return models.SeriesQuery{}, apiErr
	}
	q := models.SeriesQuery{
		Phrase: strings.TrimSpace(r.URL.Query().Get("phrase")),
		Year:   vals[0],
		From:   vals[1],
		To:     vals[2],
	}
	if needPhrase && q.Phrase == "" {
		return q, &models.APIError{
			Code:    codeValidation,
			Message: "phrase is required",
			Details: map[string]interface{}{"field": "phrase", "tag": "required"},
		}
	}
	return q, validateRequest(&q)
}

// parseMonthQuery reads phrase, year, start_month and end_month. The
// result reuses SeriesQuery with From and To as months.
func (h *Handler) parseMonthQuery(r *http.Request) (models.SeriesQuery, *models.APIError) {
	vals, apiErr := intParams(r,
		[]string{"year", "start_month", "end_month"},
		[]int{h.defaultYear(), defaultStartMonth, defaultEndMonth})
	if apiErr != nil {
		return models.SeriesQuery{}, apiErr
	}
	mq := models.MonthQuery{
		Phrase: strings.TrimSpace(r.URL.Query().Get("phrase")),
		Year:   vals[0],
		From:   vals[1],
		To:     vals[2],
	}
	if apiErr := validateRequest(&mq); apiErr != nil {
		return models.SeriesQuery{}, apiErr
	}
	return models.SeriesQuery{Phrase: mq.Phrase, Year: mq.Year, From: mq.From, To: mq.To}, nil
}
