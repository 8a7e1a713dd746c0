// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"context"
	"time"

	"github.com/tomtom215/epitrack/internal/cache"
	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
	syncpkg "github.com/tomtom215/epitrack/internal/sync"
)

// Version is reported by the health endpoint. It is overridden at link time.
var Version = "dev"

// SeriesStore is the persistence surface the handlers read and write.
// Implemented by *database.DB.
type SeriesStore interface {
	ReadRange(ctx context.Context, source models.Source, entity string, year, periodFrom, periodTo int) ([]models.SeriesPoint, error)
	ListPhrases(ctx context.Context) ([]string, error)
	UpsertPhrases(ctx context.Context, phrases []string) (int, error)
	Ping(ctx context.Context) error
	Driver() string
}

// SyncRunner runs sync cycles on demand. Implemented by *sync.Manager.
type SyncRunner interface {
	TriggerSync(ctx context.Context) ([]syncpkg.CycleResult, error)
	SyncSource(ctx context.Context, source models.Source, year int) syncpkg.CycleResult
	SyncTrendsPhrase(ctx context.Context, year int, phrase string) syncpkg.CycleResult
	LastSyncTime() time.Time
	QuotaRemaining(ctx context.Context) (int, error)
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, cache hooks (this file)
//   - handlers_helpers.go: response and query parsing helpers
//   - handlers_health.go: health endpoint
//   - handlers_series.go: series read endpoints
//   - handlers_phrases.go: phrase registry endpoints
//   - handlers_sync.go: manual sync trigger
type Handler struct {
	store     SeriesStore
	sync      SyncRunner
	config    *config.Config
	cache     *cache.Cache
	now       func() time.Time
	startTime time.Time
}

// NewHandler creates a handler. syncRunner may be nil, in which case reads
// serve stored data only and POST /sync is unavailable. A zero
// Server.CacheTTL disables response caching.
func NewHandler(store SeriesStore, syncRunner SyncRunner, cfg *config.Config) *Handler {
	h := &Handler{
		store:     store,
		sync:      syncRunner,
		config:    cfg,
		now:       time.Now,
		startTime: time.Now(),
	}
	if cfg.Server.CacheTTL > 0 {
		h.cache = cache.New("series", cfg.Server.CacheTTL)
	}
	return h
}

// ClearCache drops every cached series response.
func (h *Handler) ClearCache() {
	if h.cache != nil {
		h.cache.Clear()
		logging.Debug().Msg("Series cache cleared")
	}
}

// OnSyncCompleted is registered with the sync manager. It clears the
// cache when a cycle changed stored data.
func (h *Handler) OnSyncCompleted(results []syncpkg.CycleResult) {
	for _, r := range results {
		if r.Inserted > 0 || r.Removed > 0 {
			h.ClearCache()
			return
		}
	}
}

// Close stops the cache janitor.
func (h *Handler) Close() {
	if h.cache != nil {
		h.cache.Stop()
	}
}
