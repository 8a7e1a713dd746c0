// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
)

// NewOrchestratorFromConfig builds the production adapters for every
// enabled source, wrapping the API clients in circuit breakers.
func NewOrchestratorFromConfig(cfg *config.Config, store Store, clock Clock) *Orchestrator {
	if clock == nil {
		clock = RealClock()
	}
	opts := Options{
		Clock:             clock,
		TrendsDateStart:   cfg.Trends.DateStart,
		TrendsDateEnd:     cfg.Trends.DateEnd,
		TrendsPhraseLimit: cfg.Trends.PhraseLimit,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RetryDelay:        cfg.Sync.RetryDelay,
		CycleTimeout:      cfg.Sync.CycleTimeout,
	}

	if cfg.Bulletin.Enabled {
		opts.Bulletin = NewBulletinAdapter(&cfg.Bulletin)
	}
	if cfg.Trends.Enabled {
		client := NewCircuitBreakerTrendsClient(NewHTTPTrendsClient(&cfg.Trends))
		opts.Trends = NewTrendsAdapter(client, clock, &cfg.Trends)
	}
	if cfg.AdPlatform.Enabled {
		client := NewCircuitBreakerAdPlatformClient(NewHTTPAdPlatformClient(&cfg.AdPlatform))
		opts.AdPlatform = NewAdPlatformAdapter(client, clock, &cfg.AdPlatform)
		opts.Quota = NewQuotaTracker(store, clock, cfg.AdPlatform.DailyQuota, cfg.AdPlatform.QuotaWindow)
	}

	logging.Info().
		Bool("bulletin", opts.Bulletin != nil).
		Bool("trends", opts.Trends != nil).
		Bool("adplatform", opts.AdPlatform != nil).
		Msg("Sync sources configured")

	return NewOrchestrator(store, opts)
}
