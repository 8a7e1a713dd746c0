// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// QuotaStore persists the single quota row.
type QuotaStore interface {
	ReadQuota(ctx context.Context) (*models.QuotaState, error)
	WriteQuota(ctx context.Context, state models.QuotaState) error
}

// QuotaTracker enforces the AdPlatform rolling phrase quota.
//
// The window is measured from the last recorded request: once window has
// passed since then, the consumed count starts again from zero.
type QuotaTracker struct {
	store  QuotaStore
	clock  Clock
	limit  int
	window time.Duration
}

// NewQuotaTracker creates a tracker allowing limit phrases per window.
func NewQuotaTracker(store QuotaStore, clock Clock, limit int, window time.Duration) *QuotaTracker {
	return &QuotaTracker{store: store, clock: clock, limit: limit, window: window}
}

// Limit returns the phrase allowance per window.
func (q *QuotaTracker) Limit() int { return q.limit }

// consumed returns the phrases charged inside the current window.
func (q *QuotaTracker) consumed(ctx context.Context) (int, error) {
	state, err := q.store.ReadQuota(ctx)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, nil
	}
	if q.clock.Now().Sub(state.LastRequestTime) >= q.window {
		return 0, nil
	}
	return state.PhrasesConsumed, nil
}

// Remaining returns how many phrases may still be requested now.
func (q *QuotaTracker) Remaining(ctx context.Context) (int, error) {
	used, err := q.consumed(ctx)
	if err != nil {
		return 0, err
	}
	remaining := max(q.limit-used, 0)
	metrics.QuotaRemaining.Set(float64(remaining))
	return remaining, nil
}

// Commit charges attempted phrases and stamps the request time. Nothing is
// written when attempted is zero.
func (q *QuotaTracker) Commit(ctx context.Context, attempted int) error {
	if attempted <= 0 {
		return nil
	}
	used, err := q.consumed(ctx)
	if err != nil {
		return err
	}
	state := models.QuotaState{
		LastRequestTime: q.clock.Now().UTC(),
		PhrasesConsumed: used + attempted,
	}
	if err := q.store.WriteQuota(ctx, state); err != nil {
		return err
	}
	metrics.QuotaRemaining.Set(float64(max(q.limit-state.PhrasesConsumed, 0)))
	return nil
}
