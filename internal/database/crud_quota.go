// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

const quotaTable = "quota_state"

// ReadQuota returns the newest quota row, or nil when none was written yet.
func (db *DB) ReadQuota(ctx context.Context) (*models.QuotaState, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var state models.QuotaState
	err := db.conn.QueryRowContext(ctx,
		`SELECT last_request_time, phrases_consumed FROM quota_state ORDER BY id DESC LIMIT 1`).
		Scan(&state.LastRequestTime, &state.PhrasesConsumed)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("read_quota", quotaTable, time.Since(start), nil)
		return nil, nil
	}
	if err = observe("read_quota", quotaTable, start, err); err != nil {
		return nil, err
	}
	state.LastRequestTime = state.LastRequestTime.UTC()
	return &state, nil
}

// WriteQuota stores state and prunes every older quota row in the same
// transaction, leaving exactly one row.
func (db *DB) WriteQuota(ctx context.Context, state models.QuotaState) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.writeQuotaTx(ctx, state)
	return observe("write_quota", quotaTable, start, err)
}

func (db *DB) writeQuotaTx(ctx context.Context, state models.QuotaState) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quota_state (last_request_time, phrases_consumed) VALUES ($1, $2)`,
		state.LastRequestTime.UTC(), state.PhrasesConsumed); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quota_state WHERE id <> (SELECT MAX(id) FROM quota_state)`); err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return tx.Commit()
}
