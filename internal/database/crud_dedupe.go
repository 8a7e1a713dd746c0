// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
)

// Dedup removes every row whose natural key (phrase, year, period) has a
// newer row, and returns the number of rows removed. The newest row of each
// key always survives, so running it again removes nothing.
func (db *DB) Dedup(ctx context.Context, source models.Source) (int64, error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, newStorageError("dedup", "", err)
	}
	return db.dedupTable(ctx, table, "phrase, year, period")
}

func (db *DB) dedupTable(ctx context.Context, table, key string) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		`DELETE FROM %[1]s WHERE id NOT IN (SELECT MAX(id) FROM %[1]s GROUP BY %[2]s)`, table, key)

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, query)
	if err = observe("dedup", table, start, err); err != nil {
		return 0, err
	}
	return rowsRemoved(res, table), nil
}

// rowsRemoved reads the affected row count of a finished DELETE. Drivers
// that cannot report it still committed the delete, so the count falls back
// to zero with a warning.
func rowsRemoved(res sql.Result, table string) int64 {
	removed, err := res.RowsAffected()
	if err != nil {
		logging.Warn().Err(err).Str("table", table).Msg("Dedup row count unavailable")
		return 0
	}
	return removed
}
