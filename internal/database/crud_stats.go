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

	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// observe records query metrics and wraps err into a StorageError.
func observe(op, table string, start time.Time, err error) error {
	metrics.RecordDBQuery(op, table, time.Since(start), err)
	if err == nil {
		return nil
	}
	return newStorageError(op, table, err)
}

// MaxPeriod returns the highest stored period for (source, year, entity).
// ok is false when nothing is stored yet. entity is ignored for bulletin.
func (db *DB) MaxPeriod(ctx context.Context, source models.Source, year int, entity string) (period int, ok bool, err error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, false, newStorageError("max_period", "", err)
	}
	if !source.HasEntity() {
		entity = ""
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var max sql.NullInt64
	err = db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT MAX(period) FROM %s WHERE year = $1 AND phrase = $2`, table),
		year, entity).Scan(&max)
	if err = observe("max_period", table, start, err); err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// MaxPeriodsByEntity returns the cursor of every phrase that has rows for year.
// Phrases without rows are absent from the map.
func (db *DB) MaxPeriodsByEntity(ctx context.Context, source models.Source, year int) (map[string]int, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, newStorageError("max_periods", "", err)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT phrase, MAX(period) FROM %s WHERE year = $1 GROUP BY phrase`, table), year)
	if err = observe("max_periods", table, start, err); err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")

	cursors := make(map[string]int)
	for rows.Next() {
		var phrase string
		var period int
		if err := rows.Scan(&phrase, &period); err != nil {
			return nil, newStorageError("max_periods", table, err)
		}
		cursors[phrase] = period
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("max_periods", table, err)
	}
	return cursors, nil
}

// InsertBatch appends points in one transaction. Uniqueness is not checked
// here; run Dedup afterwards.
func (db *DB) InsertBatch(ctx context.Context, source models.Source, points []models.StatPoint) error {
	if len(points) == 0 {
		return nil
	}
	table, err := tableFor(source)
	if err != nil {
		return newStorageError("insert", "", err)
	}
	for i := range points {
		if points[i].Source != source {
			return newStorageError("insert", table,
				fmt.Errorf("point %d belongs to source %q", i, points[i].Source))
		}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err = db.insertPoints(ctx, table, source, points)
	return observe("insert", table, start, err)
}

func (db *DB) insertPoints(ctx context.Context, table string, source models.Source, points []models.StatPoint) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer rollbackQuietly(tx)

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (phrase, year, period, value) VALUES ($1, $2, $3, $4)`, table))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer closeWithLog(stmt, "statement")

	for _, p := range points {
		entity := p.Entity
		if !source.HasEntity() {
			entity = ""
		}
		if _, err := stmt.ExecContext(ctx, entity, p.Year, p.Period, p.Value); err != nil {
			return fmt.Errorf("insert %s: %w", p.Key(), err)
		}
	}
	return tx.Commit()
}

// ReadRange returns (period, value) pairs ordered by period for
// periodFrom <= period <= periodTo. When a period still has duplicates the
// newest row is returned.
func (db *DB) ReadRange(ctx context.Context, source models.Source, entity string, year, periodFrom, periodTo int) ([]models.SeriesPoint, error) {
	table, err := tableFor(source)
	if err != nil {
		return nil, newStorageError("read_range", "", err)
	}
	if !source.HasEntity() {
		entity = ""
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT period, value FROM %[1]s
		WHERE id IN (
			SELECT MAX(id) FROM %[1]s
			WHERE year = $1 AND phrase = $2 AND period BETWEEN $3 AND $4
			GROUP BY period
		)
		ORDER BY period`, table)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, year, entity, periodFrom, periodTo)
	if err = observe("read_range", table, start, err); err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")

	points := make([]models.SeriesPoint, 0, 16)
	for rows.Next() {
		var p models.SeriesPoint
		if err := rows.Scan(&p.Period, &p.Value); err != nil {
			return nil, newStorageError("read_range", table, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("read_range", table, err)
	}
	return points, nil
}

// RowCount returns the number of stored rows for source.
func (db *DB) RowCount(ctx context.Context, source models.Source) (int64, error) {
	table, err := tableFor(source)
	if err != nil {
		return 0, newStorageError("count", "", err)
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err = db.conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	return n, observe("count", table, start, err)
}
