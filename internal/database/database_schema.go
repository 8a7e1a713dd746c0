// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
database_schema.go - table bootstrap

Tables (each with a sequence-backed surrogate id):
  - bulletin_stat, trends_stat, adplatform_stat: (phrase, year, period, value).
    The natural key is (phrase, year, period); bulletin rows use phrase ''.
    Uniqueness is restored after each insert by the de-duplication pass, so
    the key has an index but no unique constraint.
  - phrases: the phrase registry.
  - quota_state: the AdPlatform quota cursor, one row after every write.

All statements run unchanged on DuckDB and PostgreSQL.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/epitrack/internal/models"
)

// statTables maps each source to its table.
var statTables = map[models.Source]string{
	models.SourceBulletin:   "bulletin_stat",
	models.SourceTrends:     "trends_stat",
	models.SourceAdPlatform: "adplatform_stat",
}

func tableFor(source models.Source) (string, error) {
	table, ok := statTables[source]
	if !ok {
		return "", fmt.Errorf("unknown source %q", source)
	}
	return table, nil
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, q := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema statement %q: %w", firstLine(q), err)
		}
	}
	return nil
}

func getTableCreationQueries() []string {
	queries := make([]string, 0, 16)
	for _, source := range models.AllSources {
		table := statTables[source]
		queries = append(queries,
			fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s_id_seq START 1`, table),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
				id BIGINT PRIMARY KEY DEFAULT nextval('%[1]s_id_seq'),
				phrase TEXT NOT NULL DEFAULT '',
				year INTEGER NOT NULL,
				period INTEGER NOT NULL,
				value DOUBLE PRECISION NOT NULL
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_key ON %[1]s (year, phrase, period)`, table),
		)
	}

	queries = append(queries,
		`CREATE SEQUENCE IF NOT EXISTS phrases_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS phrases (
			id BIGINT PRIMARY KEY DEFAULT nextval('phrases_id_seq'),
			phrase TEXT NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS quota_state_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS quota_state (
			id BIGINT PRIMARY KEY DEFAULT nextval('quota_state_id_seq'),
			last_request_time TIMESTAMP NOT NULL,
			phrases_consumed INTEGER NOT NULL
		)`,
	)
	return queries
}

func firstLine(q string) string {
	for i, r := range q {
		if r == '\n' {
			return q[:i]
		}
	}
	return q
}
