// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const phrasesTable = "phrases"

// ListPhrases returns the phrase registry in insertion order.
func (db *DB) ListPhrases(ctx context.Context) ([]string, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT phrase FROM phrases WHERE id IN (SELECT MAX(id) FROM phrases GROUP BY phrase) ORDER BY id`)
	if err = observe("list_phrases", phrasesTable, start, err); err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")

	phrases := make([]string, 0, 64)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, newStorageError("list_phrases", phrasesTable, err)
		}
		phrases = append(phrases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("list_phrases", phrasesTable, err)
	}
	return phrases, nil
}

// UpsertPhrases inserts phrases, then de-duplicates the registry. Blank
// entries are skipped and surrounding whitespace trimmed. It returns how many
// phrases were new to the registry.
func (db *DB) UpsertPhrases(ctx context.Context, phrases []string) (int, error) {
	cleaned := normalizePhrases(phrases)
	if len(cleaned) == 0 {
		return 0, nil
	}

	before, err := db.phraseCount(ctx)
	if err != nil {
		return 0, err
	}

	if err := db.insertPhrases(ctx, cleaned); err != nil {
		return 0, err
	}
	if _, err := db.dedupTable(ctx, phrasesTable, "phrase"); err != nil {
		return 0, err
	}

	after, err := db.phraseCount(ctx)
	if err != nil {
		return 0, err
	}
	return int(after - before), nil
}

func (db *DB) insertPhrases(ctx context.Context, phrases []string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer rollbackQuietly(tx)

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO phrases (phrase) VALUES ($1)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer closeWithLog(stmt, "statement")

		for _, p := range phrases {
			if _, err := stmt.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("insert %q: %w", p, err)
			}
		}
		return tx.Commit()
	}()
	return observe("insert_phrases", phrasesTable, start, err)
}

func (db *DB) phraseCount(ctx context.Context) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(DISTINCT phrase) FROM phrases`).Scan(&n)
	return n, observe("count_phrases", phrasesTable, start, err)
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
