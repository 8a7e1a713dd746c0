// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/database"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/phraseimport"
)

// initPhraseImport runs the keywords CSV import once before the sync
// services start, so the first cycle already sees the registry. It returns
// a nil importer when no CSV is configured. Progress is kept in BadgerDB
// when Import.ProgressPath is set, in memory otherwise.
//
// A failed initial import is logged, not fatal: the registry may already
// hold phrases from an earlier run or from the API.
func initPhraseImport(ctx context.Context, cfg *config.Config, db *database.DB) (*phraseimport.Importer, func(), error) {
	noop := func() {}
	if cfg.Import.CSVPath == "" {
		logging.Info().Msg("Phrase import disabled (no keywords CSV configured)")
		return nil, noop, nil
	}

	var (
		progress phraseimport.ProgressTracker
		closer   = noop
	)
	if cfg.Import.ProgressPath != "" {
		bp, bdb, err := phraseimport.OpenBadgerProgress(cfg.Import.ProgressPath)
		if err != nil {
			return nil, noop, fmt.Errorf("open import progress store: %w", err)
		}
		progress = bp
		closer = func() {
			if err := bdb.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing import progress store")
			}
		}
	} else {
		progress = phraseimport.NewInMemoryProgress()
	}

	importer := phraseimport.NewImporter(&cfg.Import, db, progress)

	stats, err := importer.Import(ctx)
	if err != nil {
		logging.Error().Err(err).Str("file", cfg.Import.CSVPath).Msg("Initial phrase import failed")
		return importer, closer, nil
	}
	logging.Info().
		Str("file", stats.File).
		Int("phrases", stats.PhrasesRead).
		Int("added", stats.Added).
		Bool("unchanged", stats.Unchanged).
		Msg("Initial phrase import finished")
	return importer, closer, nil
}
