// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

/*
Package phraseimport seeds the phrase registry from a keywords CSV export.

The export has a header row followed by rows in which every fourth column,
starting at index 2, holds a search phrase (columns 2, 6, 10, 14, 18 and 22
by default). Blank cells are ignored. All phrases are written with
UpsertPhrases, which inserts then de-duplicates the registry, so importing
the same file twice is harmless.

# Progress Tracking

A ProgressTracker remembers the checksum of the last completed import.
BadgerProgress keeps it in a BadgerDB directory (import.progress_path) so an
unchanged file is skipped across restarts; InMemoryProgress is used in tests
and when no path is configured.

	progress, bdb, err := phraseimport.OpenBadgerProgress(cfg.Import.ProgressPath)
	if err != nil {
	    return err
	}
	defer bdb.Close()

	importer := phraseimport.NewImporter(&cfg.Import, db, progress)
	stats, err := importer.Import(ctx)
*/
package phraseimport
