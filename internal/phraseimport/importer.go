// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package phraseimport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
)

// PhraseStore is the registry the importer writes to.
type PhraseStore interface {
	UpsertPhrases(ctx context.Context, phrases []string) (int, error)
}

// Importer loads the phrase registry from a keywords CSV.
type Importer struct {
	cfg      *config.ImportConfig
	store    PhraseStore
	progress ProgressTracker

	mu      sync.Mutex
	running bool
}

// NewImporter creates an importer. progress may be nil, in which case every
// run imports the file.
func NewImporter(cfg *config.ImportConfig, store PhraseStore, progress ProgressTracker) *Importer {
	return &Importer{cfg: cfg, store: store, progress: progress}
}

// Import reads cfg.CSVPath and upserts its phrases. A file whose checksum
// matches the last completed import is skipped and reported as Unchanged.
func (i *Importer) Import(ctx context.Context) (*ImportStats, error) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil, fmt.Errorf("import already in progress")
	}
	i.running = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.running = false
		i.mu.Unlock()
	}()

	stats := &ImportStats{File: i.cfg.CSVPath, StartTime: time.Now()}

	data, err := os.ReadFile(i.cfg.CSVPath)
	if err != nil {
		return stats, fmt.Errorf("read keywords file: %w", err)
	}
	sum := sha256.Sum256(data)
	stats.Checksum = hex.EncodeToString(sum[:])

	if prev := i.previous(ctx); prev != nil && prev.Completed() && prev.Checksum == stats.Checksum {
		stats.Unchanged = true
		stats.EndTime = time.Now()
		logging.Info().Str("file", stats.File).Str("checksum", stats.Checksum[:12]).Msg("Keywords file unchanged since last import, skipping")
		return stats, nil
	}

	phrases, rows, err := ReadPhrases(bytes.NewReader(data), i.cfg.Columns)
	stats.Rows = rows
	if err != nil {
		return stats, err
	}
	stats.PhrasesRead = len(phrases)

	added, err := i.store.UpsertPhrases(ctx, phrases)
	if err != nil {
		return stats, fmt.Errorf("upsert phrases: %w", err)
	}
	stats.Added = added
	stats.EndTime = time.Now()

	if i.progress != nil {
		if err := i.progress.Save(ctx, stats); err != nil {
			logging.Warn().Err(err).Msg("Failed to save import progress")
		}
	}

	logging.Info().
		Str("file", stats.File).
		Int("rows", stats.Rows).
		Int("phrases_read", stats.PhrasesRead).
		Int("added", stats.Added).
		Dur("duration", stats.Duration()).
		Msg("Phrase import completed")

	return stats, nil
}

func (i *Importer) previous(ctx context.Context) *ImportStats {
	if i.progress == nil {
		return nil
	}
	prev, err := i.progress.Load(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load import progress, importing anyway")
		return nil
	}
	return prev
}

// IsRunning reports whether an import is in progress.
func (i *Importer) IsRunning() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}
