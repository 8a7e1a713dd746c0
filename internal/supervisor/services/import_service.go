// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package services

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/phraseimport"
)

// PhraseImporter is the part of *phraseimport.Importer the service drives.
type PhraseImporter interface {
	Import(ctx context.Context) (*phraseimport.ImportStats, error)
}

// ImportService re-imports the keywords CSV on an interval. The importer
// skips files whose checksum matches the last completed import, so an idle
// tick costs one file read. The initial import runs before the tree starts.
type ImportService struct {
	importer PhraseImporter
	interval time.Duration
	name     string
}

// NewImportService wraps importer. A non-positive interval makes Serve
// return suture.ErrDoNotRestart immediately.
func NewImportService(importer PhraseImporter, interval time.Duration) *ImportService {
	return &ImportService{
		importer: importer,
		interval: interval,
		name:     "phrase-import",
	}
}

// Serve implements suture.Service. Import failures are logged and retried
// on the next tick; they never restart the service.
func (s *ImportService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := s.importer.Import(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.Warn().Err(err).Msg("Phrase re-import failed")
				continue
			}
			if !stats.Unchanged {
				logging.Info().Int("added", stats.Added).Msg("Keywords file changed, phrases re-imported")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *ImportService) String() string {
	return s.name
}
