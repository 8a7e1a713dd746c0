// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package phraseimport

import (
	"time"
)

// ImportStats holds statistics about one import of a keywords file.
type ImportStats struct {
	// File is the path that was imported.
	File string `json:"file"`

	// Checksum is the hex SHA-256 of the file contents.
	Checksum string `json:"checksum"`

	// Rows is the number of data rows read, header excluded.
	Rows int `json:"rows"`

	// PhrasesRead counts non-blank phrase cells, duplicates included.
	PhrasesRead int `json:"phrases_read"`

	// Added is how many phrases were new to the registry.
	Added int `json:"added"`

	// Unchanged is set when the file matched the last completed import.
	Unchanged bool `json:"unchanged"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the duration of the import.
func (s *ImportStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Completed reports whether the import finished.
func (s *ImportStats) Completed() bool {
	return !s.EndTime.IsZero()
}
