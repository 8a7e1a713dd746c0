// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package database

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/epitrack/internal/logging"
)

// ErrStorage matches every *StorageError with errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports a failed persistence gateway operation. The sync
// orchestrator aborts the affected source's cycle when it sees one.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func newStorageError(op, table string, err error) *StorageError {
	return &StorageError{Op: op, Table: table, Err: err}
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Kind is the metrics label for storage failures.
func (e *StorageError) Kind() string { return "storage" }

// closeWithLog closes a resource and logs a failure.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly is for error paths where a Close failure is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// rollbackQuietly rolls back an unfinished transaction.
func rollbackQuietly(tx interface{ Rollback() error }) {
	_ = tx.Rollback()
}
