// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/epitrack/internal/logging"
)

// SyncManager is the lifecycle of *sync.Manager.
type SyncManager interface {
	Start(ctx context.Context) error
	Stop() error
	LastSyncTime() time.Time
}

// SyncService runs the periodic sync manager under supervision.
//
// Serve starts the manager, blocks until ctx is canceled, then stops it.
// Stop waits for an in-flight cycle, whose context is canceled first, so a
// half-polled AdPlatform chunk is abandoned rather than committed late.
type SyncService struct {
	manager SyncManager
	name    string
}

// NewSyncService wraps manager.
func NewSyncService(manager SyncManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-manager",
	}
}

// Serve implements suture.Service. A start failure is returned so suture
// restarts the service with backoff.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync manager stop failed: %w", err)
	}

	event := logging.Info().Str("service", s.name)
	if last := s.manager.LastSyncTime(); !last.IsZero() {
		event = event.Time("last_sync", last)
	}
	event.Msg("Sync service stopped")

	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SyncService) String() string {
	return s.name
}
