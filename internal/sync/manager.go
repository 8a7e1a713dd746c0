// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
)

// Manager schedules periodic sync cycles over an Orchestrator.
type Manager struct {
	orch            *Orchestrator
	cfg             *config.Config
	clock           Clock
	lastSync        time.Time
	lastResults     []CycleResult
	running         bool
	mu              sync.RWMutex
	syncMu          sync.Mutex // serializes full cycles
	stopChan        chan struct{}
	wg              sync.WaitGroup
	onSyncCompleted func(results []CycleResult)
}

// NewManager creates a sync manager.
func NewManager(orch *Orchestrator, cfg *config.Config, clock Clock) *Manager {
	if clock == nil {
		clock = RealClock()
	}
	return &Manager{
		orch:  orch,
		cfg:   cfg,
		clock: clock,
	}
}

// Orchestrator returns the underlying orchestrator.
func (m *Manager) Orchestrator() *Orchestrator { return m.orch }

// SetOnSyncCompleted registers a callback invoked after every full cycle.
func (m *Manager) SetOnSyncCompleted(callback func(results []CycleResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = callback
}

// Start launches the periodic loop and, when configured, an initial cycle.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	// Each run gets its own stop channel; Stop closes it exactly once.
	stop := make(chan struct{})
	m.stopChan = stop
	m.mu.Unlock()

	logging.Info().Dur("interval", m.cfg.Sync.Interval).Msg("Starting sync manager...")

	// Add before starting goroutines so Stop never waits on a partial set.
	if m.cfg.Sync.SyncOnStartup {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.runCycle(ctx, stop)
		}()
	}

	m.wg.Add(1)
	go m.syncLoop(ctx, stop)
	return nil
}

// Stop stops the loop and waits for an in-flight cycle to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	stop := m.stopChan
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(stop)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

func (m *Manager) syncLoop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			m.runCycle(ctx, stop)
		}
	}
}

// runCycle runs one full cycle bound to both ctx and Stop.
func (m *Manager) runCycle(ctx context.Context, stop <-chan struct{}) []CycleResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	results, err := m.TriggerSync(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Sync failed")
	}
	return results
}

// TriggerSync runs one cycle of every source now and waits for it. The
// returned error is non-nil only when a cycle aborted.
func (m *Manager) TriggerSync(ctx context.Context) ([]CycleResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	results := m.orch.SyncAll(ctx, m.cfg.SyncYear(m.clock.Now()))

	m.mu.Lock()
	m.lastSync = m.clock.Now()
	m.lastResults = results
	callback := m.onSyncCompleted
	m.mu.Unlock()

	if callback != nil {
		callback(results)
	}

	for _, r := range results {
		if r.Aborted() && !r.Skipped {
			return results, fmt.Errorf("%s cycle aborted: %w", r.Source, r.Err)
		}
	}
	return results, nil
}

// SyncSource runs a single source cycle on demand.
func (m *Manager) SyncSource(ctx context.Context, source models.Source, year int) CycleResult {
	return m.orch.SyncSource(ctx, source, year)
}

// LastSyncTime returns when the last full cycle finished.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// LastResults returns the results of the last full cycle.
func (m *Manager) LastResults() []CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CycleResult(nil), m.lastResults...)
}

// SyncTrendsPhrase runs a trends cycle for a single phrase on demand.
func (m *Manager) SyncTrendsPhrase(ctx context.Context, year int, phrase string) CycleResult {
	return m.orch.SyncTrendsPhrase(ctx, year, phrase)
}

// QuotaRemaining returns the AdPlatform allowance left, or -1 when the
// source is disabled.
func (m *Manager) QuotaRemaining(ctx context.Context) (int, error) {
	return m.orch.QuotaRemaining(ctx)
}
