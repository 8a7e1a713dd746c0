// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// ReportState is the lifecycle state of one report chunk.
type ReportState string

const (
	StateRequested ReportState = "requested"
	StatePolling   ReportState = "polling"
	StateReady     ReportState = "ready"
	StateFetched   ReportState = "fetched"
	StateDeleted   ReportState = "deleted"
	StateTimedOut  ReportState = "timed_out"
	StateFailed    ReportState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s ReportState) Terminal() bool {
	return s == StateDeleted || s == StateTimedOut || s == StateFailed
}

// ChunkResult records what happened to one chunk of phrases.
type ChunkResult struct {
	Phrases  []string
	ReportID int
	// States is every state the chunk passed through, in order.
	States []ReportState
	Points []models.StatPoint
	Err    error
}

// Final returns the last recorded state.
func (c *ChunkResult) Final() ReportState {
	if len(c.States) == 0 {
		return ""
	}
	return c.States[len(c.States)-1]
}

func (c *ChunkResult) transition(ctx context.Context, s ReportState) {
	c.States = append(c.States, s)
	metrics.ReportChunks.WithLabelValues(string(s)).Inc()
	logging.Ctx(ctx).Debug().Int("report_id", c.ReportID).Int("phrases", len(c.Phrases)).Str("state", string(s)).Msg("Report chunk transition")
}

// AdPlatformResult is the outcome of one AdPlatform fetch.
type AdPlatformResult struct {
	Points []models.StatPoint
	Chunks []*ChunkResult
	// Attempted counts phrases of every chunk that was submitted, whether
	// or not the submission succeeded. It is what the quota is charged.
	Attempted int
}

// AdPlatformAdapter drives report chunks through their state machine.
// Chunks run strictly one after another: the provider holds only a handful
// of reports per account.
type AdPlatformAdapter struct {
	client     AdPlatformClient
	clock      Clock
	chunkSize  int
	pollStep   time.Duration
	pollBudget time.Duration
	geoIDs     []int
}

// NewAdPlatformAdapter creates an adapter around client.
func NewAdPlatformAdapter(client AdPlatformClient, clock Clock, cfg *config.AdPlatformConfig) *AdPlatformAdapter {
	chunk := cfg.ChunkSize
	if chunk < 1 {
		chunk = 10
	}
	return &AdPlatformAdapter{
		client:     client,
		clock:      clock,
		chunkSize:  chunk,
		pollStep:   cfg.PollStep,
		pollBudget: cfg.PollBudget,
		geoIDs:     cfg.GeoIDs,
	}
}

// Chunk splits phrases into consecutive groups of at most size.
func Chunk(phrases []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(phrases); start += size {
		end := min(start+size, len(phrases))
		out = append(out, phrases[start:end])
	}
	return out
}

// Fetch requests reports for phrases chunk by chunk. Rows are attributed
// to the calendar month before the moment each chunk is requested.
//
// A chunk that times out or fails after submission is abandoned and the
// next chunk proceeds. A submission failure stops the run: the error is
// returned together with the chunks completed so far.
func (a *AdPlatformAdapter) Fetch(ctx context.Context, phrases []string) (*AdPlatformResult, error) {
	result := &AdPlatformResult{}

	for _, group := range Chunk(phrases, a.chunkSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		chunk := &ChunkResult{Phrases: group}
		result.Chunks = append(result.Chunks, chunk)
		result.Attempted += len(group)

		if err := a.runChunk(ctx, chunk); err != nil {
			if chunk.ReportID == 0 {
				return result, err
			}
			continue
		}
		result.Points = append(result.Points, chunk.Points...)
	}
	return result, nil
}

func (a *AdPlatformAdapter) runChunk(ctx context.Context, chunk *ChunkResult) error {
	source := string(models.SourceAdPlatform)
	year, month := PreviousMonth(a.clock.Now())

	id, err := a.client.CreateReport(ctx, chunk.Phrases, a.geoIDs)
	metrics.RecordProviderRequest(source, outcome(err))
	if err != nil {
		chunk.Err = fmt.Errorf("request report: %w", err)
		chunk.transition(ctx, StateFailed)
		return chunk.Err
	}
	chunk.ReportID = id
	chunk.transition(ctx, StateRequested)

	chunk.transition(ctx, StatePolling)
	if err := a.awaitReady(ctx, id); err != nil {
		chunk.Err = err
		if errors.Is(err, ErrJobTimeout) {
			chunk.transition(ctx, StateTimedOut)
		} else {
			chunk.transition(ctx, StateFailed)
		}
		metrics.RecordProviderRequest(source, outcome(err))
		a.discard(ctx, id)
		logging.Ctx(ctx).Warn().Err(err).Int("report_id", id).Strs("phrases", chunk.Phrases).Msg("Report chunk abandoned")
		return err
	}
	chunk.transition(ctx, StateReady)

	entries, err := a.client.GetReport(ctx, id)
	metrics.RecordProviderRequest(source, outcome(err))
	if err != nil {
		chunk.Err = fmt.Errorf("get report %d: %w", id, err)
		chunk.transition(ctx, StateFailed)
		a.discard(ctx, id)
		logging.Ctx(ctx).Warn().Err(err).Int("report_id", id).Msg("Report download failed")
		return chunk.Err
	}
	chunk.Points = entriesToPoints(entries, year, int(month))
	chunk.transition(ctx, StateFetched)

	if err := a.client.DeleteReport(ctx, id); err != nil {
		// Rows are kept; the report stays on the provider.
		logging.Ctx(ctx).Warn().Err(err).Int("report_id", id).Msg("Failed to delete report")
		return nil
	}
	chunk.transition(ctx, StateDeleted)
	return nil
}

// awaitReady polls the report list every pollStep until the report is done
// or pollBudget elapses.
func (a *AdPlatformAdapter) awaitReady(ctx context.Context, id int) error {
	for elapsed := time.Duration(0); elapsed < a.pollBudget; {
		if err := a.clock.Sleep(ctx, a.pollStep); err != nil {
			return err
		}
		elapsed += a.pollStep

		statuses, err := a.client.ReportStatuses(ctx)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int("report_id", id).Msg("Report status check failed")
			continue
		}
		switch statuses[id] {
		case ReportStatusDone:
			return nil
		case ReportStatusFailed:
			return fmt.Errorf("%w: report %d failed on the provider", ErrNoData, id)
		}
	}
	return fmt.Errorf("%w: report %d not ready after %s", ErrJobTimeout, id, a.pollBudget)
}

// discard deletes an abandoned report on a best-effort basis.
func (a *AdPlatformAdapter) discard(ctx context.Context, id int) {
	if ctx.Err() != nil {
		return
	}
	if err := a.client.DeleteReport(ctx, id); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int("report_id", id).Msg("Failed to delete abandoned report")
	}
}

func entriesToPoints(entries []ReportEntry, year, month int) []models.StatPoint {
	points := make([]models.StatPoint, 0, len(entries))
	for _, e := range entries {
		shows, ok := e.Shows()
		if !ok || e.Phrase == "" {
			continue
		}
		points = append(points, models.StatPoint{
			Source: models.SourceAdPlatform,
			Entity: e.Phrase,
			Year:   year,
			Period: month,
			Value:  float64(shows),
		})
	}
	return points
}
