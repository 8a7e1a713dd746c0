// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
	syncpkg "github.com/tomtom215/epitrack/internal/sync"
)

// TriggerSync handles POST /api/v1/sync. It runs one cycle of every source
// and waits for it. An aborted cycle (storage failure or exhausted quota)
// answers 500 SYNC_ERROR; per-source results are returned either way.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		respondAPIError(w, http.StatusServiceUnavailable, &models.APIError{
			Code:    codeSync,
			Message: "Sync is not configured",
		})
		return
	}

	start := time.Now()
	results, err := h.sync.TriggerSync(r.Context())
	data := models.SyncResponse{Results: summarize(results)}
	meta := models.Metadata{Timestamp: time.Now(), QueryTimeMS: time.Since(start).Milliseconds()}

	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Manual sync aborted")
		respondJSON(w, http.StatusInternalServerError, &models.APIResponse{
			Status:   "error",
			Data:     data,
			Metadata: meta,
			Error:    &models.APIError{Code: codeSync, Message: "Sync aborted"},
		})
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	})
}

func summarize(results []syncpkg.CycleResult) []models.CycleSummary {
	out := make([]models.CycleSummary, len(results))
	for i, r := range results {
		s := models.CycleSummary{
			Source:     r.Source,
			Fetched:    r.Fetched,
			Inserted:   r.Inserted,
			Removed:    r.Removed,
			Skipped:    r.Skipped,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		out[i] = s
	}
	return out
}
