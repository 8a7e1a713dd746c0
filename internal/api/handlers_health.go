// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
)

// healthCheckTimeout bounds the database ping and quota read.
const healthCheckTimeout = 2 * time.Second

// Health handles GET /api/v1/health. Status is "healthy" when the database
// answers and "degraded" otherwise; the endpoint itself always answers 200
// so load balancers can distinguish a slow store from a dead process.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	dbOK := h.store != nil && h.store.Ping(ctx) == nil

	resp := models.HealthResponse{
		Status:         "healthy",
		Version:        Version,
		DatabaseOK:     dbOK,
		QuotaRemaining: -1,
	}
	if !dbOK {
		resp.Status = "degraded"
	}
	if h.store != nil {
		resp.DatabaseDriver = h.store.Driver()
	}

	if h.sync != nil {
		if last := h.sync.LastSyncTime(); !last.IsZero() {
			resp.LastSync = &last
		}
		if dbOK {
			remaining, err := h.sync.QuotaRemaining(ctx)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Health: quota read failed")
			} else {
				resp.QuotaRemaining = remaining
			}
		}
	}

	respondSuccess(w, http.StatusOK, resp, models.Metadata{})
}
