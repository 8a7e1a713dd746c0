// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
)

// ListPhrases handles GET /api/v1/phrases.
func (h *Handler) ListPhrases(w http.ResponseWriter, r *http.Request) {
	phrases, err := h.store.ListPhrases(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeDatabase, "Failed to list phrases", err)
		return
	}
	if phrases == nil {
		phrases = []string{}
	}
	respondSuccess(w, http.StatusOK, models.PhraseListResponse{
		Phrases: phrases,
		Count:   len(phrases),
	}, models.Metadata{})
}

// AddPhrases handles POST /api/v1/phrases. The body is
// {"phrases": ["...", ...]}; duplicates of registered phrases are ignored.
// Newly added phrases are picked up by the next sync cycle.
func (h *Handler) AddPhrases(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req models.PhraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		message := "Invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			message = "Request body too large"
		}
		respondAPIError(w, http.StatusBadRequest, &models.APIError{Code: codeValidation, Message: message})
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	ctx := r.Context()
	added, err := h.store.UpsertPhrases(ctx, req.Phrases)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeDatabase, "Failed to store phrases", err)
		return
	}
	phrases, err := h.store.ListPhrases(ctx)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeDatabase, "Failed to list phrases", err)
		return
	}

	logging.Ctx(ctx).Info().
		Int("submitted", len(req.Phrases)).
		Int("added", added).
		Msg("Phrases registered")

	status := http.StatusOK
	if added > 0 {
		status = http.StatusCreated
	}
	respondSuccess(w, status, models.PhraseListResponse{
		Phrases: phrases,
		Count:   len(phrases),
		Added:   added,
	}, models.Metadata{})
}
