// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package models

import "time"

// APIResponse is the envelope of every HTTP response.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"...","cached":true}}
//	{"status":"error","error":{"code":"NOT_FOUND","message":"no data"},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing and cache information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a machine readable error code plus a human message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SeriesResponse is returned by the series endpoints.
type SeriesResponse struct {
	Source     Source        `json:"source"`
	Phrase     string        `json:"phrase,omitempty"`
	Year       int           `json:"year"`
	PeriodKind PeriodKind    `json:"period_kind"`
	From       int           `json:"from"`
	To         int           `json:"to"`
	Points     []SeriesPoint `json:"points"`
}

// SeriesQuery is the parsed query string of a series endpoint. Week bounds
// are validated against 1..53, month bounds are narrowed by the handler.
type SeriesQuery struct {
	Phrase string `validate:"omitempty,phrase"`
	Year   int    `validate:"min=2000,max=2100"`
	From   int    `validate:"min=1,max=53"`
	To     int    `validate:"min=1,max=53,gtefield=From"`
}

// MonthQuery is the parsed query string of a monthly series endpoint.
type MonthQuery struct {
	Phrase string `validate:"required,phrase"`
	Year   int    `validate:"min=2000,max=2100"`
	From   int    `validate:"min=1,max=12"`
	To     int    `validate:"min=1,max=12,gtefield=From"`
}

// PhraseRequest is the body of POST /api/v1/phrases.
type PhraseRequest struct {
	Phrases []string `json:"phrases" validate:"required,min=1,max=1000,dive,phrase,max=255"`
}

// PhraseListResponse is returned by the phrase endpoints.
type PhraseListResponse struct {
	Phrases []string `json:"phrases"`
	Count   int      `json:"count"`
	Added   int      `json:"added,omitempty"`
}

// SyncResponse summarizes a triggered sync.
type SyncResponse struct {
	Results []CycleSummary `json:"results"`
}

// CycleSummary is the public view of one source's sync cycle.
type CycleSummary struct {
	Source     Source `json:"source"`
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Removed    int64  `json:"duplicates_removed"`
	Skipped    bool   `json:"skipped"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status         string     `json:"status"`
	Version        string     `json:"version"`
	DatabaseDriver string     `json:"database_driver"`
	DatabaseOK     bool       `json:"database_ok"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	QuotaRemaining int        `json:"quota_remaining"`
}
