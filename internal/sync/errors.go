// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"errors"
	"fmt"
)

// Error is a classified sync failure. Kind is used as a metrics label.
type Error struct {
	kind string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error class.
func (e *Error) Kind() string { return e.kind }

var (
	// ErrNetwork is a transport failure or an unexpected provider status.
	ErrNetwork = &Error{kind: "network", msg: "network error"}

	// ErrProviderRejected means the provider answered but refused the query
	// (rate limiting, 5xx, API error payload). Retried within a budget.
	ErrProviderRejected = &Error{kind: "provider_rejected", msg: "provider rejected request"}

	// ErrNoData means the provider returned nothing usable.
	ErrNoData = &Error{kind: "no_data", msg: "no data"}

	// ErrParseMiss means a bulletin page had no matching narrative sentence.
	ErrParseMiss = &Error{kind: "parse_miss", msg: "bulletin sentence not found"}

	// ErrQuotaExhausted means the AdPlatform daily phrase quota is used up.
	ErrQuotaExhausted = &Error{kind: "quota_exhausted", msg: "adplatform quota exhausted"}

	// ErrJobTimeout means an AdPlatform report never became ready.
	ErrJobTimeout = &Error{kind: "job_timeout", msg: "report job timed out"}

	// ErrCycleInProgress is returned when an exclusive cycle is already running.
	ErrCycleInProgress = &Error{kind: "cycle_in_progress", msg: "sync cycle already in progress"}
)

// StatusError is a non-2xx HTTP response. It matches ErrProviderRejected for
// 429 and 5xx and ErrNetwork otherwise.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected HTTP status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected HTTP status %d: %s", e.Source, e.StatusCode, e.Body)
}

// Unwrap returns the sentinel this status maps to.
func (e *StatusError) Unwrap() error {
	if e.Retryable() {
		return ErrProviderRejected
	}
	return ErrNetwork
}

// Retryable reports whether the status is a rate limit or a server error.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// retryable reports whether a provider call may succeed on a later attempt.
func retryable(err error) bool {
	return errors.Is(err, ErrProviderRejected) || errors.Is(err, ErrNetwork)
}

// outcome maps an adapter error to the provider request metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrParseMiss):
		return "parse_miss"
	case errors.Is(err, ErrJobTimeout):
		return "timeout"
	default:
		return "error"
	}
}
