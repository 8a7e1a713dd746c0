// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	cycleIDKey   contextKey = "cycle_id"
	requestIDKey contextKey = "request_id"
	sourceKey    contextKey = "source"
)

// NewCycleID returns a short identifier for one sync cycle.
func NewCycleID() string {
	return uuid.New().String()[:8]
}

// ContextWithCycleID tags ctx with a sync cycle identifier.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext returns the cycle ID or "".
func CycleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID tags ctx with an HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSource tags ctx with the data source being synced.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// Ctx returns the global logger enriched with the cycle_id, request_id and
// source values carried by ctx.
//
//	logging.Ctx(ctx).Info().Int("weeks", len(weeks)).Msg("Fetching bulletin weeks")
func Ctx(ctx context.Context) *zerolog.Logger {
	zctx := Logger().With()
	if id := CycleIDFromContext(ctx); id != "" {
		zctx = zctx.Str("cycle_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		zctx = zctx.Str("request_id", id)
	}
	if src, ok := ctx.Value(sourceKey).(string); ok && src != "" {
		zctx = zctx.Str("source", src)
	}
	l := zctx.Logger()
	return &l
}
