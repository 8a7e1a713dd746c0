// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here sits behind the integration build tag:
//
//	go test -tags integration ./internal/database/...
//
// Tests skip themselves when no Docker daemon is reachable.
//
//	func TestPostgres(t *testing.T) {
//	    pg := testinfra.NewPostgresContainer(t)
//	    db, err := database.New(&config.DatabaseConfig{Driver: "postgres", DSN: pg.DSN})
//	    ...
//	}
package testinfra
