// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

//go:build integration

package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DefaultPostgresImage is the image used by NewPostgresContainer.
const DefaultPostgresImage = "postgres:16-alpine"

// PostgresContainer is a running PostgreSQL instance and its DSN.
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresOption configures NewPostgresContainer.
type PostgresOption func(*postgresConfig)

type postgresConfig struct {
	image        string
	database     string
	startTimeout time.Duration
}

// WithPostgresImage overrides the image.
func WithPostgresImage(image string) PostgresOption {
	return func(c *postgresConfig) { c.image = image }
}

// WithDatabaseName overrides the database name.
func WithDatabaseName(name string) PostgresOption {
	return func(c *postgresConfig) { c.database = name }
}

// NewPostgresContainer starts PostgreSQL, registers cleanup on t and skips
// the test when Docker is unavailable.
func NewPostgresContainer(t *testing.T, opts ...PostgresOption) *PostgresContainer {
	t.Helper()
	SkipIfNoDocker(t)

	cfg := postgresConfig{
		image:        DefaultPostgresImage,
		database:     "epitrack",
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.startTimeout)
	defer cancel()

	container, err := postgres.Run(ctx, cfg.image,
		postgres.WithDatabase(cfg.database),
		postgres.WithUsername("epitrack"),
		postgres.WithPassword("epitrack"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { CleanupContainer(t, context.Background(), container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to build postgres connection string: %v", err)
	}
	return &PostgresContainer{PostgresContainer: container, DSN: dsn}
}
