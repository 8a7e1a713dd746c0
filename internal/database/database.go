// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

// Package database is the persistence gateway: typed reads and writes over the
// stat tables, the phrase registry and the AdPlatform quota cursor.
//
// Two database/sql drivers are supported behind one SQL dialect subset:
// DuckDB (embedded, default) and PostgreSQL through pgx. Statements use $n
// placeholders, which both drivers accept.
//
// Every failing operation returns a *StorageError.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
)

const (
	// DriverDuckDB is the embedded default store.
	DriverDuckDB = "duckdb"
	// DriverPostgres selects PostgreSQL through pgx.
	DriverPostgres = "postgres"

	defaultQueryTimeout = 30 * time.Second
)

// DB wraps the SQL connection pool and serializes batch writes.
type DB struct {
	conn   *sql.DB
	cfg    *config.DatabaseConfig
	driver string

	// writeMu keeps batch writes single-threaded relative to each other even
	// when fetches run in parallel.
	writeMu sync.Mutex
}

// New opens the configured store and bootstraps the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, driver: cfg.Driver}
	if db.driver == "" {
		db.driver = DriverDuckDB
	}
	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("driver", db.driver).
		Msg("Database ready")
	return db, nil
}

// dataSource maps the configuration to a database/sql driver name and DSN.
func dataSource(cfg *config.DatabaseConfig) (driverName, dsn string, err error) {
	switch cfg.Driver {
	case "", DriverDuckDB:
		path := cfg.Path
		if path == ":memory:" {
			path = ""
		} else if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return "", "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		dsn = path
		if cfg.MaxMemory != "" {
			dsn = fmt.Sprintf("%s?max_memory=%s", path, cfg.MaxMemory)
		}
		return "duckdb", dsn, nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return "", "", fmt.Errorf("postgres driver requires a connection string")
		}
		return "pgx", cfg.DSN, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	if maxOpen < 1 {
		maxOpen = 4
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	return db.runVersionedMigrations()
}

// Driver returns "duckdb" or "postgres".
func (db *DB) Driver() string {
	return db.driver
}

// Conn returns the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks that the store answers.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return newStorageError("ping", "", err)
	}
	return nil
}

// Close releases the pool. DuckDB files are checkpointed first.
func (db *DB) Close() error {
	if db.driver == DriverDuckDB && db.cfg.Path != ":memory:" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Checkpoint before close failed")
		}
		cancel()
	}
	return db.conn.Close()
}

// ensureContext applies the default query timeout when ctx has no deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, defaultQueryTimeout)
	}
	return ctx, func() {}
}
