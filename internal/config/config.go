// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

// Package config loads epitrack configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Bulletin   BulletinConfig   `koanf:"bulletin"`
	Trends     TrendsConfig     `koanf:"trends"`
	AdPlatform AdPlatformConfig `koanf:"adplatform"`
	Sync       SyncConfig       `koanf:"sync"`
	Import     ImportConfig     `koanf:"import"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	// Driver is "duckdb" (embedded) or "postgres".
	Driver string `koanf:"driver"`
	// Path is the DuckDB file, or ":memory:".
	Path string `koanf:"path"`
	// DSN is the PostgreSQL connection string (DB_CONN_STR).
	DSN          string `koanf:"dsn"`
	MaxMemory    string `koanf:"max_memory"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// BulletinConfig configures the scraped influenza bulletin source.
type BulletinConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	Workers        int           `koanf:"workers"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
}

// TrendsConfig configures the search-interest trends source.
type TrendsConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BaseURL     string        `koanf:"base_url"`
	Language    string        `koanf:"language"`
	TZOffset    int           `koanf:"tz_offset"`
	Geo         string        `koanf:"geo"`
	DateStart   string        `koanf:"date_start"`
	DateEnd     string        `koanf:"date_end"`
	RetryStep   time.Duration `koanf:"retry_step"`
	RetryBudget time.Duration `koanf:"retry_budget"`
	Workers     int           `koanf:"workers"`
	PhraseLimit int           `koanf:"phrase_limit"`
	RateLimit   float64       `koanf:"rate_limit"`
}

// AdPlatformConfig configures the asynchronous keyword report API.
type AdPlatformConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url"`
	Token       string        `koanf:"token"`
	Locale      string        `koanf:"locale"`
	GeoIDs      []int         `koanf:"geo_ids"`
	ChunkSize   int           `koanf:"chunk_size"`
	PollStep    time.Duration `koanf:"poll_step"`
	PollBudget  time.Duration `koanf:"poll_budget"`
	DailyQuota  int           `koanf:"daily_quota"`
	QuotaWindow time.Duration `koanf:"quota_window"`
}

// SyncConfig configures the periodic scheduler.
type SyncConfig struct {
	Interval       time.Duration `koanf:"interval"`
	SyncOnStartup  bool          `koanf:"sync_on_startup"`
	Year           int           `koanf:"year"`
	CycleTimeout   time.Duration `koanf:"cycle_timeout"`
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryDelay     time.Duration `koanf:"retry_delay"`
	SyncBeforeRead bool          `koanf:"sync_before_read"`
}

// ImportConfig configures bulk phrase import from a keywords CSV.
type ImportConfig struct {
	CSVPath      string `koanf:"csv_path"`
	Columns      []int  `koanf:"columns"`
	ProgressPath string `koanf:"progress_path"`

	// RecheckInterval re-imports the file when its checksum changes; 0 disables.
	RecheckInterval time.Duration `koanf:"recheck_interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int           `koanf:"port"`
	Host     string        `koanf:"host"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// SecurityConfig holds HTTP rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SyncYear returns the configured year, or the current year when unset.
func (c *Config) SyncYear(now time.Time) int {
	if c.Sync.Year > 0 {
		return c.Sync.Year
	}
	return now.Year()
}
