// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validateBulletin,
		c.validateTrends,
		c.validateAdPlatform,
		c.validateSync,
		c.validateImport,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the duckdb driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_CONN_STR is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be duckdb or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

func (c *Config) validateBulletin() error {
	if !c.Bulletin.Enabled {
		return nil
	}
	if err := validateHTTPURL("BULLETIN_URL", c.Bulletin.URL); err != nil {
		return err
	}
	if c.Bulletin.Workers < 1 || c.Bulletin.Workers > 64 {
		return fmt.Errorf("BULLETIN_WORKERS must be between 1 and 64")
	}
	if c.Bulletin.RequestTimeout <= 0 {
		return fmt.Errorf("BULLETIN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateTrends() error {
	if !c.Trends.Enabled {
		return nil
	}
	if err := validateHTTPURL("TRENDS_BASE_URL", c.Trends.BaseURL); err != nil {
		return err
	}
	if c.Trends.RetryStep <= 0 || c.Trends.RetryBudget < c.Trends.RetryStep {
		return fmt.Errorf("TRENDS_RETRY_STEP must be positive and not exceed TRENDS_TIMEOUT")
	}
	if c.Trends.Workers < 1 {
		return fmt.Errorf("TRENDS_WORKERS must be at least 1")
	}
	for name, v := range map[string]string{"TRENDS_DATE_START": c.Trends.DateStart, "TRENDS_DATE_END": c.Trends.DateEnd} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, v); err != nil {
			return fmt.Errorf("%s must be YYYY-MM-DD: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validateAdPlatform() error {
	if !c.AdPlatform.Enabled {
		return nil
	}
	if c.AdPlatform.Token == "" {
		return fmt.Errorf("WORDSTAT_TOKEN is required when ADPLATFORM_ENABLED=true")
	}
	if err := validateHTTPURL("ADPLATFORM_URL", c.AdPlatform.URL); err != nil {
		return err
	}
	if c.AdPlatform.ChunkSize < 1 || c.AdPlatform.ChunkSize > 10 {
		return fmt.Errorf("ADPLATFORM_CHUNK_SIZE must be between 1 and 10")
	}
	if c.AdPlatform.PollStep <= 0 || c.AdPlatform.PollBudget < c.AdPlatform.PollStep {
		return fmt.Errorf("ADPLATFORM_POLL_STEP must be positive and not exceed ADPLATFORM_POLL_TIMEOUT")
	}
	if c.AdPlatform.DailyQuota < 1 {
		return fmt.Errorf("ADPLATFORM_DAILY_QUOTA must be at least 1")
	}
	if c.AdPlatform.QuotaWindow <= 0 {
		return fmt.Errorf("adplatform quota window must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m")
	}
	if c.Sync.Year != 0 && (c.Sync.Year < 2000 || c.Sync.Year > 2100) {
		return fmt.Errorf("SYNC_YEAR %d is out of range", c.Sync.Year)
	}
	if c.Sync.RetryAttempts < 0 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must not be negative")
	}
	return nil
}

func (c *Config) validateImport() error {
	for _, col := range c.Import.Columns {
		if col < 0 {
			return fmt.Errorf("IMPORT_COLUMNS must not contain negative indexes")
		}
	}
	if c.Import.CSVPath != "" && len(c.Import.Columns) == 0 {
		return fmt.Errorf("IMPORT_COLUMNS is required when PHRASES_CSV is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("HTTP_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	return nil
}
