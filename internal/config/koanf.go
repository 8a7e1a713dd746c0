// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/epitrack/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultBulletinURL is the laboratory diagnostics bulletin page.
const DefaultBulletinURL = "https://www.influenza.spb.ru/system/epidemic_situation/laboratory_diagnostics/"

// DefaultAdPlatformURL is the JSON endpoint of the keyword statistics API.
const DefaultAdPlatformURL = "https://api.direct.yandex.ru/v/json/"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "/data/epitrack.duckdb",
			MaxMemory:    "1GB",
			MaxOpenConns: 4,
		},
		Bulletin: BulletinConfig{
			Enabled:        true,
			URL:            DefaultBulletinURL,
			Workers:        8,
			RequestTimeout: 30 * time.Second,
			RateLimit:      5,
		},
		Trends: TrendsConfig{
			Enabled:     true,
			BaseURL:     "https://trends.google.com",
			Language:    "RU",
			TZOffset:    3,
			Geo:         "RU",
			RetryStep:   20 * time.Second,
			RetryBudget: 100 * time.Second,
			Workers:     4,
			PhraseLimit: 1000,
			RateLimit:   1,
		},
		AdPlatform: AdPlatformConfig{
			Enabled:     false,
			URL:         DefaultAdPlatformURL,
			Locale:      "ru",
			ChunkSize:   10,
			PollStep:    20 * time.Second,
			PollBudget:  100 * time.Second,
			DailyQuota:  1000,
			QuotaWindow: 24 * time.Hour,
		},
		Sync: SyncConfig{
			Interval:       24 * time.Hour,
			SyncOnStartup:  true,
			CycleTimeout:   2 * time.Hour,
			RetryAttempts:  3,
			RetryDelay:     5 * time.Second,
			SyncBeforeRead: true,
		},
		Import: ImportConfig{
			Columns:         []int{2, 6, 10, 14, 18, 22},
			RecheckInterval: time.Hour,
		},
		Server: ServerConfig{
			Port:     8080,
			Host:     "0.0.0.0",
			Timeout:  5 * time.Minute,
			CacheTTL: 180 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// sliceConfigPaths accept comma separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"adplatform.geo_ids",
	"import.columns",
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"db_driver":         "database.driver",
	"db_path":           "database.path",
	"duckdb_path":       "database.path",
	"db_conn_str":       "database.dsn",
	"db_max_memory":     "database.max_memory",
	"db_max_open_conns": "database.max_open_conns",

	"bulletin_enabled":  "bulletin.enabled",
	"bulletin_url":      "bulletin.url",
	"bulletin_workers":  "bulletin.workers",
	"bulletin_timeout":  "bulletin.request_timeout",
	"bulletin_rate":     "bulletin.rate_limit",
	"trends_enabled":    "trends.enabled",
	"trends_base_url":   "trends.base_url",
	"trends_language":   "trends.language",
	"trends_tz":         "trends.tz_offset",
	"trends_geo":        "trends.geo",
	"trends_date_start": "trends.date_start",
	"trends_date_end":   "trends.date_end",
	"trends_retry_step": "trends.retry_step",
	"trends_timeout":    "trends.retry_budget",
	"trends_workers":    "trends.workers",
	"trends_limit":      "trends.phrase_limit",
	"trends_rate":       "trends.rate_limit",

	"adplatform_enabled":      "adplatform.enabled",
	"adplatform_url":          "adplatform.url",
	"wordstat_token":          "adplatform.token",
	"adplatform_token":        "adplatform.token",
	"adplatform_locale":       "adplatform.locale",
	"adplatform_geo_ids":      "adplatform.geo_ids",
	"adplatform_chunk_size":   "adplatform.chunk_size",
	"adplatform_poll_step":    "adplatform.poll_step",
	"adplatform_poll_timeout": "adplatform.poll_budget",
	"adplatform_daily_quota":  "adplatform.daily_quota",

	"sync_interval":         "sync.interval",
	"sync_on_startup":       "sync.sync_on_startup",
	"sync_year":             "sync.year",
	"sync_cycle_timeout":    "sync.cycle_timeout",
	"sync_retry_attempts":   "sync.retry_attempts",
	"sync_retry_delay":      "sync.retry_delay",
	"sync_before_read":      "sync.sync_before_read",
	"phrases_csv":           "import.csv_path",
	"import_columns":        "import.columns",
	"import_progress_path":  "import.progress_path",
	"import_recheck":        "import.recheck_interval",
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_cache_ttl":        "server.cache_ttl",
	"rate_limit_requests":   "security.rate_limit_reqs",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"cors_origins":          "security.cors_origins",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
}

// Load reads configuration from all layers and validates it:
//
//  1. struct defaults
//  2. YAML file from CONFIG_PATH or DefaultConfigPaths
//  3. environment variables (DB_CONN_STR, WORDSTAT_TOKEN, SYNC_INTERVAL, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// processSliceFields splits comma separated env values into slices. Integer
// slices are converted so mapstructure can decode them into []int.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := splitTrim(raw)
		if len(parts) == 0 {
			continue
		}

		var value interface{} = parts
		if path != "security.cors_origins" {
			ints := make([]int, 0, len(parts))
			for _, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("%s: %q is not an integer", path, p)
				}
				ints = append(ints, n)
			}
			value = ints
		}
		if err := k.Set(path, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitTrim(s string) []string {
	out := make([]string, 0, 4)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
