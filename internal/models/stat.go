// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies an upstream statistics provider.
type Source string

const (
	// SourceBulletin is the scraped weekly influenza bulletin.
	SourceBulletin Source = "bulletin"
	// SourceTrends is the search-interest trends service.
	SourceTrends Source = "trends"
	// SourceAdPlatform is the ad-platform keyword statistics report API.
	SourceAdPlatform Source = "adplatform"
)

// AllSources lists every source in sync order.
var AllSources = []Source{SourceBulletin, SourceTrends, SourceAdPlatform}

// PeriodKind is the unit of the Period field for a source.
type PeriodKind string

const (
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// PeriodKind returns week for bulletin and trends, month for adplatform.
func (s Source) PeriodKind() PeriodKind {
	if s == SourceAdPlatform {
		return PeriodMonth
	}
	return PeriodWeek
}

// MaxPeriod is the largest valid period for the source (53 weeks or 12 months).
func (s Source) MaxPeriod() int {
	if s.PeriodKind() == PeriodMonth {
		return 12
	}
	return 53
}

// HasEntity reports whether rows of this source are keyed by a phrase.
func (s Source) HasEntity() bool {
	return s != SourceBulletin
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceBulletin, SourceTrends, SourceAdPlatform:
		return true
	}
	return false
}

func (s Source) String() string { return string(s) }

// ParseSource converts a case-insensitive name into a Source.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", name)
	}
	return s, nil
}

// StatPoint is one normalized observation. Entity is empty for bulletin rows.
// At most one row per (Source, Entity, Year, Period) survives de-duplication.
type StatPoint struct {
	Source Source  `json:"source"`
	Entity string  `json:"entity,omitempty"`
	Year   int     `json:"year"`
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// Key returns the natural key of the point.
func (p StatPoint) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d", p.Source, p.Entity, p.Year, p.Period)
}

// SeriesPoint is one (period, value) pair of a chart series.
type SeriesPoint struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// QuotaState is the persisted AdPlatform quota cursor.
type QuotaState struct {
	LastRequestTime time.Time `json:"last_request_time"`
	PhrasesConsumed int       `json:"phrases_consumed"`
}
