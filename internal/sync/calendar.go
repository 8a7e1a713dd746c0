// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import "time"

// MondayWeekNumber returns the week of the year with Monday as the first
// day of the week. Days before the first Monday are in week 0 (strftime %W).
func MondayWeekNumber(t time.Time) int {
	mondayIndex := (int(t.Weekday()) + 6) % 7
	return (t.YearDay() - 1 + 7 - mondayIndex) / 7
}

// MondayOfWeek returns the Monday of week (as numbered by MondayWeekNumber)
// in year. Week must be at least 1.
func MondayOfWeek(year, week int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Monday) - int(jan1.Weekday()) + 7) % 7
	return jan1.AddDate(0, 0, offset+7*(week-1))
}

// PreviousMonth returns the calendar month before the one containing t.
func PreviousMonth(t time.Time) (year int, month time.Month) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// TrendsTargetWeek is the last complete week at now: the current
// MondayWeekNumber minus one, rolling back to week 52 of the previous year
// early in January.
func TrendsTargetWeek(now time.Time) (year, week int) {
	week = MondayWeekNumber(now) - 1
	if week < 1 {
		return now.Year() - 1, 52
	}
	return now.Year(), week
}

// trendsDueWeek returns the week a phrase cursor must reach for syncYear to
// count as up to date at now. Zero means nothing is due yet.
func trendsDueWeek(now time.Time, syncYear int) int {
	targetYear, targetWeek := TrendsTargetWeek(now)
	switch {
	case syncYear == targetYear:
		return targetWeek
	case syncYear < targetYear:
		return 52
	default:
		return 0
	}
}
