// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/epitrack/internal/models"
)

// AggregateMonths folds a weekly trends series of year into months.
//
// Week 0 is ignored. Each remaining week is attributed to the month of its
// Monday (MondayOfWeek) and values are summed per month. The month before
// startMonth is removed: it only holds the weeks that straddle the start of
// the requested range. Sums are then normalized to 0..100 against the
// largest monthly sum, rounding half to even.
func AggregateMonths(year int, weekly []models.SeriesPoint, startMonth int) []models.SeriesPoint {
	sums := make(map[int]float64)
	for _, p := range weekly {
		if p.Period < 1 {
			continue
		}
		month := int(MondayOfWeek(year, p.Period).Month())
		sums[month] += p.Value
	}
	delete(sums, startMonth-1)

	if len(sums) == 0 {
		return nil
	}

	months := make([]int, 0, len(sums))
	peak := 0.0
	for m, v := range sums {
		months = append(months, m)
		if v > peak {
			peak = v
		}
	}
	sort.Ints(months)

	out := make([]models.SeriesPoint, len(months))
	for i, m := range months {
		value := 0.0
		if peak > 0 {
			value = math.RoundToEven(sums[m] / peak * 100)
		}
		out[i] = models.SeriesPoint{Period: m, Value: value}
	}
	return out
}

// MonthWeekRange returns the weekly range that covers months
// startMonth..endMonth of year: the MondayWeekNumber of the first day of
// startMonth and of the 28th of endMonth.
func MonthWeekRange(year, startMonth, endMonth int) (startWeek, endWeek int) {
	startWeek = MondayWeekNumber(time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC))
	endWeek = MondayWeekNumber(time.Date(year, time.Month(endMonth), 28, 0, 0, 0, 0, time.UTC))
	return startWeek, endWeek
}
