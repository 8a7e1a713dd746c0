// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/epitrack/internal/database"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/metrics"
	"github.com/tomtom215/epitrack/internal/models"
)

// Store is the persistence gateway used by the orchestrator.
type Store interface {
	QuotaStore
	MaxPeriod(ctx context.Context, source models.Source, year int, entity string) (int, bool, error)
	MaxPeriodsByEntity(ctx context.Context, source models.Source, year int) (map[string]int, error)
	InsertBatch(ctx context.Context, source models.Source, points []models.StatPoint) error
	Dedup(ctx context.Context, source models.Source) (int64, error)
	ListPhrases(ctx context.Context) ([]string, error)
}

// BulletinSource lists and fetches bulletin weeks.
type BulletinSource interface {
	WeekNumbers(ctx context.Context, year int) ([]int, error)
	FetchWeeks(ctx context.Context, year int, weeks []int) []models.StatPoint
}

// TrendsSource fetches weekly search interest for many phrases.
type TrendsSource interface {
	FetchAll(ctx context.Context, phrases []string, from, to time.Time) []models.StatPoint
}

// AdPlatformSource fetches monthly impressions for phrases.
type AdPlatformSource interface {
	Fetch(ctx context.Context, phrases []string) (*AdPlatformResult, error)
}

// CycleResult summarizes one source cycle.
type CycleResult struct {
	Source   models.Source
	Year     int
	Fetched  int
	Inserted int
	Removed  int64
	// Deferred counts AdPlatform phrases left for a later quota window.
	Deferred int
	// Skipped is set when the source is disabled or the quota is empty.
	Skipped   bool
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Aborted reports whether the cycle stopped on a storage failure or an
// exhausted quota rather than degrading. A cycle that committed part of its
// phrases and deferred the rest to the next quota window is a partial
// success, not an abort.
func (r CycleResult) Aborted() bool {
	if errors.Is(r.Err, database.ErrStorage) {
		return true
	}
	return errors.Is(r.Err, ErrQuotaExhausted) && r.Deferred == 0
}

// Options configures an Orchestrator. A nil source disables it.
type Options struct {
	Bulletin   BulletinSource
	Trends     TrendsSource
	AdPlatform AdPlatformSource
	Quota      *QuotaTracker
	Clock      Clock

	// TrendsDateStart and TrendsDateEnd override the January 1 to
	// December 31 query range (YYYY-MM-DD).
	TrendsDateStart   string
	TrendsDateEnd     string
	TrendsPhraseLimit int

	// RetryAttempts and RetryDelay bound retries of single listing calls.
	RetryAttempts int
	RetryDelay    time.Duration
	CycleTimeout  time.Duration
}

// Orchestrator runs incremental sync cycles. Cycles of different sources
// are independent; cycles of one source never overlap.
type Orchestrator struct {
	store Store
	opts  Options
	clock Clock

	bulletinMu sync.Mutex
	trendsMu   sync.Mutex
	adMu       sync.Mutex
}

// NewOrchestrator creates an orchestrator over store.
func NewOrchestrator(store Store, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Orchestrator{store: store, opts: opts, clock: opts.Clock}
}

// Enabled reports whether source has an adapter.
func (o *Orchestrator) Enabled(source models.Source) bool {
	switch source {
	case models.SourceBulletin:
		return o.opts.Bulletin != nil
	case models.SourceTrends:
		return o.opts.Trends != nil
	case models.SourceAdPlatform:
		return o.opts.AdPlatform != nil && o.opts.Quota != nil
	}
	return false
}

// QuotaRemaining returns the AdPlatform allowance left, or -1 when the
// source is disabled.
func (o *Orchestrator) QuotaRemaining(ctx context.Context) (int, error) {
	if o.opts.Quota == nil {
		return -1, nil
	}
	return o.opts.Quota.Remaining(ctx)
}

func (o *Orchestrator) begin(ctx context.Context, source models.Source, year int) (context.Context, CycleResult) {
	if logging.CycleIDFromContext(ctx) == "" {
		ctx = logging.ContextWithCycleID(ctx, logging.NewCycleID())
	}
	ctx = logging.ContextWithSource(ctx, string(source))
	return ctx, CycleResult{Source: source, Year: year, StartedAt: o.clock.Now()}
}

func (o *Orchestrator) finish(ctx context.Context, res CycleResult) CycleResult {
	res.Duration = o.clock.Now().Sub(res.StartedAt)
	if res.Skipped && res.Err == nil {
		logging.Ctx(ctx).Debug().Msg("Sync cycle skipped")
		return res
	}
	metrics.RecordSyncCycle(string(res.Source), res.Duration, res.Inserted, res.Removed, res.Err)

	event := logging.Ctx(ctx).Info()
	if res.Err != nil {
		event = logging.Ctx(ctx).Warn().Err(res.Err).Bool("aborted", res.Aborted())
	}
	event.Int("year", res.Year).
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int64("duplicates_removed", res.Removed).
		Int("deferred", res.Deferred).
		Dur("duration", res.Duration).
		Msg("Sync cycle finished")
	return res
}

// commit appends points and collapses duplicates. It is a no-op for an
// empty batch.
func (o *Orchestrator) commit(ctx context.Context, res *CycleResult, points []models.StatPoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := o.store.InsertBatch(ctx, res.Source, points); err != nil {
		return err
	}
	res.Inserted = len(points)

	removed, err := o.store.Dedup(ctx, res.Source)
	if err != nil {
		return err
	}
	res.Removed = removed
	return nil
}

// retryWithBackoff runs fn up to RetryAttempts times, doubling the delay
// after each retryable failure.
func (o *Orchestrator) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := o.opts.RetryDelay

	for attempt := 0; attempt < o.opts.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil || !retryable(err) {
			return err
		}

		if attempt < o.opts.RetryAttempts-1 {
			logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", o.opts.RetryAttempts).Dur("delay", delay).Msg("Retry attempt")
			if err := o.clock.Sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// SyncBulletin fetches every published week of year beyond the stored
// cursor. Weeks that fail or do not parse are left for the next cycle.
func (o *Orchestrator) SyncBulletin(ctx context.Context, year int) CycleResult {
	ctx, res := o.begin(ctx, models.SourceBulletin, year)
	if o.opts.Bulletin == nil {
		res.Skipped = true
		return o.finish(ctx, res)
	}
	o.bulletinMu.Lock()
	defer o.bulletinMu.Unlock()

	cursor, _, err := o.store.MaxPeriod(ctx, models.SourceBulletin, year, "")
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}

	var weeks []int
	err = o.retryWithBackoff(ctx, func() error {
		var err error
		weeks, err = o.opts.Bulletin.WeekNumbers(ctx, year)
		return err
	})
	if err != nil {
		res.Err = fmt.Errorf("list bulletin weeks: %w", err)
		return o.finish(ctx, res)
	}

	missing := make([]int, 0, len(weeks))
	for _, w := range weeks {
		if w > cursor {
			missing = append(missing, w)
		}
	}
	if len(missing) == 0 {
		logging.Ctx(ctx).Debug().Int("cursor", cursor).Msg("Bulletin up to date")
		return o.finish(ctx, res)
	}

	logging.Ctx(ctx).Info().Int("cursor", cursor).Ints("weeks", missing).Msg("Fetching bulletin weeks")
	points := o.opts.Bulletin.FetchWeeks(ctx, year, missing)
	res.Fetched = len(points)
	res.Err = o.commit(ctx, &res, points)
	return o.finish(ctx, res)
}

// SyncTrends fetches every registered phrase whose cursor for year is
// behind the last complete week.
func (o *Orchestrator) SyncTrends(ctx context.Context, year int) CycleResult {
	return o.syncTrends(ctx, year, nil)
}

// SyncTrendsPhrase runs a trends cycle restricted to one registered phrase.
func (o *Orchestrator) SyncTrendsPhrase(ctx context.Context, year int, phrase string) CycleResult {
	return o.syncTrends(ctx, year, map[string]bool{phrase: true})
}

func (o *Orchestrator) syncTrends(ctx context.Context, year int, only map[string]bool) CycleResult {
	ctx, res := o.begin(ctx, models.SourceTrends, year)
	if o.opts.Trends == nil {
		res.Skipped = true
		return o.finish(ctx, res)
	}
	o.trendsMu.Lock()
	defer o.trendsMu.Unlock()

	due := trendsDueWeek(o.clock.Now(), year)
	if due < 1 {
		return o.finish(ctx, res)
	}

	phrases, err := o.store.ListPhrases(ctx)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}
	cursors, err := o.store.MaxPeriodsByEntity(ctx, models.SourceTrends, year)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}

	var pending []string
	for _, p := range phrases {
		if only != nil && !only[p] {
			continue
		}
		if cursor, ok := cursors[p]; !ok || cursor < due {
			pending = append(pending, p)
		}
	}
	if limit := o.opts.TrendsPhraseLimit; limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) == 0 {
		return o.finish(ctx, res)
	}

	from, to, err := o.trendsRange(year)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}

	logging.Ctx(ctx).Info().Int("phrases", len(pending)).Int("due_week", due).Msg("Fetching trends phrases")
	points := o.opts.Trends.FetchAll(ctx, pending, from, to)
	res.Fetched = len(points)
	res.Err = o.commit(ctx, &res, points)
	return o.finish(ctx, res)
}

func (o *Orchestrator) trendsRange(year int) (from, to time.Time, err error) {
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if o.opts.TrendsDateStart != "" {
		if from, err = time.Parse(time.DateOnly, o.opts.TrendsDateStart); err != nil {
			return from, to, fmt.Errorf("trends date start: %w", err)
		}
	}
	if o.opts.TrendsDateEnd != "" {
		if to, err = time.Parse(time.DateOnly, o.opts.TrendsDateEnd); err != nil {
			return from, to, fmt.Errorf("trends date end: %w", err)
		}
	}
	return from, to, nil
}

// SyncAdPlatform requests the previous month's impressions for every
// phrase that lacks them, within the remaining quota. Only one AdPlatform
// cycle may run at a time; a concurrent call returns ErrCycleInProgress.
func (o *Orchestrator) SyncAdPlatform(ctx context.Context) CycleResult {
	year, month := PreviousMonth(o.clock.Now())
	ctx, res := o.begin(ctx, models.SourceAdPlatform, year)
	if !o.Enabled(models.SourceAdPlatform) {
		res.Skipped = true
		return o.finish(ctx, res)
	}
	if !o.adMu.TryLock() {
		res.Err = ErrCycleInProgress
		return o.finish(ctx, res)
	}
	defer o.adMu.Unlock()

	remaining, err := o.opts.Quota.Remaining(ctx)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}
	if remaining < 1 {
		res.Skipped = true
		res.Err = fmt.Errorf("%w: 0 of %d phrases left", ErrQuotaExhausted, o.opts.Quota.Limit())
		return o.finish(ctx, res)
	}

	phrases, err := o.store.ListPhrases(ctx)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}
	cursors, err := o.store.MaxPeriodsByEntity(ctx, models.SourceAdPlatform, year)
	if err != nil {
		res.Err = err
		return o.finish(ctx, res)
	}

	var pending []string
	for _, p := range phrases {
		if cursor, ok := cursors[p]; !ok || cursor < int(month) {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return o.finish(ctx, res)
	}
	if len(pending) > remaining {
		res.Deferred = len(pending) - remaining
		pending = pending[:remaining]
	}

	logging.Ctx(ctx).Info().Int("phrases", len(pending)).Int("quota_remaining", remaining).Int("month", int(month)).Msg("Requesting adplatform reports")
	fetched, fetchErr := o.opts.AdPlatform.Fetch(ctx, pending)
	if fetched == nil {
		fetched = &AdPlatformResult{}
	}
	res.Fetched = len(fetched.Points)

	commitErr := o.commit(ctx, &res, fetched.Points)
	quotaErr := o.opts.Quota.Commit(ctx, fetched.Attempted)
	res.Err = errors.Join(commitErr, quotaErr, fetchErr)
	if res.Err == nil && res.Deferred > 0 {
		res.Err = fmt.Errorf("%w: %d phrases deferred to the next window", ErrQuotaExhausted, res.Deferred)
	}
	return o.finish(ctx, res)
}

// SyncSource runs one cycle of source for year. AdPlatform ignores year and
// always targets the previous month.
func (o *Orchestrator) SyncSource(ctx context.Context, source models.Source, year int) CycleResult {
	if o.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.CycleTimeout)
		defer cancel()
	}
	switch source {
	case models.SourceBulletin:
		return o.SyncBulletin(ctx, year)
	case models.SourceTrends:
		return o.SyncTrends(ctx, year)
	case models.SourceAdPlatform:
		return o.SyncAdPlatform(ctx)
	}
	return CycleResult{Source: source, Year: year, Err: fmt.Errorf("unknown source %q", source)}
}

// SyncAll runs one cycle of every source concurrently. The failure of one
// source never affects the others. Results follow models.AllSources order.
func (o *Orchestrator) SyncAll(ctx context.Context, year int) []CycleResult {
	ctx = logging.ContextWithCycleID(ctx, logging.NewCycleID())
	results := make([]CycleResult, len(models.AllSources))

	var g errgroup.Group
	for i, source := range models.AllSources {
		g.Go(func() error {
			results[i] = o.SyncSource(ctx, source, year)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
