// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/epitrack/internal/database"
	"github.com/tomtom215/epitrack/internal/models"
)

var march15 = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

func weeks(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for w := from; w <= to; w++ {
		out = append(out, w)
	}
	return out
}

func seedBulletin(store *memStore, year int, weeks []int) {
	for _, w := range weeks {
		store.rows[models.SourceBulletin] = append(store.rows[models.SourceBulletin],
			models.StatPoint{Source: models.SourceBulletin, Year: year, Period: w, Value: float64(w)})
	}
}

func TestSyncBulletin_FetchesOnlyWeeksBeyondCursor(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedBulletin(store, 2024, weeks(1, 10))
	bulletin := &stubBulletin{
		published: weeks(1, 12),
		values:    map[int]float64{11: 48.2, 12: 51.7},
	}
	o := NewOrchestrator(store, Options{Bulletin: bulletin, Clock: newFakeClock(march15)})

	res := o.SyncBulletin(context.Background(), 2024)
	if res.Err != nil {
		t.Fatalf("SyncBulletin() error = %v", res.Err)
	}
	if want := [][]int{{11, 12}}; !reflect.DeepEqual(bulletin.fetched, want) {
		t.Errorf("fetched = %v, want %v", bulletin.fetched, want)
	}
	if res.Inserted != 2 || res.Removed != 0 {
		t.Errorf("inserted/removed = %d/%d, want 2/0", res.Inserted, res.Removed)
	}
	if got := store.periodsOf(models.SourceBulletin, ""); !reflect.DeepEqual(got, weeks(1, 12)) {
		t.Errorf("stored weeks = %v", got)
	}
}

func TestSyncBulletin_IdempotentAcrossCycles(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	bulletin := &stubBulletin{
		published: weeks(1, 3),
		values:    map[int]float64{1: 10, 2: 20, 3: 30},
	}
	o := NewOrchestrator(store, Options{Bulletin: bulletin, Clock: newFakeClock(march15)})
	ctx := context.Background()

	first := o.SyncBulletin(ctx, 2024)
	second := o.SyncBulletin(ctx, 2024)

	if first.Inserted != 3 || second.Inserted != 0 {
		t.Errorf("inserted = %d then %d, want 3 then 0", first.Inserted, second.Inserted)
	}
	if len(bulletin.fetched) != 1 {
		t.Errorf("fetch rounds = %d, want 1", len(bulletin.fetched))
	}
	if n := len(store.Rows(models.SourceBulletin)); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}

func TestSyncBulletin_ParseMissLeavesGap(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	bulletin := &stubBulletin{
		published: weeks(1, 3),
		values:    map[int]float64{1: 10, 3: 30},
	}
	o := NewOrchestrator(store, Options{Bulletin: bulletin, Clock: newFakeClock(march15)})

	res := o.SyncBulletin(context.Background(), 2024)
	if res.Err != nil {
		t.Fatalf("SyncBulletin() error = %v", res.Err)
	}
	if got := store.periodsOf(models.SourceBulletin, ""); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("stored weeks = %v, want [1 3]", got)
	}
}

func TestSyncBulletin_StorageErrorAborts(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.insertErr = &database.StorageError{Op: "insert", Table: "bulletin_stat", Err: errStoreDown}
	bulletin := &stubBulletin{published: weeks(1, 2), values: map[int]float64{1: 1, 2: 2}}
	o := NewOrchestrator(store, Options{Bulletin: bulletin, Clock: newFakeClock(march15)})

	res := o.SyncBulletin(context.Background(), 2024)
	if !res.Aborted() || !errors.Is(res.Err, database.ErrStorage) {
		t.Fatalf("result = %+v, want aborted storage error", res)
	}
	if res.Inserted != 0 || len(store.Rows(models.SourceBulletin)) != 0 {
		t.Errorf("storage failure must leave the cursor unchanged")
	}
}

func TestSyncBulletin_ListFailureRetriesThenDegrades(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	bulletin := &stubBulletin{listErr: fmt.Errorf("%w: dial tcp: refused", ErrNetwork)}
	clock := newFakeClock(march15)
	o := NewOrchestrator(store, Options{
		Bulletin:      bulletin,
		Clock:         clock,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
	})

	res := o.SyncBulletin(context.Background(), 2024)
	if !errors.Is(res.Err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", res.Err)
	}
	if res.Aborted() {
		t.Errorf("network failure must not abort the cycle")
	}
	if clock.Sleeps() != 2 {
		t.Errorf("retry sleeps = %d, want 2", clock.Sleeps())
	}
}

func TestSyncTrends_OnlyPhrasesBehindTarget(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп", "орви", "насморк")
	// грипп is complete up to the last full week (10 on March 15).
	store.rows[models.SourceTrends] = []models.StatPoint{
		{Source: models.SourceTrends, Entity: "грипп", Year: 2024, Period: 10, Value: 1},
		{Source: models.SourceTrends, Entity: "орви", Year: 2024, Period: 4, Value: 1},
	}
	client := newScriptedTrends()
	client.samples["орви"] = weeklySamples(date(2024, time.January, 7), 1, 2, 3, 4, 5, 6)
	client.samples["насморк"] = weeklySamples(date(2024, time.January, 7), 9, 9)
	clock := newFakeClock(march15)
	o := NewOrchestrator(store, Options{
		Trends: NewTrendsAdapter(client, clock, testTrendsConfig()),
		Clock:  clock,
	})

	res := o.SyncTrends(context.Background(), 2024)
	if res.Err != nil {
		t.Fatalf("SyncTrends() error = %v", res.Err)
	}
	if client.Calls("грипп") != 0 {
		t.Errorf("up-to-date phrase was queried")
	}
	if client.Calls("орви") != 1 || client.Calls("насморк") != 1 {
		t.Errorf("calls = %d/%d, want 1/1", client.Calls("орви"), client.Calls("насморк"))
	}
	if res.Inserted != 8 || res.Removed != 1 {
		t.Errorf("inserted/removed = %d/%d, want 8/1", res.Inserted, res.Removed)
	}
	if got := store.periodsOf(models.SourceTrends, "орви"); !reflect.DeepEqual(got, weeks(1, 6)) {
		t.Errorf("орви weeks = %v", got)
	}
}

func TestSyncTrends_CursorFollowsCalendar(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп")
	client := newScriptedTrends()
	// Through 2022-03-13, the last complete week on March 15.
	client.samples["грипп"] = sundays(date(2021, time.December, 26), 12)
	clock := newFakeClock(time.Date(2022, time.March, 15, 9, 0, 0, 0, time.UTC))
	o := NewOrchestrator(store, Options{
		Trends: NewTrendsAdapter(client, clock, testTrendsConfig()),
		Clock:  clock,
	})

	if res := o.SyncTrends(context.Background(), 2022); res.Err != nil {
		t.Fatalf("SyncTrends() error = %v", res.Err)
	}
	if got := store.periodsOf(models.SourceTrends, "грипп"); !reflect.DeepEqual(got, weeks(1, 10)) {
		t.Fatalf("weeks after march = %v, want 1..10", got)
	}

	client.samples["грипп"] = sundays(date(2021, time.December, 26), 25)
	clock.Advance(92 * 24 * time.Hour)

	res := o.SyncTrends(context.Background(), 2022)
	if res.Err != nil {
		t.Fatalf("SyncTrends() error = %v", res.Err)
	}
	if client.Calls("грипп") != 2 {
		t.Errorf("calls = %d, want 2", client.Calls("грипп"))
	}
	if got := store.periodsOf(models.SourceTrends, "грипп"); !reflect.DeepEqual(got, weeks(1, 23)) {
		t.Errorf("weeks after june = %v, want 1..23", got)
	}
}

func TestSyncTrends_PhraseLimit(t *testing.T) {
	t.Parallel()

	store := newMemStore("a", "b", "c")
	client := newScriptedTrends()
	for _, p := range []string{"a", "b", "c"} {
		client.samples[p] = weeklySamples(date(2024, time.January, 7), 1)
	}
	clock := newFakeClock(march15)
	o := NewOrchestrator(store, Options{
		Trends:            NewTrendsAdapter(client, clock, testTrendsConfig()),
		Clock:             clock,
		TrendsPhraseLimit: 2,
	})

	o.SyncTrends(context.Background(), 2024)
	if client.Calls("c") != 0 {
		t.Errorf("phrase beyond the limit was queried")
	}
}

func newAdOrchestrator(store *memStore, reports *fakeReports, clock *fakeClock) *Orchestrator {
	cfg := testAdConfig()
	return NewOrchestrator(store, Options{
		AdPlatform: NewAdPlatformAdapter(reports, clock, cfg),
		Quota:      NewQuotaTracker(store, clock, cfg.DailyQuota, cfg.QuotaWindow),
		Clock:      clock,
	})
}

func TestSyncAdPlatform_QuotaCapsPhrases(t *testing.T) {
	t.Parallel()

	store := newMemStore(phraseList(100)...)
	store.quota = &models.QuotaState{LastRequestTime: march15.Add(-2 * time.Hour), PhrasesConsumed: 950}
	reports := newFakeReports()
	reports.readyAfter = 1
	clock := newFakeClock(march15)
	o := newAdOrchestrator(store, reports, clock)

	res := o.SyncAdPlatform(context.Background())
	if !errors.Is(res.Err, ErrQuotaExhausted) {
		t.Fatalf("error = %v, want ErrQuotaExhausted for deferred phrases", res.Err)
	}
	if res.Deferred != 50 {
		t.Errorf("Deferred = %d, want 50", res.Deferred)
	}
	requested := 0
	for _, c := range reports.created {
		requested += len(c)
	}
	if requested != 50 {
		t.Errorf("requested phrases = %d, want 50", requested)
	}
	if store.quota.PhrasesConsumed != 1000 {
		t.Errorf("consumed = %d, want 1000", store.quota.PhrasesConsumed)
	}
	if res.Inserted != 50 {
		t.Errorf("inserted = %d, want 50", res.Inserted)
	}
	if res.Aborted() {
		t.Errorf("deferring phrases to the next window must not abort the cycle")
	}
}

func TestSyncAdPlatform_ExhaustedQuotaSkipsCycle(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп")
	store.quota = &models.QuotaState{LastRequestTime: march15.Add(-time.Hour), PhrasesConsumed: 1000}
	reports := newFakeReports()
	o := newAdOrchestrator(store, reports, newFakeClock(march15))

	res := o.SyncAdPlatform(context.Background())
	if !res.Skipped || !errors.Is(res.Err, ErrQuotaExhausted) || !res.Aborted() {
		t.Fatalf("result = %+v, want skipped and aborted with ErrQuotaExhausted", res)
	}
	if len(reports.created) != 0 {
		t.Errorf("adapter called despite exhausted quota")
	}
	if store.quotaWrite != 0 {
		t.Errorf("quota row rewritten on a skipped cycle")
	}
}

func TestSyncAdPlatform_PreviousMonthAndCursor(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп", "орви")
	reports := newFakeReports()
	reports.readyAfter = 1
	reports.shows["грипп"] = 1200
	reports.shows["орви"] = 300
	clock := newFakeClock(time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC))
	o := newAdOrchestrator(store, reports, clock)
	ctx := context.Background()

	res := o.SyncAdPlatform(ctx)
	if res.Err != nil {
		t.Fatalf("SyncAdPlatform() error = %v", res.Err)
	}
	for _, p := range store.Rows(models.SourceAdPlatform) {
		if p.Year != 2023 || p.Period != 12 {
			t.Errorf("row %+v not attributed to December 2023", p)
		}
	}
	if store.quota == nil || store.quota.PhrasesConsumed != 2 {
		t.Fatalf("quota = %+v, want 2 consumed", store.quota)
	}

	again := o.SyncAdPlatform(ctx)
	if again.Err != nil || again.Fetched != 0 {
		t.Errorf("second cycle = %+v, want nothing to fetch", again)
	}
	if len(reports.created) != 1 {
		t.Errorf("reports created = %d, want 1", len(reports.created))
	}
	if store.quota.PhrasesConsumed != 2 {
		t.Errorf("idle cycle charged the quota")
	}
}

func TestSyncAdPlatform_RejectsConcurrentCycle(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп")
	o := newAdOrchestrator(store, newFakeReports(), newFakeClock(march15))

	o.adMu.Lock()
	res := o.SyncAdPlatform(context.Background())
	o.adMu.Unlock()

	if !errors.Is(res.Err, ErrCycleInProgress) {
		t.Errorf("error = %v, want ErrCycleInProgress", res.Err)
	}
}

func TestSyncAll_SourcesAreIndependent(t *testing.T) {
	t.Parallel()

	store := newMemStore("грипп")
	bulletin := &stubBulletin{listErr: fmt.Errorf("%w: timeout", ErrNetwork)}
	client := newScriptedTrends()
	client.samples["грипп"] = weeklySamples(date(2024, time.January, 7), 3, 4)
	clock := newFakeClock(march15)
	o := NewOrchestrator(store, Options{
		Bulletin: bulletin,
		Trends:   NewTrendsAdapter(client, clock, testTrendsConfig()),
		Clock:    clock,
	})

	results := o.SyncAll(context.Background(), 2024)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Source != models.SourceBulletin || results[0].Err == nil {
		t.Errorf("bulletin result = %+v, want network error", results[0])
	}
	if results[1].Source != models.SourceTrends || results[1].Err != nil || results[1].Inserted != 2 {
		t.Errorf("trends result = %+v, want 2 rows", results[1])
	}
	if results[2].Source != models.SourceAdPlatform || !results[2].Skipped {
		t.Errorf("adplatform result = %+v, want skipped", results[2])
	}
}
