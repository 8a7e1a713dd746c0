// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/epitrack/internal/models"
)

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slept)
}

// memStore is an in-memory Store with append-only rows and the same
// newest-wins de-duplication as the SQL gateway.
type memStore struct {
	mu      sync.Mutex
	rows    map[models.Source][]models.StatPoint
	phrases []string
	quota   *models.QuotaState

	insertErr  error
	quotaErr   error
	inserts    int
	quotaWrite int
}

func newMemStore(phrases ...string) *memStore {
	return &memStore{rows: make(map[models.Source][]models.StatPoint), phrases: phrases}
}

var errStoreDown = errors.New("store down")

func (s *memStore) MaxPeriod(_ context.Context, source models.Source, year int, entity string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxPeriod, ok := 0, false
	for _, p := range s.rows[source] {
		if p.Year == year && p.Entity == entity && (!ok || p.Period > maxPeriod) {
			maxPeriod, ok = p.Period, true
		}
	}
	return maxPeriod, ok, nil
}

func (s *memStore) MaxPeriodsByEntity(_ context.Context, source models.Source, year int) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, p := range s.rows[source] {
		if p.Year != year {
			continue
		}
		if cur, ok := out[p.Entity]; !ok || p.Period > cur {
			out[p.Entity] = p.Period
		}
	}
	return out, nil
}

func (s *memStore) InsertBatch(_ context.Context, source models.Source, points []models.StatPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts++
	s.rows[source] = append(s.rows[source], points...)
	return nil
}

func (s *memStore) Dedup(_ context.Context, source models.Source) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]int)
	for i, p := range s.rows[source] {
		latest[p.Key()] = i
	}
	kept := make([]models.StatPoint, 0, len(latest))
	for i, p := range s.rows[source] {
		if latest[p.Key()] == i {
			kept = append(kept, p)
		}
	}
	removed := int64(len(s.rows[source]) - len(kept))
	s.rows[source] = kept
	return removed, nil
}

func (s *memStore) ListPhrases(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.phrases...)
	sort.Strings(out)
	return out, nil
}

func (s *memStore) ReadQuota(context.Context) (*models.QuotaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota == nil {
		return nil, nil
	}
	q := *s.quota
	return &q, nil
}

func (s *memStore) WriteQuota(_ context.Context, state models.QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotaErr != nil {
		return s.quotaErr
	}
	s.quotaWrite++
	s.quota = &state
	return nil
}

func (s *memStore) Rows(source models.Source) []models.StatPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatPoint(nil), s.rows[source]...)
}

// periodsOf returns the sorted periods stored for (source, entity).
func (s *memStore) periodsOf(source models.Source, entity string) []int {
	var out []int
	for _, p := range s.Rows(source) {
		if p.Entity == entity {
			out = append(out, p.Period)
		}
	}
	sort.Ints(out)
	return out
}

// stubBulletin serves a fixed set of week values.
type stubBulletin struct {
	mu        sync.Mutex
	published []int
	values    map[int]float64
	fetched   [][]int
	listErr   error
}

func (b *stubBulletin) WeekNumbers(context.Context, int) ([]int, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.published, nil
}

func (b *stubBulletin) FetchWeeks(_ context.Context, year int, weeks []int) []models.StatPoint {
	b.mu.Lock()
	b.fetched = append(b.fetched, append([]int(nil), weeks...))
	b.mu.Unlock()
	var out []models.StatPoint
	for _, w := range weeks {
		if v, ok := b.values[w]; ok {
			out = append(out, models.StatPoint{Source: models.SourceBulletin, Year: year, Period: w, Value: v})
		}
	}
	return out
}

// scriptedTrends answers per phrase with a list of errors before success.
type scriptedTrends struct {
	mu       sync.Mutex
	failures map[string][]error
	samples  map[string][]TrendSample
	calls    map[string]int
}

func newScriptedTrends() *scriptedTrends {
	return &scriptedTrends{
		failures: make(map[string][]error),
		samples:  make(map[string][]TrendSample),
		calls:    make(map[string]int),
	}
}

func (s *scriptedTrends) InterestOverTime(_ context.Context, phrase string, _, _ time.Time) ([]TrendSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[phrase]++
	if errs := s.failures[phrase]; len(errs) > 0 {
		err := errs[0]
		s.failures[phrase] = errs[1:]
		return nil, err
	}
	samples, ok := s.samples[phrase]
	if !ok {
		return nil, ErrNoData
	}
	return samples, nil
}

func (s *scriptedTrends) Calls(phrase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[phrase]
}

// weeklySamples returns n Sunday samples starting at first.
func weeklySamples(first time.Time, values ...float64) []TrendSample {
	out := make([]TrendSample, len(values))
	for i, v := range values {
		out[i] = TrendSample{Time: first.AddDate(0, 0, 7*i), Value: v}
	}
	return out
}

// fakeReports is an in-memory report API. Reports become ready after
// readyAfter status polls unless listed in never.
type fakeReports struct {
	mu         sync.Mutex
	nextID     int
	readyAfter int
	never      map[int]bool // chunk index (0-based) that never completes
	createErr  map[int]error
	shows      map[string]int
	polls      map[int]int
	chunkOf    map[int]int
	created    [][]string
	deleted    []int
}

func newFakeReports() *fakeReports {
	return &fakeReports{
		nextID:    100,
		never:     make(map[int]bool),
		createErr: make(map[int]error),
		shows:     make(map[string]int),
		polls:     make(map[int]int),
		chunkOf:   make(map[int]int),
	}
}

func (f *fakeReports) CreateReport(_ context.Context, phrases []string, _ []int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk := len(f.created)
	f.created = append(f.created, append([]string(nil), phrases...))
	if err := f.createErr[chunk]; err != nil {
		return 0, err
	}
	f.nextID++
	f.chunkOf[f.nextID] = chunk
	return f.nextID, nil
}

func (f *fakeReports) ReportStatuses(context.Context) (map[int]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]string)
	for id, chunk := range f.chunkOf {
		f.polls[id]++
		status := ReportStatusPending
		if !f.never[chunk] && f.polls[id] >= f.readyAfter {
			status = ReportStatusDone
		}
		out[id] = status
	}
	return out, nil
}

func (f *fakeReports) GetReport(_ context.Context, id int) ([]ReportEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunkOf[id]
	if !ok {
		return nil, ErrNoData
	}
	var entries []ReportEntry
	for _, p := range f.created[chunk] {
		entries = append(entries, ReportEntry{
			Phrase:       p,
			SearchedWith: []ReportItem{{Phrase: p, Shows: f.shows[p]}},
		})
	}
	return entries, nil
}

func (f *fakeReports) DeleteReport(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunkOf, id)
	f.deleted = append(f.deleted, id)
	return nil
}
