// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/models"
	syncpkg "github.com/tomtom215/epitrack/internal/sync"
)

type readCall struct {
	source   models.Source
	entity   string
	year     int
	from, to int
}

// fakeStore keeps series per (source, entity) and records reads.
type fakeStore struct {
	mu        sync.Mutex
	series    map[string][]models.SeriesPoint
	phrases   []string
	reads     []readCall
	readErr   error
	pingErr   error
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{series: make(map[string][]models.SeriesPoint)}
}

func seriesKey(source models.Source, entity string) string {
	return string(source) + "|" + entity
}

func (s *fakeStore) put(source models.Source, entity string, points ...models.SeriesPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seriesKey(source, entity)
	s.series[key] = append(s.series[key], points...)
}

func (s *fakeStore) ReadRange(_ context.Context, source models.Source, entity string, year, from, to int) ([]models.SeriesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, readCall{source: source, entity: entity, year: year, from: from, to: to})
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []models.SeriesPoint
	for _, p := range s.series[seriesKey(source, entity)] {
		if p.Period >= from && p.Period <= to {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) readCalls() []readCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]readCall(nil), s.reads...)
}

func (s *fakeStore) ListPhrases(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return append([]string(nil), s.phrases...), nil
}

func (s *fakeStore) UpsertPhrases(_ context.Context, phrases []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	added := 0
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		known := false
		for _, existing := range s.phrases {
			if existing == p {
				known = true
				break
			}
		}
		if !known {
			s.phrases = append(s.phrases, p)
			added++
		}
	}
	return added, nil
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) Driver() string { return "duckdb" }

// fakeRunner records on-demand sync calls.
type fakeRunner struct {
	mu          sync.Mutex
	sourceCalls []models.Source
	phraseCalls []string
	results     []syncpkg.CycleResult
	triggerErr  error
	lastSync    time.Time
	quota       int
	quotaErr    error
}

func (f *fakeRunner) TriggerSync(context.Context) ([]syncpkg.CycleResult, error) {
	return f.results, f.triggerErr
}

func (f *fakeRunner) SyncSource(_ context.Context, source models.Source, year int) syncpkg.CycleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sourceCalls = append(f.sourceCalls, source)
	return syncpkg.CycleResult{Source: source, Year: year}
}

func (f *fakeRunner) SyncTrendsPhrase(_ context.Context, year int, phrase string) syncpkg.CycleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phraseCalls = append(f.phraseCalls, phrase)
	return syncpkg.CycleResult{Source: models.SourceTrends, Year: year, Err: errors.New("provider down")}
}

func (f *fakeRunner) LastSyncTime() time.Time { return f.lastSync }

func (f *fakeRunner) QuotaRemaining(context.Context) (int, error) { return f.quota, f.quotaErr }

func (f *fakeRunner) calls() (sources []models.Source, phrases []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Source(nil), f.sourceCalls...), append([]string(nil), f.phraseCalls...)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{CacheTTL: 180 * time.Second},
		Sync:   config.SyncConfig{Year: 2024, SyncBeforeRead: true},
	}
}

// newTestRouter builds the full chi stack with rate limiting disabled.
func newTestRouter(t *testing.T, store *fakeStore, runner SyncRunner, cfg *config.Config) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(store, runner, cfg)
	t.Cleanup(h.Close)
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitDisabled:  true,
	})
	return NewRouter(h, mw).SetupChi(), h
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func do(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
