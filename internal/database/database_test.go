// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package database

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/epitrack/internal/config"
	"github.com/tomtom215/epitrack/internal/logging"
	"github.com/tomtom215/epitrack/internal/models"
)

// testDBSemaphore limits concurrent in-memory DuckDB instances in tests.
var testDBSemaphore = make(chan struct{}, 2)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(&config.DatabaseConfig{
		Driver:       DriverDuckDB,
		Path:         ":memory:",
		MaxMemory:    "512MB",
		MaxOpenConns: 2,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func bulletinPoints(year int, weeks ...int) []models.StatPoint {
	points := make([]models.StatPoint, 0, len(weeks))
	for _, w := range weeks {
		points = append(points, models.StatPoint{
			Source: models.SourceBulletin, Year: year, Period: w, Value: float64(w) * 1.5,
		})
	}
	return points
}

func TestNewBootstrapsSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	version, err := db.CurrentSchemaVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentSchemaVersion() error = %v", err)
	}
	if want := len(getMigrations()); version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Driver() != DriverDuckDB {
		t.Errorf("Driver() = %q", db.Driver())
	}

	// bootstrapping twice must be harmless
	if err := db.initialize(); err != nil {
		t.Errorf("second initialize() error = %v", err)
	}
}

func TestMaxPeriod(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.MaxPeriod(ctx, models.SourceBulletin, 2022, ""); err != nil || ok {
		t.Fatalf("empty table: ok=%v err=%v, want absent", ok, err)
	}

	if err := db.InsertBatch(ctx, models.SourceBulletin, bulletinPoints(2022, 3, 10, 7)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if err := db.InsertBatch(ctx, models.SourceBulletin, bulletinPoints(2021, 52)); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	got, ok, err := db.MaxPeriod(ctx, models.SourceBulletin, 2022, "ignored for bulletin")
	if err != nil || !ok {
		t.Fatalf("MaxPeriod() ok=%v err=%v", ok, err)
	}
	if got != 10 {
		t.Errorf("MaxPeriod() = %d, want 10", got)
	}
}

func TestMaxPeriodsByEntity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	points := []models.StatPoint{
		{Source: models.SourceTrends, Entity: "грипп", Year: 2022, Period: 1, Value: 40},
		{Source: models.SourceTrends, Entity: "грипп", Year: 2022, Period: 5, Value: 80},
		{Source: models.SourceTrends, Entity: "орви", Year: 2022, Period: 2, Value: 10},
		{Source: models.SourceTrends, Entity: "орви", Year: 2021, Period: 30, Value: 10},
	}
	if err := db.InsertBatch(ctx, models.SourceTrends, points); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	cursors, err := db.MaxPeriodsByEntity(ctx, models.SourceTrends, 2022)
	if err != nil {
		t.Fatalf("MaxPeriodsByEntity() error = %v", err)
	}
	if len(cursors) != 2 || cursors["грипп"] != 5 || cursors["орви"] != 2 {
		t.Errorf("cursors = %v", cursors)
	}

	single, ok, err := db.MaxPeriod(ctx, models.SourceTrends, 2022, "орви")
	if err != nil || !ok || single != 2 {
		t.Errorf("MaxPeriod(орви) = %d, %v, %v", single, ok, err)
	}
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	db := setupTestDB(t)
	if err := db.InsertBatch(context.Background(), models.SourceTrends, nil); err != nil {
		t.Errorf("InsertBatch(nil) error = %v", err)
	}
}

func TestInsertBatchRejectsForeignSource(t *testing.T) {
	db := setupTestDB(t)

	err := db.InsertBatch(context.Background(), models.SourceTrends, bulletinPoints(2022, 1))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "insert" || se.Table != "trends_stat" {
		t.Errorf("unexpected storage error %+v", se)
	}
}

func TestUnknownSource(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Dedup(context.Background(), models.Source("fax"))
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestDedupKeepsNewestAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := bulletinPoints(2022, 1, 2, 3)
	second := []models.StatPoint{
		{Source: models.SourceBulletin, Year: 2022, Period: 2, Value: 99},
		{Source: models.SourceBulletin, Year: 2022, Period: 3, Value: 77},
	}
	third := []models.StatPoint{
		{Source: models.SourceBulletin, Year: 2022, Period: 3, Value: 55},
	}
	for _, batch := range [][]models.StatPoint{first, second, third} {
		if err := db.InsertBatch(ctx, models.SourceBulletin, batch); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}
	}

	removed, err := db.Dedup(ctx, models.SourceBulletin)
	if err != nil {
		t.Fatalf("Dedup() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("first Dedup removed %d rows, want 3", removed)
	}

	again, err := db.Dedup(ctx, models.SourceBulletin)
	if err != nil {
		t.Fatalf("second Dedup() error = %v", err)
	}
	if again != 0 {
		t.Errorf("second Dedup removed %d rows, want 0", again)
	}

	count, err := db.RowCount(ctx, models.SourceBulletin)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("RowCount() = %d, want 3 (one per week)", count)
	}

	series, err := db.ReadRange(ctx, models.SourceBulletin, "", 2022, 1, 52)
	if err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}
	want := []models.SeriesPoint{{Period: 1, Value: 1.5}, {Period: 2, Value: 99}, {Period: 3, Value: 55}}
	if len(series) != len(want) {
		t.Fatalf("ReadRange() = %v, want %v", series, want)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Errorf("series[%d] = %+v, want %+v", i, series[i], want[i])
		}
	}
}

func TestDedupNeverRemovesSoleCopy(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.InsertBatch(ctx, models.SourceAdPlatform, []models.StatPoint{
		{Source: models.SourceAdPlatform, Entity: "a", Year: 2022, Period: 1, Value: 1},
		{Source: models.SourceAdPlatform, Entity: "b", Year: 2022, Period: 1, Value: 2},
		{Source: models.SourceAdPlatform, Entity: "a", Year: 2023, Period: 1, Value: 3},
	}); err != nil {
		t.Fatal(err)
	}

	removed, err := db.Dedup(ctx, models.SourceAdPlatform)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("Dedup removed %d distinct-key rows", removed)
	}
}

// countlessResult is a sql.Result whose driver cannot count rows.
type countlessResult struct{}

func (countlessResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (countlessResult) RowsAffected() (int64, error) { return 0, errors.New("rows affected not supported") }

type countedResult int64

func (r countedResult) LastInsertId() (int64, error) { return 0, nil }
func (r countedResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestRowsRemovedLogsUnavailableCount(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})
	defer logging.Init(logging.DefaultConfig())

	if got := rowsRemoved(countedResult(3), "trends_stat"); got != 3 {
		t.Errorf("rowsRemoved() = %d, want 3", got)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	if got := rowsRemoved(countlessResult{}, "trends_stat"); got != 0 {
		t.Errorf("rowsRemoved() = %d, want 0", got)
	}
	out := buf.String()
	for _, want := range []string{`"level":"warn"`, "rows affected not supported", `"table":"trends_stat"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestReadRangeBoundsAndEntity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var points []models.StatPoint
	for week := 1; week <= 10; week++ {
		points = append(points,
			models.StatPoint{Source: models.SourceTrends, Entity: "x", Year: 2022, Period: week, Value: float64(week)},
			models.StatPoint{Source: models.SourceTrends, Entity: "y", Year: 2022, Period: week, Value: 100},
		)
	}
	if err := db.InsertBatch(ctx, models.SourceTrends, points); err != nil {
		t.Fatal(err)
	}

	series, err := db.ReadRange(ctx, models.SourceTrends, "x", 2022, 4, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 3 || series[0].Period != 4 || series[2].Period != 6 || series[1].Value != 5 {
		t.Errorf("ReadRange() = %v", series)
	}

	empty, err := db.ReadRange(ctx, models.SourceTrends, "z", 2022, 1, 52)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no rows for unknown phrase, got %v", empty)
	}
}

func TestQuotaRoundTripKeepsSingleRow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	state, err := db.ReadQuota(ctx)
	if err != nil || state != nil {
		t.Fatalf("ReadQuota() on empty store = %v, %v", state, err)
	}

	t1 := time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	if err := db.WriteQuota(ctx, models.QuotaState{LastRequestTime: t1, PhrasesConsumed: 100}); err != nil {
		t.Fatal(err)
	}
	if err := db.WriteQuota(ctx, models.QuotaState{LastRequestTime: t2, PhrasesConsumed: 150}); err != nil {
		t.Fatal(err)
	}

	state, err = db.ReadQuota(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || !state.LastRequestTime.Equal(t2) || state.PhrasesConsumed != 150 {
		t.Errorf("ReadQuota() = %+v, want %v/150", state, t2)
	}

	var rows int
	if err := db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM quota_state`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("quota_state has %d rows, want 1", rows)
	}
}

func TestUpsertPhrases(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	added, err := db.UpsertPhrases(ctx, []string{"грипп", " орви ", "", "грипп"})
	if err != nil {
		t.Fatalf("UpsertPhrases() error = %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	added, err = db.UpsertPhrases(ctx, []string{"орви", "кашель"})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Errorf("second upsert added = %d, want 1", added)
	}

	phrases, err := db.ListPhrases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(phrases) != 3 {
		t.Fatalf("ListPhrases() = %v", phrases)
	}
	seen := map[string]bool{}
	for _, p := range phrases {
		if seen[p] {
			t.Errorf("duplicate phrase %q", p)
		}
		seen[p] = true
	}
	for _, want := range []string{"грипп", "орви", "кашель"} {
		if !seen[want] {
			t.Errorf("missing phrase %q in %v", want, phrases)
		}
	}

	if n, err := db.UpsertPhrases(ctx, []string{"  ", ""}); err != nil || n != 0 {
		t.Errorf("blank upsert = %d, %v", n, err)
	}
}

func TestDataSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        config.DatabaseConfig
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"memory", config.DatabaseConfig{Driver: "duckdb", Path: ":memory:", MaxMemory: "1GB"}, "duckdb", "?max_memory=1GB", false},
		{"default driver", config.DatabaseConfig{Path: ":memory:"}, "duckdb", "", false},
		{"postgres", config.DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/x"}, "pgx", "postgres://localhost/x", false},
		{"postgres no dsn", config.DatabaseConfig{Driver: "postgres"}, "", "", true},
		{"unknown", config.DatabaseConfig{Driver: "mysql"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			driver, dsn, err := dataSource(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if driver != tt.wantDriver || dsn != tt.wantDSN {
				t.Errorf("dataSource() = %q, %q; want %q, %q", driver, dsn, tt.wantDriver, tt.wantDSN)
			}
		})
	}
}

func TestEnsureContextAddsDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := ensureContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected default deadline")
	}

	parent, pcancel := context.WithTimeout(context.Background(), time.Second)
	defer pcancel()
	same, cancel2 := ensureContext(parent)
	defer cancel2()
	if same != parent {
		t.Error("context with deadline should be returned unchanged")
	}
}
