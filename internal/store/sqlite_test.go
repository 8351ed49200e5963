package store

import (
	"context"
	"testing"
	"time"

	"github.com/wxagent/weather-agent/internal/weather"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testObservation(city string, ts time.Time, temp float64) weather.Observation {
	humidity := 80
	return weather.Observation{
		City:        city,
		CountryCode: "LK",
		Latitude:    6.9271,
		Longitude:   79.8612,
		Temperature: &temp,
		Humidity:    &humidity,
		Condition:   weather.ConditionClear,
		Description: "clear sky",
		Timestamp:   ts.UTC(),
		Source:      weather.SourceLive,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestUpsertOverwriteReplacesFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	if err := s.UpsertOverwrite(ctx, testObservation("Colombo", ts, 28.0)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertOverwrite(ctx, testObservation("Colombo", ts, 31.5)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.Latest(ctx, "Colombo")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Temperature == nil || *got.Temperature != 31.5 {
		t.Errorf("expected second payload to win, got temperature %v", got.Temperature)
	}

	// Exactly one row for the key.
	rows, err := s.Range(ctx, "Colombo", ts.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row after double upsert, got %d", len(rows))
	}
}

func TestInsertIfAbsentNeverClobbers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	// A live row already present.
	if err := s.UpsertOverwrite(ctx, testObservation("Colombo", ts, 28.0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	batch := []weather.Observation{
		testObservation("Colombo", ts, 10.0),           // collides, must be skipped
		testObservation("Colombo", ts.Add(time.Hour), 11.0), // new, must land
	}
	batch[0].Source = weather.SourceBackfill
	batch[1].Source = weather.SourceBackfill

	inserted, err := s.InsertIfAbsent(ctx, batch)
	if err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", inserted)
	}

	rows, err := s.Range(ctx, "Colombo", ts.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first: rows[1] is the original live row, untouched.
	if rows[1].Temperature == nil || *rows[1].Temperature != 28.0 {
		t.Errorf("existing live row was clobbered: temperature %v", rows[1].Temperature)
	}
	if rows[1].Source != weather.SourceLive {
		t.Errorf("existing live row changed source to %s", rows[1].Source)
	}
}

func TestInsertIfAbsentRepeatIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	var batch []weather.Observation
	for i := 0; i < 5; i++ {
		obs := testObservation("Paris", ts.Add(time.Duration(i)*time.Hour), 15.0+float64(i))
		obs.Source = weather.SourceBackfill
		batch = append(batch, obs)
	}

	if _, err := s.InsertIfAbsent(ctx, batch); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	inserted, err := s.InsertIfAbsent(ctx, batch)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected re-run to insert 0, got %d", inserted)
	}
}

func TestLatestIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	if err := s.UpsertOverwrite(ctx, testObservation("Colombo", ts, 28.0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for _, name := range []string{"colombo", "COLOMBO", "Colombo"} {
		got, err := s.Latest(ctx, name)
		if err != nil {
			t.Errorf("Latest(%q): %v", name, err)
			continue
		}
		if got.City != "Colombo" {
			t.Errorf("Latest(%q) returned city %q", name, got.City)
		}
	}
}

func TestLatestNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Latest(context.Background(), "Nowhereville")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRangeNewestFirstAndEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.UpsertOverwrite(ctx, testObservation("Tokyo", base.Add(time.Duration(i)*time.Hour), 20.0)); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	rows, err := s.Range(ctx, "Tokyo", base)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.After(rows[i-1].Timestamp) {
			t.Errorf("rows not sorted newest first at index %d", i)
		}
	}

	// A window past all data is empty, not an error.
	rows, err = s.Range(ctx, "Tokyo", base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Range (empty): %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty result, got %d rows", len(rows))
	}
}

func TestIsEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("fresh store should be empty")
	}

	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if err := s.UpsertOverwrite(ctx, testObservation("Berlin", ts, 18.0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	empty, err = s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if empty {
		t.Error("store with a row should not be empty")
	}
}

func TestNullableFieldsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	obs := weather.Observation{
		City:        "Sydney",
		CountryCode: "AU",
		Latitude:    -33.8688,
		Longitude:   151.2093,
		Condition:   weather.ConditionUnknown,
		Description: "unknown",
		Timestamp:   ts,
		Source:      weather.SourceBackfill,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.UpsertOverwrite(ctx, obs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Latest(ctx, "Sydney")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.Temperature != nil || got.Humidity != nil || got.WindSpeed != nil {
		t.Error("nil measurement fields should stay nil through the store")
	}
	if got.Sunrise != nil || got.Sunset != nil {
		t.Error("nil sunrise/sunset should stay nil through the store")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir() + "/weather.db"

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed across reopen: %d -> %d", len(v1), len(v2))
	}
}

func TestRecordJobRunAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	if err := s.UpsertOverwrite(ctx, testObservation("Colombo", ts, 28.0)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	backfill := testObservation("Colombo", ts.Add(-time.Hour), 27.0)
	backfill.Source = weather.SourceBackfill
	if _, err := s.InsertIfAbsent(ctx, []weather.Observation{backfill}); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}

	started := time.Now().UTC().Add(-time.Minute)
	err := s.RecordJobRun(ctx, JobRun{
		JobName:         "fetch_current",
		Status:          "success",
		StartedAt:       started,
		CompletedAt:     time.Now().UTC(),
		CitiesProcessed: 1,
		RecordsWritten:  1,
	})
	if err != nil {
		t.Fatalf("RecordJobRun: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 2 {
		t.Errorf("expected 2 total records, got %d", stats.TotalRecords)
	}
	if stats.UniqueCities != 1 {
		t.Errorf("expected 1 unique city, got %d", stats.UniqueCities)
	}
	if stats.BySource["live"] != 1 || stats.BySource["backfill"] != 1 {
		t.Errorf("unexpected by-source counts: %v", stats.BySource)
	}
}
