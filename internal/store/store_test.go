package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTokenPrefersPrimaryKey(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetToken(TokenKeyLegacy, "legacy-tok"); err != nil {
		t.Fatalf("set legacy token: %v", err)
	}
	if err := s.SetToken(TokenKeyPrimary, "primary-tok"); err != nil {
		t.Fatalf("set primary token: %v", err)
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if tok != "primary-tok" {
		t.Fatalf("token = %q, want primary", tok)
	}
}

func TestTokenFallsBackToLegacyKey(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetToken(TokenKeyLegacy, "legacy-tok"); err != nil {
		t.Fatalf("set legacy token: %v", err)
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if tok != "legacy-tok" {
		t.Fatalf("token = %q, want legacy fallback", tok)
	}
}

func TestTokenAbsent(t *testing.T) {
	s := openTestStore(t)

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
}

func TestDeleteToken(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetToken(TokenKeyPrimary, "tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := s.DeleteToken(TokenKeyPrimary); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	tok, err := s.Token()
	if err != nil {
		t.Fatalf("read token: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q after delete, want empty", tok)
	}
}

func TestActivityRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &model.Activity{
		ID:                  "act-1",
		Sport:               "run",
		StartedAt:           time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		TotalPausedDuration: 42,
		Status:              model.StatusInProgress,
		Distance:            1234.5,
		Duration:            600,
		ElevationGain:       17.5,
		LastPointAt:         time.Date(2025, 6, 1, 8, 10, 0, 0, time.UTC),
	}
	if err := s.SaveActivity(ctx, a); err != nil {
		t.Fatalf("save activity: %v", err)
	}

	// Server aggregates change after a flush; upsert must replace.
	a.Distance = 2000
	a.Duration = 900
	a.Status = model.StatusPaused
	if err := s.SaveActivity(ctx, a); err != nil {
		t.Fatalf("update activity: %v", err)
	}

	got, err := s.GetActivity(ctx, "act-1")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if got == nil {
		t.Fatal("activity not found")
	}
	if got.Distance != 2000 || got.Duration != 900 || got.Status != model.StatusPaused {
		t.Fatalf("unexpected cached aggregates: %+v", got)
	}
	if !got.StartedAt.Equal(a.StartedAt) {
		t.Fatalf("startedAt = %v, want %v", got.StartedAt, a.StartedAt)
	}
	if got.TotalPausedDuration != 42 {
		t.Fatalf("totalPausedDuration = %d, want 42", got.TotalPausedDuration)
	}
}

func TestGetActivityUnknown(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetActivity(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown activity, got %+v", got)
	}
}

func TestGetActivityCorruptTimestamp(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(
		`INSERT INTO activities (id, started_at, status, updated_at) VALUES ('bad', 'not-a-time', 'completed', 'x')`)
	if err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	if _, err := s.GetActivity(context.Background(), "bad"); err == nil {
		t.Fatal("expected error for corrupt started_at, got nil")
	}
}

func TestSpillBatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	first := model.Batch{ID: "b-1", Samples: []model.LocationSample{
		{Lat: 52.5, Lng: 13.4, Time: base},
		{Lat: 52.5001, Lng: 13.4001, Time: base.Add(time.Second)},
	}}
	second := model.Batch{ID: "b-2", Samples: []model.LocationSample{
		{Lat: 52.5002, Lng: 13.4002, Time: base.Add(2 * time.Second)},
	}}

	if err := s.SpillBatch(ctx, "act-1", first); err != nil {
		t.Fatalf("spill first: %v", err)
	}
	if err := s.SpillBatch(ctx, "act-1", second); err != nil {
		t.Fatalf("spill second: %v", err)
	}
	// Spilling the same batch twice must not duplicate samples.
	if err := s.SpillBatch(ctx, "act-1", first); err != nil {
		t.Fatalf("spill duplicate: %v", err)
	}

	n, err := s.SpilledCount(ctx)
	if err != nil {
		t.Fatalf("count spilled: %v", err)
	}
	if n != 2 {
		t.Fatalf("spilled count = %d, want 2", n)
	}

	batches, err := s.SpilledBatches(ctx)
	if err != nil {
		t.Fatalf("load spilled: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("loaded %d batches, want 2", len(batches))
	}
	if batches[0].Batch.ID != "b-1" || batches[1].Batch.ID != "b-2" {
		t.Fatalf("spill order not preserved: %q, %q", batches[0].Batch.ID, batches[1].Batch.ID)
	}
	if len(batches[0].Batch.Samples) != 2 {
		t.Fatalf("first batch has %d samples, want 2", len(batches[0].Batch.Samples))
	}
	if !batches[0].Batch.Samples[0].Time.Equal(base) {
		t.Fatalf("sample time not preserved: %v", batches[0].Batch.Samples[0].Time)
	}

	if err := s.DeleteSpilledBatch(ctx, "b-1"); err != nil {
		t.Fatalf("delete spilled: %v", err)
	}
	n, err = s.SpilledCount(ctx)
	if err != nil {
		t.Fatalf("count spilled: %v", err)
	}
	if n != 1 {
		t.Fatalf("spilled count after delete = %d, want 1", n)
	}
}
