package timer

import (
	"testing"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

func TestElapsedWhileTracking(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	r := NewWithClock(func() time.Time { return now })

	a := &model.Activity{ID: "act-1", StartedAt: t0}

	now = t0.Add(125 * time.Second)
	if got := r.Elapsed(a, true, false); got != 125 {
		t.Fatalf("elapsed = %d, want 125", got)
	}
}

func TestElapsedAccountsForPausedDuration(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0.Add(300 * time.Second)
	r := NewWithClock(func() time.Time { return now })

	// 60s of cumulative pause shifts the anchor forward.
	a := &model.Activity{ID: "act-1", StartedAt: t0, TotalPausedDuration: 60}
	if got := r.Elapsed(a, true, false); got != 240 {
		t.Fatalf("elapsed = %d, want 240", got)
	}
}

func TestElapsedFreezesAtServerDurationWhilePaused(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0.Add(700 * time.Second)
	r := NewWithClock(func() time.Time { return now })

	a := &model.Activity{ID: "act-1", StartedAt: t0, Duration: 600}
	if got := r.Elapsed(a, true, true); got != 600 {
		t.Fatalf("paused elapsed = %d, want server duration 600", got)
	}

	// Wall clock keeps moving; the displayed value must not.
	now = now.Add(90 * time.Second)
	if got := r.Elapsed(a, true, true); got != 600 {
		t.Fatalf("paused elapsed after 90s = %d, want 600", got)
	}
}

func TestElapsedResetsOnNilActivity(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0.Add(50 * time.Second)
	r := NewWithClock(func() time.Time { return now })

	a := &model.Activity{ID: "act-1", StartedAt: t0}
	if got := r.Elapsed(a, true, false); got != 50 {
		t.Fatalf("elapsed = %d, want 50", got)
	}
	if got := r.Elapsed(nil, false, false); got != 0 {
		t.Fatalf("elapsed after reset = %d, want 0", got)
	}
}

func TestElapsedMonotonicUnderClockDrift(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0.Add(100 * time.Second)
	r := NewWithClock(func() time.Time { return now })

	a := &model.Activity{ID: "act-1", StartedAt: t0}
	if got := r.Elapsed(a, true, false); got != 100 {
		t.Fatalf("elapsed = %d, want 100", got)
	}

	// A clock stepping backwards must not decrease the display.
	now = t0.Add(95 * time.Second)
	if got := r.Elapsed(a, true, false); got != 100 {
		t.Fatalf("elapsed after clock step = %d, want 100", got)
	}
}

func TestElapsedSurvivesProcessRestart(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0.Add(500 * time.Second)

	// A fresh reconciler with no prior state derives the same value
	// from the server record alone.
	r := NewWithClock(func() time.Time { return now })
	a := &model.Activity{ID: "act-1", StartedAt: t0, TotalPausedDuration: 100}
	if got := r.Elapsed(a, true, false); got != 400 {
		t.Fatalf("elapsed = %d, want 400", got)
	}
}

func TestElapsedNeverNegative(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := t0
	r := NewWithClock(func() time.Time { return now })

	// Anchor in the future (all elapsed time spent paused).
	a := &model.Activity{ID: "act-1", StartedAt: t0, TotalPausedDuration: 30}
	if got := r.Elapsed(a, true, false); got != 0 {
		t.Fatalf("elapsed = %d, want 0", got)
	}
}
