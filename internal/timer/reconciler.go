// Package timer derives the elapsed duration shown while recording
// from the server-held activity record instead of any local clock
// state, so a killed and restarted process re-derives the correct
// value as soon as the record is fetched.
package timer

import (
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

// Reconciler computes a display-only elapsed duration in seconds. It
// is never written back to the server.
type Reconciler struct {
	now        func() time.Time
	activityID string
	last       int
}

// New returns a reconciler using the wall clock.
func New() *Reconciler {
	return NewWithClock(time.Now)
}

// NewWithClock returns a reconciler with an injected clock.
func NewWithClock(now func() time.Time) *Reconciler {
	return &Reconciler{now: now}
}

// Elapsed returns the duration to display for the given activity
// state.
//
// While tracking and not paused the value is derived from the anchor
// startedAt + totalPausedDuration and is monotonically non-decreasing
// for the same activity. While paused the value freezes at the
// server-reported duration, since only the server aggregate across all
// synced points is authoritative once a pause boundary is crossed.
// A nil activity resets the reconciler and yields zero.
func (r *Reconciler) Elapsed(activity *model.Activity, tracking, paused bool) int {
	if activity == nil {
		r.activityID = ""
		r.last = 0
		return 0
	}

	if activity.ID != r.activityID {
		r.activityID = activity.ID
		r.last = 0
	}

	if paused {
		r.last = activity.Duration
		return r.last
	}

	if !tracking {
		return r.last
	}

	anchor := activity.StartedAt.Add(time.Duration(activity.TotalPausedDuration) * time.Second)
	elapsed := int(r.now().Sub(anchor) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < r.last {
		elapsed = r.last
	}
	r.last = elapsed
	return elapsed
}
