// Package milestone emits one-shot events when cumulative distance
// crosses configured thresholds.
package milestone

import "github.com/stridesync/stridesync/internal/model"

// Detector tracks which thresholds have already fired for the current
// session. It never mutates the distance it is given; crossings are
// reported once per threshold until Reset.
type Detector struct {
	passed map[float64]struct{}
}

// NewDetector returns a detector with an empty passed-set.
func NewDetector() *Detector {
	return &Detector{passed: make(map[float64]struct{})}
}

// OnDistanceUpdate returns the milestones newly crossed at the given
// cumulative distance, each exactly once per session.
func (d *Detector) OnDistanceUpdate(distance float64, milestones []model.Milestone) []model.Milestone {
	var crossed []model.Milestone
	for _, m := range milestones {
		if m.ThresholdMeters > distance {
			continue
		}
		if _, ok := d.passed[m.ThresholdMeters]; ok {
			continue
		}
		d.passed[m.ThresholdMeters] = struct{}{}
		crossed = append(crossed, m)
	}
	return crossed
}

// Reset clears the passed-set when a new activity session begins.
func (d *Detector) Reset() {
	d.passed = make(map[float64]struct{})
}
