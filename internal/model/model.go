package model

import "time"

// Activity status values as reported by the server.
const (
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
)

// LocationSample is a single GPS reading captured while recording.
// Samples are immutable once captured and owned by the buffer until
// the server acknowledges them.
type LocationSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Elevation float64   `json:"ele,omitempty"`
	Time      time.Time `json:"time"`
	Speed     float64   `json:"speed,omitempty"`
	HeartRate int       `json:"heartRate,omitempty"`
	Cadence   int       `json:"cadence,omitempty"`
}

// Batch is an ordered group of samples selected for one upload attempt.
// It is never mutated after selection: either the whole batch is
// acknowledged or the whole batch is requeued.
type Batch struct {
	ID      string
	Samples []LocationSample
}

// Activity is the client's cached copy of the server-authoritative
// activity record. The server recomputes Distance, Duration and
// ElevationGain from submitted points; this copy is never a source of
// truth.
type Activity struct {
	ID                  string    `json:"id"`
	Sport               string    `json:"sport,omitempty"`
	StartedAt           time.Time `json:"startedAt"`
	TotalPausedDuration int       `json:"totalPausedDuration"` // seconds
	Status              string    `json:"status"`
	Distance            float64   `json:"distance"` // meters
	Duration            int       `json:"duration"` // seconds
	ElevationGain       float64   `json:"elevationGain"`
	LastPointAt         time.Time `json:"lastPointAt,omitempty"`
}

// HeartRateSample is one heart-rate reading from a health store.
type HeartRateSample struct {
	Time time.Time `json:"timestamp"`
	BPM  int       `json:"bpm"`
}

// Milestone is a distance threshold that triggers a one-shot
// notification when crossed. Thresholds are static per sport.
type Milestone struct {
	Type            string  `json:"type"`
	ThresholdMeters float64 `json:"thresholdMeters"`
}
