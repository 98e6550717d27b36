// Package recorder owns one activity recording session: it wires the
// sample buffer, sync scheduler, milestone detector and timer
// reconciler together, with a lifecycle tied to the session rather
// than any global state.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stridesync/stridesync/internal/buffer"
	"github.com/stridesync/stridesync/internal/config"
	"github.com/stridesync/stridesync/internal/health"
	"github.com/stridesync/stridesync/internal/milestone"
	"github.com/stridesync/stridesync/internal/model"
	"github.com/stridesync/stridesync/internal/scheduler"
	"github.com/stridesync/stridesync/internal/store"
	"github.com/stridesync/stridesync/internal/timer"
)

// Backend is the slice of the sync client a session drives.
type Backend interface {
	CreateActivity(ctx context.Context, sport string, startedAt time.Time) (*model.Activity, error)
	FinishActivity(ctx context.Context, activityID string, heartRate []model.HeartRateSample) (*model.Activity, error)
	SyncPoints(ctx context.Context, activityID string, batch model.Batch) (*model.Activity, error)
}

// Session records one activity from start to finish.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	client Backend
	store  *store.Store
	health health.Service

	buf        *buffer.Buffer
	sched      *scheduler.Scheduler
	detector   *milestone.Detector
	milestones []model.Milestone

	// mu guards the fields below plus the reconciler: the scheduler's
	// flush goroutine updates the cached activity while the Record
	// loop and the read-side accessors run on the caller's goroutine.
	mu         sync.Mutex
	reconciler *timer.Reconciler
	activity   *model.Activity
	distance   float64
	lastSample *model.LocationSample
}

// NewSession builds an idle session. Start creates the server-side
// activity record and launches the scheduler.
func NewSession(cfg *config.Config, client Backend, st *store.Store, healthSvc health.Service, logger *slog.Logger) *Session {
	milestones := make([]model.Milestone, 0, len(cfg.MilestoneMeters))
	for _, m := range cfg.MilestoneMeters {
		milestones = append(milestones, model.Milestone{Type: "distance", ThresholdMeters: m})
	}

	return &Session{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		store:      st,
		health:     healthSvc,
		buf:        buffer.New(),
		detector:   milestone.NewDetector(),
		reconciler: timer.New(),
		milestones: milestones,
	}
}

// Start opens the activity record on the server and begins background
// syncing.
func (s *Session) Start(ctx context.Context) error {
	activity, err := s.client.CreateActivity(ctx, s.cfg.Sport, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	s.mu.Lock()
	s.activity = activity
	s.distance = 0
	s.lastSample = nil
	s.mu.Unlock()
	s.detector.Reset()

	if err := s.store.SaveActivity(ctx, activity); err != nil {
		s.logger.Warn("failed to cache activity", "activity", activity.ID, "error", err)
	}

	s.sched = scheduler.New(s.buf, s.client, s.store, scheduler.Options{
		ActivityID:       activity.ID,
		BatchSize:        s.cfg.BatchSize,
		FlushInterval:    s.cfg.FlushInterval,
		PollInterval:     s.cfg.PollInterval,
		MinRetryInterval: s.cfg.UploadTimeout,
		MaxRetryInterval: s.cfg.MaxBackoff,
		OnActivity:       s.onActivityUpdate,
	}, s.logger)
	s.sched.Start(ctx)

	s.logger.Info("recording started", "activity", activity.ID, "sport", activity.Sport)
	return nil
}

// onActivityUpdate caches the aggregates the server returned after a
// flush that contained new data. It runs on the scheduler's goroutine.
func (s *Session) onActivityUpdate(a *model.Activity) {
	s.mu.Lock()
	s.activity = a
	elapsed := s.elapsedLocked()
	s.mu.Unlock()

	if err := s.store.SaveActivity(context.Background(), a); err != nil {
		s.logger.Warn("failed to cache activity", "activity", a.ID, "error", err)
	}
	s.logger.Info("server aggregates updated",
		"activity", a.ID,
		"distance", a.Distance,
		"duration", a.Duration,
		"elapsed", elapsed,
	)
}

// Record consumes the source until it is exhausted or the context is
// cancelled. Every sample lands in the buffer; milestone crossings are
// detected on the locally accumulated distance, which only drives
// feedback and never the authoritative record.
func (s *Session) Record(ctx context.Context, src SampleSource) error {
	activity := s.Activity()
	if activity == nil {
		return fmt.Errorf("session not started")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sample, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sample source: %w", err)
		}

		s.mu.Lock()
		if s.lastSample != nil {
			s.distance += haversineMeters(s.lastSample.Lat, s.lastSample.Lng, sample.Lat, sample.Lng)
		}
		last := sample
		s.lastSample = &last
		distance := s.distance
		s.mu.Unlock()

		s.buf.Append(sample)

		for _, m := range s.detector.OnDistanceUpdate(distance, s.milestones) {
			s.logger.Info("milestone crossed",
				"activity", activity.ID,
				"threshold", m.ThresholdMeters,
				"distance", distance,
			)
		}
	}
}

// Elapsed returns the display duration in seconds for the current
// activity state.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() int {
	if s.activity == nil {
		return s.reconciler.Elapsed(nil, false, false)
	}
	tracking := s.activity.Status != model.StatusCompleted
	paused := s.activity.Status == model.StatusPaused
	return s.reconciler.Elapsed(s.activity, tracking, paused)
}

// Distance returns the locally accumulated distance in meters.
func (s *Session) Distance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance
}

// Activity returns the cached copy of the server record.
func (s *Session) Activity() *model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity
}

// Stop finishes the recording: final flush (spilling what cannot be
// sent), then the heart-rate merge and the server-side finish call.
func (s *Session) Stop(ctx context.Context) error {
	activity := s.Activity()
	if activity == nil {
		return nil
	}

	if err := s.sched.Stop(ctx); err != nil {
		return err
	}

	heartRate := s.collectHeartRate(ctx)

	finished, err := s.client.FinishActivity(ctx, activity.ID, heartRate)
	if err != nil {
		return fmt.Errorf("failed to finish activity %s: %w", activity.ID, err)
	}
	s.mu.Lock()
	s.activity = finished
	s.mu.Unlock()

	if err := s.store.SaveActivity(ctx, finished); err != nil {
		s.logger.Warn("failed to cache activity", "activity", finished.ID, "error", err)
	}

	s.logger.Info("recording finished",
		"activity", finished.ID,
		"distance", finished.Distance,
		"duration", finished.Duration,
		"heart_rate_samples", len(heartRate),
	)
	return nil
}

// collectHeartRate pulls the supplementary heart-rate series for the
// activity window. Any failure here degrades to an empty series.
func (s *Session) collectHeartRate(ctx context.Context) []model.HeartRateSample {
	if s.health == nil || !s.health.Available() {
		return nil
	}

	granted, err := s.health.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("health permission check failed", "provider", s.health.Name(), "error", err)
		return nil
	}
	if !granted {
		s.logger.Info("health permission not granted", "provider", s.health.Name())
		return nil
	}

	s.mu.Lock()
	startedAt := s.activity.StartedAt
	last := s.lastSample
	s.mu.Unlock()

	end := time.Now()
	if last != nil && last.Time.After(startedAt) {
		end = last.Time
	}
	samples := s.health.HeartRateSamples(ctx, startedAt, end)
	return health.Downsample(samples, s.cfg.HealthMaxSamples)
}
