// Package scheduler decides when buffered samples are flushed to the
// backend: when the buffer reaches a size threshold, when enough time
// has passed since the last successful flush, and once more when the
// recording session stops. A failed batch is held ahead of anything
// newer and retried under the same idempotency key, with retries
// backing off never tighter than the upload timeout.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/stridesync/stridesync/internal/api"
	"github.com/stridesync/stridesync/internal/buffer"
	"github.com/stridesync/stridesync/internal/model"
)

// Uploader is the slice of the sync client the scheduler needs.
type Uploader interface {
	SyncPoints(ctx context.Context, activityID string, batch model.Batch) (*model.Activity, error)
}

// Spiller persists batches that could not be uploaded before the
// session stopped.
type Spiller interface {
	SpillBatch(ctx context.Context, activityID string, batch model.Batch) error
}

// Options tune the flush triggers and retry policy.
type Options struct {
	ActivityID    string
	BatchSize     int
	FlushInterval time.Duration
	PollInterval  time.Duration

	// MinRetryInterval floors the backoff after a failed flush. It
	// must not be below the upload timeout or retries pile onto an
	// in-flight-sized window.
	MinRetryInterval time.Duration
	MaxRetryInterval time.Duration

	// OnActivity is invoked with the updated server aggregates after a
	// flush that carried genuinely new samples. Optional.
	OnActivity func(*model.Activity)
}

// Scheduler drains the sample buffer and drives the sync client. One
// instance is owned by a recording session; Start and Stop bracket the
// session lifecycle.
type Scheduler struct {
	buf      *buffer.Buffer
	uploader Uploader
	spiller  Spiller
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	mu        sync.Mutex
	bo        *backoff.ExponentialBackOff
	nextRetry time.Time
	lastFlush time.Time
	lastAcked time.Time

	// pending is the batch whose upload failed. It keeps its batch ID
	// so a retry after an ambiguous failure is deduplicable
	// server-side, and it is always sent before anything newer is
	// drained.
	pending *model.Batch

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler. The spiller may be nil, in which case
// unsent samples are dropped at Stop (tests only; the daemon always
// passes the durable store).
func New(buf *buffer.Buffer, uploader Uploader, spiller Spiller, opts Options, logger *slog.Logger) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 15 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MinRetryInterval <= 0 {
		opts.MinRetryInterval = 30 * time.Second
	}
	if opts.MaxRetryInterval <= 0 {
		opts.MaxRetryInterval = 5 * time.Minute
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.MinRetryInterval
	bo.MaxInterval = opts.MaxRetryInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Scheduler{
		buf:      buf,
		uploader: uploader,
		spiller:  spiller,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		bo:       bo,
		done:     make(chan struct{}),
	}
}

// Start launches the trigger loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.lastFlush = s.now()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.maybeFlush(ctx)
			}
		}
	}()
}

// Stop halts the trigger loop, attempts one best-effort final flush,
// and spills whatever is still buffered so it survives a restart.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()

	// Lifecycle trigger: drain everything we can while the process is
	// still alive.
	for s.hasPending() || s.buf.Len() > 0 {
		if err := s.Flush(ctx); err != nil {
			break
		}
	}

	if s.spiller == nil {
		return nil
	}

	// The held batch spills first, under the ID the server may already
	// have seen, so a later replay stays deduplicable.
	if p := s.pendingBatch(); p != nil {
		if err := s.spiller.SpillBatch(ctx, s.opts.ActivityID, *p); err != nil {
			return fmt.Errorf("failed to spill unsent batch %s: %w", p.ID, err)
		}
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		s.logger.Info("spilled unsent batch", "activity", s.opts.ActivityID, "batch", p.ID, "count", len(p.Samples))
	}

	for s.buf.Len() > 0 {
		samples := s.buf.Drain(s.opts.BatchSize)
		batch := model.Batch{ID: uuid.NewString(), Samples: samples}
		if err := s.spiller.SpillBatch(ctx, s.opts.ActivityID, batch); err != nil {
			s.buf.Requeue(samples)
			return fmt.Errorf("failed to spill %d unsent samples: %w", s.buf.Len(), err)
		}
		s.logger.Info("spilled unsent batch", "activity", s.opts.ActivityID, "batch", batch.ID, "count", len(samples))
	}
	return nil
}

func (s *Scheduler) pendingBatch() *model.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) hasPending() bool {
	return s.pendingBatch() != nil
}

// maybeFlush applies the size and time triggers, gated by the retry
// backoff.
func (s *Scheduler) maybeFlush(ctx context.Context) {
	s.mu.Lock()
	waiting := s.now().Before(s.nextRetry)
	due := s.now().Sub(s.lastFlush) >= s.opts.FlushInterval
	s.mu.Unlock()

	if waiting {
		return
	}
	n := s.buf.Len()
	if s.hasPending() || n >= s.opts.BatchSize || (due && n > 0) {
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn("flush failed", "activity", s.opts.ActivityID, "buffered", s.buf.Len(), "error", err)
		}
	}
}

// Flush uploads the held batch if one exists, otherwise drains a new
// one. On failure the batch is held for retry under its original ID
// and the next attempt is pushed out by the backoff policy. A
// successful flush advances the last-synced marker and resets the
// backoff.
func (s *Scheduler) Flush(ctx context.Context) error {
	batch := s.pendingBatch()
	if batch == nil {
		samples := s.buf.Drain(s.opts.BatchSize)
		if len(samples) == 0 {
			return nil
		}
		batch = &model.Batch{ID: uuid.NewString(), Samples: samples}
	}

	activity, err := s.uploader.SyncPoints(ctx, s.opts.ActivityID, *batch)
	if err != nil {
		s.mu.Lock()
		s.pending = batch
		delay := s.bo.NextBackOff()
		if delay < s.opts.MinRetryInterval {
			delay = s.opts.MinRetryInterval
		}
		s.nextRetry = s.now().Add(delay)
		s.mu.Unlock()

		if !api.Transient(err) {
			s.logger.Error("sync rejected, re-authentication required", "activity", s.opts.ActivityID, "error", err)
		}
		return fmt.Errorf("sync batch %s: %w", batch.ID, err)
	}

	newest := batch.Samples[len(batch.Samples)-1].Time

	s.mu.Lock()
	s.pending = nil
	s.lastFlush = s.now()
	hasNew := newest.After(s.lastAcked)
	if hasNew {
		s.lastAcked = newest
	}
	s.bo.Reset()
	s.nextRetry = time.Time{}
	s.mu.Unlock()

	s.logger.Debug("batch acknowledged", "activity", s.opts.ActivityID, "batch", batch.ID, "count", len(batch.Samples))

	// Only wake read-side consumers when the batch moved the marker.
	if hasNew && s.opts.OnActivity != nil && activity != nil {
		s.opts.OnActivity(activity)
	}
	return nil
}

// LastSyncedAt reports the capture timestamp of the newest
// acknowledged sample, the marker read-side consumers compare against.
func (s *Scheduler) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAcked
}

// HasNewSince reports whether samples captured after t have been
// acknowledged by the server.
func (s *Scheduler) HasNewSince(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAcked.After(t)
}
