// Package store is the durable sidecar for the sync engine: auth
// tokens, the cached copy of server activity records, and batches
// spilled to disk when uploads keep failing across a process restart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stridesync/stridesync/internal/model"
)

// Token storage keys. The primary key is written by the current auth
// flow; the legacy key is still read for users who signed in before
// the storage migration.
const (
	TokenKeyPrimary = "auth_token"
	TokenKeyLegacy  = "session_token"
)

const timeLayout = time.RFC3339Nano

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite database connection and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		sport TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		total_paused INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		distance REAL NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0,
		elevation_gain REAL NOT NULL DEFAULT 0,
		last_point_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS spilled_batches (
		batch_id TEXT PRIMARY KEY,
		activity_id TEXT NOT NULL,
		samples TEXT NOT NULL,
		created_at TEXT NOT NULL,
		seq INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_spilled_activity ON spilled_batches(activity_id, seq);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Token resolves the stored auth token, preferring the primary key and
// falling back to the legacy key. An empty string with a nil error
// means no token is stored.
func (s *Store) Token() (string, error) {
	for _, key := range []string{TokenKeyPrimary, TokenKeyLegacy} {
		var value string
		err := s.db.QueryRow("SELECT value FROM tokens WHERE key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read token %q: %w", key, err)
		}
		if value != "" {
			return value, nil
		}
	}
	return "", nil
}

// SetToken stores a token under the given key.
func (s *Store) SetToken(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO tokens (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store token %q: %w", key, err)
	}
	return nil
}

// DeleteToken removes a token key, e.g. after the server rejects it.
func (s *Store) DeleteToken(key string) error {
	if _, err := s.db.Exec("DELETE FROM tokens WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete token %q: %w", key, err)
	}
	return nil
}

// SaveActivity upserts the cached copy of a server activity record.
func (s *Store) SaveActivity(ctx context.Context, a *model.Activity) error {
	lastPoint := ""
	if !a.LastPointAt.IsZero() {
		lastPoint = a.LastPointAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, sport, started_at, total_paused, status, distance, duration, elevation_gain, last_point_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			sport = excluded.sport,
			started_at = excluded.started_at,
			total_paused = excluded.total_paused,
			status = excluded.status,
			distance = excluded.distance,
			duration = excluded.duration,
			elevation_gain = excluded.elevation_gain,
			last_point_at = excluded.last_point_at,
			updated_at = excluded.updated_at`,
		a.ID, a.Sport, a.StartedAt.UTC().Format(timeLayout), a.TotalPausedDuration, a.Status,
		a.Distance, a.Duration, a.ElevationGain, lastPoint, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save activity %s: %w", a.ID, err)
	}
	return nil
}

// GetActivity loads a cached activity record. Returns nil when the
// activity is unknown locally.
func (s *Store) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sport, started_at, total_paused, status, distance, duration, elevation_gain, last_point_at
		 FROM activities WHERE id = ?`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load activity %s: %w", id, err)
	}
	return a, nil
}

// Activities returns all cached activity records, newest first.
func (s *Store) Activities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sport, started_at, total_paused, status, distance, duration, elevation_gain, last_point_at
		 FROM activities ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*model.Activity, error) {
	var a model.Activity
	var startedAt string
	var lastPoint sql.NullString

	if err := row.Scan(&a.ID, &a.Sport, &startedAt, &a.TotalPausedDuration, &a.Status,
		&a.Distance, &a.Duration, &a.ElevationGain, &lastPoint); err != nil {
		return nil, err
	}

	var err error
	a.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	if lastPoint.Valid && lastPoint.String != "" {
		a.LastPointAt, err = time.Parse(timeLayout, lastPoint.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_point_at %q: %w", lastPoint.String, err)
		}
	}
	return &a, nil
}

// SpilledBatch is a batch persisted after repeated upload failures so
// it survives a process restart.
type SpilledBatch struct {
	ActivityID string
	Batch      model.Batch
}

// SpillBatch persists a failed batch. The seq column preserves the
// spill order so reloads replay batches chronologically.
func (s *Store) SpillBatch(ctx context.Context, activityID string, batch model.Batch) error {
	samples, err := json.Marshal(batch.Samples)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batch.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO spilled_batches (batch_id, activity_id, samples, created_at, seq)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM spilled_batches))
		 ON CONFLICT(batch_id) DO NOTHING`,
		batch.ID, activityID, string(samples), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to spill batch %s: %w", batch.ID, err)
	}
	return nil
}

// SpilledBatches returns all spilled batches in spill order.
func (s *Store) SpilledBatches(ctx context.Context) ([]SpilledBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT batch_id, activity_id, samples FROM spilled_batches ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query spilled batches: %w", err)
	}
	defer rows.Close()

	var out []SpilledBatch
	for rows.Next() {
		var sb SpilledBatch
		var samples string
		if err := rows.Scan(&sb.Batch.ID, &sb.ActivityID, &samples); err != nil {
			return nil, fmt.Errorf("failed to scan spilled batch: %w", err)
		}
		if err := json.Unmarshal([]byte(samples), &sb.Batch.Samples); err != nil {
			return nil, fmt.Errorf("failed to decode batch %s: %w", sb.Batch.ID, err)
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spilled batches: %w", err)
	}
	return out, nil
}

// DeleteSpilledBatch removes a spilled batch once it has been
// acknowledged by the server.
func (s *Store) DeleteSpilledBatch(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM spilled_batches WHERE batch_id = ?", batchID); err != nil {
		return fmt.Errorf("failed to delete spilled batch %s: %w", batchID, err)
	}
	return nil
}

// SpilledCount returns the number of batches waiting on disk.
func (s *Store) SpilledCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM spilled_batches").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count spilled batches: %w", err)
	}
	return n, nil
}
