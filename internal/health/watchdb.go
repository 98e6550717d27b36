package health

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stridesync/stridesync/internal/model"
)

// watchDBService reads heart-rate samples from the SQLite database a
// watch companion app exports on the device.
type watchDBService struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

func newWatchDBService(path string, timeout time.Duration, logger *slog.Logger) *watchDBService {
	return &watchDBService{path: path, timeout: timeout, logger: logger}
}

func (w *watchDBService) Name() string { return "watchdb" }

func (w *watchDBService) Available() bool {
	if w.path == "" {
		return false
	}
	_, err := os.Stat(w.path)
	return err == nil
}

// RequestPermission checks that the exported database is readable.
func (w *watchDBService) RequestPermission(ctx context.Context) (bool, error) {
	if !w.Available() {
		return false, nil
	}
	f, err := os.Open(w.path)
	if err != nil {
		return false, fmt.Errorf("health database not readable: %w", err)
	}
	f.Close()
	return true, nil
}

func (w *watchDBService) HeartRateSamples(ctx context.Context, start, end time.Time) []model.HeartRateSample {
	samples, err := w.fetch(ctx, start, end)
	if err != nil {
		w.logger.Error("heart rate query failed", "provider", w.Name(), "error", err)
		return nil
	}
	sortSamples(samples)
	return samples
}

func (w *watchDBService) fetch(ctx context.Context, start, end time.Time) ([]model.HeartRateSample, error) {
	if !w.Available() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", w.path))
	if err != nil {
		return nil, fmt.Errorf("open health database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT timestamp, bpm FROM heart_rate WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp ASC",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query heart rate: %w", err)
	}
	defer rows.Close()

	var out []model.HeartRateSample
	for rows.Next() {
		var ts string
		var bpm int
		if err := rows.Scan(&ts, &bpm); err != nil {
			return nil, fmt.Errorf("scan heart rate row: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		out = append(out, model.HeartRateSample{Time: parsed, BPM: bpm})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate heart rate rows: %w", err)
	}
	return out, nil
}
