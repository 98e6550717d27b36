package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	ServerURL     string
	DatabasePath  string
	Locale        string
	Sport         string
	BatchSize     int
	FlushInterval time.Duration
	PollInterval  time.Duration
	UploadTimeout time.Duration
	MaxBackoff    time.Duration

	HealthProvider    string // "fitbit", "watchdb" or "none"
	HealthBridgeURL   string
	HealthBridgeToken string
	HealthDBPath      string
	HealthMaxSamples  int
	HealthTimeout     time.Duration

	MilestoneMeters []float64
}

// Load reads configuration from STRIDESYNC_* environment variables,
// falling back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRIDESYNC")
	v.AutomaticEnv()

	v.SetDefault("server_url", "https://api.stridesync.app")
	v.SetDefault("db_path", "stridesync.db")
	v.SetDefault("locale", "en-US")
	v.SetDefault("sport", "run")
	v.SetDefault("batch_size", 50)
	v.SetDefault("flush_interval", "15s")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("upload_timeout", "30s")
	v.SetDefault("max_backoff", "5m")
	v.SetDefault("health_provider", "none")
	v.SetDefault("health_bridge_url", "")
	v.SetDefault("health_bridge_token", "")
	v.SetDefault("health_db_path", "")
	v.SetDefault("health_max_samples", 5000)
	v.SetDefault("health_timeout", "10s")
	v.SetDefault("milestones", "1000,5000,10000,21097.5,42195")

	cfg := &Config{
		ServerURL:         strings.TrimRight(v.GetString("server_url"), "/"),
		DatabasePath:      v.GetString("db_path"),
		Locale:            v.GetString("locale"),
		Sport:             v.GetString("sport"),
		BatchSize:         v.GetInt("batch_size"),
		FlushInterval:     v.GetDuration("flush_interval"),
		PollInterval:      v.GetDuration("poll_interval"),
		UploadTimeout:     v.GetDuration("upload_timeout"),
		MaxBackoff:        v.GetDuration("max_backoff"),
		HealthProvider:    v.GetString("health_provider"),
		HealthBridgeURL:   strings.TrimRight(v.GetString("health_bridge_url"), "/"),
		HealthBridgeToken: v.GetString("health_bridge_token"),
		HealthDBPath:      v.GetString("health_db_path"),
		HealthMaxSamples:  v.GetInt("health_max_samples"),
		HealthTimeout:     v.GetDuration("health_timeout"),
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("STRIDESYNC_SERVER_URL must not be empty")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("STRIDESYNC_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}

	milestones, err := ParseMilestones(v.GetString("milestones"))
	if err != nil {
		return nil, fmt.Errorf("invalid STRIDESYNC_MILESTONES: %w", err)
	}
	cfg.MilestoneMeters = milestones

	// Ensure the database directory exists.
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return cfg, nil
}

// ParseMilestones parses a comma-separated list of meter thresholds.
func ParseMilestones(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		m, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad threshold %q: %w", p, err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("threshold %q must be positive", p)
		}
		out = append(out, m)
	}
	return out, nil
}
