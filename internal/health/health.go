// Package health reads supplementary heart-rate data from whatever
// health store the device exposes. Health data enriches activities and
// is never allowed to block or fail a recording: provider failures are
// logged and yield empty results.
package health

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/stridesync/stridesync/internal/config"
	"github.com/stridesync/stridesync/internal/model"
)

// Default hard timeout for a provider query. On firing, the in-flight
// call is abandoned and treated as an empty result.
const defaultQueryTimeout = 10 * time.Second

// Service is the capability interface over platform health stores.
// Callers never branch on the concrete provider.
type Service interface {
	// Name identifies the provider for logging.
	Name() string
	// Available reports whether a health store is reachable at all.
	Available() bool
	// RequestPermission verifies (or obtains) read access before any
	// sample query.
	RequestPermission(ctx context.Context) (bool, error)
	// HeartRateSamples returns samples in [start, end], sorted by
	// timestamp ascending. Failures and timeouts are logged by the
	// provider and produce an empty slice.
	HeartRateSamples(ctx context.Context, start, end time.Time) []model.HeartRateSample
}

// NewService selects the provider once at startup from configuration.
// Unknown or unset providers resolve to the null provider.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	switch cfg.HealthProvider {
	case "fitbit":
		return newFitbitService(cfg.HealthBridgeURL, cfg.HealthBridgeToken, timeout, logger)
	case "watchdb":
		return newWatchDBService(cfg.HealthDBPath, timeout, logger)
	default:
		return noopService{}
	}
}

// noopService is the fallback when no health store exists on the
// platform.
type noopService struct{}

func (noopService) Name() string    { return "none" }
func (noopService) Available() bool { return false }

func (noopService) RequestPermission(context.Context) (bool, error) {
	return false, nil
}

func (noopService) HeartRateSamples(context.Context, time.Time, time.Time) []model.HeartRateSample {
	return nil
}

// sortSamples orders samples by timestamp ascending, as the Service
// contract requires.
func sortSamples(samples []model.HeartRateSample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
}
