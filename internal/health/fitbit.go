package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

// fitbitService reads intraday heart-rate data from a Fitbit-style
// bridge API.
type fitbitService struct {
	bridgeURL string
	token     string
	http      *http.Client
	timeout   time.Duration
	logger    *slog.Logger
}

func newFitbitService(bridgeURL, token string, timeout time.Duration, logger *slog.Logger) *fitbitService {
	return &fitbitService{
		bridgeURL: bridgeURL,
		token:     token,
		http:      &http.Client{},
		timeout:   timeout,
		logger:    logger,
	}
}

func (f *fitbitService) Name() string { return "fitbit" }

func (f *fitbitService) Available() bool {
	return f.bridgeURL != "" && f.token != ""
}

// RequestPermission verifies the token against the profile endpoint.
func (f *fitbitService) RequestPermission(ctx context.Context) (bool, error) {
	if !f.Available() {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.bridgeURL+"/1/user/-/profile.json", nil)
	if err != nil {
		return false, fmt.Errorf("build permission request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// Intraday heart-rate payload shape of the Fitbit API.
type intradayResponse struct {
	Intraday struct {
		Dataset []struct {
			Time  string `json:"time"`
			Value int    `json:"value"`
		} `json:"dataset"`
	} `json:"activities-heart-intraday"`
}

func (f *fitbitService) HeartRateSamples(ctx context.Context, start, end time.Time) []model.HeartRateSample {
	samples, err := f.fetch(ctx, start, end)
	if err != nil {
		f.logger.Error("heart rate query failed", "provider", f.Name(), "error", err)
		return nil
	}
	sortSamples(samples)
	return samples
}

func (f *fitbitService) fetch(ctx context.Context, start, end time.Time) ([]model.HeartRateSample, error) {
	if !f.Available() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// The intraday endpoint is scoped to one day; windows spanning
	// midnight are queried per day.
	var out []model.HeartRateSample
	for day := start; !day.After(end); day = day.Truncate(24 * time.Hour).Add(24 * time.Hour) {
		from, to := day, end
		if dayEnd := day.Truncate(24 * time.Hour).Add(24*time.Hour - time.Second); to.After(dayEnd) {
			to = dayEnd
		}

		url := fmt.Sprintf("%s/1/user/-/activities/heart/date/%s/1d/1sec/time/%s/%s.json",
			f.bridgeURL,
			day.Format("2006-01-02"),
			from.Format("15:04:05"),
			to.Format("15:04:05"),
		)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build heart rate request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+f.token)

		resp, err := f.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("heart rate request: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, fmt.Errorf("heart rate request: HTTP %d", resp.StatusCode)
		}

		var payload intradayResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode heart rate response: %w", err)
		}

		for _, entry := range payload.Intraday.Dataset {
			clock, err := time.Parse("15:04:05", entry.Time)
			if err != nil {
				continue
			}
			ts := time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
			if ts.Before(start) || ts.After(end) {
				continue
			}
			out = append(out, model.HeartRateSample{Time: ts, BPM: entry.Value})
		}
	}

	return out, nil
}
