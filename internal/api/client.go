package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

const defaultUploadTimeout = 30 * time.Second

// TokenSource resolves the auth token from durable storage. An empty
// token with a nil error means no token is stored.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the activity backend. It performs exactly one HTTP
// attempt per call; retry policy belongs to the scheduler. It holds no
// UI or session state, so it is usable from background execution
// contexts: the token source and locale are resolved on every call.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	locale  func() string
	logger  *slog.Logger
	timeout time.Duration
}

// NewClient creates a sync client for the given backend base URL.
func NewClient(baseURL string, tokens TokenSource, locale func() string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}
	if locale == nil {
		locale = func() string { return "en-US" }
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		tokens:  tokens,
		locale:  locale,
		logger:  logger,
		timeout: timeout,
	}
}

// pointPayload is the wire form of a location sample.
type pointPayload struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Ele   float64 `json:"ele"`
	Time  string  `json:"time"`
	Speed float64 `json:"speed"`
}

type syncPointsRequest struct {
	Points []pointPayload `json:"points"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// SyncPoints uploads one batch of points to the server and returns the
// updated activity aggregates. The batch ID is sent as an idempotency
// key so the server can drop a replay it has already processed.
func (c *Client) SyncPoints(ctx context.Context, activityID string, batch model.Batch) (*model.Activity, error) {
	points := make([]pointPayload, len(batch.Samples))
	for i, s := range batch.Samples {
		points[i] = pointPayload{
			Lat:   s.Lat,
			Lng:   s.Lng,
			Ele:   s.Elevation,
			Time:  s.Time.UTC().Format(time.RFC3339),
			Speed: s.Speed,
		}
	}

	c.logger.Debug("uploading points", "activity", activityID, "batch", batch.ID, "count", len(points))

	var activity model.Activity
	err := c.post(ctx, fmt.Sprintf("/activities/%s/points", activityID), batch.ID, syncPointsRequest{Points: points}, &activity)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

type createActivityRequest struct {
	Sport     string `json:"sport"`
	StartedAt string `json:"startedAt"`
}

// CreateActivity opens a new server-side activity record.
func (c *Client) CreateActivity(ctx context.Context, sport string, startedAt time.Time) (*model.Activity, error) {
	var activity model.Activity
	req := createActivityRequest{Sport: sport, StartedAt: startedAt.UTC().Format(time.RFC3339)}
	if err := c.post(ctx, "/activities", "", req, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

type finishActivityRequest struct {
	HeartRateSamples []model.HeartRateSample `json:"heartRateSamples,omitempty"`
}

// FinishActivity transitions the activity to completed, attaching the
// (already downsampled) heart-rate series for server-side statistics.
func (c *Client) FinishActivity(ctx context.Context, activityID string, heartRate []model.HeartRateSample) (*model.Activity, error) {
	var activity model.Activity
	req := finishActivityRequest{HeartRateSamples: heartRate}
	if err := c.post(ctx, fmt.Sprintf("/activities/%s/finish", activityID), "", req, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// post issues one authenticated POST and decodes a 2xx response into
// out. Failures are classified per the error taxonomy.
func (c *Client) post(ctx context.Context, path, batchID string, body, out interface{}) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve auth token: %w", err)
	}
	if token == "" {
		return ErrNoAuthToken
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", c.locale())
	req.Header.Set("Authorization", "Bearer "+token)
	if batchID != "" {
		req.Header.Set("X-Batch-ID", batchID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() == context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("network failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		if data, readErr := io.ReadAll(resp.Body); readErr == nil {
			_ = json.Unmarshal(data, &errResp)
		}
		return &HTTPError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
