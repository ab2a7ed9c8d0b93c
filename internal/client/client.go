// Package client talks to a running stalkd API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/stalk-market/internal/api"
	"github.com/talgya/stalk-market/internal/market"
	"github.com/talgya/stalk-market/internal/persistence"
	"github.com/talgya/stalk-market/internal/report"
)

// Client calls the prediction API.
type Client struct {
	BaseURL    string
	AdminKey   string // only needed for Rebuild
	HTTPClient *http.Client
}

// New creates a Client targeting the given API base URL.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RebuildSummary mirrors the response of POST /api/v1/rebuild.
type RebuildSummary struct {
	RunID        string                   `json:"run_id"`
	Lo           int                      `json:"lo"`
	Hi           int                      `json:"hi"`
	Combinations [market.PatternCount]int `json:"combinations"`
	Elapsed      time.Duration            `json:"elapsed"`
}

// Status fetches GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*api.Status, error) {
	var st api.Status
	if err := c.fetchJSON(ctx, "/api/v1/status", &st); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return &st, nil
}

// Patterns fetches the pattern display labels.
func (c *Client) Patterns(ctx context.Context) ([]report.Label, error) {
	var labels []report.Label
	if err := c.fetchJSON(ctx, "/api/v1/patterns", &labels); err != nil {
		return nil, fmt.Errorf("fetch patterns: %w", err)
	}
	return labels, nil
}

// Predict runs a live search on the server and stores it there.
func (c *Client) Predict(ctx context.Context, buy int, observed market.Observed) (*api.PredictResponse, error) {
	req := api.PredictRequest{Buy: buy, Prices: observed[:]}
	var resp api.PredictResponse
	if err := c.send(ctx, http.MethodPost, "/api/v1/predict", req, false, &resp); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return &resp, nil
}

// Table matches observed against the server's stored table for buy.
func (c *Client) Table(ctx context.Context, buy int, observed market.Observed) (*api.PredictResponse, error) {
	path := "/api/v1/table/" + strconv.Itoa(buy)
	if observed.Known() > 0 {
		path += "?prices=" + url.QueryEscape(observed.String())
	}
	var resp api.PredictResponse
	if err := c.fetchJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch table: %w", err)
	}
	return &resp, nil
}

// Predictions fetches the most recent stored predictions.
func (c *Client) Predictions(ctx context.Context, limit int) ([]persistence.PredictionRecord, error) {
	var records []persistence.PredictionRecord
	if err := c.fetchJSON(ctx, "/api/v1/predictions?limit="+strconv.Itoa(limit), &records); err != nil {
		return nil, fmt.Errorf("fetch predictions: %w", err)
	}
	return records, nil
}

// Rebuild asks the server to rebuild every lookup table.
func (c *Client) Rebuild(ctx context.Context) (*RebuildSummary, error) {
	var sum RebuildSummary
	if err := c.send(ctx, http.MethodPost, "/api/v1/rebuild", nil, true, &sum); err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	return &sum, nil
}

// WaitReady polls the status endpoint with exponential backoff until the
// server answers or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		if _, err := c.Status(ctx); err == nil {
			slog.Debug("API is ready", "url", c.BaseURL)
			return nil
		}
		slog.Info("API not ready, retrying...", "url", c.BaseURL, "backoff", backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", c.BaseURL, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	return c.send(ctx, http.MethodGet, path, nil, false, target)
}

func (c *Client) send(ctx context.Context, method, path string, body any, admin bool, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}
