// Package http provides an HTTP client for the voice checker.
package http

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

	"github.com/inkwheel/pressroom/internal/voice"
)

// Config holds voice checker client configuration.
type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Client implements voice.Checker over HTTP.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a new voice checker client.
// Returns error if enabled but base URL is missing.
func NewClient(config Config) (*Client, error) {
	if config.Enabled && config.BaseURL == "" {
		return nil, errors.New("voice checker client: base url is required when enabled")
	}

	slog.Info("voice checker client configured", "enabled", config.Enabled)

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Check requests an advisory report from the checker service.
func (c *Client) Check(ctx context.Context, input voice.Input) (*voice.Report, error) {
	if !c.config.Enabled {
		return nil, voice.ErrDisabled
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call voice checker: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read voice checker response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice checker: status %d: %s", resp.StatusCode, string(raw))
	}

	var report voice.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode voice checker response: %w", err)
	}

	slog.Debug("voice check completed", "score", report.Score, "verdict", report.Verdict)
	return &report, nil
}
