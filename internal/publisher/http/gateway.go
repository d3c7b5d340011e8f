// Package http provides an HTTP adapter for the publisher gateway.
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

	"golang.org/x/time/rate"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/publisher"
)

// Config holds gateway configuration.
type Config struct {
	Enabled bool
	// Endpoints maps platform names to their publish endpoint URLs.
	Endpoints map[string]string
	// RateLimit is requests per second per platform.
	RateLimit float64
	Timeout   time.Duration
}

// Gateway implements publisher.Gateway over per-platform HTTP endpoints.
type Gateway struct {
	config   Config
	client   *http.Client
	limiters map[domain.Platform]*rate.Limiter
}

// NewGateway creates a new HTTP publisher gateway.
// Returns error if enabled but no endpoints are configured.
func NewGateway(config Config) (*Gateway, error) {
	if config.Enabled && len(config.Endpoints) == 0 {
		return nil, errors.New("publisher gateway: endpoints are required when enabled")
	}

	rps := config.RateLimit
	if rps <= 0 {
		rps = 1
	}

	limiters := make(map[domain.Platform]*rate.Limiter, len(config.Endpoints))
	for name := range config.Endpoints {
		limiters[domain.Platform(name)] = rate.NewLimiter(rate.Limit(rps), 1)
	}

	slog.Info("publisher gateway configured",
		"enabled", config.Enabled,
		"platforms", len(config.Endpoints),
		"rate_limit", rps,
	)

	return &Gateway{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiters: limiters,
	}, nil
}

type publishResponse struct {
	PostURL string `json:"post_url"`
	Error   string `json:"error"`
}

// Publish posts the request to the platform's endpoint and returns the
// canonical post URL.
func (g *Gateway) Publish(ctx context.Context, platform domain.Platform, req publisher.Request) (string, error) {
	if !g.config.Enabled {
		return "", fmt.Errorf("publisher gateway disabled for %s", platform)
	}

	endpoint, ok := g.config.Endpoints[string(platform)]
	if !ok {
		return "", fmt.Errorf("no publish endpoint configured for %s", platform)
	}

	if limiter, ok := g.limiters[platform]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal publish request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", platform, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read publish response: %w", err)
	}

	var parsed publishResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("publish to %s: status %d: %s", platform, resp.StatusCode, string(raw))
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		msg := parsed.Error
		if msg == "" {
			msg = string(raw)
		}
		return "", fmt.Errorf("publish to %s: status %d: %s", platform, resp.StatusCode, msg)
	}

	if parsed.PostURL == "" {
		return "", fmt.Errorf("publish to %s: missing post_url in response", platform)
	}

	return parsed.PostURL, nil
}
