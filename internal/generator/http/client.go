// Package http provides an HTTP client for the content generator.
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

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/generator"
)

// Config holds generator client configuration.
type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Client implements generator.Generator over HTTP.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a new generator client.
// Returns error if enabled but base URL is missing.
func NewClient(config Config) (*Client, error) {
	if config.Enabled && config.BaseURL == "" {
		return nil, errors.New("generator client: base url is required when enabled")
	}

	slog.Info("generator client configured", "enabled", config.Enabled)

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// rawOption accepts both the bare-string and tagged-object shapes the
// generator emits and folds them into a single variant.
type rawOption struct {
	Text     string
	VoiceTag string
}

func (o *rawOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Text = s
		return nil
	}

	var tagged struct {
		Text        string `json:"text"`
		VoiceTag    string `json:"voice_tag"`
		Philosopher string `json:"philosopher"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("option is neither string nor object: %w", err)
	}

	o.Text = tagged.Text
	o.VoiceTag = tagged.VoiceTag
	if o.VoiceTag == "" {
		o.VoiceTag = tagged.Philosopher
	}
	return nil
}

type generateResponse struct {
	Text     string            `json:"text"`
	Title    string            `json:"title"`
	Caption  string            `json:"caption"`
	Script   string            `json:"script"`
	Options  []rawOption       `json:"options"`
	Metadata map[string]string `json:"metadata"`
	Error    string            `json:"error"`
}

// Generate requests a draft payload from the generator service.
func (c *Client) Generate(ctx context.Context, input generator.Input) (*domain.Payload, error) {
	if !c.config.Enabled {
		return nil, generator.ErrDisabled
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read generator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("generator: %s", parsed.Error)
	}

	options := make([]domain.CandidateOption, 0, len(parsed.Options))
	for _, o := range parsed.Options {
		options = append(options, domain.CandidateOption{Text: o.Text, VoiceTag: o.VoiceTag})
	}

	payload := &domain.Payload{
		Text:           parsed.Text,
		Title:          parsed.Title,
		Caption:        parsed.Caption,
		Script:         parsed.Script,
		SourceMaterial: input.SourceMaterial,
		Metadata:       parsed.Metadata,
	}
	if len(options) > 0 {
		payload.Options = options
	}
	return payload, nil
}
