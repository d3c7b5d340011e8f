// Package generator defines the external content generator collaborator.
package generator

import (
	"context"
	"errors"

	"github.com/inkwheel/pressroom/internal/domain"
)

// ErrDisabled is returned when no generator is configured.
var ErrDisabled = errors.New("content generator disabled")

// Input describes one generation request.
type Input struct {
	Kind           domain.ItemKind `json:"kind"`
	Platform       domain.Platform `json:"platform"`
	Format         string          `json:"format,omitempty"`
	SourceMaterial string          `json:"source_material,omitempty"`
}

// Generator produces draft payloads. It may return multiple candidate
// options for one request; options are normalized to CandidateOption at
// this boundary so the core never branches on raw shapes.
type Generator interface {
	Generate(ctx context.Context, input Input) (*domain.Payload, error)
}
