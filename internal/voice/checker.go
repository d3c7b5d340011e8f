// Package voice defines the advisory voice/quality checker collaborator.
package voice

import (
	"context"
	"errors"

	"github.com/inkwheel/pressroom/internal/domain"
)

// ErrDisabled is returned when no checker is configured.
var ErrDisabled = errors.New("voice checker disabled")

// Input describes one check request.
type Input struct {
	Content      string          `json:"content"`
	VoiceProfile string          `json:"voice_profile,omitempty"`
	Platform     domain.Platform `json:"platform"`
}

// Report is the checker's advisory verdict. It never blocks a publish.
type Report struct {
	Score       float64  `json:"score"`
	Verdict     string   `json:"verdict"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Checker scores content against a voice profile.
type Checker interface {
	Check(ctx context.Context, input Input) (*Report, error)
}
