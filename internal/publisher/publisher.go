// Package publisher abstracts platform-specific publish calls.
package publisher

import (
	"context"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Request carries the resolved content for one publish call.
type Request struct {
	Kind     domain.ItemKind   `json:"kind"`
	Text     string            `json:"text"`
	Title    string            `json:"title,omitempty"`
	Caption  string            `json:"caption,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Gateway publishes content to a platform and returns the canonical post
// URL. Errors are returned verbatim for operator diagnosis; a dispatched
// call cannot be cancelled, only awaited.
type Gateway interface {
	Publish(ctx context.Context, platform domain.Platform, req Request) (string, error)
}
