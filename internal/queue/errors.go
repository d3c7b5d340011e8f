package queue

import "errors"

// Repository errors.
var (
	ErrItemNotFound = errors.New("queue item not found")
)

// State machine errors.
var (
	// ErrConflict means a concurrent operator won the race for this item.
	// The losing caller should refresh and retry.
	ErrConflict = errors.New("item was modified concurrently")
	// ErrInvalidTransition means the item's current state does not allow
	// the requested action.
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrNotDeletable      = errors.New("item cannot be deleted in current state")
)

// Validation errors.
var (
	ErrNoOptionSelected  = errors.New("exactly one candidate option must be selected")
	ErrAssetIncomplete   = errors.New("manual asset step is not complete")
	ErrCharLimitExceeded = errors.New("content exceeds platform character limit")
	ErrManualPlatform    = errors.New("platform publishes manually, confirm with mark-posted")
	ErrAutoPlatform      = errors.New("platform publishes automatically, use publish")
	ErrInvalidSelection  = errors.New("selected option index out of range")
)

// ErrGatewayFailure wraps errors returned by the publisher gateway. The
// raw gateway message is preserved on the item's last_error.
var ErrGatewayFailure = errors.New("publisher gateway error")
