package queue

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
)

// ItemFilters holds filter options for listing queue items.
type ItemFilters struct {
	Platform *domain.Platform
	State    *domain.ItemState
	Kind     *domain.ItemKind
	TrialID  *string
	Limit    int
	Offset   int
}

// Repository defines the interface for queue item storage.
type Repository interface {
	CreateItem(ctx context.Context, item *domain.QueueItem) error
	GetItem(ctx context.Context, id string) (*domain.QueueItem, error)
	ListItems(ctx context.Context, filters ItemFilters) ([]*domain.QueueItem, error)
	// UpdateItem persists payload edits, option selection and the asset
	// flag, guarded by the allowed source states. Zero rows means a
	// concurrent transition happened.
	UpdateItem(ctx context.Context, item *domain.QueueItem, fromStates []domain.ItemState) error
	// DeleteItemInState removes the item if it is in one of the given
	// states. Distinguishes missing items from state conflicts.
	DeleteItemInState(ctx context.Context, id string, states []domain.ItemState) error
	// DeleteItemTx removes the item within an existing transaction,
	// guarded by the allowed source states.
	DeleteItemTx(ctx context.Context, tx pgx.Tx, id string, states []domain.ItemState) error

	// SetState transitions the item conditionally on its current state.
	SetState(ctx context.Context, id string, from []domain.ItemState, to domain.ItemState) error
	// SetStateTx is SetState inside an existing transaction, used when a
	// review decision must land atomically with its rating and stats.
	SetStateTx(ctx context.Context, tx pgx.Tx, id string, from []domain.ItemState, to domain.ItemState) error
	// MarkFailed moves the item to failed and replaces last_error.
	MarkFailed(ctx context.Context, id string, errMsg string) error
	// MarkPostedTx stamps posted state, canonical URL and posted_at
	// within a transaction so the quota commit rides along atomically.
	MarkPostedTx(ctx context.Context, tx pgx.Tx, id string, postURL string, from []domain.ItemState) error

	// MostRecentPosted returns the latest posted item per (platform, kind).
	MostRecentPosted(ctx context.Context, platform domain.Platform, kind domain.ItemKind) (*domain.QueueItem, error)
	// CountByState returns item counts per lifecycle state.
	CountByState(ctx context.Context) (map[domain.ItemState]int, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}
