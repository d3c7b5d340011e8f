package bank

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
)

// EntryFilters holds filter options for listing bank entries.
type EntryFilters struct {
	Decision       *domain.BankDecision
	MarkedForReuse *bool
	Kind           *domain.ItemKind
	Limit          int
	Offset         int
}

// Repository defines the interface for content bank storage.
type Repository interface {
	// CreateEntryTx archives an entry within the caller's transaction so
	// the review decision and the archive land together.
	CreateEntryTx(ctx context.Context, tx pgx.Tx, entry *domain.ContentBankEntry) error
	GetEntry(ctx context.Context, id string) (*domain.ContentBankEntry, error)
	ListEntries(ctx context.Context, filters EntryFilters) ([]*domain.ContentBankEntry, error)
	// ToggleReuse flips marked_for_reuse and returns the new value.
	ToggleReuse(ctx context.Context, id string) (bool, error)
	// KilledTopics returns the raw topics of killed entries.
	KilledTopics(ctx context.Context) ([]string, error)
}
