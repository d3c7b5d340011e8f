// Package bank archives salvaged and killed trial outputs outside the
// active queue and feeds the generator blacklist from killed topics.
package bank

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/cases"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Service manages content bank entries.
type Service struct {
	repo   Repository
	folder cases.Caser
}

// NewService creates a new content bank service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		folder: cases.Fold(),
	}
}

// ArchiveTx writes an entry inside the caller's transaction. Called by
// the trial engine when a review decision is salvage or kill.
func (s *Service) ArchiveTx(ctx context.Context, tx pgx.Tx, entry *domain.ContentBankEntry) error {
	if !entry.Decision.IsValid() {
		return fmt.Errorf("invalid bank decision: %s", entry.Decision)
	}
	return s.repo.CreateEntryTx(ctx, tx, entry)
}

// Get retrieves an entry by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.ContentBankEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// List retrieves entries with optional filters.
func (s *Service) List(ctx context.Context, filters EntryFilters) ([]*domain.ContentBankEntry, error) {
	return s.repo.ListEntries(ctx, filters)
}

// ToggleReuse flips the reuse flag and returns the new value.
func (s *Service) ToggleReuse(ctx context.Context, id string) (bool, error) {
	return s.repo.ToggleReuse(ctx, id)
}

// Blacklist returns the casefolded topics of killed entries. Topics are
// folded rather than lowercased so matching survives non-ASCII input.
func (s *Service) Blacklist(ctx context.Context) ([]string, error) {
	topics, err := s.repo.KilledTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list killed topics: %w", err)
	}

	seen := make(map[string]struct{}, len(topics))
	folded := make([]string, 0, len(topics))
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		f := s.folder.String(topic)
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		folded = append(folded, f)
	}
	return folded, nil
}
