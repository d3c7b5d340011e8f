package trial

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Repository defines the interface for trial storage.
type Repository interface {
	CreateTrial(ctx context.Context, trial *domain.Trial) error
	GetTrial(ctx context.Context, id string) (*domain.Trial, error)
	ListTrials(ctx context.Context) ([]*domain.Trial, error)

	// AdvanceStepTx moves current_step forward, guarded by the step the
	// caller observed. Zero rows means a concurrent decision advanced it.
	AdvanceStepTx(ctx context.Context, tx pgx.Tx, trialID string, fromStep int) error
	// Standardize assigns the standard format once. Zero rows on an
	// existing trial means the assignment already happened.
	Standardize(ctx context.Context, trialID, format string) error

	// GetFormatStatsTx loads the aggregate row for update, returning a
	// zero-valued stats struct when no rating has arrived yet.
	GetFormatStatsTx(ctx context.Context, tx pgx.Tx, trialID, format string) (*domain.FormatStats, error)
	UpsertFormatStatsTx(ctx context.Context, tx pgx.Tx, stats *domain.FormatStats) error
	ListFormatStats(ctx context.Context, trialID string) ([]*domain.FormatStats, error)

	InsertRatingTx(ctx context.Context, tx pgx.Tx, rating *domain.Rating) error
	ListRatings(ctx context.Context, trialID string) ([]*domain.Rating, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}
