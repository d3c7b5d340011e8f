package quota

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Repository defines the interface for quota record storage.
type Repository interface {
	// GetCount returns the confirmed publish count for a platform and day.
	GetCount(ctx context.Context, platform domain.Platform, day domain.QuotaDay) (int, error)
	// Counts returns confirmed publish counts for all platforms on a day.
	Counts(ctx context.Context, day domain.QuotaDay) (map[domain.Platform]int, error)
	// IncrementTx increments the counter within a transaction, guarded by
	// limit in SQL. Returns ErrQuotaExceeded when the guard rejects the
	// increment, and the new count otherwise.
	IncrementTx(ctx context.Context, tx pgx.Tx, platform domain.Platform, day domain.QuotaDay, limit int) (int, error)
}
