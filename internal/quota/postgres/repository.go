// Package postgres provides PostgreSQL implementation of the quota repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/quota"
)

// Repository implements quota.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCount returns the confirmed publish count for a platform and day.
func (r *Repository) GetCount(ctx context.Context, platform domain.Platform, day domain.QuotaDay) (int, error) {
	query := `SELECT count FROM quota_records WHERE platform = $1 AND day = $2`

	var count int
	err := r.db.QueryRow(ctx, query, platform, string(day)).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get quota count: %w", err)
	}
	return count, nil
}

// Counts returns confirmed publish counts for all platforms on a day.
func (r *Repository) Counts(ctx context.Context, day domain.QuotaDay) (map[domain.Platform]int, error) {
	query := `SELECT platform, count FROM quota_records WHERE day = $1`

	rows, err := r.db.Query(ctx, query, string(day))
	if err != nil {
		return nil, fmt.Errorf("get quota counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Platform]int)
	for rows.Next() {
		var platform domain.Platform
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, fmt.Errorf("scan quota record: %w", err)
		}
		counts[platform] = count
	}

	return counts, rows.Err()
}

// IncrementTx increments the counter within a transaction. The WHERE
// guard on the upsert enforces count < limit in storage; a rejected
// increment surfaces as ErrQuotaExceeded.
func (r *Repository) IncrementTx(ctx context.Context, tx pgx.Tx, platform domain.Platform, day domain.QuotaDay, limit int) (int, error) {
	if limit <= 0 {
		return 0, quota.ErrQuotaExceeded
	}

	query := `
		INSERT INTO quota_records (platform, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (platform, day)
		DO UPDATE SET count = quota_records.count + 1, updated_at = NOW()
		WHERE quota_records.count < $3
		RETURNING count
	`
	var count int
	err := tx.QueryRow(ctx, query, platform, string(day), limit).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, quota.ErrQuotaExceeded
		}
		return 0, fmt.Errorf("increment quota: %w", err)
	}
	return count, nil
}
