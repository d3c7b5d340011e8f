// Package postgres provides PostgreSQL implementation of the trial repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/trial"
)

// Repository implements trial.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateTrial inserts a new trial.
func (r *Repository) CreateTrial(ctx context.Context, t *domain.Trial) error {
	query := `
		INSERT INTO trials (name, kind, schedule, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, current_step, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		t.Name,
		t.Kind,
		t.Schedule,
		t.CreatedBy,
	).Scan(&t.ID, &t.CurrentStep, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create trial: %w", err)
	}
	return nil
}

// GetTrial retrieves a trial by ID. Malformed IDs read as not found.
func (r *Repository) GetTrial(ctx context.Context, id string) (*domain.Trial, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, trial.ErrTrialNotFound
	}

	query := `
		SELECT id, name, kind, schedule, current_step, standard_format, created_by, created_at, updated_at
		FROM trials
		WHERE id = $1
	`
	var t domain.Trial
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Kind,
		&t.Schedule,
		&t.CurrentStep,
		&t.StandardFormat,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trial.ErrTrialNotFound
		}
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return &t, nil
}

// ListTrials retrieves all trials, newest first.
func (r *Repository) ListTrials(ctx context.Context) ([]*domain.Trial, error) {
	query := `
		SELECT id, name, kind, schedule, current_step, standard_format, created_by, created_at, updated_at
		FROM trials
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	trials := make([]*domain.Trial, 0)
	for rows.Next() {
		var t domain.Trial
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Kind,
			&t.Schedule,
			&t.CurrentStep,
			&t.StandardFormat,
			&t.CreatedBy,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		trials = append(trials, &t)
	}

	return trials, rows.Err()
}

// StandardFormat returns the most recently locked format for a kind, if
// any trial of that kind has standardized.
func (r *Repository) StandardFormat(ctx context.Context, kind domain.ItemKind) (string, bool, error) {
	query := `
		SELECT standard_format
		FROM trials
		WHERE kind = $1 AND standard_format IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var format string
	err := r.db.QueryRow(ctx, query, kind).Scan(&format)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get standard format: %w", err)
	}
	return format, true, nil
}

// AdvanceStepTx moves current_step forward, guarded by the observed step.
func (r *Repository) AdvanceStepTx(ctx context.Context, tx pgx.Tx, trialID string, fromStep int) error {
	query := `
		UPDATE trials
		SET current_step = current_step + 1, updated_at = NOW()
		WHERE id = $1 AND current_step = $2
	`
	tag, err := tx.Exec(ctx, query, trialID, fromStep)
	if err != nil {
		return fmt.Errorf("advance trial step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return trial.ErrTrialNotFound
	}
	return nil
}

// Standardize assigns the standard format exactly once.
func (r *Repository) Standardize(ctx context.Context, trialID, format string) error {
	query := `
		UPDATE trials
		SET standard_format = $2, updated_at = NOW()
		WHERE id = $1 AND standard_format IS NULL
	`
	tag, err := r.db.Exec(ctx, query, trialID, format)
	if err != nil {
		return fmt.Errorf("standardize trial: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM trials WHERE id = $1)`, trialID).Scan(&exists); err != nil {
			return fmt.Errorf("check trial exists: %w", err)
		}
		if !exists {
			return trial.ErrTrialNotFound
		}
		return trial.ErrAlreadyStandardized
	}
	return nil
}

// GetFormatStatsTx loads the aggregate row for update. A missing row is
// a zero-valued aggregate, not an error.
func (r *Repository) GetFormatStatsTx(ctx context.Context, tx pgx.Tx, trialID, format string) (*domain.FormatStats, error) {
	query := `
		SELECT trial_id, format, rating_count, share_count, dimension_means, dimension_counts, updated_at
		FROM trial_format_stats
		WHERE trial_id = $1 AND format = $2
		FOR UPDATE
	`
	var stats domain.FormatStats
	err := tx.QueryRow(ctx, query, trialID, format).Scan(
		&stats.TrialID,
		&stats.Format,
		&stats.Count,
		&stats.ShareCount,
		&stats.DimensionMeans,
		&stats.DimensionCounts,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.FormatStats{TrialID: trialID, Format: format}, nil
		}
		return nil, fmt.Errorf("get format stats: %w", err)
	}
	return &stats, nil
}

// UpsertFormatStatsTx writes the folded aggregates back.
func (r *Repository) UpsertFormatStatsTx(ctx context.Context, tx pgx.Tx, stats *domain.FormatStats) error {
	query := `
		INSERT INTO trial_format_stats (trial_id, format, rating_count, share_count, dimension_means, dimension_counts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trial_id, format)
		DO UPDATE SET
			rating_count = EXCLUDED.rating_count,
			share_count = EXCLUDED.share_count,
			dimension_means = EXCLUDED.dimension_means,
			dimension_counts = EXCLUDED.dimension_counts,
			updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query,
		stats.TrialID,
		stats.Format,
		stats.Count,
		stats.ShareCount,
		stats.DimensionMeans,
		stats.DimensionCounts,
	)
	if err != nil {
		return fmt.Errorf("upsert format stats: %w", err)
	}
	return nil
}

// ListFormatStats retrieves all aggregate rows for a trial.
func (r *Repository) ListFormatStats(ctx context.Context, trialID string) ([]*domain.FormatStats, error) {
	query := `
		SELECT trial_id, format, rating_count, share_count, dimension_means, dimension_counts, updated_at
		FROM trial_format_stats
		WHERE trial_id = $1
		ORDER BY format ASC
	`
	rows, err := r.db.Query(ctx, query, trialID)
	if err != nil {
		return nil, fmt.Errorf("list format stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*domain.FormatStats, 0)
	for rows.Next() {
		var entry domain.FormatStats
		if err := rows.Scan(
			&entry.TrialID,
			&entry.Format,
			&entry.Count,
			&entry.ShareCount,
			&entry.DimensionMeans,
			&entry.DimensionCounts,
			&entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan format stats: %w", err)
		}
		stats = append(stats, &entry)
	}

	return stats, rows.Err()
}

// InsertRatingTx inserts one rating row within a transaction.
func (r *Repository) InsertRatingTx(ctx context.Context, tx pgx.Tx, rating *domain.Rating) error {
	query := `
		INSERT INTO trial_ratings (item_id, trial_id, format, scores, would_share, what_worked, what_didnt, notes, decision, decision_reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		rating.ItemID,
		rating.TrialID,
		rating.Format,
		rating.Scores,
		rating.WouldShare,
		rating.WhatWorked,
		rating.WhatDidnt,
		rating.Notes,
		rating.Decision,
		rating.DecisionReason,
		rating.CreatedBy,
	).Scan(&rating.ID, &rating.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

// ListRatings retrieves all ratings for a trial, oldest first.
func (r *Repository) ListRatings(ctx context.Context, trialID string) ([]*domain.Rating, error) {
	query := `
		SELECT id, item_id, trial_id, format, scores, would_share, what_worked, what_didnt, notes, decision, decision_reason, created_by, created_at
		FROM trial_ratings
		WHERE trial_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, trialID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]*domain.Rating, 0)
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.ItemID,
			&rating.TrialID,
			&rating.Format,
			&rating.Scores,
			&rating.WouldShare,
			&rating.WhatWorked,
			&rating.WhatDidnt,
			&rating.Notes,
			&rating.Decision,
			&rating.DecisionReason,
			&rating.CreatedBy,
			&rating.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, &rating)
	}

	return ratings, rows.Err()
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}
