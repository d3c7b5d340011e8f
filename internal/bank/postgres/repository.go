// Package postgres provides PostgreSQL implementation of the content bank repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwheel/pressroom/internal/bank"
	"github.com/inkwheel/pressroom/internal/domain"
)

// Repository implements bank.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const entryColumns = `
	id, origin_item_id, topic, kind, format, payload, decision, reason,
	usable_parts, marked_for_reuse, created_by, created_at
`

func scanEntry(row pgx.Row) (*domain.ContentBankEntry, error) {
	var entry domain.ContentBankEntry
	err := row.Scan(
		&entry.ID,
		&entry.OriginItemID,
		&entry.Topic,
		&entry.Kind,
		&entry.Format,
		&entry.Payload,
		&entry.Decision,
		&entry.Reason,
		&entry.UsableParts,
		&entry.MarkedForReuse,
		&entry.CreatedBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateEntryTx archives an entry within the caller's transaction.
func (r *Repository) CreateEntryTx(ctx context.Context, tx pgx.Tx, entry *domain.ContentBankEntry) error {
	query := `
		INSERT INTO content_bank (origin_item_id, topic, kind, format, payload, decision, reason, usable_parts, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		entry.OriginItemID,
		entry.Topic,
		entry.Kind,
		entry.Format,
		entry.Payload,
		entry.Decision,
		entry.Reason,
		entry.UsableParts,
		entry.CreatedBy,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("create bank entry: %w", err)
	}
	return nil
}

// GetEntry retrieves an entry by ID. Malformed IDs read as not found.
func (r *Repository) GetEntry(ctx context.Context, id string) (*domain.ContentBankEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, bank.ErrEntryNotFound
	}

	query := `SELECT ` + entryColumns + ` FROM content_bank WHERE id = $1`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bank.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get bank entry: %w", err)
	}
	return entry, nil
}

// ListEntries retrieves entries matching the filters, newest first.
func (r *Repository) ListEntries(ctx context.Context, filters bank.EntryFilters) ([]*domain.ContentBankEntry, error) {
	var conditions []string
	var args []any
	argPos := 1

	addCondition := func(column string, value any) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if filters.Decision != nil {
		addCondition("decision", *filters.Decision)
	}
	if filters.MarkedForReuse != nil {
		addCondition("marked_for_reuse", *filters.MarkedForReuse)
	}
	if filters.Kind != nil {
		addCondition("kind", *filters.Kind)
	}

	query := `SELECT ` + entryColumns + ` FROM content_bank`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
		argPos++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bank entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.ContentBankEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bank entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ToggleReuse flips marked_for_reuse and returns the new value.
func (r *Repository) ToggleReuse(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, bank.ErrEntryNotFound
	}

	query := `
		UPDATE content_bank
		SET marked_for_reuse = NOT marked_for_reuse
		WHERE id = $1
		RETURNING marked_for_reuse
	`
	var marked bool
	err := r.db.QueryRow(ctx, query, id).Scan(&marked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, bank.ErrEntryNotFound
		}
		return false, fmt.Errorf("toggle bank entry reuse: %w", err)
	}
	return marked, nil
}

// KilledTopics returns the raw topics of killed entries.
func (r *Repository) KilledTopics(ctx context.Context) ([]string, error) {
	query := `SELECT topic FROM content_bank WHERE decision = $1 AND topic <> ''`

	rows, err := r.db.Query(ctx, query, domain.BankDecisionKilled)
	if err != nil {
		return nil, fmt.Errorf("list killed topics: %w", err)
	}
	defer rows.Close()

	topics := make([]string, 0)
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scan killed topic: %w", err)
		}
		topics = append(topics, topic)
	}

	return topics, rows.Err()
}
