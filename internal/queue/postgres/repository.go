// Package postgres provides PostgreSQL implementation of the queue repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/queue"
)

// Repository implements queue.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const itemColumns = `
	id, platform, kind, payload, state, selected_option, asset_complete,
	format, trial_id, post_url, last_error, created_by,
	created_at, updated_at, posted_at
`

func scanItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	err := row.Scan(
		&item.ID,
		&item.Platform,
		&item.Kind,
		&item.Payload,
		&item.State,
		&item.SelectedOption,
		&item.AssetComplete,
		&item.Format,
		&item.TrialID,
		&item.PostURL,
		&item.LastError,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.PostedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new queue item.
func (r *Repository) CreateItem(ctx context.Context, item *domain.QueueItem) error {
	query := `
		INSERT INTO queue_items (platform, kind, payload, state, selected_option, asset_complete, format, trial_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.Platform,
		item.Kind,
		item.Payload,
		item.State,
		item.SelectedOption,
		item.AssetComplete,
		item.Format,
		item.TrialID,
		item.CreatedBy,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create queue item: %w", err)
	}
	return nil
}

// GetItem retrieves a queue item by ID. Malformed IDs read as not found
// rather than surfacing a cast error.
func (r *Repository) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, queue.ErrItemNotFound
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// ListItems retrieves queue items matching the filters, newest first.
func (r *Repository) ListItems(ctx context.Context, filters queue.ItemFilters) ([]*domain.QueueItem, error) {
	var conditions []string
	var args []any
	argPos := 1

	addCondition := func(column string, value any) {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if filters.Platform != nil {
		addCondition("platform", *filters.Platform)
	}
	if filters.State != nil {
		addCondition("state", *filters.State)
	}
	if filters.Kind != nil {
		addCondition("kind", *filters.Kind)
	}
	if filters.TrialID != nil {
		addCondition("trial_id", *filters.TrialID)
	}

	query := `SELECT ` + itemColumns + ` FROM queue_items`
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
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.QueueItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateItem persists content edits guarded by the allowed source states.
func (r *Repository) UpdateItem(ctx context.Context, item *domain.QueueItem, fromStates []domain.ItemState) error {
	query := `
		UPDATE queue_items
		SET payload = $2, selected_option = $3, asset_complete = $4, updated_at = NOW()
		WHERE id = $1 AND state = ANY($5)
	`
	tag, err := r.db.Exec(ctx, query,
		item.ID,
		item.Payload,
		item.SelectedOption,
		item.AssetComplete,
		stateStrings(fromStates),
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, item.ID)
	}
	return nil
}

// DeleteItemInState removes the item if it is in one of the given states.
func (r *Repository) DeleteItemInState(ctx context.Context, id string, states []domain.ItemState) error {
	if _, err := uuid.Parse(id); err != nil {
		return queue.ErrItemNotFound
	}

	query := `DELETE FROM queue_items WHERE id = $1 AND state = ANY($2)`

	tag, err := r.db.Exec(ctx, query, id, stateStrings(states))
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := r.existsOnly(ctx, id); err != nil {
			return err
		}
		return queue.ErrNotDeletable
	}
	return nil
}

// DeleteItemTx removes the item within an existing transaction.
func (r *Repository) DeleteItemTx(ctx context.Context, tx pgx.Tx, id string, states []domain.ItemState) error {
	query := `DELETE FROM queue_items WHERE id = $1 AND state = ANY($2)`

	tag, err := tx.Exec(ctx, query, id, stateStrings(states))
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrConflict
	}
	return nil
}

// SetState transitions the item conditionally on its current state.
func (r *Repository) SetState(ctx context.Context, id string, from []domain.ItemState, to domain.ItemState) error {
	query := `
		UPDATE queue_items
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = ANY($3)
	`
	tag, err := r.db.Exec(ctx, query, id, to, stateStrings(from))
	if err != nil {
		return fmt.Errorf("set queue item state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// SetStateTx transitions the item within an existing transaction.
func (r *Repository) SetStateTx(ctx context.Context, tx pgx.Tx, id string, from []domain.ItemState, to domain.ItemState) error {
	query := `
		UPDATE queue_items
		SET state = $2, updated_at = NOW()
		WHERE id = $1 AND state = ANY($3)
	`
	tag, err := tx.Exec(ctx, query, id, to, stateStrings(from))
	if err != nil {
		return fmt.Errorf("set queue item state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrConflict
	}
	return nil
}

// MarkFailed moves the item to failed and records the gateway error.
func (r *Repository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE queue_items
		SET state = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.ItemStateFailed, errMsg)
	if err != nil {
		return fmt.Errorf("mark queue item failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrItemNotFound
	}
	return nil
}

// MarkPostedTx stamps posted state, post URL and posted_at within a transaction.
func (r *Repository) MarkPostedTx(ctx context.Context, tx pgx.Tx, id string, postURL string, from []domain.ItemState) error {
	query := `
		UPDATE queue_items
		SET state = $2, post_url = $3, last_error = NULL, posted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND state = ANY($4)
	`
	tag, err := tx.Exec(ctx, query, id, domain.ItemStatePosted, postURL, stateStrings(from))
	if err != nil {
		return fmt.Errorf("mark queue item posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrConflict
	}
	return nil
}

// MostRecentPosted returns the latest posted item for a platform/kind pair.
func (r *Repository) MostRecentPosted(ctx context.Context, platform domain.Platform, kind domain.ItemKind) (*domain.QueueItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM queue_items
		WHERE platform = $1 AND kind = $2 AND state = $3
		ORDER BY posted_at DESC
		LIMIT 1
	`
	item, err := scanItem(r.db.QueryRow(ctx, query, platform, kind, domain.ItemStatePosted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get most recent posted item: %w", err)
	}
	return item, nil
}

// CountByState returns item counts per lifecycle state.
func (r *Repository) CountByState(ctx context.Context) (map[domain.ItemState]int, error) {
	query := `SELECT state, COUNT(*) FROM queue_items GROUP BY state`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ItemState]int)
	for rows.Next() {
		var state domain.ItemState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[state] = count
	}

	return counts, rows.Err()
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// missingOrConflict tells a vanished row apart from a state race.
func (r *Repository) missingOrConflict(ctx context.Context, id string) error {
	if err := r.existsOnly(ctx, id); err != nil {
		return err
	}
	return queue.ErrConflict
}

func (r *Repository) existsOnly(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM queue_items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check queue item exists: %w", err)
	}
	if !exists {
		return queue.ErrItemNotFound
	}
	return nil
}

func stateStrings(states []domain.ItemState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
