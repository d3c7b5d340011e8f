// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/identity"
)

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateOperator creates a new operator account.
func (r *Repository) CreateOperator(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO operators (email, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		op.Email,
		op.Name,
		op.PasswordHash,
		op.Role,
	).Scan(&op.ID, &op.CreatedAt, &op.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create operator: %w", err)
	}
	return nil
}

// GetOperatorByID retrieves an operator by ID.
func (r *Repository) GetOperatorByID(ctx context.Context, id string) (*domain.Operator, error) {
	return r.getOperator(ctx, `WHERE id = $1`, id)
}

// GetOperatorByEmail retrieves an operator by email.
func (r *Repository) GetOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	return r.getOperator(ctx, `WHERE email = $1`, email)
}

func (r *Repository) getOperator(ctx context.Context, where string, arg any) (*domain.Operator, error) {
	query := `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM operators
	` + where

	var op domain.Operator
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&op.ID,
		&op.Email,
		&op.Name,
		&op.PasswordHash,
		&op.Role,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrOperatorNotFound
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}
	return &op, nil
}

// ListOperators retrieves all operator accounts.
func (r *Repository) ListOperators(ctx context.Context) ([]*domain.Operator, error) {
	query := `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM operators
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	ops := make([]*domain.Operator, 0)
	for rows.Next() {
		var op domain.Operator
		if err := rows.Scan(
			&op.ID,
			&op.Email,
			&op.Name,
			&op.PasswordHash,
			&op.Role,
			&op.CreatedAt,
			&op.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		ops = append(ops, &op)
	}

	return ops, rows.Err()
}
