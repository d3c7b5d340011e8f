package identity

import (
	"context"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Repository defines the interface for operator storage.
type Repository interface {
	CreateOperator(ctx context.Context, op *domain.Operator) error
	GetOperatorByID(ctx context.Context, id string) (*domain.Operator, error)
	GetOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error)
	ListOperators(ctx context.Context) ([]*domain.Operator, error)
}
