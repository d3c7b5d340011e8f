// Package identity provides operator accounts and token authentication.
package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/identity/jwt"
)

// Service implements operator account business logic.
type Service struct {
	repo Repository
	auth *jwt.Authenticator
}

// NewService creates a new identity service.
func NewService(repo Repository, auth *jwt.Authenticator) *Service {
	return &Service{repo: repo, auth: auth}
}

// CreateOperatorInput holds data for creating an operator account.
type CreateOperatorInput struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
}

// CreateOperator registers a new operator account.
func (s *Service) CreateOperator(ctx context.Context, input CreateOperatorInput) (*domain.Operator, error) {
	if !input.Role.IsValid() {
		return nil, fmt.Errorf("invalid role: %s", input.Role)
	}

	if _, err := s.repo.GetOperatorByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrOperatorNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	op := &domain.Operator{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         input.Role,
	}
	if err := s.repo.CreateOperator(ctx, op); err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}

	return op, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.Operator, error) {
	op, err := s.repo.GetOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.auth.GenerateToken(op)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, op, nil
}

// ValidateToken checks a bearer token and returns the operator identity.
// Implements httputil.TokenValidator.
func (s *Service) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	operatorID, role, err := s.auth.ValidateToken(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return operatorID, role, nil
}

// ListOperators returns all operator accounts.
func (s *Service) ListOperators(ctx context.Context) ([]*domain.Operator, error) {
	return s.repo.ListOperators(ctx)
}
