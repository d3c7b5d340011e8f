// Package jwt implements operator token issuing and validation.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inkwheel/pressroom/internal/domain"
)

// Config holds token settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Authenticator issues and validates HMAC-signed operator tokens.
type Authenticator struct {
	config Config
}

// NewAuthenticator creates a new token authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed access token for an operator.
func (a *Authenticator) GenerateToken(op *domain.Operator) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(op.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
		},
	})

	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token and returns the operator ID and role.
func (a *Authenticator) ValidateToken(tokenString string) (string, domain.Role, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.SecretKey), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}

	role := domain.Role(c.Role)
	if !role.IsValid() {
		return "", "", fmt.Errorf("invalid role claim: %s", c.Role)
	}

	return c.Subject, role, nil
}
