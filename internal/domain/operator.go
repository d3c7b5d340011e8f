package domain

import "time"

// Role defines operator permission levels.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleLevel maps roles to permission levels for comparison.
var roleLevel = map[Role]int{
	RoleOperator: 1,
	RoleAdmin:    2,
}

// HasPermission checks if the role satisfies the minimum required role.
func (r Role) HasPermission(minRole Role) bool {
	return roleLevel[r] >= roleLevel[minRole]
}

// IsValid checks if the role is a known value.
func (r Role) IsValid() bool {
	_, ok := roleLevel[r]
	return ok
}

// Operator is a human user acting on the queue through the API.
type Operator struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
