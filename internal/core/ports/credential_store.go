package ports

import (
	"context"

	"github.com/usermanagement/account-api/internal/core/domain"
)

// CredentialStore persists users, roles and role memberships. Lookups by
// username, email and role name are case-insensitive.
type CredentialStore interface {
	// CreateUser inserts a user and returns it with its identifier set.
	// Returns domain.ErrUserExists when the username or email is taken.
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	// CreateRole returns domain.ErrRoleExists when the name is taken.
	CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error)
	// AddToRole is idempotent. Returns domain.ErrRoleNotFound for an unknown role.
	AddToRole(ctx context.Context, userID, roleName string) error
	// RolesOf returns the names of the user's roles in ascending order.
	RolesOf(ctx context.Context, userID string) ([]string, error)

	// Atomic runs fn as a single unit of work. Every write made through the
	// store passed to fn is discarded if fn returns an error.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx CredentialStore) error) error

	Ping(ctx context.Context) error
}
