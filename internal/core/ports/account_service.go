package ports

import (
	"context"
	"time"

	"github.com/usermanagement/account-api/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to AccountService.
type RegisterInput struct {
	Username string
	FullName string
	Email    string
	Password string
}

// RegisterResult describes a completed registration.
type RegisterResult struct {
	User        *domain.User
	Role        string
	RoleCreated bool
}

// LoginResult carries the issued token and the identity it was issued for.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
	Role      string
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}
