package ports

import (
	"time"

	"github.com/usermanagement/account-api/internal/core/domain"
)

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(userID, username, role string) (token string, expiresAt time.Time, err error)
	Verify(token string) (*domain.TokenClaims, error)
}
