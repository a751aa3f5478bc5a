package domain

import "time"

// TokenClaims is the decoded identity carried by an access token.
type TokenClaims struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Role      string    `json:"role,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HasRole reports whether the token carries a role claim.
func (c *TokenClaims) HasRole() bool {
	return c != nil && c.Role != ""
}
