package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/usermanagement/account-api/internal/core/domain"
)

const (
	// DefaultTokenTTL is the lifetime of an access token.
	DefaultTokenTTL = 60 * time.Minute
	// RoleClaimKey is the claim name the role is carried under.
	RoleClaimKey = "role"

	minSecretLength = 16
)

// tokenClaims is the wire form of an access token payload.
type tokenClaims struct {
	UserID   string `json:"UserID"`
	UserName string `json:"UserName"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens with a process-wide shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type TokenOption func(*TokenIssuer)

// WithClock replaces the wall clock used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) { t.now = now }
}

// WithIssuer stamps tokens with iss and requires it on verification.
func WithIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) { t.issuer = issuer }
}

// NewTokenIssuer fails when the secret is missing or too short to sign with.
// Callers treat that as a fatal startup condition.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, domain.ErrMissingSecret
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", domain.ErrWeakSecret, minSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	t := &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the fixed token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the given identity. An empty role omits the claim.
func (t *TokenIssuer) Issue(userID, username, role string) (string, time.Time, error) {
	now := t.now()
	exp := jwt.NewNumericDate(now.Add(t.ttl))

	claims := tokenClaims{
		UserID:   userID,
		UserName: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Time, nil
}

// Verify checks signature, algorithm and expiry with zero clock skew and
// returns the decoded claims.
func (t *TokenIssuer) Verify(token string) (*domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(0),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &tokenClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.TokenClaims{
		UserID:   claims.UserID,
		UserName: claims.UserName,
		Role:     claims.Role,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
