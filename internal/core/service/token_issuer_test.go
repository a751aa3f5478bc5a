package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/usermanagement/account-api/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var issuedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *fakeClock, opts ...TokenOption) *TokenIssuer {
	t.Helper()
	opts = append([]TokenOption{WithClock(clock.Now)}, opts...)
	issuer, err := NewTokenIssuer(testSecret, DefaultTokenTTL, opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, exp, err := issuer.Issue("user-1", "alice", "Guest")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !exp.Equal(issuedAt.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.UserName != "alice" || claims.Role != "Guest" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Equal(issuedAt) || !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected timestamps: %+v", claims)
	}
}

func TestTokenIssuer_ClaimNames(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue("user-1", "alice", "Guest")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	raw := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, raw)
	if err != nil {
		t.Fatalf("ParseUnverified returned error: %v", err)
	}
	for _, key := range []string{"UserID", "UserName", RoleClaimKey, "exp", "iat", "nbf"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("expected claim %q in %v", key, raw)
		}
	}
}

func TestTokenIssuer_EmptyRoleOmitsClaim(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue("user-1", "alice", "")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	raw := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, raw); err != nil {
		t.Fatalf("ParseUnverified returned error: %v", err)
	}
	if _, ok := raw[RoleClaimKey]; ok {
		t.Fatalf("expected no role claim, got %v", raw[RoleClaimKey])
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.HasRole() {
		t.Fatalf("expected claims without role")
	}
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue("user-1", "alice", "Guest")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	clock.now = issuedAt.Add(59*time.Minute + 59*time.Second)
	if _, err := issuer.Verify(token); err != nil {
		t.Fatalf("expected token to be valid just before expiry, got %v", err)
	}

	clock.now = issuedAt.Add(60*time.Minute + time.Second)
	_, err = issuer.Verify(token)
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuer_RejectsEverySingleBitFlip(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue("user-1", "alice", "Guest")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	for i := 0; i < len(token); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(token)
			mutated[i] ^= 1 << bit
			if _, err := issuer.Verify(string(mutated)); err == nil {
				t.Fatalf("mutation at byte %d bit %d was accepted", i, bit)
			}
		}
	}
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	issuer := newTestIssuer(t, clock)

	claims := tokenClaims{
		UserID:   "user-1",
		UserName: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}

	cases := map[string]func() (string, error){
		"wrong secret": func() (string, error) {
			return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-of-32-bytes-long!"))
		},
		"other algorithm": func() (string, error) {
			return jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(testSecret))
		},
		"unsigned": func() (string, error) {
			return jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		},
		"missing expiry": func() (string, error) {
			c := claims
			c.ExpiresAt = nil
			return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := build()
			if err != nil {
				t.Fatalf("signing failed: %v", err)
			}
			if _, err := issuer.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	for _, garbage := range []string{"", "not-a-token", "a.b.c", strings.Repeat(".", 2)} {
		if _, err := issuer.Verify(garbage); !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", garbage, err)
		}
	}
}

func TestTokenIssuer_Issuer(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	stamped := newTestIssuer(t, clock, WithIssuer("account-api"))
	other := newTestIssuer(t, clock, WithIssuer("somewhere-else"))

	token, _, err := stamped.Issue("user-1", "alice", "Guest")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := stamped.Verify(token); err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch to fail, got %v", err)
	}
}

func TestNewTokenIssuer_Secret(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); !errors.Is(err, domain.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, err := NewTokenIssuer("short", time.Hour); !errors.Is(err, domain.ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}

	issuer, err := NewTokenIssuer(testSecret, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	if issuer.TTL() != DefaultTokenTTL {
		t.Fatalf("expected default ttl, got %v", issuer.TTL())
	}
}
