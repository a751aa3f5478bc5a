package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/usermanagement/account-api/internal/core/domain"
)

type stubVerifier struct {
	claims *domain.TokenClaims
	err    error
	got    string
}

func (v *stubVerifier) Verify(token string) (*domain.TokenClaims, error) {
	v.got = token
	return v.claims, v.err
}

func runAuth(t *testing.T, verifier TokenVerifier, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Auth(verifier)(next)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	verifier := &stubVerifier{claims: &domain.TokenClaims{UserID: "u-1", UserName: "alice", Role: "Guest"}}

	called := false
	rec := runAuth(t, verifier, "Bearer abc.def.ghi", func(c echo.Context) error {
		called = true
		if c.Get(UserIDKey) != "u-1" {
			t.Fatalf("user_id not set")
		}
		if c.Get(UsernameKey) != "alice" {
			t.Fatalf("username not set")
		}
		if c.Get(RoleKey) != "Guest" {
			t.Fatalf("role not set")
		}
		if _, ok := c.Get(ClaimsKey).(*domain.TokenClaims); !ok {
			t.Fatalf("claims not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if verifier.got != "abc.def.ghi" {
		t.Fatalf("unexpected token passed to verifier: %q", verifier.got)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	cases := map[string]struct {
		header   string
		verifier *stubVerifier
	}{
		"missing header":   {"", &stubVerifier{}},
		"wrong scheme":     {"Token abc", &stubVerifier{}},
		"empty token":      {"Bearer   ", &stubVerifier{}},
		"verifier refuses": {"Bearer not-a-token", &stubVerifier{err: domain.ErrInvalidToken}},
		"verifier errors":  {"Bearer abc", &stubVerifier{err: errors.New("boom")}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runAuth(t, tc.verifier, tc.header, func(c echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
