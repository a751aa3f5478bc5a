package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runRBAC(t *testing.T, role any, allowed ...string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set(RoleKey, role)
	}

	called := false
	handler := RBAC(allowed...)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, called
}

func TestRBAC_Allows(t *testing.T) {
	rec, called := runRBAC(t, "Guest", "Admin", "Guest")
	if !called {
		t.Fatalf("next handler not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRBAC_IgnoresCase(t *testing.T) {
	if _, called := runRBAC(t, "guest", "Guest"); !called {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestRBAC_Forbids(t *testing.T) {
	cases := map[string]any{
		"other role": "Guest",
		"no role":    "",
		"unset":      nil,
	}
	for name, role := range cases {
		t.Run(name, func(t *testing.T) {
			rec, called := runRBAC(t, role, "Admin")
			if called {
				t.Fatalf("should not reach next handler")
			}
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}
