package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/api/handler"
	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/service"
	"github.com/usermanagement/account-api/internal/infrastructure/crypto"
	"github.com/usermanagement/account-api/internal/infrastructure/db/memory"
)

const routerSecret = "router-test-secret-0123456789"

type testServer struct {
	e      *echo.Echo
	tokens *service.TokenIssuer
	store  *memory.Store
}

func newTestServer(t *testing.T, checks ...handler.DependencyCheck) *testServer {
	t.Helper()
	store := memory.NewStore()
	hasher := crypto.NewArgon2Hasher(crypto.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	tokens, err := service.NewTokenIssuer(routerSecret, service.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	accounts := service.NewAccountService(store, hasher, service.NewRoleProvisioner(nil, zerolog.Nop()), tokens,
		service.AccountOptions{PasswordPolicy: domain.PasswordPolicy{MinLength: 2}}, zerolog.Nop())

	e, err := NewRouter(Dependencies{
		Accounts: accounts,
		Tokens:   tokens,
		Checks:   checks,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testServer{e: e, tokens: tokens, store: store}
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/account/register", `{"username":"alice","password":"ab","fullName":"Alice A","email":"a@x.com"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(http.MethodPost, "/account/login", `{"username":"alice","password":"ab"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login: expected token, got %s", rec.Body.String())
	}

	claims, err := srv.tokens.Verify(login.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.UserName != "alice" || claims.Role != "Guest" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	rec = srv.do(http.MethodGet, "/account/me", "", login.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("me: invalid json: %v", err)
	}
	if me["userName"] != "alice" {
		t.Fatalf("me: unexpected payload: %+v", me)
	}
}

func TestRouter_LegacyPrefix(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/api/account/register", `{"username":"bob","password":"cd"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", rec.Code)
	}
	rec = srv.do(http.MethodPost, "/api/account/login", `{"username":"bob","password":"cd"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
}

func TestRouter_LoginFailuresAreByteIdentical(t *testing.T) {
	srv := newTestServer(t)
	srv.do(http.MethodPost, "/account/register", `{"username":"alice","password":"ab"}`, "")

	wrong := srv.do(http.MethodPost, "/account/login", `{"username":"alice","password":"nope"}`, "")
	unknown := srv.do(http.MethodPost, "/account/login", `{"username":"mallory","password":"ab"}`, "")

	if wrong.Code != http.StatusBadRequest || unknown.Code != http.StatusBadRequest {
		t.Fatalf("expected 400s, got %d and %d", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", wrong.Body.String(), unknown.Body.String())
	}
	if got := strings.TrimSpace(wrong.Body.String()); got != `{"message":"Username or password is wrong"}` {
		t.Fatalf("unexpected body: %s", got)
	}
}

func TestRouter_DuplicateRegistrationConflicts(t *testing.T) {
	srv := newTestServer(t)

	first := srv.do(http.MethodPost, "/account/register", `{"username":"alice","password":"ab","email":"a@x.com"}`, "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}

	rec := srv.do(http.MethodPost, "/account/register", `{"username":"Alice","password":"ab","email":"A@X.com"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp handler.RegisterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Succeeded || len(resp.Errors) != 2 {
		t.Fatalf("expected two field errors, got %+v", resp)
	}
	if users, _ := srv.store.Counts(); users != 1 {
		t.Fatalf("expected one stored user, got %d", users)
	}
}

func TestRouter_InvalidRegistration(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/account/register", `{"username":"alice","password":"a"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp handler.RegisterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Succeeded || len(resp.Errors) == 0 || resp.Errors[0].Code != domain.CodePasswordTooShort {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestRouter_MeRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	if rec := srv.do(http.MethodGet, "/account/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/account/me", "", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}

	noRole, _, err := srv.tokens.Issue("u-1", "carol", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rec := srv.do(http.MethodGet, "/account/me", "", noRole); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for token without role, got %d", rec.Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, handler.DependencyCheck{Name: "store", Ping: func(context.Context) error { return nil }})

	if rec := srv.do(http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}

	srv.do(http.MethodPost, "/account/login", `{"username":"nobody","password":"x"}`, "")

	rec := srv.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"account_logins_total", "account_http_requests_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics: expected %s in exposition", name)
		}
	}
}

func TestRouter_ReadinessDegraded(t *testing.T) {
	srv := newTestServer(t, handler.DependencyCheck{Name: "store", Ping: func(context.Context) error { return errors.New("down") }})

	if rec := srv.do(http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHTTPErrorHandler_HidesUnexpectedErrors(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(&domain.StoreError{Op: "find user", Err: errors.New("connection reset")}, c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}
