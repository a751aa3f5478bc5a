package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/api/handler"
	"github.com/usermanagement/account-api/internal/api/metrics"
	"github.com/usermanagement/account-api/internal/api/middleware"
	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

// Dependencies are the collaborators the HTTP layer needs.
type Dependencies struct {
	Accounts ports.AccountService
	Tokens   middleware.TokenVerifier
	Checks   []handler.DependencyCheck

	// DefaultRole guards GET /account/me. Defaults to domain.DefaultRole.
	DefaultRole string
	Logger      zerolog.Logger
	// Registry receives HTTP and account metrics. A fresh registry is used
	// when nil.
	Registry *prometheus.Registry
}

// NewRouter builds the Echo instance with all routes registered. Account
// routes are served under both /account and /api/account.
func NewRouter(deps Dependencies) (*echo.Echo, error) {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}

	defaultRole := deps.DefaultRole
	if defaultRole == "" {
		defaultRole = domain.DefaultRole
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "account",
		Subsystem:  "http",
		Registerer: reg,
	}))

	// --- Account routes ---
	accountHandler := handler.NewAccountHandler(deps.Accounts, deps.Logger)
	authMiddleware := middleware.Auth(deps.Tokens)
	roleMiddleware := middleware.RBAC(defaultRole)

	for _, prefix := range []string{"/account", "/api/account"} {
		g := e.Group(prefix)
		g.POST("/register", accountHandler.Register)
		g.POST("/login", accountHandler.Login)
		g.GET("/me", accountHandler.Me, authMiddleware, roleMiddleware)
	}

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler(deps.Checks...)

	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))

	return e, nil
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
