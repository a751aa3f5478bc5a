package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/usermanagement/account-api/internal/api/metrics"
	"github.com/usermanagement/account-api/internal/core/domain"
	"github.com/usermanagement/account-api/internal/core/ports"
)

type AccountHandler struct {
	accounts ports.AccountService
	log      zerolog.Logger
}

func NewAccountHandler(accounts ports.AccountService, log zerolog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, log: log}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	FullName string `json:"fullName" validate:"max=150"`
	Email    string `json:"email"    validate:"omitempty,max=256,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is the body of every registration outcome.
type RegisterResponse struct {
	Succeeded bool                `json:"succeeded"`
	Errors    []domain.FieldError `json:"errors"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Register creates a new account holding the default role.
//
// @Summary      Register a new user
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest   true  "Registration form"
// @Success      200   {object}  RegisterResponse
// @Failure      400   {object}  RegisterResponse
// @Failure      409   {object}  RegisterResponse
// @Failure      500   {object}  map[string]string
// @Router       /account/register [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug().Err(err).Msg("malformed registration payload")
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return domain.NewValidationError(domain.FieldError{
			Code:        domain.CodeInvalidPayload,
			Description: "Request body is not a valid registration form.",
		})
	}
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return err
	}

	res, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	outcome := "already_exists"
	if res.RoleCreated {
		outcome = "created"
	}
	metrics.RolesProvisionedTotal.WithLabelValues(outcome).Inc()

	return c.JSON(http.StatusOK, RegisterResponse{Succeeded: true, Errors: []domain.FieldError{}})
}

// Login verifies credentials and returns a signed access token.
//
// @Summary      Login
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Router       /account/login [post]
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		h.log.Debug().Err(err).Msg("malformed login payload")
		metrics.LoginsTotal.WithLabelValues(metrics.ResultInvalidCredentials).Inc()
		return domain.ErrInvalidCredentials
	}

	res, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, domain.ErrInvalidCredentials) {
			result = metrics.ResultInvalidCredentials
		}
		metrics.LoginsTotal.WithLabelValues(result).Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.TokensIssuedTotal.Inc()

	return c.JSON(http.StatusOK, loginResponse{Token: res.Token})
}

// Me returns the claims of the caller's token.
//
// @Summary      Current identity
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.TokenClaims
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /account/me [get]
func (h *AccountHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, claims)
}

func registrationResult(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		if ve.IsConflict() {
			return metrics.ResultConflict
		}
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}
