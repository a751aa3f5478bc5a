package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/usermanagement/account-api/internal/api/middleware"
	"github.com/usermanagement/account-api/internal/core/domain"
)

// ctxClaims extracts the token claims injected by the Auth middleware. A
// missing value means the route was mounted without it.
func ctxClaims(c echo.Context) (*domain.TokenClaims, error) {
	claims, _ := c.Get(middleware.ClaimsKey).(*domain.TokenClaims)
	if claims == nil || claims.UserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}
