package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolodexhq/rolodex/internal/auth"
	"github.com/rolodexhq/rolodex/internal/users"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// requireAdmin rejects callers whose token does not carry the admin role.
// Destructive operations (account management, contact deletion, merges) use it.
func requireAdmin(c echo.Context) error {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if !users.IsAdmin(claims.Role) {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	return nil
}
