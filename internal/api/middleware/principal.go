package middleware

import (
	"auction-engine/internal/domain"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	principalKey = "principal"
)

// Principal reads the caller identity set by the upstream identity layer.
// A request without a user id is anonymous; a missing role means individual.
func Principal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := domain.Principal{UserID: c.Request().Header.Get(HeaderUserID)}
			if p.UserID != "" {
				p.Role = domain.Role(c.Request().Header.Get(HeaderUserRole))
				if p.Role == "" {
					p.Role = domain.RoleIndividual
				}
				if !p.Role.IsValid() {
					return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user role"})
				}
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

func PrincipalFrom(c echo.Context) domain.Principal {
	p, _ := c.Get(principalKey).(domain.Principal)
	return p
}

// RequireUser rejects anonymous callers.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if PrincipalFrom(c).UserID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		}
		return next(c)
	}
}
