package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// RequireRole aborts with 403 unless JWTAuth stored a caller holding one of
// roles.
func RequireRole(roles ...model.UserRole) echo.MiddlewareFunc {
	allowed := make(map[model.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, ok := ActorFrom(c)
			if !ok || !allowed[a.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "FORBIDDEN", "message": "insufficient role"})
			}
			return next(c)
		}
	}
}
