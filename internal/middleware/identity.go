package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/audit"
)

// actorKey is the echo.Context key under which JWTAuth stores the caller.
const actorKey = "actor"

// ActorFrom returns the authenticated caller. ok is false on routes that
// are not behind JWTAuth.
func ActorFrom(c echo.Context) (audit.Actor, bool) {
	a, ok := c.Get(actorKey).(audit.Actor)
	return a, ok
}

// clientKey identifies the caller for rate limiting: the user when
// authenticated, otherwise the client IP.
func clientKey(c echo.Context) string {
	if a, ok := ActorFrom(c); ok && !a.IsSystem() {
		return "user:" + a.ID.String()
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
