// Package router registers the HTTP routes of the API.
package router

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/handler"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, db *sql.DB, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers sign-up and login under /v1/auth. Both are rate
// limited since they are the only unauthenticated writes.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
}

// Protected returns the /v1 group every authenticated route hangs off.
// The limiter runs after JWTAuth so buckets are keyed by user.
func Protected(e *echo.Echo, jwtSecret string, limit echo.MiddlewareFunc) *echo.Group {
	return e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
}
