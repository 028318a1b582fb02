package router

import (
	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/handler"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// RegisterAccounts registers user, customer and organizer endpoints.
// Ownership is checked by the services; roles only gate who may try.
func RegisterAccounts(g *echo.Group, h *handler.AccountHandler) {
	admin := middleware.RequireRole(model.RoleAdmin)
	customer := middleware.RequireRole(model.RoleCustomer, model.RoleAdmin)
	organizer := middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin)

	// ---- Users ----
	g.GET("/users", h.ListUsers, admin)
	g.GET("/users/:id", h.GetUser)
	g.PATCH("/users/:id", h.UpdateUser)

	// ---- Customers ----
	g.POST("/customers", h.CreateCustomer, customer)
	g.GET("/customers/me", h.GetMyCustomer, customer)
	g.GET("/customers/:id", h.GetCustomer)
	g.PATCH("/customers/:id/loyalty-points", h.UpdateLoyaltyPoints)
	g.PATCH("/customers/:id/spending", h.UpdateTotalSpending)

	// ---- Organizers ----
	g.POST("/organizers", h.CreateOrganizer, organizer)
	g.GET("/organizers", h.ListOrganizers)
	g.GET("/organizers/:id", h.GetOrganizer)
	g.PATCH("/organizers/:id/rating", h.UpdateRating, admin)
	g.PATCH("/organizers/:id/verification", h.UpdateVerification, admin)
}
