package router

import (
	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/handler"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// RegisterTickets registers the ticket lifecycle endpoints.
func RegisterTickets(g *echo.Group, h *handler.TicketHandler) {
	g.POST("/tickets", h.Issue, middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	g.GET("/tickets/:id", h.Get)
	g.GET("/customers/:id/tickets", h.ListByCustomer)

	g.POST("/tickets/:id/confirm", h.ConfirmPayment)
	g.POST("/tickets/:id/cancel", h.Cancel)
	g.POST("/tickets/:id/refund", h.Refund)
	g.POST("/tickets/:id/transfer", h.Transfer)
	g.POST("/tickets/:id/use", h.MarkUsed, middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	g.POST("/tickets/:id/expire", h.Expire, middleware.RequireRole(model.RoleAdmin))
}
