package router

import (
	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/handler"
	"github.com/phamhoa2416/ticket-booking/internal/middleware"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// RegisterPublic registers the read-only event catalogue. No token needed.
func RegisterPublic(e *echo.Echo, h *handler.EventHandler) {
	e.GET("/v1/events", h.ListEvents)
	e.GET("/v1/events/:id", h.GetEvent)
	e.GET("/v1/organizers/:id/events", h.ListOrganizerEvents)
}

// RegisterEvents registers event management for organizers.
func RegisterEvents(g *echo.Group, h *handler.EventHandler) {
	organizer := middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin)

	g.POST("/events", h.CreateEvent, organizer)
	g.PATCH("/events/:id", h.UpdateEvent, organizer)
	g.PATCH("/events/:id/status", h.UpdateEventStatus)
	g.PATCH("/events/:id/inventory", h.AdjustInventory, organizer)
	g.GET("/events/:id/tickets", h.ListEventTickets, organizer)
}
