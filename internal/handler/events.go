package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/service"
)

// EventHandler exposes events and the tickets sold for them.
type EventHandler struct {
	Events  *service.EventService
	Tickets *service.TicketService
}

func NewEventHandler(e *service.EventService, t *service.TicketService) *EventHandler {
	if e == nil || t == nil {
		panic("nil service passed to NewEventHandler")
	}
	return &EventHandler{Events: e, Tickets: t}
}

type createEventReq struct {
	OrganizerID uuid.UUID       `json:"organizer_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	VenueName   string          `json:"venue_name"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	Country     string          `json:"country"`
	Capacity    int64           `json:"capacity"`
	BasePrice   decimal.Decimal `json:"base_price"`
}

func (h *EventHandler) CreateEvent(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ev, err := h.Events.Create(ctx, a, service.CreateEventInput(req))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *EventHandler) GetEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) ListEvents(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Events.List(ctx, pageFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

func (h *EventHandler) ListOrganizerEvents(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Events.ListByOrganizer(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

type updateEventReq struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	StartsAt    *time.Time       `json:"starts_at"`
	EndsAt      *time.Time       `json:"ends_at"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	Version     *int64           `json:"version"`
}

func (h *EventHandler) UpdateEvent(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req updateEventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ev, err := h.Events.Update(ctx, a, id, service.UpdateEventInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		BasePrice:   req.BasePrice,
	}, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

type eventStatusReq struct {
	Status  model.EventStatus `json:"status"`
	Version *int64            `json:"version"`
}

func (h *EventHandler) UpdateEventStatus(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req eventStatusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ev, err := h.Events.UpdateStatus(ctx, a, id, req.Status, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

type inventoryReq struct {
	Delta   int64  `json:"delta"`
	Version *int64 `json:"version"`
}

func (h *EventHandler) AdjustInventory(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req inventoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ev, err := h.Events.AdjustInventory(ctx, a, id, req.Delta, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) ListEventTickets(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Tickets.ListByEvent(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
