package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/service"
)

type TicketHandler struct {
	Tickets *service.TicketService
}

func NewTicketHandler(t *service.TicketService) *TicketHandler {
	if t == nil {
		panic("nil service passed to NewTicketHandler")
	}
	return &TicketHandler{Tickets: t}
}

type issueTicketReq struct {
	EventID        uuid.UUID        `json:"event_id"`
	CustomerID     uuid.UUID        `json:"customer_id"`
	Price          *decimal.Decimal `json:"price"`
	ValidUntil     *time.Time       `json:"valid_until"`
	SeatNumber     *string          `json:"seat_number"`
	Section        *string          `json:"section"`
	Row            *string          `json:"row"`
	Notes          *string          `json:"notes"`
	PendingPayment bool             `json:"pending_payment"`
}

// Issue sells one ticket and takes it out of the event's inventory.
func (h *TicketHandler) Issue(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	var req issueTicketReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventID == uuid.Nil || req.CustomerID == uuid.Nil {
		return badRequest(c, "event_id and customer_id are required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.Issue(ctx, a, service.IssueTicketInput(req))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) ListByCustomer(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Tickets.ListByCustomer(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

type versionReq struct {
	Version *int64 `json:"version"`
}

type transitionFunc func(ctx context.Context, a audit.Actor, id uuid.UUID, opts ...service.MutateOption) (*model.Ticket, error)

// transition adapts a single-ticket state change to an echo handler.
func transition(fn transitionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, err := caller(c)
		if err != nil {
			return err
		}
		id, ok := pathID(c, "id")
		if !ok {
			return badRequest(c, "invalid id")
		}
		var req versionReq
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return badRequest(c, "invalid body")
			}
		}
		ctx, cancel := requestCtx(c)
		defer cancel()
		t, err := fn(ctx, a, id, ifVersion(req.Version)...)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func (h *TicketHandler) ConfirmPayment(c echo.Context) error {
	return transition(h.Tickets.ConfirmPayment)(c)
}

func (h *TicketHandler) Cancel(c echo.Context) error { return transition(h.Tickets.Cancel)(c) }

func (h *TicketHandler) MarkUsed(c echo.Context) error { return transition(h.Tickets.MarkUsed)(c) }

func (h *TicketHandler) Expire(c echo.Context) error { return transition(h.Tickets.Expire)(c) }

type refundReq struct {
	Amount  decimal.Decimal `json:"amount"`
	Version *int64          `json:"version"`
}

func (h *TicketHandler) Refund(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req refundReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.Refund(ctx, a, id, req.Amount, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

type transferReq struct {
	ToCustomerID uuid.UUID `json:"to_customer_id"`
	Version      *int64    `json:"version"`
}

type transferResp struct {
	Previous *model.Ticket `json:"previous"`
	Issued   *model.Ticket `json:"issued"`
}

// Transfer retires the ticket and reissues it to another customer.
func (h *TicketHandler) Transfer(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req transferReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.ToCustomerID == uuid.Nil {
		return badRequest(c, "to_customer_id is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	old, issued, err := h.Tickets.Transfer(ctx, a, id, req.ToCustomerID, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, transferResp{Previous: old, Issued: issued})
}
