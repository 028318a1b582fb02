package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

// TicketService sells tickets and drives them through their lifecycle.
// Any move that hands a seat back updates the event inventory in the same
// transaction as the ticket.
type TicketService struct {
	base
}

func NewTicketService(d Deps) *TicketService {
	return &TicketService{base: newBase(d)}
}

type IssueTicketInput struct {
	EventID    uuid.UUID
	CustomerID uuid.UUID
	// Price defaults to the event's base price.
	Price      *decimal.Decimal
	ValidUntil *time.Time
	SeatNumber *string
	Section    *string
	Row        *string
	Notes      *string
	// PendingPayment issues the ticket as PENDING_PAYMENT instead of CONFIRMED.
	PendingPayment bool
}

func newTicketNumber() string {
	return "TKT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// Issue sells one ticket: the event must be on sale and have a ticket left.
func (s *TicketService) Issue(ctx context.Context, actor audit.Actor, in IssueTicketInput) (*model.Ticket, error) {
	fail := func(err error) (*model.Ticket, error) {
		s.Audit.Failure(ctx, actor, "TICKET_ISSUE_FAILED", err, map[string]any{"event_id": in.EventID, "customer_id": in.CustomerID})
		return nil, err
	}
	if err := model.ValidateSeat(in.SeatNumber, in.Section, in.Row); err != nil {
		return fail(err)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return fail(apperr.Validation("price", "cannot be negative"))
	}

	var (
		t  *model.Ticket
		ev *model.Event
	)
	err := s.Tx.WithRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Events().FindByID(ctx, in.EventID)
		if err != nil {
			return err
		}
		if !cur.Status.AcceptsSales() {
			return apperr.Validation("event_id", "event in status %s is not on sale", cur.Status)
		}
		cust, err := tx.Customers().FindByID(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, "Customer", cust.UserID); err != nil {
			return err
		}
		patch, err := adjustInventory(cur, -1)
		if err != nil {
			return err
		}
		if ev, err = tx.Events().Update(ctx, cur.ID, patch, cur.Version); err != nil {
			return err
		}

		t = &model.Ticket{
			ID:           uuid.New(),
			TicketNumber: newTicketNumber(),
			EventID:      cur.ID,
			CustomerID:   cust.ID,
			Price:        cur.BasePrice,
			Status:       model.TicketConfirmed,
			PurchaseDate: s.Now(),
			ValidUntil:   cur.EndsAt,
			SeatNumber:   in.SeatNumber,
			Section:      in.Section,
			Row:          in.Row,
			Notes:        in.Notes,
		}
		if in.Price != nil {
			t.Price = *in.Price
		}
		if in.ValidUntil != nil {
			t.ValidUntil = in.ValidUntil.UTC()
		}
		if in.PendingPayment {
			t.Status = model.TicketPendingPayment
		}
		return tx.Tickets().Create(ctx, t)
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.TicketKey(t.ID), *t)
	s.evict(cache.CustomerTicketsKey(t.CustomerID), cache.EventTicketsKey(t.EventID))
	s.refreshEvent(ev)
	s.Audit.Record(ctx, actor, "TICKET_ISSUED", map[string]any{
		"ticket_id":         t.ID,
		"ticket_number":     t.TicketNumber,
		"event_id":          t.EventID,
		"price":             t.Price.String(),
		"status":            t.Status,
		"available_tickets": ev.AvailableTickets,
	})
	return t, nil
}

func (s *TicketService) ConfirmPayment(ctx context.Context, actor audit.Actor, id uuid.UUID, opts ...MutateOption) (*model.Ticket, error) {
	return s.transition(ctx, actor, id, paymentConfirmed, model.TicketConfirmed, ticketHolder, opts)
}

func (s *TicketService) Cancel(ctx context.Context, actor audit.Actor, id uuid.UUID, opts ...MutateOption) (*model.Ticket, error) {
	return s.transition(ctx, actor, id, ticketCancelled, model.TicketCancelled, ticketHolder, opts)
}

// MarkUsed records admission at the door. Only the event's organizer or an
// administrator may scan a ticket.
func (s *TicketService) MarkUsed(ctx context.Context, actor audit.Actor, id uuid.UUID, opts ...MutateOption) (*model.Ticket, error) {
	return s.transition(ctx, actor, id, ticketUsed, model.TicketUsed, eventOrganizer, opts)
}

// Expire is run by the expiry sweep or an administrator.
func (s *TicketService) Expire(ctx context.Context, actor audit.Actor, id uuid.UUID, opts ...MutateOption) (*model.Ticket, error) {
	return s.transition(ctx, actor, id, ticketExpired, model.TicketExpired, privilegedOnly, opts)
}

// Refund pays back amount, which may not exceed the ticket price, and
// returns the seat to the event.
func (s *TicketService) Refund(ctx context.Context, actor audit.Actor, id uuid.UUID, amount decimal.Decimal, opts ...MutateOption) (*model.Ticket, error) {
	if amount.IsNegative() {
		err := apperr.Validation("refund_amount", "must not be negative")
		s.Audit.Failure(ctx, actor, ticketRefunded.failed, err, map[string]any{"ticket_id": id, "refund_amount": amount.String()})
		return nil, err
	}
	return s.mutate(ctx, actor, id, ticketRefunded, ticketHolder, opts, func(t *model.Ticket) (map[string]any, error) {
		prev := t.Status
		if err := t.Refund(amount, s.Now()); err != nil {
			return nil, err
		}
		return map[string]any{
			"ticket_id":       t.ID,
			"previous_status": prev,
			"refund_amount":   amount.String(),
			"ticket_price":    t.Price.String(),
		}, nil
	})
}

// Transfer hands a confirmed ticket to another customer. The original is
// closed as TRANSFERRED and a fresh CONFIRMED ticket for the same seat is
// issued to the recipient, so inventory does not move.
func (s *TicketService) Transfer(ctx context.Context, actor audit.Actor, id, toCustomerID uuid.UUID, opts ...MutateOption) (old, issued *model.Ticket, err error) {
	cfg := mutation(opts)
	fail := func(err error) (*model.Ticket, *model.Ticket, error) {
		s.Logger.Warn("ticket transfer failed", "ticket_id", id, "error", err)
		s.Audit.Failure(ctx, actor, ticketTransferred.failed, err, map[string]any{"ticket_id": id, "to_customer_id": toCustomerID})
		return nil, nil, err
	}

	err = s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Tickets().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(cur); err != nil {
			return err
		}
		if err := ticketHolder(ctx, tx, actor, cur); err != nil {
			return err
		}
		if toCustomerID == cur.CustomerID {
			return apperr.Validation("customer_id", "ticket already belongs to customer %s", toCustomerID)
		}
		if _, err := tx.Customers().FindByID(ctx, toCustomerID); err != nil {
			return err
		}

		work := *cur
		if err := work.Transition(model.TicketTransferred, s.Now()); err != nil {
			return err
		}
		if old, err = tx.Tickets().Update(ctx, id, model.PatchFrom(&work), cur.Version); err != nil {
			return err
		}
		issued = &model.Ticket{
			ID:               uuid.New(),
			TicketNumber:     newTicketNumber(),
			EventID:          cur.EventID,
			CustomerID:       toCustomerID,
			Price:            cur.Price,
			Status:           model.TicketConfirmed,
			PurchaseDate:     cur.PurchaseDate,
			ValidUntil:       cur.ValidUntil,
			SeatNumber:       cur.SeatNumber,
			Section:          cur.Section,
			Row:              cur.Row,
			TransferCount:    work.TransferCount,
			LastTransferDate: work.LastTransferDate,
			Notes:            cur.Notes,
		}
		return tx.Tickets().Create(ctx, issued)
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.TicketKey(old.ID), *old)
	s.set(cache.TicketKey(issued.ID), *issued)
	s.evict(
		cache.CustomerTicketsKey(old.CustomerID),
		cache.CustomerTicketsKey(issued.CustomerID),
		cache.EventTicketsKey(old.EventID),
	)
	s.Audit.Record(ctx, actor, ticketTransferred.done, map[string]any{
		"ticket_id":        old.ID,
		"new_ticket_id":    issued.ID,
		"from_customer_id": old.CustomerID,
		"to_customer_id":   issued.CustomerID,
		"transfer_count":   issued.TransferCount,
	})
	return old, issued, nil
}

func (s *TicketService) GetByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return fetch(ctx, &s.base, cache.TicketKey(id), func(ctx context.Context, tx repository.Tx) (*model.Ticket, error) {
		return tx.Tickets().FindByID(ctx, id)
	})
}

func (s *TicketService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Ticket, error) {
	return fetchList(ctx, &s.base, cache.CustomerTicketsKey(customerID), func(ctx context.Context, tx repository.Tx) ([]model.Ticket, error) {
		return tx.Tickets().FindByCustomer(ctx, customerID)
	})
}

func (s *TicketService) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Ticket, error) {
	return fetchList(ctx, &s.base, cache.EventTicketsKey(eventID), func(ctx context.Context, tx repository.Tx) ([]model.Ticket, error) {
		return tx.Tickets().FindByEvent(ctx, eventID)
	})
}

// authorizer decides whether actor may act on t.
type authorizer func(ctx context.Context, tx repository.Tx, actor audit.Actor, t *model.Ticket) error

// ticketHolder admits the customer holding the ticket.
func ticketHolder(ctx context.Context, tx repository.Tx, actor audit.Actor, t *model.Ticket) error {
	if isPrivileged(actor) {
		return nil
	}
	cust, err := tx.Customers().FindByID(ctx, t.CustomerID)
	if err != nil {
		return err
	}
	return requireOwner(actor, "Ticket", cust.UserID)
}

func eventOrganizer(ctx context.Context, tx repository.Tx, actor audit.Actor, t *model.Ticket) error {
	if isPrivileged(actor) {
		return nil
	}
	ev, err := tx.Events().FindByID(ctx, t.EventID)
	if err != nil {
		return err
	}
	return eventOwner(ctx, tx, actor, ev)
}

func privilegedOnly(_ context.Context, _ repository.Tx, actor audit.Actor, _ *model.Ticket) error {
	if isPrivileged(actor) {
		return nil
	}
	return apperr.ErrForbidden
}

func (s *TicketService) transition(ctx context.Context, actor audit.Actor, id uuid.UUID, act action, next model.TicketStatus, allow authorizer, opts []MutateOption) (*model.Ticket, error) {
	return s.mutate(ctx, actor, id, act, allow, opts, func(t *model.Ticket) (map[string]any, error) {
		prev := t.Status
		if err := t.Transition(next, s.Now()); err != nil {
			return nil, err
		}
		return map[string]any{"ticket_id": t.ID, "previous_status": prev, "new_status": next}, nil
	})
}

// mutate applies change to a copy of the stored ticket and persists it. When
// the new status releases the seat the event gets it back in the same
// transaction.
func (s *TicketService) mutate(ctx context.Context, actor audit.Actor, id uuid.UUID, act action, allow authorizer, opts []MutateOption,
	change func(t *model.Ticket) (map[string]any, error)) (*model.Ticket, error) {
	cfg := mutation(opts)
	var (
		fresh   *model.Ticket
		ev      *model.Event
		details map[string]any
	)
	err := s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) error {
		ev = nil
		cur, err := tx.Tickets().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(cur); err != nil {
			return err
		}
		if err := allow(ctx, tx, actor, cur); err != nil {
			return err
		}
		work := *cur
		d, err := change(&work)
		if err != nil {
			return err
		}
		if fresh, err = tx.Tickets().Update(ctx, id, model.PatchFrom(&work), cur.Version); err != nil {
			return err
		}
		details = d
		if work.Status == cur.Status || !work.Status.ReleasesInventory() {
			return nil
		}
		event, err := tx.Events().FindByID(ctx, cur.EventID)
		if err != nil {
			return err
		}
		patch, err := adjustInventory(event, 1)
		if err != nil {
			return err
		}
		ev, err = tx.Events().Update(ctx, event.ID, patch, event.Version)
		if err == nil {
			details["available_tickets"] = ev.AvailableTickets
		}
		return err
	})
	if err != nil {
		s.Logger.Warn("ticket mutation failed", "action", act.done, "ticket_id", id, "error", err)
		s.Audit.Failure(ctx, actor, act.failed, err, map[string]any{"ticket_id": id})
		return nil, err
	}

	s.set(cache.TicketKey(id), *fresh)
	s.evict(cache.CustomerTicketsKey(fresh.CustomerID), cache.EventTicketsKey(fresh.EventID))
	if ev != nil {
		s.refreshEvent(ev)
	}
	s.Audit.Record(ctx, actor, act.done, details)
	return fresh, nil
}
