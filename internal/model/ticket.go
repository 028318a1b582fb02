package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

type TicketStatus string

const (
	TicketConfirmed      TicketStatus = "CONFIRMED"
	TicketPendingPayment TicketStatus = "PENDING_PAYMENT"
	TicketCancelled      TicketStatus = "CANCELLED"
	TicketRefunded       TicketStatus = "REFUNDED"
	TicketTransferred    TicketStatus = "TRANSFERRED"
	TicketExpired        TicketStatus = "EXPIRED"
	TicketUsed           TicketStatus = "USED"
	TicketInvalid        TicketStatus = "INVALID"
)

// AllTicketStatuses lists every status in declaration order.
var AllTicketStatuses = []TicketStatus{
	TicketConfirmed, TicketPendingPayment, TicketCancelled, TicketRefunded,
	TicketTransferred, TicketExpired, TicketUsed, TicketInvalid,
}

// Statuses absent from this table have no outgoing transitions.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketConfirmed:      {TicketTransferred, TicketCancelled, TicketRefunded, TicketUsed, TicketExpired},
	TicketPendingPayment: {TicketConfirmed, TicketCancelled, TicketRefunded, TicketExpired},
}

func (s TicketStatus) Valid() bool {
	for _, v := range AllTicketStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsActive() bool { return s == TicketConfirmed || s == TicketTransferred }

func (s TicketStatus) CanBeTransferred() bool { return s == TicketConfirmed }

func (s TicketStatus) CanBeRefunded() bool { return s == TicketConfirmed || s == TicketPendingPayment }

func (s TicketStatus) CanBeCancelled() bool { return s == TicketConfirmed || s == TicketPendingPayment }

func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketCancelled, TicketRefunded, TicketExpired, TicketUsed, TicketInvalid:
		return true
	}
	return false
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, t := range ticketTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ReleasesInventory reports whether entering s hands the seat back to the event.
func (s TicketStatus) ReleasesInventory() bool {
	return s == TicketCancelled || s == TicketRefunded
}

// Ticket is a single admission sold to a customer.
type Ticket struct {
	ID               uuid.UUID        `json:"id"`
	TicketNumber     string           `json:"ticket_number"`
	EventID          uuid.UUID        `json:"event_id"`
	CustomerID       uuid.UUID        `json:"customer_id"`
	Price            decimal.Decimal  `json:"price"`
	Status           TicketStatus     `json:"status"`
	PurchaseDate     time.Time        `json:"purchase_date"`
	ValidUntil       time.Time        `json:"valid_until"`
	SeatNumber       *string          `json:"seat_number,omitempty"`
	Section          *string          `json:"section,omitempty"`
	Row              *string          `json:"row,omitempty"`
	TransferCount    int64            `json:"transfer_count"`
	LastTransferDate *time.Time       `json:"last_transfer_date,omitempty"`
	RefundAmount     *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundDate       *time.Time       `json:"refund_date,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
	Versioned
}

func (t *Ticket) Resource() string    { return "Ticket" }
func (t *Ticket) RecordID() uuid.UUID { return t.ID }

// Transition moves the ticket to next, stamping the fields that go with the
// move. It leaves the ticket untouched when the move is illegal.
func (t *Ticket) Transition(next TicketStatus, at time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return &apperr.InvalidStateTransitionError{Resource: "Ticket", From: string(t.Status), To: string(next)}
	}
	if next == TicketTransferred {
		t.TransferCount++
		ts := at
		t.LastTransferDate = &ts
	}
	t.Status = next
	return nil
}

// Refund transitions to REFUNDED and records the amount paid back.
func (t *Ticket) Refund(amount decimal.Decimal, at time.Time) error {
	if amount.IsNegative() {
		return apperr.Validation("refund_amount", "must not be negative")
	}
	if amount.GreaterThan(t.Price) {
		return apperr.Validation("refund_amount", "%s exceeds ticket price %s", amount, t.Price)
	}
	if err := t.Transition(TicketRefunded, at); err != nil {
		return err
	}
	amt := amount
	ts := at
	t.RefundAmount = &amt
	t.RefundDate = &ts
	return nil
}

// TicketPatch is the persisted part of a ticket mutation.
type TicketPatch struct {
	CustomerID       *uuid.UUID
	Status           *TicketStatus
	TransferCount    *int64
	LastTransferDate *time.Time
	RefundAmount     *decimal.Decimal
	RefundDate       *time.Time
	Notes            *string
}

// PatchFrom captures the mutable fields of t.
func PatchFrom(t *Ticket) TicketPatch {
	return TicketPatch{
		CustomerID:       &t.CustomerID,
		Status:           &t.Status,
		TransferCount:    &t.TransferCount,
		LastTransferDate: t.LastTransferDate,
		RefundAmount:     t.RefundAmount,
		RefundDate:       t.RefundDate,
		Notes:            t.Notes,
	}
}

func (p TicketPatch) Apply(t *Ticket) {
	if p.CustomerID != nil {
		t.CustomerID = *p.CustomerID
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.TransferCount != nil {
		t.TransferCount = *p.TransferCount
	}
	if p.LastTransferDate != nil {
		ts := *p.LastTransferDate
		t.LastTransferDate = &ts
	}
	if p.RefundAmount != nil {
		amt := *p.RefundAmount
		t.RefundAmount = &amt
	}
	if p.RefundDate != nil {
		ts := *p.RefundDate
		t.RefundDate = &ts
	}
	if p.Notes != nil {
		n := *p.Notes
		t.Notes = &n
	}
}
