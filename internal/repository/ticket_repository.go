package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// TicketRepo persists the 'tickets' table. ticket_number is unique.
type TicketRepo struct{ t *sqlTx }

const ticketColumns = `id, ticket_number, event_id, customer_id, price, status, purchase_date, valid_until,
	seat_number, section, seat_row, transfer_count, last_transfer_date, refund_amount, refund_date, notes, version`

func scanTicket(s scanner) (*model.Ticket, error) {
	var (
		t                        model.Ticket
		seat, section, row, note sql.NullString
		lastTransfer, refundDate sql.NullTime
		refund                   decimal.NullDecimal
	)
	if err := s.Scan(&t.ID, &t.TicketNumber, &t.EventID, &t.CustomerID, &t.Price, &t.Status, &t.PurchaseDate, &t.ValidUntil,
		&seat, &section, &row, &t.TransferCount, &lastTransfer, &refund, &refundDate, &note, &t.Version); err != nil {
		return nil, err
	}
	t.SeatNumber = stringPtr(seat)
	t.Section = stringPtr(section)
	t.Row = stringPtr(row)
	t.LastTransferDate = timePtr(lastTransfer)
	if refund.Valid {
		amt := refund.Decimal
		t.RefundAmount = &amt
	}
	t.RefundDate = timePtr(refundDate)
	t.Notes = stringPtr(note)
	return &t, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	_, err := r.t.exec(ctx, `INSERT INTO tickets (`+ticketColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TicketNumber, t.EventID, t.CustomerID, t.Price, t.Status, t.PurchaseDate, t.ValidUntil,
		nullString(t.SeatNumber), nullString(t.Section), nullString(t.Row), t.TransferCount,
		nullTime(t.LastTransferDate), nullDecimal(t.RefundAmount), nullTime(t.RefundDate), nullString(t.Notes), t.Version)
	return duplicate(err, "Ticket", t.TicketNumber)
}

func (r *TicketRepo) Update(ctx context.Context, id uuid.UUID, p model.TicketPatch, expected int64) (*model.Ticket, error) {
	var a assignments
	if p.CustomerID != nil {
		a.set("customer_id", *p.CustomerID)
	}
	if p.Status != nil {
		a.set("status", *p.Status)
	}
	if p.TransferCount != nil {
		a.set("transfer_count", *p.TransferCount)
	}
	if p.LastTransferDate != nil {
		a.set("last_transfer_date", *p.LastTransferDate)
	}
	if p.RefundAmount != nil {
		a.set("refund_amount", *p.RefundAmount)
	}
	if p.RefundDate != nil {
		a.set("refund_date", *p.RefundDate)
	}
	if p.Notes != nil {
		a.set("notes", *p.Notes)
	}
	err := r.t.updateVersioned(ctx, "tickets", id, expected, a, func() (model.Record, error) {
		return r.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.delete(ctx, "tickets", id)
}

func (r *TicketRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	t, err := scanTicket(r.t.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "Ticket", id)
	}
	return t, nil
}

func (r *TicketRepo) FindByTicketNumber(ctx context.Context, number string) (*model.Ticket, error) {
	t, err := scanTicket(r.t.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = ?`, number))
	if err != nil {
		return nil, notFound(err, "Ticket", number)
	}
	return t, nil
}

func (r *TicketRepo) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Ticket, error) {
	rows, err := r.t.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE customer_id = ? ORDER BY purchase_date, id`, customerID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanTicket)
}

func (r *TicketRepo) FindByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Ticket, error) {
	rows, err := r.t.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY purchase_date, id`, eventID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanTicket)
}

func (r *TicketRepo) FindAll(ctx context.Context, page Page) ([]model.Ticket, error) {
	page = page.Normalize()
	rows, err := r.t.query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY purchase_date, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanTicket)
}
