package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// EventRepo persists the 'events' table, including the inventory counter
// that ticket issuance decrements.
type EventRepo struct{ t *sqlTx }

const eventColumns = `id, organizer_id, title, description, category, status, starts_at, ends_at,
	venue_name, address, city, country, capacity, available_tickets, base_price, created_at, updated_at, version`

func scanEvent(s scanner) (*model.Event, error) {
	var (
		e   model.Event
		upd sql.NullTime
	)
	if err := s.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Category, &e.Status, &e.StartsAt, &e.EndsAt,
		&e.VenueName, &e.Address, &e.City, &e.Country, &e.Capacity, &e.AvailableTickets, &e.BasePrice,
		&e.CreatedAt, &upd, &e.Version); err != nil {
		return nil, err
	}
	e.UpdatedAt = timePtr(upd)
	return &e, nil
}

func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.t.exec(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.OrganizerID, e.Title, e.Description, e.Category, e.Status, e.StartsAt, e.EndsAt,
		e.VenueName, e.Address, e.City, e.Country, e.Capacity, e.AvailableTickets, e.BasePrice,
		e.CreatedAt, nullTime(e.UpdatedAt), e.Version)
	return duplicate(err, "Event", e.ID.String())
}

func (r *EventRepo) Update(ctx context.Context, id uuid.UUID, p model.EventPatch, expected int64) (*model.Event, error) {
	var a assignments
	if p.Title != nil {
		a.set("title", *p.Title)
	}
	if p.Description != nil {
		a.set("description", *p.Description)
	}
	if p.Status != nil {
		a.set("status", *p.Status)
	}
	if p.StartsAt != nil {
		a.set("starts_at", *p.StartsAt)
	}
	if p.EndsAt != nil {
		a.set("ends_at", *p.EndsAt)
	}
	if p.AvailableTickets != nil {
		a.set("available_tickets", *p.AvailableTickets)
	}
	if p.BasePrice != nil {
		a.set("base_price", *p.BasePrice)
	}
	err := r.t.updateVersioned(ctx, "events", id, expected, a, func() (model.Record, error) {
		return r.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.delete(ctx, "events", id)
}

func (r *EventRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	e, err := scanEvent(r.t.queryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "Event", id)
	}
	return e, nil
}

func (r *EventRepo) FindByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]model.Event, error) {
	rows, err := r.t.query(ctx, `SELECT `+eventColumns+` FROM events WHERE organizer_id = ? ORDER BY starts_at`, organizerID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanEvent)
}

func (r *EventRepo) FindAll(ctx context.Context, page Page) ([]model.Event, error) {
	page = page.Normalize()
	rows, err := r.t.query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanEvent)
}
