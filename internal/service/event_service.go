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

const maxTitleLength = 200

// EventService manages events and the number of tickets still for sale.
type EventService struct {
	base
}

func NewEventService(d Deps) *EventService {
	return &EventService{base: newBase(d)}
}

type CreateEventInput struct {
	OrganizerID uuid.UUID
	Title       string
	Description string
	Category    string
	StartsAt    time.Time
	EndsAt      time.Time
	VenueName   string
	Address     string
	City        string
	Country     string
	Capacity    int64
	BasePrice   decimal.Decimal
}

type UpdateEventInput struct {
	Title       *string
	Description *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	BasePrice   *decimal.Decimal
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Validation("title", "is required")
	}
	if len(title) > maxTitleLength {
		return apperr.Validation("title", "must be at most %d characters", maxTitleLength)
	}
	return nil
}

func validateSchedule(starts, ends time.Time) error {
	if !ends.After(starts) {
		return apperr.Validation("ends_at", "must be after starts_at")
	}
	return nil
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return apperr.Validation("base_price", "cannot be negative")
	}
	return nil
}

// Create opens a DRAFT event with its whole capacity available and counts it
// against the organizer in the same transaction.
func (s *EventService) Create(ctx context.Context, actor audit.Actor, in CreateEventInput) (*model.Event, error) {
	fail := func(err error) (*model.Event, error) {
		s.Audit.Failure(ctx, actor, "EVENT_CREATION_FAILED", err, map[string]any{"organizer_id": in.OrganizerID, "title": in.Title})
		return nil, err
	}
	if err := validateTitle(in.Title); err != nil {
		return fail(err)
	}
	if in.Capacity <= 0 {
		return fail(apperr.Validation("capacity", "must be positive"))
	}
	if err := validateSchedule(in.StartsAt, in.EndsAt); err != nil {
		return fail(err)
	}
	if err := validatePrice(in.BasePrice); err != nil {
		return fail(err)
	}

	ev := &model.Event{
		ID:               uuid.New(),
		OrganizerID:      in.OrganizerID,
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Category:         model.ParseEventCategory(in.Category),
		Status:           model.EventDraft,
		StartsAt:         in.StartsAt.UTC(),
		EndsAt:           in.EndsAt.UTC(),
		VenueName:        in.VenueName,
		Address:          in.Address,
		City:             in.City,
		Country:          in.Country,
		Capacity:         in.Capacity,
		AvailableTickets: in.Capacity,
		BasePrice:        in.BasePrice,
		CreatedAt:        s.Now(),
	}

	var org *model.Organizer
	err := s.Tx.WithRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Organizers().FindByID(ctx, in.OrganizerID)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, "Organizer", cur.UserID); err != nil {
			return err
		}
		if err := tx.Events().Create(ctx, ev); err != nil {
			return err
		}
		total := cur.TotalEvents + 1
		org, err = tx.Organizers().Update(ctx, cur.ID, model.OrganizerPatch{TotalEvents: &total}, cur.Version)
		return err
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.EventKey(ev.ID), *ev)
	s.set(cache.OrganizerKey(org.ID), *org)
	s.evict(cache.OrganizerEventsKey(org.ID))
	s.evictPrefix(cache.EventPagesPrefix, cache.OrganizerPagesPrefix)
	s.Audit.Record(ctx, actor, "EVENT_CREATED", map[string]any{
		"event_id":     ev.ID,
		"organizer_id": org.ID,
		"title":        ev.Title,
		"capacity":     ev.Capacity,
	})
	return ev, nil
}

// Update edits the descriptive fields of an event that has not been
// published yet.
func (s *EventService) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateEventInput, opts ...MutateOption) (*model.Event, error) {
	var err error
	if in.Title != nil {
		err = validateTitle(*in.Title)
	}
	if err == nil && in.BasePrice != nil {
		err = validatePrice(*in.BasePrice)
	}
	if err != nil {
		s.Audit.Failure(ctx, actor, eventUpdated.failed, err, map[string]any{"event_id": id})
		return nil, err
	}
	return s.mutate(ctx, actor, id, eventUpdated, opts, func(cur *model.Event) (model.EventPatch, map[string]any, error) {
		if !cur.Status.CanBeModified() {
			return model.EventPatch{}, nil, apperr.Validation("status", "event in status %s can no longer be edited", cur.Status)
		}
		starts, ends := cur.StartsAt, cur.EndsAt
		if in.StartsAt != nil {
			starts = in.StartsAt.UTC()
		}
		if in.EndsAt != nil {
			ends = in.EndsAt.UTC()
		}
		if err := validateSchedule(starts, ends); err != nil {
			return model.EventPatch{}, nil, err
		}
		return model.EventPatch{
			Title:       in.Title,
			Description: in.Description,
			StartsAt:    &starts,
			EndsAt:      &ends,
			BasePrice:   in.BasePrice,
		}, map[string]any{"event_id": id}, nil
	})
}

func (s *EventService) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	return fetch(ctx, &s.base, cache.EventKey(id), func(ctx context.Context, tx repository.Tx) (*model.Event, error) {
		return tx.Events().FindByID(ctx, id)
	})
}

func (s *EventService) List(ctx context.Context, page repository.Page) ([]model.Event, error) {
	page = page.Normalize()
	return fetchList(ctx, &s.base, cache.EventPageKey(page.Number, page.Size), func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		return tx.Events().FindAll(ctx, page)
	})
}

func (s *EventService) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]model.Event, error) {
	return fetchList(ctx, &s.base, cache.OrganizerEventsKey(organizerID), func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		return tx.Events().FindByOrganizer(ctx, organizerID)
	})
}

// UpdateStatus moves the event along its lifecycle. SOLD_OUT is only
// reachable with no tickets left and is left only when some are back.
func (s *EventService) UpdateStatus(ctx context.Context, actor audit.Actor, id uuid.UUID, next model.EventStatus, opts ...MutateOption) (*model.Event, error) {
	if !next.Valid() {
		err := apperr.Validation("status", "unknown status %q", next)
		s.Audit.Failure(ctx, actor, eventStatusUpdated.failed, err, map[string]any{"event_id": id, "status": next})
		return nil, err
	}
	return s.mutate(ctx, actor, id, eventStatusUpdated, opts, func(cur *model.Event) (model.EventPatch, map[string]any, error) {
		if !cur.Status.CanTransitionTo(next) {
			return model.EventPatch{}, nil, &apperr.InvalidStateTransitionError{Resource: "Event", From: string(cur.Status), To: string(next)}
		}
		switch {
		case next == model.EventSoldOut && cur.AvailableTickets > 0:
			return model.EventPatch{}, nil, apperr.Validation("status", "%d tickets are still available", cur.AvailableTickets)
		case cur.Status == model.EventSoldOut && next == model.EventPublished && cur.AvailableTickets == 0:
			return model.EventPatch{}, nil, apperr.Validation("status", "no tickets are available")
		}
		return model.EventPatch{Status: &next}, map[string]any{
			"event_id":        id,
			"previous_status": cur.Status,
			"new_status":      next,
		}, nil
	})
}

// AdjustInventory adds delta (which may be negative) to the available
// tickets, keeping them within [0, capacity].
func (s *EventService) AdjustInventory(ctx context.Context, actor audit.Actor, id uuid.UUID, delta int64, opts ...MutateOption) (*model.Event, error) {
	return s.mutate(ctx, actor, id, inventoryAdjusted, opts, func(cur *model.Event) (model.EventPatch, map[string]any, error) {
		patch, err := adjustInventory(cur, delta)
		if err != nil {
			return model.EventPatch{}, nil, err
		}
		return patch, map[string]any{
			"event_id":           id,
			"previous_available": cur.AvailableTickets,
			"new_available":      *patch.AvailableTickets,
			"inventory_delta":    delta,
			"capacity":           cur.Capacity,
		}, nil
	})
}

// adjustInventory computes the patch that moves ev's available tickets by
// delta. The event flips to SOLD_OUT when the last ticket goes and back to
// PUBLISHED when a ticket returns to a sold-out event.
func adjustInventory(ev *model.Event, delta int64) (model.EventPatch, error) {
	next := ev.AvailableTickets + delta
	if err := model.ValidateInventory(next, ev.Capacity); err != nil {
		return model.EventPatch{}, err
	}
	patch := model.EventPatch{AvailableTickets: &next}
	status := ev.Status
	switch {
	case next == 0 && ev.Status.CanTransitionTo(model.EventSoldOut):
		status = model.EventSoldOut
	case next > 0 && ev.Status == model.EventSoldOut:
		status = model.EventPublished
	}
	if status != ev.Status {
		patch.Status = &status
	}
	return patch, nil
}

// eventOwner checks that actor runs the organizer behind ev.
func eventOwner(ctx context.Context, tx repository.Tx, actor audit.Actor, ev *model.Event) error {
	if isPrivileged(actor) {
		return nil
	}
	org, err := tx.Organizers().FindByID(ctx, ev.OrganizerID)
	if err != nil {
		return err
	}
	return requireOwner(actor, "Event", org.UserID)
}

func (s *EventService) mutate(ctx context.Context, actor audit.Actor, id uuid.UUID, act action, opts []MutateOption,
	change func(cur *model.Event) (model.EventPatch, map[string]any, error)) (*model.Event, error) {
	cfg := mutation(opts)
	var (
		fresh   *model.Event
		details map[string]any
	)
	err := s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Events().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(cur); err != nil {
			return err
		}
		if err := eventOwner(ctx, tx, actor, cur); err != nil {
			return err
		}
		patch, d, err := change(cur)
		if err != nil {
			return err
		}
		fresh, err = tx.Events().Update(ctx, id, patch, cur.Version)
		details = d
		return err
	})
	if err != nil {
		s.Logger.Warn("event mutation failed", "action", act.done, "event_id", id, "error", err)
		s.Audit.Failure(ctx, actor, act.failed, err, map[string]any{"event_id": id})
		return nil, err
	}

	s.refreshEvent(fresh)
	s.Audit.Record(ctx, actor, act.done, details)
	return fresh, nil
}

func (b *base) refreshEvent(ev *model.Event) {
	b.set(cache.EventKey(ev.ID), *ev)
	b.evict(cache.OrganizerEventsKey(ev.OrganizerID))
	b.evictPrefix(cache.EventPagesPrefix)
}
