package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

type userRepo struct{ tx *Tx }

func (r userRepo) checkUnique(u *model.User) error {
	for id, other := range r.tx.work.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return &apperr.DuplicateResourceError{Resource: "User", Identifier: u.Email}
		}
		if other.Username == u.Username {
			return &apperr.DuplicateResourceError{Resource: "User", Identifier: u.Username}
		}
	}
	return nil
}

func (r userRepo) Create(_ context.Context, u *model.User) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if _, exists := r.tx.work.users[u.ID]; exists {
		return &apperr.DuplicateResourceError{Resource: "User", Identifier: u.ID.String()}
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	r.tx.work.users[u.ID] = *u
	return nil
}

func (r userRepo) Update(_ context.Context, id uuid.UUID, patch model.UserPatch, expected int64) (*model.User, error) {
	return update(r.tx, r.tx.work.users, id, expected, "User", func(u *model.User) error {
		patch.Apply(u)
		u.UpdatedAt = stamp(r.tx.now())
		return r.checkUnique(u)
	})
}

// Delete cascades to the user's customer and organizer profiles like the
// ON DELETE CASCADE keys of the SQL schema. Profiles still referenced by
// tickets or events block the delete.
func (r userRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.tx.writable(); err != nil {
		return false, err
	}
	if _, ok := r.tx.work.users[id]; !ok {
		return false, nil
	}
	for cid, c := range r.tx.work.customers {
		if c.UserID != id {
			continue
		}
		if _, err := (customerRepo{r.tx}).Delete(ctx, cid); err != nil {
			return false, err
		}
	}
	for oid, o := range r.tx.work.organizers {
		if o.UserID != id {
			continue
		}
		if _, err := (organizerRepo{r.tx}).Delete(ctx, oid); err != nil {
			return false, err
		}
	}
	delete(r.tx.work.users, id)
	return true, nil
}

func (r userRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return find(r.tx.work.users, id, "User")
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.tx.work.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("User", email)
}

func (r userRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.tx.work.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("User", username)
}

func (r userRepo) FindAll(_ context.Context, page repository.Page) ([]model.User, error) {
	all := collect(r.tx.work.users, nil, func(a, b model.User) bool {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return paginate(all, page), nil
}

type customerRepo struct{ tx *Tx }

func (r customerRepo) Create(_ context.Context, c *model.Customer) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	for _, other := range r.tx.work.customers {
		if other.ID == c.ID || other.UserID == c.UserID {
			return &apperr.DuplicateResourceError{Resource: "Customer", Identifier: c.UserID.String()}
		}
	}
	r.tx.work.customers[c.ID] = *c
	return nil
}

func (r customerRepo) Update(_ context.Context, id uuid.UUID, patch model.CustomerPatch, expected int64) (*model.Customer, error) {
	return update(r.tx, r.tx.work.customers, id, expected, "Customer", func(c *model.Customer) error {
		patch.Apply(c)
		c.UpdatedAt = stamp(r.tx.now())
		return nil
	})
}

func (r customerRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	for _, t := range r.tx.work.tickets {
		if t.CustomerID == id {
			return false, fmt.Errorf("customer %s: %w by tickets", id, ErrReferenced)
		}
	}
	return remove(r.tx, r.tx.work.customers, id)
}

func (r customerRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	return find(r.tx.work.customers, id, "Customer")
}

func (r customerRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*model.Customer, error) {
	for _, c := range r.tx.work.customers {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("Customer", userID)
}

func (r customerRepo) FindAll(_ context.Context, page repository.Page) ([]model.Customer, error) {
	all := collect(r.tx.work.customers, nil, func(a, b model.Customer) bool {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return paginate(all, page), nil
}

type organizerRepo struct{ tx *Tx }

func (r organizerRepo) Create(_ context.Context, o *model.Organizer) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	for _, other := range r.tx.work.organizers {
		if other.ID == o.ID || other.UserID == o.UserID {
			return &apperr.DuplicateResourceError{Resource: "Organizer", Identifier: o.UserID.String()}
		}
	}
	r.tx.work.organizers[o.ID] = *o
	return nil
}

func (r organizerRepo) Update(_ context.Context, id uuid.UUID, patch model.OrganizerPatch, expected int64) (*model.Organizer, error) {
	return update(r.tx, r.tx.work.organizers, id, expected, "Organizer", func(o *model.Organizer) error {
		patch.Apply(o)
		o.UpdatedAt = stamp(r.tx.now())
		return nil
	})
}

func (r organizerRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	for _, e := range r.tx.work.events {
		if e.OrganizerID == id {
			return false, fmt.Errorf("organizer %s: %w by events", id, ErrReferenced)
		}
	}
	return remove(r.tx, r.tx.work.organizers, id)
}

func (r organizerRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Organizer, error) {
	return find(r.tx.work.organizers, id, "Organizer")
}

func (r organizerRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*model.Organizer, error) {
	for _, o := range r.tx.work.organizers {
		if o.UserID == userID {
			return &o, nil
		}
	}
	return nil, apperr.NotFound("Organizer", userID)
}

func (r organizerRepo) FindAll(_ context.Context, page repository.Page) ([]model.Organizer, error) {
	all := collect(r.tx.work.organizers, nil, func(a, b model.Organizer) bool {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return paginate(all, page), nil
}

type eventRepo struct{ tx *Tx }

func (r eventRepo) Create(_ context.Context, e *model.Event) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if _, exists := r.tx.work.events[e.ID]; exists {
		return &apperr.DuplicateResourceError{Resource: "Event", Identifier: e.ID.String()}
	}
	r.tx.work.events[e.ID] = *e
	return nil
}

func (r eventRepo) Update(_ context.Context, id uuid.UUID, patch model.EventPatch, expected int64) (*model.Event, error) {
	return update(r.tx, r.tx.work.events, id, expected, "Event", func(e *model.Event) error {
		patch.Apply(e)
		e.UpdatedAt = stamp(r.tx.now())
		return nil
	})
}

func (r eventRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	for _, t := range r.tx.work.tickets {
		if t.EventID == id {
			return false, fmt.Errorf("event %s: %w by tickets", id, ErrReferenced)
		}
	}
	return remove(r.tx, r.tx.work.events, id)
}

func (r eventRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	return find(r.tx.work.events, id, "Event")
}

func (r eventRepo) FindByOrganizer(_ context.Context, organizerID uuid.UUID) ([]model.Event, error) {
	return collect(r.tx.work.events,
		func(e model.Event) bool { return e.OrganizerID == organizerID },
		func(a, b model.Event) bool { return a.StartsAt.Before(b.StartsAt) }), nil
}

func (r eventRepo) FindAll(_ context.Context, page repository.Page) ([]model.Event, error) {
	all := collect(r.tx.work.events, nil, func(a, b model.Event) bool {
		return byCreated(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return paginate(all, page), nil
}

type ticketRepo struct{ tx *Tx }

func (r ticketRepo) Create(_ context.Context, t *model.Ticket) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	for _, other := range r.tx.work.tickets {
		if other.ID == t.ID || other.TicketNumber == t.TicketNumber {
			return &apperr.DuplicateResourceError{Resource: "Ticket", Identifier: t.TicketNumber}
		}
	}
	r.tx.work.tickets[t.ID] = *t
	return nil
}

func (r ticketRepo) Update(_ context.Context, id uuid.UUID, patch model.TicketPatch, expected int64) (*model.Ticket, error) {
	return update(r.tx, r.tx.work.tickets, id, expected, "Ticket", func(t *model.Ticket) error {
		patch.Apply(t)
		return nil
	})
}

func (r ticketRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	return remove(r.tx, r.tx.work.tickets, id)
}

func (r ticketRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Ticket, error) {
	return find(r.tx.work.tickets, id, "Ticket")
}

func (r ticketRepo) FindByTicketNumber(_ context.Context, number string) (*model.Ticket, error) {
	for _, t := range r.tx.work.tickets {
		if t.TicketNumber == number {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("Ticket", number)
}

func byPurchase(a, b model.Ticket) bool { return byCreated(a.PurchaseDate, b.PurchaseDate, a.ID, b.ID) }

func (r ticketRepo) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]model.Ticket, error) {
	return collect(r.tx.work.tickets, func(t model.Ticket) bool { return t.CustomerID == customerID }, byPurchase), nil
}

func (r ticketRepo) FindByEvent(_ context.Context, eventID uuid.UUID) ([]model.Ticket, error) {
	return collect(r.tx.work.tickets, func(t model.Ticket) bool { return t.EventID == eventID }, byPurchase), nil
}

func (r ticketRepo) FindAll(_ context.Context, page repository.Page) ([]model.Ticket, error) {
	return paginate(collect(r.tx.work.tickets, nil, byPurchase), page), nil
}
