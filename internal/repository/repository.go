// Package repository defines the persistence boundary of the ticketing
// core and its SQL implementation.
//
// Repositories are only reachable through a Tx, so every read and write
// happens inside a unit of work opened by the transaction manager.
// Lookups of a missing record return an *apperr.NotFoundError; unique
// key violations surface as *apperr.DuplicateResourceError; an update
// whose expected version is stale returns *apperr.ConcurrentModificationError
// and leaves the row untouched.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// Page selects a 1-based page of a listing.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	// Update applies patch when the stored version equals expected and
	// returns the record with its version bumped.
	Update(ctx context.Context, id uuid.UUID, patch model.UserPatch, expected int64) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindAll(ctx context.Context, page Page) ([]model.User, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) error
	Update(ctx context.Context, id uuid.UUID, patch model.CustomerPatch, expected int64) (*model.Customer, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Customer, error)
	FindAll(ctx context.Context, page Page) ([]model.Customer, error)
}

type OrganizerRepository interface {
	Create(ctx context.Context, o *model.Organizer) error
	Update(ctx context.Context, id uuid.UUID, patch model.OrganizerPatch, expected int64) (*model.Organizer, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organizer, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Organizer, error)
	FindAll(ctx context.Context, page Page) ([]model.Organizer, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, id uuid.UUID, patch model.EventPatch, expected int64) (*model.Event, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	FindByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]model.Event, error)
	FindAll(ctx context.Context, page Page) ([]model.Event, error)
}

type TicketRepository interface {
	Create(ctx context.Context, t *model.Ticket) error
	Update(ctx context.Context, id uuid.UUID, patch model.TicketPatch, expected int64) (*model.Ticket, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	FindByTicketNumber(ctx context.Context, number string) (*model.Ticket, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Ticket, error)
	FindByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Ticket, error)
	FindAll(ctx context.Context, page Page) ([]model.Ticket, error)
}

// Tx is one open unit of work.
type Tx interface {
	Users() UserRepository
	Customers() CustomerRepository
	Organizers() OrganizerRepository
	Events() EventRepository
	Tickets() TicketRepository

	Commit() error
	Rollback() error
}

// Session pins one connection for the duration of a unit of work so that
// connection state such as read-only mode can be set and restored.
type Session interface {
	SetReadOnly(ctx context.Context, readOnly bool) error
	Begin(ctx context.Context) (Tx, error)
	// Release hands the connection back. A session still marked read-only
	// is discarded instead of being reused.
	Release() error
}

// Store hands out sessions.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
}
