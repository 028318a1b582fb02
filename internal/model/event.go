package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventCategory string

const (
	CategoryConcert    EventCategory = "CONCERT"
	CategoryConference EventCategory = "CONFERENCE"
	CategorySports     EventCategory = "SPORTS"
	CategoryTheater    EventCategory = "THEATER"
	CategoryWorkshop   EventCategory = "WORKSHOP"
	CategoryFestival   EventCategory = "FESTIVAL"
	CategoryExhibition EventCategory = "EXHIBITION"
	CategoryOther      EventCategory = "OTHER"
)

// ParseEventCategory maps unknown input to CategoryOther.
func ParseEventCategory(s string) EventCategory {
	c := EventCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryConcert, CategoryConference, CategorySports, CategoryTheater,
		CategoryWorkshop, CategoryFestival, CategoryExhibition:
		return c
	}
	return CategoryOther
}

type EventStatus string

const (
	EventDraft           EventStatus = "DRAFT"
	EventPendingApproval EventStatus = "PENDING_APPROVAL"
	EventPublished       EventStatus = "PUBLISHED"
	EventOngoing         EventStatus = "ONGOING"
	EventCompleted       EventStatus = "COMPLETED"
	EventCancelled       EventStatus = "CANCELLED"
	EventPostponed       EventStatus = "POSTPONED"
	EventSoldOut         EventStatus = "SOLD_OUT"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventDraft:           {EventPendingApproval, EventCancelled},
	EventPendingApproval: {EventDraft, EventPublished, EventCancelled},
	EventPublished:       {EventOngoing, EventPostponed, EventSoldOut, EventCancelled},
	EventOngoing:         {EventCompleted, EventSoldOut, EventCancelled},
	EventSoldOut:         {EventPublished, EventOngoing, EventCompleted, EventPostponed, EventCancelled},
	EventPostponed:       {EventPublished, EventCancelled},
}

func (s EventStatus) Valid() bool {
	if _, ok := eventTransitions[s]; ok {
		return true
	}
	return s == EventCompleted || s == EventCancelled
}

// IsActive reports whether the event is running its sale.
func (s EventStatus) IsActive() bool { return s == EventPublished || s == EventOngoing }

// CanBeModified reports whether the event details may still be edited.
func (s EventStatus) CanBeModified() bool { return s == EventDraft || s == EventPendingApproval }

// AcceptsSales reports whether new tickets may be issued.
func (s EventStatus) AcceptsSales() bool { return s.IsActive() }

func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, t := range eventTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Event is a ticketed happening owned by an organizer.
type Event struct {
	ID               uuid.UUID       `json:"id"`
	OrganizerID      uuid.UUID       `json:"organizer_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         EventCategory   `json:"category"`
	Status           EventStatus     `json:"status"`
	StartsAt         time.Time       `json:"starts_at"`
	EndsAt           time.Time       `json:"ends_at"`
	VenueName        string          `json:"venue_name"`
	Address          string          `json:"address"`
	City             string          `json:"city"`
	Country          string          `json:"country"`
	Capacity         int64           `json:"capacity"`
	AvailableTickets int64           `json:"available_tickets"`
	BasePrice        decimal.Decimal `json:"base_price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
	Versioned
}

func (e *Event) Resource() string    { return "Event" }
func (e *Event) RecordID() uuid.UUID { return e.ID }

type EventPatch struct {
	Title            *string
	Description      *string
	Status           *EventStatus
	StartsAt         *time.Time
	EndsAt           *time.Time
	AvailableTickets *int64
	BasePrice        *decimal.Decimal
}

func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.StartsAt != nil {
		e.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		e.EndsAt = *p.EndsAt
	}
	if p.AvailableTickets != nil {
		e.AvailableTickets = *p.AvailableTickets
	}
	if p.BasePrice != nil {
		e.BasePrice = *p.BasePrice
	}
}
