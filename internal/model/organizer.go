package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type VerificationStatus string

const (
	VerificationPending       VerificationStatus = "PENDING"
	VerificationApproved      VerificationStatus = "APPROVED"
	VerificationRejected      VerificationStatus = "REJECTED"
	VerificationNeedsMoreInfo VerificationStatus = "NEEDS_MORE_INFO"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected, VerificationNeedsMoreInfo:
		return true
	}
	return false
}

// Organizer is the seller profile attached to an ORGANIZER user.
// Rating is nil until the first review is recorded.
type Organizer struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	OrganizationName   string             `json:"organization_name"`
	ContactEmail       *string            `json:"contact_email,omitempty"`
	TaxID              *string            `json:"tax_id,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Rating             *decimal.Decimal   `json:"rating,omitempty"`
	TotalEvents        int64              `json:"total_events"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          *time.Time         `json:"updated_at,omitempty"`
	Versioned
}

func (o *Organizer) Resource() string    { return "Organizer" }
func (o *Organizer) RecordID() uuid.UUID { return o.ID }

type OrganizerPatch struct {
	OrganizationName   *string
	ContactEmail       *string
	TaxID              *string
	VerificationStatus *VerificationStatus
	Rating             *decimal.Decimal
	TotalEvents        *int64
}

func (p OrganizerPatch) Apply(o *Organizer) {
	if p.OrganizationName != nil {
		o.OrganizationName = *p.OrganizationName
	}
	if p.ContactEmail != nil {
		email := NormalizeEmail(*p.ContactEmail)
		o.ContactEmail = &email
	}
	if p.TaxID != nil {
		tax := *p.TaxID
		o.TaxID = &tax
	}
	if p.VerificationStatus != nil {
		o.VerificationStatus = *p.VerificationStatus
	}
	if p.Rating != nil {
		r := *p.Rating
		o.Rating = &r
	}
	if p.TotalEvents != nil {
		o.TotalEvents = *p.TotalEvents
	}
}
