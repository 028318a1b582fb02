package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// OrganizerRepo persists the 'organizers' table.
type OrganizerRepo struct{ t *sqlTx }

const organizerColumns = `id, user_id, organization_name, contact_email, tax_id, verification_status,
	rating, total_events, created_at, updated_at, version`

func scanOrganizer(s scanner) (*model.Organizer, error) {
	var (
		o            model.Organizer
		email, taxID sql.NullString
		rating       decimal.NullDecimal
		upd          sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.OrganizationName, &email, &taxID, &o.VerificationStatus,
		&rating, &o.TotalEvents, &o.CreatedAt, &upd, &o.Version); err != nil {
		return nil, err
	}
	o.ContactEmail = stringPtr(email)
	o.TaxID = stringPtr(taxID)
	if rating.Valid {
		r := rating.Decimal
		o.Rating = &r
	}
	o.UpdatedAt = timePtr(upd)
	return &o, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (r *OrganizerRepo) Create(ctx context.Context, o *model.Organizer) error {
	_, err := r.t.exec(ctx, `INSERT INTO organizers (`+organizerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.UserID, o.OrganizationName, nullString(o.ContactEmail), nullString(o.TaxID), o.VerificationStatus,
		nullDecimal(o.Rating), o.TotalEvents, o.CreatedAt, nullTime(o.UpdatedAt), o.Version)
	return duplicate(err, "Organizer", o.UserID.String())
}

func (r *OrganizerRepo) Update(ctx context.Context, id uuid.UUID, p model.OrganizerPatch, expected int64) (*model.Organizer, error) {
	var a assignments
	if p.OrganizationName != nil {
		a.set("organization_name", *p.OrganizationName)
	}
	if p.ContactEmail != nil {
		a.set("contact_email", model.NormalizeEmail(*p.ContactEmail))
	}
	if p.TaxID != nil {
		a.set("tax_id", *p.TaxID)
	}
	if p.VerificationStatus != nil {
		a.set("verification_status", *p.VerificationStatus)
	}
	if p.Rating != nil {
		a.set("rating", *p.Rating)
	}
	if p.TotalEvents != nil {
		a.set("total_events", *p.TotalEvents)
	}
	err := r.t.updateVersioned(ctx, "organizers", id, expected, a, func() (model.Record, error) {
		return r.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *OrganizerRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.delete(ctx, "organizers", id)
}

func (r *OrganizerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Organizer, error) {
	o, err := scanOrganizer(r.t.queryRow(ctx, `SELECT `+organizerColumns+` FROM organizers WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "Organizer", id)
	}
	return o, nil
}

func (r *OrganizerRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Organizer, error) {
	o, err := scanOrganizer(r.t.queryRow(ctx, `SELECT `+organizerColumns+` FROM organizers WHERE user_id = ?`, userID))
	if err != nil {
		return nil, notFound(err, "Organizer", userID)
	}
	return o, nil
}

func (r *OrganizerRepo) FindAll(ctx context.Context, page Page) ([]model.Organizer, error) {
	page = page.Normalize()
	rows, err := r.t.query(ctx, `SELECT `+organizerColumns+` FROM organizers ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanOrganizer)
}
