package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/audit"
	"github.com/phamhoa2416/ticket-booking/internal/cache"
	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/repository"
)

type OrganizerService struct {
	base
}

func NewOrganizerService(d Deps) *OrganizerService {
	return &OrganizerService{base: newBase(d)}
}

type CreateOrganizerInput struct {
	UserID           uuid.UUID
	OrganizationName string
	ContactEmail     *string
	TaxID            *string
}

type UpdateOrganizerInput struct {
	OrganizationName *string
	ContactEmail     *string
	TaxID            *string
}

func validateOrganizerFields(name *string, email *string, taxID *string) error {
	if name != nil {
		if err := model.ValidateOrganizationName(*name); err != nil {
			return err
		}
	}
	if email != nil {
		if err := model.ValidateEmail(*email); err != nil {
			return err
		}
	}
	return model.ValidateTaxID(taxID)
}

// Create attaches an organizer profile to an ORGANIZER user. New profiles
// start PENDING verification without a rating.
func (s *OrganizerService) Create(ctx context.Context, actor audit.Actor, in CreateOrganizerInput) (*model.Organizer, error) {
	s.Logger.Info("creating organizer", "user_id", in.UserID)
	fail := func(err error) (*model.Organizer, error) {
		s.Audit.Failure(ctx, actor, "ORGANIZER_CREATION_FAILED", err, map[string]any{"user_id": in.UserID})
		return nil, err
	}
	if err := validateOrganizerFields(&in.OrganizationName, in.ContactEmail, in.TaxID); err != nil {
		return fail(err)
	}

	o := &model.Organizer{
		ID:                 uuid.New(),
		UserID:             in.UserID,
		OrganizationName:   in.OrganizationName,
		TaxID:              in.TaxID,
		VerificationStatus: model.VerificationPending,
		CreatedAt:          s.Now(),
	}
	if in.ContactEmail != nil {
		email := model.NormalizeEmail(*in.ContactEmail)
		o.ContactEmail = &email
	}

	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.Users().FindByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if u.Role != model.RoleOrganizer {
			return apperr.Validation("user_id", "user %s has role %s, expected %s", u.ID, u.Role, model.RoleOrganizer)
		}
		if err := requireOwner(actor, "User", u.ID); err != nil {
			return err
		}
		return tx.Organizers().Create(ctx, o)
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.OrganizerKey(o.ID), *o)
	s.evictPrefix(cache.OrganizerPagesPrefix)
	s.Audit.Record(ctx, actor, "ORGANIZER_CREATED", map[string]any{
		"organizer_id":        o.ID,
		"organization_name":   o.OrganizationName,
		"verification_status": o.VerificationStatus,
	})
	return o, nil
}

func (s *OrganizerService) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateOrganizerInput, opts ...MutateOption) (*model.Organizer, error) {
	if err := validateOrganizerFields(in.OrganizationName, in.ContactEmail, in.TaxID); err != nil {
		s.Audit.Failure(ctx, actor, organizerUpdated.failed, err, map[string]any{"organizer_id": id})
		return nil, err
	}
	patch := model.OrganizerPatch{
		OrganizationName: in.OrganizationName,
		ContactEmail:     in.ContactEmail,
		TaxID:            in.TaxID,
	}
	return s.mutate(ctx, actor, id, organizerUpdated, opts, func(cur *model.Organizer) (model.OrganizerPatch, map[string]any, error) {
		return patch, map[string]any{"organizer_id": id}, nil
	})
}

func (s *OrganizerService) Delete(ctx context.Context, actor audit.Actor, id uuid.UUID) (bool, error) {
	var (
		deleted bool
		cur     *model.Organizer
	)
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		cur, err = tx.Organizers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, "Organizer", cur.UserID); err != nil {
			return err
		}
		if err := ensureNoEvents(ctx, tx, id); err != nil {
			return err
		}
		deleted, err = tx.Organizers().Delete(ctx, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.Audit.Failure(ctx, actor, "ORGANIZER_DELETION_FAILED", err, map[string]any{"organizer_id": id})
		return false, err
	}
	if deleted {
		s.evict(cache.OrganizerKey(id), cache.OrganizerEventsKey(id))
		s.evictPrefix(cache.OrganizerPagesPrefix)
		s.Audit.Record(ctx, actor, "ORGANIZER_DELETED", map[string]any{
			"organizer_id":      id,
			"organization_name": cur.OrganizationName,
			"total_events":      cur.TotalEvents,
		})
	}
	return deleted, nil
}

// ensureNoEvents rejects removing an organizer that still owns events.
func ensureNoEvents(ctx context.Context, tx repository.Tx, organizerID uuid.UUID) error {
	owned, err := tx.Events().FindByOrganizer(ctx, organizerID)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return apperr.Validation("organizer_id", "organizer still owns %d events", len(owned))
	}
	return nil
}

func dropOrganizerProfile(ctx context.Context, tx repository.Tx, userID uuid.UUID) (*model.Organizer, error) {
	o, err := tx.Organizers().FindByUserID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := ensureNoEvents(ctx, tx, o.ID); err != nil {
		return nil, err
	}
	if _, err := tx.Organizers().Delete(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrganizerService) GetByID(ctx context.Context, id uuid.UUID) (*model.Organizer, error) {
	return fetch(ctx, &s.base, cache.OrganizerKey(id), func(ctx context.Context, tx repository.Tx) (*model.Organizer, error) {
		return tx.Organizers().FindByID(ctx, id)
	})
}

func (s *OrganizerService) List(ctx context.Context, page repository.Page) ([]model.Organizer, error) {
	page = page.Normalize()
	return fetchList(ctx, &s.base, cache.OrganizerPageKey(page.Number, page.Size), func(ctx context.Context, tx repository.Tx) ([]model.Organizer, error) {
		return tx.Organizers().FindAll(ctx, page)
	})
}

// UpdateRating stores a rating in [0, 5].
// Only administrators and background jobs may rate an organizer.
func (s *OrganizerService) UpdateRating(ctx context.Context, actor audit.Actor, id uuid.UUID, rating decimal.Decimal, opts ...MutateOption) (*model.Organizer, error) {
	if err := model.ValidateRating(rating); err != nil {
		s.Audit.Failure(ctx, actor, ratingUpdated.failed, err, map[string]any{"organizer_id": id, "rating": rating.String()})
		return nil, err
	}
	return s.mutate(ctx, actor, id, ratingUpdated, opts, func(cur *model.Organizer) (model.OrganizerPatch, map[string]any, error) {
		if !isPrivileged(actor) {
			return model.OrganizerPatch{}, nil, apperr.ErrForbidden
		}
		prev := decimal.Zero
		if cur.Rating != nil {
			prev = *cur.Rating
		}
		if err := model.ValidateRating(rating); err != nil {
			return model.OrganizerPatch{}, nil, err
		}
		return model.OrganizerPatch{Rating: &rating}, map[string]any{
			"organizer_id":      id,
			"previous_rating":   prev.String(),
			"new_rating":        rating.String(),
			"rating_difference": rating.Sub(prev).String(),
		}, nil
	})
}

// UpdateVerificationStatus records an administrator's verification decision.
func (s *OrganizerService) UpdateVerificationStatus(ctx context.Context, actor audit.Actor, id uuid.UUID, status model.VerificationStatus, opts ...MutateOption) (*model.Organizer, error) {
	if !status.Valid() {
		err := apperr.Validation("verification_status", "unknown status %q", status)
		s.Audit.Failure(ctx, actor, verificationUpdated.failed, err, map[string]any{"organizer_id": id, "status": status})
		return nil, err
	}
	return s.mutate(ctx, actor, id, verificationUpdated, opts, func(cur *model.Organizer) (model.OrganizerPatch, map[string]any, error) {
		if !isPrivileged(actor) {
			return model.OrganizerPatch{}, nil, apperr.ErrForbidden
		}
		return model.OrganizerPatch{VerificationStatus: &status}, map[string]any{
			"organizer_id":    id,
			"previous_status": cur.VerificationStatus,
			"new_status":      status,
		}, nil
	})
}

func (s *OrganizerService) mutate(ctx context.Context, actor audit.Actor, id uuid.UUID, act action, opts []MutateOption,
	change func(cur *model.Organizer) (model.OrganizerPatch, map[string]any, error)) (*model.Organizer, error) {
	cfg := mutation(opts)
	var (
		fresh   *model.Organizer
		details map[string]any
	)
	err := s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Organizers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(cur); err != nil {
			return err
		}
		if err := requireOwner(actor, "Organizer", cur.UserID); err != nil {
			return err
		}
		patch, d, err := change(cur)
		if err != nil {
			return err
		}
		fresh, err = tx.Organizers().Update(ctx, id, patch, cur.Version)
		details = d
		return err
	})
	if err != nil {
		s.Logger.Warn("organizer mutation failed", "action", act.done, "organizer_id", id, "error", err)
		s.Audit.Failure(ctx, actor, act.failed, err, map[string]any{"organizer_id": id})
		return nil, err
	}

	s.set(cache.OrganizerKey(id), *fresh)
	s.evictPrefix(cache.OrganizerPagesPrefix)
	s.Audit.Record(ctx, actor, act.done, details)
	return fresh, nil
}
