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

// CustomerService owns customer profiles, their loyalty points and their
// running spending total.
type CustomerService struct {
	base
}

func NewCustomerService(d Deps) *CustomerService {
	return &CustomerService{base: newBase(d)}
}

type CreateCustomerInput struct {
	UserID            uuid.UUID
	PreferredCategory *string
	PaymentMethods    []model.PaymentMethod
	TotalSpending     *decimal.Decimal
	LoyaltyPoints     *int64
}

type UpdateCustomerInput struct {
	PreferredCategory *string
	PaymentMethods    *[]model.PaymentMethod
	TotalSpending     *decimal.Decimal
	LoyaltyPoints     *int64
}

func validateCustomerFields(methods []model.PaymentMethod, spending *decimal.Decimal, points *int64) error {
	for _, pm := range methods {
		if err := model.ValidatePaymentMethod(pm); err != nil {
			return err
		}
	}
	if spending != nil {
		if err := model.ValidateTotalSpending(*spending); err != nil {
			return err
		}
	}
	if points != nil {
		if err := model.ValidateLoyaltyPoints(*points); err != nil {
			return err
		}
	}
	return nil
}

func categoryPtr(s *string) *model.EventCategory {
	if s == nil {
		return nil
	}
	c := model.ParseEventCategory(*s)
	return &c
}

// Create attaches a customer profile to a CUSTOMER user. A user can hold at
// most one profile.
func (s *CustomerService) Create(ctx context.Context, actor audit.Actor, in CreateCustomerInput) (*model.Customer, error) {
	s.Logger.Info("creating customer", "user_id", in.UserID)
	fail := func(err error) (*model.Customer, error) {
		s.Audit.Failure(ctx, actor, "CUSTOMER_CREATION_FAILED", err, map[string]any{"user_id": in.UserID})
		return nil, err
	}
	if err := validateCustomerFields(in.PaymentMethods, in.TotalSpending, in.LoyaltyPoints); err != nil {
		return fail(err)
	}

	c := &model.Customer{
		ID:                uuid.New(),
		UserID:            in.UserID,
		PreferredCategory: categoryPtr(in.PreferredCategory),
		PaymentMethods:    in.PaymentMethods,
		CreatedAt:         s.Now(),
	}
	if in.TotalSpending != nil {
		c.TotalSpending = *in.TotalSpending
	}
	if in.LoyaltyPoints != nil {
		c.LoyaltyPoints = *in.LoyaltyPoints
	}

	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.Users().FindByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if u.Role != model.RoleCustomer {
			return apperr.Validation("user_id", "user %s has role %s, expected %s", u.ID, u.Role, model.RoleCustomer)
		}
		if err := requireOwner(actor, "User", u.ID); err != nil {
			return err
		}
		return tx.Customers().Create(ctx, c)
	})
	if err != nil {
		return fail(err)
	}

	s.set(cache.CustomerKey(c.ID), *c)
	s.evict(cache.CustomerUserKey(c.UserID))
	s.evictPrefix(cache.CustomerPagesPrefix)
	s.Audit.Record(ctx, actor, "CUSTOMER_CREATED", map[string]any{
		"customer_id":        c.ID,
		"preferred_category": categoryDetail(c.PreferredCategory),
		"loyalty_points":     c.LoyaltyPoints,
	})
	return c, nil
}

func categoryDetail(c *model.EventCategory) string {
	if c == nil {
		return "N/A"
	}
	return string(*c)
}

// Update applies a partial change to the profile.
func (s *CustomerService) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateCustomerInput, opts ...MutateOption) (*model.Customer, error) {
	var methods []model.PaymentMethod
	if in.PaymentMethods != nil {
		methods = *in.PaymentMethods
	}
	if err := validateCustomerFields(methods, in.TotalSpending, in.LoyaltyPoints); err != nil {
		s.Audit.Failure(ctx, actor, customerUpdated.failed, err, map[string]any{"customer_id": id})
		return nil, err
	}
	patch := model.CustomerPatch{
		TotalSpending:     in.TotalSpending,
		LoyaltyPoints:     in.LoyaltyPoints,
		PreferredCategory: categoryPtr(in.PreferredCategory),
		PaymentMethods:    in.PaymentMethods,
	}
	return s.mutate(ctx, actor, id, customerUpdated, opts, func(cur *model.Customer) (model.CustomerPatch, map[string]any, error) {
		return patch, map[string]any{"customer_id": id}, nil
	})
}

// Delete removes the profile. It reports false when there was nothing to
// delete.
func (s *CustomerService) Delete(ctx context.Context, actor audit.Actor, id uuid.UUID) (bool, error) {
	var (
		deleted bool
		userID  uuid.UUID
	)
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Customers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, "Customer", cur.UserID); err != nil {
			return err
		}
		userID = cur.UserID
		if err := ensureNoTickets(ctx, tx, id); err != nil {
			return err
		}
		deleted, err = tx.Customers().Delete(ctx, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.Audit.Failure(ctx, actor, "CUSTOMER_DELETION_FAILED", err, map[string]any{"customer_id": id})
		return false, err
	}
	if deleted {
		s.evict(cache.CustomerKey(id), cache.CustomerUserKey(userID), cache.CustomerTicketsKey(id))
		s.evictPrefix(cache.CustomerPagesPrefix)
		s.Audit.Record(ctx, actor, "CUSTOMER_DELETED", map[string]any{"customer_id": id})
	}
	return deleted, nil
}

// ensureNoTickets rejects removing a customer that tickets still belong to.
func ensureNoTickets(ctx context.Context, tx repository.Tx, customerID uuid.UUID) error {
	held, err := tx.Tickets().FindByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return apperr.Validation("customer_id", "customer still holds %d tickets", len(held))
	}
	return nil
}

// dropCustomerProfile deletes the customer profile of userID, if any, and
// returns it.
func dropCustomerProfile(ctx context.Context, tx repository.Tx, userID uuid.UUID) (*model.Customer, error) {
	c, err := tx.Customers().FindByUserID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := ensureNoTickets(ctx, tx, c.ID); err != nil {
		return nil, err
	}
	if _, err := tx.Customers().Delete(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	return fetch(ctx, &s.base, cache.CustomerKey(id), func(ctx context.Context, tx repository.Tx) (*model.Customer, error) {
		return tx.Customers().FindByID(ctx, id)
	})
}

func (s *CustomerService) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Customer, error) {
	return fetch(ctx, &s.base, cache.CustomerUserKey(userID), func(ctx context.Context, tx repository.Tx) (*model.Customer, error) {
		return tx.Customers().FindByUserID(ctx, userID)
	})
}

func (s *CustomerService) List(ctx context.Context, page repository.Page) ([]model.Customer, error) {
	page = page.Normalize()
	return fetchList(ctx, &s.base, cache.CustomerPageKey(page.Number, page.Size), func(ctx context.Context, tx repository.Tx) ([]model.Customer, error) {
		return tx.Customers().FindAll(ctx, page)
	})
}

// UpdateLoyaltyPoints sets the balance to points.
func (s *CustomerService) UpdateLoyaltyPoints(ctx context.Context, actor audit.Actor, id uuid.UUID, points int64, opts ...MutateOption) (*model.Customer, error) {
	if err := model.ValidateLoyaltyPoints(points); err != nil {
		s.Audit.Failure(ctx, actor, loyaltyPointsUpdated.failed, err, map[string]any{"customer_id": id, "points": points})
		return nil, err
	}
	return s.setPoints(ctx, actor, id, opts, func(int64) int64 { return points })
}

// AddLoyaltyPoints moves the balance by delta, which may be negative. The
// resulting balance must stay non-negative.
func (s *CustomerService) AddLoyaltyPoints(ctx context.Context, actor audit.Actor, id uuid.UUID, delta int64, opts ...MutateOption) (*model.Customer, error) {
	return s.setPoints(ctx, actor, id, opts, func(cur int64) int64 { return cur + delta })
}

func (s *CustomerService) setPoints(ctx context.Context, actor audit.Actor, id uuid.UUID, opts []MutateOption, next func(int64) int64) (*model.Customer, error) {
	return s.mutate(ctx, actor, id, loyaltyPointsUpdated, opts, func(cur *model.Customer) (model.CustomerPatch, map[string]any, error) {
		points := next(cur.LoyaltyPoints)
		if err := model.ValidateLoyaltyPoints(points); err != nil {
			return model.CustomerPatch{}, nil, err
		}
		return model.CustomerPatch{LoyaltyPoints: &points}, map[string]any{
			"customer_id":       id,
			"previous_points":   cur.LoyaltyPoints,
			"new_points":        points,
			"points_difference": points - cur.LoyaltyPoints,
		}, nil
	})
}

// UpdateTotalSpending sets the spending total to amount.
func (s *CustomerService) UpdateTotalSpending(ctx context.Context, actor audit.Actor, id uuid.UUID, amount decimal.Decimal, opts ...MutateOption) (*model.Customer, error) {
	if err := model.ValidateTotalSpending(amount); err != nil {
		s.Audit.Failure(ctx, actor, totalSpendingUpdated.failed, err, map[string]any{"customer_id": id, "amount": amount})
		return nil, err
	}
	return s.setSpending(ctx, actor, id, opts, func(decimal.Decimal) decimal.Decimal { return amount })
}

// RecordSpending adds delta to the spending total. A negative delta books
// a refund; the total never drops below zero.
func (s *CustomerService) RecordSpending(ctx context.Context, actor audit.Actor, id uuid.UUID, delta decimal.Decimal, opts ...MutateOption) (*model.Customer, error) {
	return s.setSpending(ctx, actor, id, opts, func(cur decimal.Decimal) decimal.Decimal { return cur.Add(delta) })
}

func (s *CustomerService) setSpending(ctx context.Context, actor audit.Actor, id uuid.UUID, opts []MutateOption, next func(decimal.Decimal) decimal.Decimal) (*model.Customer, error) {
	return s.mutate(ctx, actor, id, totalSpendingUpdated, opts, func(cur *model.Customer) (model.CustomerPatch, map[string]any, error) {
		amount := next(cur.TotalSpending)
		if err := model.ValidateTotalSpending(amount); err != nil {
			return model.CustomerPatch{}, nil, err
		}
		return model.CustomerPatch{TotalSpending: &amount}, map[string]any{
			"customer_id":         id,
			"currency":            "USD",
			"status":              "UPDATED",
			"previous_spending":   cur.TotalSpending.String(),
			"new_spending":        amount.String(),
			"spending_difference": amount.Sub(cur.TotalSpending).String(),
		}, nil
	})
}

// mutate is the versioned read-modify-write shared by every customer
// mutation. change computes the patch from the current record; the patch is
// stored only if the record is still at the version that was read.
func (s *CustomerService) mutate(ctx context.Context, actor audit.Actor, id uuid.UUID, act action, opts []MutateOption,
	change func(cur *model.Customer) (model.CustomerPatch, map[string]any, error)) (*model.Customer, error) {
	cfg := mutation(opts)
	var (
		fresh   *model.Customer
		details map[string]any
	)
	err := s.write(ctx, cfg, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.Customers().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := cfg.check(cur); err != nil {
			return err
		}
		if err := requireOwner(actor, "Customer", cur.UserID); err != nil {
			return err
		}
		patch, d, err := change(cur)
		if err != nil {
			return err
		}
		fresh, err = tx.Customers().Update(ctx, id, patch, cur.Version)
		details = d
		return err
	})
	if err != nil {
		s.Logger.Warn("customer mutation failed", "action", act.done, "customer_id", id, "error", err)
		s.Audit.Failure(ctx, actor, act.failed, err, map[string]any{"customer_id": id})
		return nil, err
	}

	s.set(cache.CustomerKey(id), *fresh)
	s.evict(cache.CustomerUserKey(fresh.UserID))
	s.evictPrefix(cache.CustomerPagesPrefix)
	s.Audit.Record(ctx, actor, act.done, details)
	return fresh, nil
}
