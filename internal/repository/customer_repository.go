package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/model"
)

// CustomerRepo persists the 'customers' table. Payment methods are stored
// in their compact string encoding.
type CustomerRepo struct{ t *sqlTx }

const customerColumns = `id, user_id, total_spending, loyalty_points, preferred_category,
	payment_methods, created_at, updated_at, version`

func scanCustomer(s scanner) (*model.Customer, error) {
	var (
		c        model.Customer
		category sql.NullString
		methods  string
		upd      sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.TotalSpending, &c.LoyaltyPoints, &category,
		&methods, &c.CreatedAt, &upd, &c.Version); err != nil {
		return nil, err
	}
	if category.Valid {
		cat := model.EventCategory(category.String)
		c.PreferredCategory = &cat
	}
	pms, err := model.DecodePaymentMethods(methods)
	if err != nil {
		return nil, err
	}
	c.PaymentMethods = pms
	c.UpdatedAt = timePtr(upd)
	return &c, nil
}

func categoryArg(c *model.EventCategory) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

// Create inserts c. A second profile for the same user violates the unique
// user_id constraint.
func (r *CustomerRepo) Create(ctx context.Context, c *model.Customer) error {
	_, err := r.t.exec(ctx, `INSERT INTO customers (`+customerColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.UserID, c.TotalSpending, c.LoyaltyPoints, categoryArg(c.PreferredCategory),
		model.EncodePaymentMethods(c.PaymentMethods), c.CreatedAt, nullTime(c.UpdatedAt), c.Version)
	return duplicate(err, "Customer", c.UserID.String())
}

func (r *CustomerRepo) Update(ctx context.Context, id uuid.UUID, p model.CustomerPatch, expected int64) (*model.Customer, error) {
	var a assignments
	if p.TotalSpending != nil {
		a.set("total_spending", *p.TotalSpending)
	}
	if p.LoyaltyPoints != nil {
		a.set("loyalty_points", *p.LoyaltyPoints)
	}
	if p.PreferredCategory != nil {
		a.set("preferred_category", string(*p.PreferredCategory))
	}
	if p.PaymentMethods != nil {
		a.set("payment_methods", model.EncodePaymentMethods(*p.PaymentMethods))
	}
	err := r.t.updateVersioned(ctx, "customers", id, expected, a, func() (model.Record, error) {
		return r.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *CustomerRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.t.delete(ctx, "customers", id)
}

func (r *CustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(r.t.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "Customer", id)
	}
	return c, nil
}

func (r *CustomerRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Customer, error) {
	c, err := scanCustomer(r.t.queryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id = ?`, userID))
	if err != nil {
		return nil, notFound(err, "Customer", userID)
	}
	return c, nil
}

func (r *CustomerRepo) FindAll(ctx context.Context, page Page) ([]model.Customer, error) {
	page = page.Normalize()
	rows, err := r.t.query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id LIMIT ? OFFSET ?`,
		page.Size, page.Offset())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanCustomer)
}
