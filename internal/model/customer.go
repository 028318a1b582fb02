package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is the buyer profile attached to a CUSTOMER user.
type Customer struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	TotalSpending     decimal.Decimal `json:"total_spending"`
	LoyaltyPoints     int64           `json:"loyalty_points"`
	PreferredCategory *EventCategory  `json:"preferred_category,omitempty"`
	PaymentMethods    PaymentMethods  `json:"payment_methods"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
	Versioned
}

func (c *Customer) Resource() string    { return "Customer" }
func (c *Customer) RecordID() uuid.UUID { return c.ID }

// CustomerPatch is a partial customer update.
type CustomerPatch struct {
	TotalSpending     *decimal.Decimal
	LoyaltyPoints     *int64
	PreferredCategory *EventCategory
	PaymentMethods    *[]PaymentMethod
}

func (p CustomerPatch) Apply(c *Customer) {
	if p.TotalSpending != nil {
		c.TotalSpending = *p.TotalSpending
	}
	if p.LoyaltyPoints != nil {
		c.LoyaltyPoints = *p.LoyaltyPoints
	}
	if p.PreferredCategory != nil {
		cat := *p.PreferredCategory
		c.PreferredCategory = &cat
	}
	if p.PaymentMethods != nil {
		c.PaymentMethods = append(PaymentMethods(nil), (*p.PaymentMethods)...)
	}
}
