package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/service"
)

// AccountHandler exposes users, customer profiles and organizer profiles.
type AccountHandler struct {
	Users      *service.UserService
	Customers  *service.CustomerService
	Organizers *service.OrganizerService
}

func NewAccountHandler(u *service.UserService, c *service.CustomerService, o *service.OrganizerService) *AccountHandler {
	if u == nil || c == nil || o == nil {
		panic("nil service passed to NewAccountHandler")
	}
	return &AccountHandler{Users: u, Customers: c, Organizers: o}
}

// ---- users ----

func (h *AccountHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AccountHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	users, err := h.Users.List(ctx, pageFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

type updateUserReq struct {
	Username    *string    `json:"username"`
	Email       *string    `json:"email"`
	PhoneNumber *string    `json:"phone_number"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	AvatarURL   *string    `json:"avatar_url"`
	IsVerified  *bool      `json:"is_verified"`
	Version     *int64     `json:"version"`
}

func (h *AccountHandler) UpdateUser(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, a, id, service.UpdateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		AvatarURL:   req.AvatarURL,
		IsVerified:  req.IsVerified,
	}, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ---- customers ----

type createCustomerReq struct {
	PreferredCategory *string              `json:"preferred_category"`
	PaymentMethods    model.PaymentMethods `json:"payment_methods"`
}

// CreateCustomer attaches a customer profile to the calling user.
func (h *AccountHandler) CreateCustomer(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	var req createCustomerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	cust, err := h.Customers.Create(ctx, a, service.CreateCustomerInput{
		UserID:            a.ID,
		PreferredCategory: req.PreferredCategory,
		PaymentMethods:    req.PaymentMethods,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, cust)
}

func (h *AccountHandler) GetCustomer(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	cust, err := h.Customers.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// GetMyCustomer returns the calling user's customer profile.
func (h *AccountHandler) GetMyCustomer(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	cust, err := h.Customers.GetByUserID(ctx, a.ID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

type pointsReq struct {
	// Exactly one of Points (absolute) and Delta (relative) is set.
	Points  *int64 `json:"points"`
	Delta   *int64 `json:"delta"`
	Version *int64 `json:"version"`
}

func (h *AccountHandler) UpdateLoyaltyPoints(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req pointsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if (req.Points == nil) == (req.Delta == nil) {
		return badRequest(c, "exactly one of points or delta is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	var cust *model.Customer
	if req.Points != nil {
		cust, err = h.Customers.UpdateLoyaltyPoints(ctx, a, id, *req.Points, ifVersion(req.Version)...)
	} else {
		cust, err = h.Customers.AddLoyaltyPoints(ctx, a, id, *req.Delta, ifVersion(req.Version)...)
	}
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

type spendingReq struct {
	Amount  *decimal.Decimal `json:"amount"`
	Delta   *decimal.Decimal `json:"delta"`
	Version *int64           `json:"version"`
}

func (h *AccountHandler) UpdateTotalSpending(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req spendingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if (req.Amount == nil) == (req.Delta == nil) {
		return badRequest(c, "exactly one of amount or delta is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	var cust *model.Customer
	if req.Amount != nil {
		cust, err = h.Customers.UpdateTotalSpending(ctx, a, id, *req.Amount, ifVersion(req.Version)...)
	} else {
		cust, err = h.Customers.RecordSpending(ctx, a, id, *req.Delta, ifVersion(req.Version)...)
	}
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// ---- organizers ----

type createOrganizerReq struct {
	OrganizationName string  `json:"organization_name"`
	ContactEmail     *string `json:"contact_email"`
	TaxID            *string `json:"tax_id"`
}

func (h *AccountHandler) CreateOrganizer(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	var req createOrganizerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.Organizers.Create(ctx, a, service.CreateOrganizerInput{
		UserID:           a.ID,
		OrganizationName: req.OrganizationName,
		ContactEmail:     req.ContactEmail,
		TaxID:            req.TaxID,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *AccountHandler) GetOrganizer(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.Organizers.GetByID(ctx, id)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *AccountHandler) ListOrganizers(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Organizers.List(ctx, pageFrom(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

type ratingReq struct {
	Rating  decimal.Decimal `json:"rating"`
	Version *int64          `json:"version"`
}

func (h *AccountHandler) UpdateRating(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req ratingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.Organizers.UpdateRating(ctx, a, id, req.Rating, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

type verificationReq struct {
	Status  model.VerificationStatus `json:"status"`
	Version *int64                   `json:"version"`
}

func (h *AccountHandler) UpdateVerification(c echo.Context) error {
	a, err := caller(c)
	if err != nil {
		return err
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req verificationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	o, err := h.Organizers.UpdateVerificationStatus(ctx, a, id, req.Status, ifVersion(req.Version)...)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
