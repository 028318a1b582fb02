package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/phamhoa2416/ticket-booking/internal/model"
	"github.com/phamhoa2416/ticket-booking/internal/service"
	"github.com/phamhoa2416/ticket-booking/internal/utils"
)

// AuthHandler serves sign-up and login.
type AuthHandler struct {
	Users     *service.UserService
	JWTSecret string
	AccessTTL time.Duration
}

func NewAuthHandler(users *service.UserService, secret string, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{Users: users, JWTSecret: secret, AccessTTL: accessTTL}
}

type registerReq struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	PhoneNumber string     `json:"phone_number"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	AvatarURL   *string    `json:"avatar_url"`
	Role        string     `json:"role"` // CUSTOMER | ORGANIZER
}

type loginReq struct {
	Login    string `json:"login"` // email or username
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User   *model.User `json:"user"`
	Access tokenPart   `json:"access"`
}

// Register creates the account and returns an access token right away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	role, ok := model.ParseUserRole(req.Role)
	if req.Role == "" {
		role, ok = model.RoleCustomer, true
	}
	if !ok {
		return badRequest(c, "unknown role")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.Register(ctx, service.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		AvatarURL:   req.AvatarURL,
		Role:        role,
	})
	if err != nil {
		return respond(c, err)
	}
	return h.issue(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Login == "" || req.Password == "" {
		return badRequest(c, "login/password required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		return respond(c, err)
	}
	return h.issue(c, http.StatusOK, u)
}

func (h *AuthHandler) issue(c echo.Context, status int, u *model.User) error {
	access, err := utils.NewAccessToken(h.JWTSecret, u.ID, u.Role, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "INTERNAL_ERROR", "message": "issue access failed"})
	}
	return c.JSON(status, authResp{User: u, Access: tokenPart{Token: access.Token, Expires: access.Exp}})
}
