package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole is the role stored on a user and carried in access tokens.
type UserRole string

const (
	RoleCustomer  UserRole = "CUSTOMER"
	RoleOrganizer UserRole = "ORGANIZER"
	RoleAdmin     UserRole = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// ParseUserRole normalises s and returns the matching role.
func ParseUserRole(s string) (UserRole, bool) {
	r := UserRole(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User mirrors the `users` table. PasswordHash never leaves the service
// layer; handlers encode User through its json tags which omit it.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	PhoneNumber  string     `json:"phone_number"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	Role         UserRole   `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	Versioned
}

func (u *User) Resource() string    { return "User" }
func (u *User) RecordID() uuid.UUID { return u.ID }

// UserPatch carries the fields of a partial user update. Nil fields are
// left untouched.
type UserPatch struct {
	Username    *string
	Email       *string
	PhoneNumber *string
	DateOfBirth *time.Time
	AvatarURL   *string
	IsVerified  *bool
	LastLogin   *time.Time
}

// Apply copies the non-nil fields of p onto u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = NormalizeEmail(*p.Email)
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		u.DateOfBirth = &dob
	}
	if p.AvatarURL != nil {
		url := *p.AvatarURL
		u.AvatarURL = &url
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	if p.LastLogin != nil {
		ll := *p.LastLogin
		u.LastLogin = &ll
	}
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
