package model

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 100
	minAge            = 13
	maxAge            = 120
	passwordSpecials  = "@#$%^&+="
)

var (
	emailRe    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	phoneRe    = regexp.MustCompile(`^[+]?[0-9]{10,15}$`)
	orgNameRe  = regexp.MustCompile(`^[a-zA-Z0-9\s-]{3,100}$`)
	taxIDRe    = regexp.MustCompile(`^[A-Z0-9]{10,20}$`)
	seatRe     = regexp.MustCompile(`^[A-Z]\d{1,3}$`)
	sectionRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
	rowRe      = regexp.MustCompile(`^[A-Z]\d{1,2}$`)

	maxRating = decimal.NewFromInt(5)
)

func ValidateEmail(email string) error {
	if !emailRe.MatchString(strings.TrimSpace(email)) {
		return apperr.Validation("email", "invalid email format")
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return apperr.Validation("username", "must be 3-50 characters of letters, numbers, underscores and hyphens")
	}
	return nil
}

func ValidatePhoneNumber(phone string) error {
	if !phoneRe.MatchString(phone) {
		return apperr.Validation("phone_number", "invalid phone number format")
	}
	return nil
}

// ValidatePassword requires a digit, a lower and an upper case letter, one
// of @#$%^&+= and no whitespace.
func ValidatePassword(pw string) error {
	if len(pw) < minPasswordLength || len(pw) > maxPasswordLength {
		return apperr.Validation("password", "must be between %d and %d characters", minPasswordLength, maxPasswordLength)
	}
	var digit, lower, upper, special bool
	for _, r := range pw {
		switch {
		case unicode.IsSpace(r):
			return apperr.Validation("password", "must not contain whitespace")
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !digit || !lower || !upper || !special {
		return apperr.Validation("password", "must contain a digit, a lowercase letter, an uppercase letter and one of %s", passwordSpecials)
	}
	return nil
}

// ValidateDateOfBirth accepts nil and otherwise requires an age of 13 to 120.
func ValidateDateOfBirth(dob *time.Time, now time.Time) error {
	if dob == nil {
		return nil
	}
	if dob.After(now) {
		return apperr.Validation("date_of_birth", "cannot be in the future")
	}
	age := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		age--
	}
	if age < minAge || age > maxAge {
		return apperr.Validation("date_of_birth", "age must be between %d and %d years", minAge, maxAge)
	}
	return nil
}

func ValidateOrganizationName(name string) error {
	if !orgNameRe.MatchString(name) {
		return apperr.Validation("organization_name", "must be 3-100 characters of letters, numbers, spaces and hyphens")
	}
	return nil
}

func ValidateTaxID(taxID *string) error {
	if taxID != nil && !taxIDRe.MatchString(*taxID) {
		return apperr.Validation("tax_id", "must be 10-20 uppercase letters and digits")
	}
	return nil
}

func ValidatePaymentMethod(pm PaymentMethod) error {
	switch m := pm.(type) {
	case CreditCard:
		if len(m.Last4) != 4 {
			return apperr.Validation("last4", "must be exactly 4 characters")
		}
		if strings.TrimSpace(m.Brand) == "" {
			return apperr.Validation("brand", "cannot be empty")
		}
		if strings.TrimSpace(m.Expiration) == "" {
			return apperr.Validation("expiration", "cannot be empty")
		}
	case PayPal:
		if !emailRe.MatchString(m.Email) {
			return apperr.Validation("email", "invalid email format")
		}
	default:
		return apperr.Validation("payment_method", "unsupported payment method")
	}
	return nil
}

func ValidateLoyaltyPoints(points int64) error {
	if points < 0 {
		return apperr.Validation("loyalty_points", "cannot be negative")
	}
	return nil
}

func ValidateTotalSpending(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Validation("total_spending", "cannot be negative")
	}
	return nil
}

func ValidateRating(rating decimal.Decimal) error {
	if rating.IsNegative() || rating.GreaterThan(maxRating) {
		return apperr.Validation("rating", "must be between 0 and 5")
	}
	return nil
}

// ValidateInventory checks 0 <= available <= capacity.
func ValidateInventory(available, capacity int64) error {
	if available < 0 {
		return apperr.Validation("available_tickets", "cannot be negative")
	}
	if available > capacity {
		return apperr.Validation("available_tickets", "cannot exceed capacity %d", capacity)
	}
	return nil
}

// ValidateSeat checks the optional seat, section and row labels.
func ValidateSeat(seat, section, row *string) error {
	if seat != nil && !seatRe.MatchString(*seat) {
		return apperr.Validation("seat_number", "must look like A1 to Z999")
	}
	if section != nil && !sectionRe.MatchString(*section) {
		return apperr.Validation("section", "must start with an uppercase letter")
	}
	if row != nil && !rowRe.MatchString(*row) {
		return apperr.Validation("row", "must look like A1 to Z99")
	}
	return nil
}
