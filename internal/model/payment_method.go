package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentMethod is a closed sum type: CreditCard or PayPal. The unexported
// marker keeps other packages from adding variants, so every switch over a
// PaymentMethod in this package is exhaustive.
type PaymentMethod interface {
	paymentMethod()
	Kind() string
}

// CreditCard stores only non-sensitive card metadata.
type CreditCard struct {
	Last4      string `json:"last4"`
	Brand      string `json:"brand"`
	Expiration string `json:"expiration"`
	IsDefault  bool   `json:"is_default"`
}

// PayPal identifies a PayPal account by its e-mail address.
type PayPal struct {
	Email     string `json:"email"`
	IsDefault bool   `json:"is_default"`
}

func (CreditCard) paymentMethod() {}
func (PayPal) paymentMethod()     {}

func (CreditCard) Kind() string { return "credit_card" }
func (PayPal) Kind() string     { return "paypal" }

const (
	creditCardTag = "CREDIT_CARD"
	payPalTag     = "PAYPAL"
)

// EncodePaymentMethods renders methods into the storage form
// "CREDIT_CARD:last4:brand:exp|PAYPAL:email".
func EncodePaymentMethods(methods []PaymentMethod) string {
	parts := make([]string, 0, len(methods))
	for _, m := range methods {
		switch pm := m.(type) {
		case CreditCard:
			parts = append(parts, strings.Join([]string{creditCardTag, pm.Last4, pm.Brand, pm.Expiration}, ":"))
		case PayPal:
			parts = append(parts, payPalTag+":"+pm.Email)
		}
	}
	return strings.Join(parts, "|")
}

// DecodePaymentMethods parses the storage form produced by
// EncodePaymentMethods. An empty string decodes to no methods.
func DecodePaymentMethods(s string) ([]PaymentMethod, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []PaymentMethod
	for _, raw := range strings.Split(s, "|") {
		fields := strings.Split(raw, ":")
		switch fields[0] {
		case creditCardTag:
			if len(fields) != 4 {
				return nil, fmt.Errorf("malformed credit card entry %q", raw)
			}
			out = append(out, CreditCard{Last4: fields[1], Brand: fields[2], Expiration: fields[3]})
		case payPalTag:
			if len(fields) != 2 {
				return nil, fmt.Errorf("malformed paypal entry %q", raw)
			}
			out = append(out, PayPal{Email: fields[1]})
		default:
			return nil, fmt.Errorf("unknown payment method type %q", fields[0])
		}
	}
	return out, nil
}

// PaymentMethods is the JSON form of a method list; each element carries a
// "type" discriminator.
type PaymentMethods []PaymentMethod

type paymentMethodJSON struct {
	Type       string `json:"type"`
	Last4      string `json:"last4,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Expiration string `json:"expiration,omitempty"`
	Email      string `json:"email,omitempty"`
	IsDefault  bool   `json:"is_default"`
}

func (pms PaymentMethods) MarshalJSON() ([]byte, error) {
	out := make([]paymentMethodJSON, 0, len(pms))
	for _, m := range pms {
		switch pm := m.(type) {
		case CreditCard:
			out = append(out, paymentMethodJSON{Type: pm.Kind(), Last4: pm.Last4, Brand: pm.Brand, Expiration: pm.Expiration, IsDefault: pm.IsDefault})
		case PayPal:
			out = append(out, paymentMethodJSON{Type: pm.Kind(), Email: pm.Email, IsDefault: pm.IsDefault})
		}
	}
	return json.Marshal(out)
}

func (pms *PaymentMethods) UnmarshalJSON(b []byte) error {
	var raw []paymentMethodJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(PaymentMethods, 0, len(raw))
	for _, r := range raw {
		switch r.Type {
		case CreditCard{}.Kind():
			out = append(out, CreditCard{Last4: r.Last4, Brand: r.Brand, Expiration: r.Expiration, IsDefault: r.IsDefault})
		case PayPal{}.Kind():
			out = append(out, PayPal{Email: r.Email, IsDefault: r.IsDefault})
		default:
			return fmt.Errorf("unknown payment method type %q", r.Type)
		}
	}
	*pms = out
	return nil
}
