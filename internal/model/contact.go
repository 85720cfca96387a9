package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidContact is returned when a contact lacks the data needed to
// start any pipeline work.
var ErrInvalidContact = eris.New("model: invalid contact")

// Contact is a raw company record as received from the service layer.
type Contact struct {
	Email       string            `json:"email"`
	Phones      []string          `json:"phones,omitempty"`
	CompanyName string            `json:"company_name"`
	Website     string            `json:"website,omitempty"`
	City        string            `json:"city,omitempty"`
	PostalCode  string            `json:"postal_code,omitempty"`
	Sector      string            `json:"sector,omitempty"`
	FirstName   string            `json:"first_name,omitempty"`
	LastName    string            `json:"last_name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// NormalizeEmail lower-cases and trims an address. The result is the key
// used for every per-email record in the store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Key returns the normalized email of the contact.
func (c Contact) Key() string {
	return NormalizeEmail(c.Email)
}

// Validate checks the minimum identity a contact needs.
func (c Contact) Validate() error {
	if strings.TrimSpace(c.CompanyName) == "" && strings.TrimSpace(c.Website) == "" {
		return eris.Wrap(ErrInvalidContact, "company name or website is required")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return eris.Wrapf(ErrInvalidContact, "malformed email %q", c.Email)
	}
	return nil
}

// DepartmentCode returns the 2-digit French department code derived from
// the postal code, or "" when unknown.
func (c Contact) DepartmentCode() string {
	return DepartmentFromPostal(c.PostalCode)
}

// DepartmentFromPostal extracts the department prefix of a French postal code.
func DepartmentFromPostal(postal string) string {
	p := strings.TrimSpace(postal)
	if len(p) < 2 {
		return ""
	}
	return p[:2]
}
