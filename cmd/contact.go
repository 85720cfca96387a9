package main

import (
	"github.com/spf13/pflag"

	"github.com/sells-group/outreach-cli/internal/model"
)

// contactFlags binds the fields of a single contact to command flags.
type contactFlags struct {
	email      string
	phones     []string
	company    string
	website    string
	city       string
	postalCode string
	sector     string
	firstName  string
	lastName   string
}

func (f *contactFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.email, "email", "", "contact email address")
	fs.StringSliceVar(&f.phones, "phone", nil, "contact phone number (repeatable)")
	fs.StringVar(&f.company, "company", "", "company name")
	fs.StringVar(&f.website, "website", "", "company website URL")
	fs.StringVar(&f.city, "city", "", "company city")
	fs.StringVar(&f.postalCode, "postal-code", "", "company postal code")
	fs.StringVar(&f.sector, "sector", "", "company sector")
	fs.StringVar(&f.firstName, "first-name", "", "contact first name")
	fs.StringVar(&f.lastName, "last-name", "", "contact last name")
}

func (f *contactFlags) contact() model.Contact {
	return model.Contact{
		Email:       model.NormalizeEmail(f.email),
		Phones:      f.phones,
		CompanyName: f.company,
		Website:     f.website,
		City:        f.city,
		PostalCode:  f.postalCode,
		Sector:      f.sector,
		FirstName:   f.firstName,
		LastName:    f.lastName,
	}
}
