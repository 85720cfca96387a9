package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidICP is returned when the ideal customer profile is unusable.
var ErrInvalidICP = eris.New("model: invalid ideal customer profile")

// SizeBracket buckets a company by headcount.
type SizeBracket string

const (
	SizeMicro SizeBracket = "micro" // < 10
	SizeSmall SizeBracket = "small" // 10-49
	SizeMid   SizeBracket = "mid"   // 50-249
	SizeLarge SizeBracket = "large" // 250+
)

var sizeOrder = map[SizeBracket]int{SizeMicro: 0, SizeSmall: 1, SizeMid: 2, SizeLarge: 3}

// BracketFor maps an employee count to its bracket.
func BracketFor(employees int) SizeBracket {
	switch {
	case employees < 10:
		return SizeMicro
	case employees < 50:
		return SizeSmall
	case employees < 250:
		return SizeMid
	default:
		return SizeLarge
	}
}

// Adjacent reports whether two brackets are one step apart.
func (b SizeBracket) Adjacent(other SizeBracket) bool {
	x, ok1 := sizeOrder[b]
	y, ok2 := sizeOrder[other]
	if !ok1 || !ok2 {
		return false
	}
	d := x - y
	return d == 1 || d == -1
}

// ICP is the ideal customer profile of the sending organization.
type ICP struct {
	// Niche is the free-text description of what is being sold.
	Niche         string        `json:"niche" yaml:"niche"`
	OfferCategory string        `json:"offer_category" yaml:"offer_category"`
	Sectors       []string      `json:"sectors" yaml:"sectors"`
	Sizes         []SizeBracket `json:"sizes" yaml:"sizes"`
	Cities        []string      `json:"cities" yaml:"cities"`
	Region        string        `json:"region" yaml:"region"`
	Departments   []string      `json:"departments" yaml:"departments"`
	RevenueMin    float64       `json:"revenue_min" yaml:"revenue_min"`
	RevenueMax    float64       `json:"revenue_max" yaml:"revenue_max"`
	SenderName    string        `json:"sender_name" yaml:"sender_name"`
	SenderCompany string        `json:"sender_company" yaml:"sender_company"`
}

// Validate rejects a profile that cannot drive any pipeline stage.
func (i ICP) Validate() error {
	if strings.TrimSpace(i.Niche) == "" {
		return eris.Wrap(ErrInvalidICP, "niche is required")
	}
	if i.RevenueMax > 0 && i.RevenueMin > i.RevenueMax {
		return eris.Wrapf(ErrInvalidICP, "revenue range %.0f-%.0f is inverted", i.RevenueMin, i.RevenueMax)
	}
	return nil
}

// HasRevenueTarget reports whether a revenue range is configured.
func (i ICP) HasRevenueTarget() bool {
	return i.RevenueMin > 0 || i.RevenueMax > 0
}
