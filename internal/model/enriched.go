package model

import "time"

// SourceName identifies one enrichment source in the waterfall.
type SourceName string

const (
	SourceWebsite  SourceName = "website"
	SourceMaps     SourceName = "maps"
	SourceRegistry SourceName = "registry"
	SourceNetwork  SourceName = "network"
)

// SourceOrder is the fixed waterfall order. Earlier sources win ties.
var SourceOrder = []SourceName{SourceWebsite, SourceMaps, SourceRegistry, SourceNetwork}

// Field keys used for provenance and completeness.
const (
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldDescription    = "description"
	FieldAddress        = "address"
	FieldRegistryID     = "registry_id"
	FieldRevenue        = "revenue"
	FieldEmployees      = "employee_count"
	FieldDecisionMaker  = "decision_maker"
	FieldRating         = "rating"
	FieldNetworkProfile = "network_profile"
	FieldSocial         = "social"
	FieldCreatedAt      = "created_at"
	FieldLegalName      = "legal_name"
	FieldSector         = "sector_code"
)

// SocialLinks holds public profile URLs.
type SocialLinks struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

// Any reports whether at least one link is set.
func (s SocialLinks) Any() bool {
	return s.LinkedIn != "" || s.Facebook != "" || s.Instagram != "" || s.Twitter != ""
}

// LegalData is what a company registry knows.
type LegalData struct {
	RegistryID     string     `json:"registry_id,omitempty"` // SIREN
	LegalName      string     `json:"legal_name,omitempty"`
	LegalForm      string     `json:"legal_form,omitempty"`
	SectorCode     string     `json:"sector_code,omitempty"` // NAF/APE
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	Address        string     `json:"address,omitempty"`
	HeadOffice     bool       `json:"head_office,omitempty"`
	Establishments int        `json:"establishments,omitempty"`
}

// FinancialData holds revenue and headcount figures.
type FinancialData struct {
	Revenue         *float64 `json:"revenue,omitempty"`
	RevenueYear     int      `json:"revenue_year,omitempty"`
	PreviousRevenue *float64 `json:"previous_revenue,omitempty"`
	Employees       *int     `json:"employees,omitempty"`
	FundingRecent   bool     `json:"funding_recent,omitempty"`
}

// DecisionMaker is a named person able to buy.
type DecisionMaker struct {
	Name    string     `json:"name"`
	Role    string     `json:"role,omitempty"`
	Profile string     `json:"profile,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// Review is a public customer review.
type Review struct {
	Rating int       `json:"rating"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date,omitempty"`
}

// WebsiteContent is the bounded textual extract of the company site.
type WebsiteContent struct {
	Title         string   `json:"title,omitempty"`
	Headings      []string `json:"headings,omitempty"`
	Subheadings   []string `json:"subheadings,omitempty"`
	Paragraphs    []string `json:"paragraphs,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	CopyrightYear int      `json:"copyright_year,omitempty"`
	HiringPage    bool     `json:"hiring_page,omitempty"`
}

// NetworkProfile is the professional network footprint of the company.
type NetworkProfile struct {
	URL              string  `json:"url,omitempty"`
	Followers        int     `json:"followers,omitempty"`
	EmployeeRange    string  `json:"employee_range,omitempty"`
	RecentPosts      int     `json:"recent_posts,omitempty"`
	OpenPositions    int     `json:"open_positions,omitempty"`
	GrowthPct        float64 `json:"growth_pct,omitempty"`
	ManagementChange bool    `json:"management_change,omitempty"`
	Relocated        bool    `json:"relocated,omitempty"`
}

// EnrichedRecord is the merged result of one enrichment run.
//
// Every field is written at most once per run; Provenance names the source
// that supplied it.
type EnrichedRecord struct {
	Contact        Contact         `json:"contact"`
	Sources        []SourceName    `json:"sources"`
	Description    string          `json:"description,omitempty"`
	Emails         []string        `json:"emails,omitempty"`
	Phones         []string        `json:"phones,omitempty"`
	Address        string          `json:"address,omitempty"`
	Social         SocialLinks     `json:"social"`
	Legal          LegalData       `json:"legal"`
	Financial      FinancialData   `json:"financial"`
	DecisionMakers []DecisionMaker `json:"decision_makers,omitempty"`
	Rating         *float64        `json:"rating,omitempty"`
	ReviewCount    int             `json:"review_count,omitempty"`
	Reviews        []Review        `json:"reviews,omitempty"`
	HasProvider    *bool           `json:"has_provider,omitempty"`
	Website        WebsiteContent  `json:"website"`
	Network        NetworkProfile  `json:"network"`

	Provenance    map[string]SourceName `json:"provenance"`
	Completeness  int                   `json:"completeness"`
	FieldsFound   []string              `json:"fields_found"`
	FieldsMissing []string              `json:"fields_missing"`
	Version       int64                 `json:"version"`
	EnrichedAt    time.Time             `json:"enriched_at"`
}

// NewEnrichedRecord starts an empty record for a contact.
func NewEnrichedRecord(c Contact) *EnrichedRecord {
	return &EnrichedRecord{
		Contact:    c,
		Provenance: make(map[string]SourceName),
	}
}

// HasSource reports whether the given source contributed.
func (r *EnrichedRecord) HasSource(s SourceName) bool {
	for _, x := range r.Sources {
		if x == s {
			return true
		}
	}
	return false
}

// PrimaryEmail returns the best known email: the contact's own first, then
// the first extracted one.
func (r *EnrichedRecord) PrimaryEmail() string {
	if e := r.Contact.Key(); e != "" {
		return e
	}
	if len(r.Emails) > 0 {
		return NormalizeEmail(r.Emails[0])
	}
	return ""
}

// PrimaryPhone returns the first known phone number.
func (r *EnrichedRecord) PrimaryPhone() string {
	if len(r.Phones) > 0 {
		return r.Phones[0]
	}
	if len(r.Contact.Phones) > 0 {
		return r.Contact.Phones[0]
	}
	return ""
}

// DecisionMaker returns the first named decision-maker, if any.
func (r *EnrichedRecord) DecisionMaker() *DecisionMaker {
	for i := range r.DecisionMakers {
		if r.DecisionMakers[i].Name != "" {
			return &r.DecisionMakers[i]
		}
	}
	return nil
}

// Employees returns the known headcount or -1.
func (r *EnrichedRecord) Employees() int {
	if r.Financial.Employees == nil {
		return -1
	}
	return *r.Financial.Employees
}

// Sector returns the best sector label for scoring and scheduling.
func (r *EnrichedRecord) Sector() string {
	if r.Contact.Sector != "" {
		return r.Contact.Sector
	}
	return r.Legal.SectorCode
}
