package enrich

import (
	"github.com/sells-group/outreach-cli/internal/model"
)

// Provenance keys for fields without a completeness weight.
const (
	fieldLegalForm       = "legal_form"
	fieldEstablishments  = "establishments"
	fieldPreviousRevenue = "previous_revenue"
	fieldFunding         = "funding_recent"
	fieldReviews         = "reviews"
	fieldReviewCount     = "review_count"
	fieldHasProvider     = "has_provider"
	fieldWebsite         = "website_content"
	fieldLinkedIn        = "social.linkedin"
	fieldFacebook        = "social.facebook"
	fieldInstagram       = "social.instagram"
	fieldTwitter         = "social.twitter"
)

// phonePriority ranks sources for the phone field. Lower wins. Sources not
// listed never displace an existing phone.
var phonePriority = map[model.SourceName]int{
	model.SourceMaps:    0,
	model.SourceWebsite: 1,
}

// Merge folds the contribution of src into dst. A field already set keeps
// its value and provenance; only the phone field may be taken over by a
// source with a better phonePriority.
func Merge(dst, patch *model.EnrichedRecord, src model.SourceName) {
	if dst.Provenance == nil {
		dst.Provenance = make(map[string]model.SourceName)
	}
	m := merger{dst: dst, src: src}

	m.str(model.FieldDescription, &dst.Description, patch.Description)
	m.slice(model.FieldEmail, &dst.Emails, patch.Emails)
	m.phones(patch.Phones)
	m.str(model.FieldAddress, &dst.Address, patch.Address)

	m.str(fieldLinkedIn, &dst.Social.LinkedIn, patch.Social.LinkedIn)
	m.str(fieldFacebook, &dst.Social.Facebook, patch.Social.Facebook)
	m.str(fieldInstagram, &dst.Social.Instagram, patch.Social.Instagram)
	m.str(fieldTwitter, &dst.Social.Twitter, patch.Social.Twitter)

	m.str(model.FieldRegistryID, &dst.Legal.RegistryID, patch.Legal.RegistryID)
	m.str(model.FieldLegalName, &dst.Legal.LegalName, patch.Legal.LegalName)
	m.str(fieldLegalForm, &dst.Legal.LegalForm, patch.Legal.LegalForm)
	m.str(model.FieldSector, &dst.Legal.SectorCode, patch.Legal.SectorCode)
	if dst.Legal.CreatedAt == nil && patch.Legal.CreatedAt != nil {
		dst.Legal.CreatedAt = patch.Legal.CreatedAt
		m.mark(model.FieldCreatedAt)
	}
	if dst.Legal.Address == "" && patch.Legal.Address != "" {
		dst.Legal.Address = patch.Legal.Address
		dst.Legal.HeadOffice = patch.Legal.HeadOffice
	}
	if dst.Legal.Establishments == 0 && patch.Legal.Establishments > 0 {
		dst.Legal.Establishments = patch.Legal.Establishments
		m.mark(fieldEstablishments)
	}

	if dst.Financial.Revenue == nil && patch.Financial.Revenue != nil {
		dst.Financial.Revenue = patch.Financial.Revenue
		dst.Financial.RevenueYear = patch.Financial.RevenueYear
		m.mark(model.FieldRevenue)
	}
	if dst.Financial.PreviousRevenue == nil && patch.Financial.PreviousRevenue != nil {
		dst.Financial.PreviousRevenue = patch.Financial.PreviousRevenue
		m.mark(fieldPreviousRevenue)
	}
	if dst.Financial.Employees == nil && patch.Financial.Employees != nil {
		dst.Financial.Employees = patch.Financial.Employees
		m.mark(model.FieldEmployees)
	}
	if !dst.Financial.FundingRecent && patch.Financial.FundingRecent {
		dst.Financial.FundingRecent = true
		m.mark(fieldFunding)
	}

	if len(dst.DecisionMakers) == 0 && len(patch.DecisionMakers) > 0 {
		dst.DecisionMakers = patch.DecisionMakers
		m.mark(model.FieldDecisionMaker)
	}

	if dst.Rating == nil && patch.Rating != nil {
		dst.Rating = patch.Rating
		m.mark(model.FieldRating)
	}
	if dst.ReviewCount == 0 && patch.ReviewCount > 0 {
		dst.ReviewCount = patch.ReviewCount
		m.mark(fieldReviewCount)
	}
	m.reviews(patch.Reviews)
	if dst.HasProvider == nil && patch.HasProvider != nil {
		dst.HasProvider = patch.HasProvider
		m.mark(fieldHasProvider)
	}

	if isEmptyWebsite(dst.Website) && !isEmptyWebsite(patch.Website) {
		dst.Website = patch.Website
		m.mark(fieldWebsite)
	}
	if dst.Network == (model.NetworkProfile{}) && patch.Network != (model.NetworkProfile{}) {
		dst.Network = patch.Network
		m.mark(model.FieldNetworkProfile)
	}
}

type merger struct {
	dst *model.EnrichedRecord
	src model.SourceName
}

func (m merger) mark(field string) {
	if _, ok := m.dst.Provenance[field]; !ok {
		m.dst.Provenance[field] = m.src
	}
}

func (m merger) str(field string, dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
		m.mark(field)
	}
}

func (m merger) slice(field string, dst *[]string, v []string) {
	if len(*dst) == 0 && len(v) > 0 {
		*dst = append([]string(nil), v...)
		m.mark(field)
	}
}

func (m merger) reviews(v []model.Review) {
	if len(m.dst.Reviews) == 0 && len(v) > 0 {
		m.dst.Reviews = append([]model.Review(nil), v...)
		m.mark(fieldReviews)
	}
}

func (m merger) phones(v []string) {
	if len(v) == 0 {
		return
	}
	if len(m.dst.Phones) == 0 {
		m.dst.Phones = append([]string(nil), v...)
		m.dst.Provenance[model.FieldPhone] = m.src
		return
	}
	newRank, ok := phonePriority[m.src]
	if !ok {
		return
	}
	curRank, ok := phonePriority[m.dst.Provenance[model.FieldPhone]]
	if !ok || newRank >= curRank {
		return
	}
	m.dst.Phones = append([]string(nil), v...)
	m.dst.Provenance[model.FieldPhone] = m.src
}

func isEmptyWebsite(w model.WebsiteContent) bool {
	return w.Title == "" && len(w.Headings) == 0 && len(w.Subheadings) == 0 &&
		len(w.Paragraphs) == 0 && len(w.Keywords) == 0 && w.CopyrightYear == 0 && !w.HiringPage
}
