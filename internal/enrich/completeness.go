package enrich

import (
	"math"

	"github.com/sells-group/outreach-cli/internal/model"
)

// completenessWeight is one weighted field of the completeness score.
type completenessWeight struct {
	field  string
	weight int
	has    func(r *model.EnrichedRecord) bool
}

var completenessWeights = []completenessWeight{
	{model.FieldEmail, 20, func(r *model.EnrichedRecord) bool { return r.PrimaryEmail() != "" }},
	{model.FieldPhone, 15, func(r *model.EnrichedRecord) bool { return r.PrimaryPhone() != "" }},
	{model.FieldDescription, 10, func(r *model.EnrichedRecord) bool { return r.Description != "" }},
	{model.FieldAddress, 5, func(r *model.EnrichedRecord) bool { return r.Address != "" || r.Legal.Address != "" }},
	{model.FieldRegistryID, 10, func(r *model.EnrichedRecord) bool { return r.Legal.RegistryID != "" }},
	{model.FieldRevenue, 10, func(r *model.EnrichedRecord) bool { return r.Financial.Revenue != nil }},
	{model.FieldEmployees, 10, func(r *model.EnrichedRecord) bool { return r.Financial.Employees != nil }},
	{model.FieldDecisionMaker, 10, func(r *model.EnrichedRecord) bool { return r.DecisionMaker() != nil }},
	{model.FieldRating, 5, func(r *model.EnrichedRecord) bool { return r.Rating != nil }},
	{model.FieldNetworkProfile, 5, func(r *model.EnrichedRecord) bool {
		return r.Network.URL != "" || r.Social.LinkedIn != ""
	}},
}

// Completeness scores r from 0 to 100 and lists the weighted fields found
// and missing, in weight-table order.
func Completeness(r *model.EnrichedRecord) (score int, found, missing []string) {
	total, got := 0, 0
	for _, w := range completenessWeights {
		total += w.weight
		if w.has(r) {
			got += w.weight
			found = append(found, w.field)
		} else {
			missing = append(missing, w.field)
		}
	}
	if total == 0 {
		return 0, found, missing
	}
	return int(math.Round(float64(got) * 100 / float64(total))), found, missing
}

// applyCompleteness stores the completeness result on r.
func applyCompleteness(r *model.EnrichedRecord) {
	r.Completeness, r.FieldsFound, r.FieldsMissing = Completeness(r)
}
