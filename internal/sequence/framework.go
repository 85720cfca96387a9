// Package sequence picks a copywriting framework for a prospect and
// produces the multi-step, multi-channel message sequence.
package sequence

import (
	"fmt"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// highRating is the public rating from which a prospect is praised first.
const highRating = 4.5

// transformativeOffers are offer categories with a visible before/after.
var transformativeOffers = []string{
	"nettoyage", "cleaning", "web", "site internet", "site web", "marketing",
	"design", "renovation", "decoration", "amenagement", "photo",
}

// SelectFramework returns the framework for a prospect and why it was
// chosen. Rules are evaluated in order and the first match wins.
func SelectFramework(r *model.EnrichedRecord, score *model.Score, icp model.ICP) (model.Framework, string) {
	if score.HasSignal(model.SignalReviewPain) {
		return model.FrameworkPAS, "Customers describe a visible pain in public reviews: name the problem, agitate it, then solve it."
	}
	if r.Rating != nil && *r.Rating >= highRating {
		return model.FrameworkPPP, fmt.Sprintf("Public rating of %.1f: open with genuine praise, picture the next step, then push.", *r.Rating)
	}
	if score.HasSignal(model.SignalRapidGrowth) || score.HasSignal(model.SignalRecentFunding) {
		return model.FrameworkPPP, "Growth or funding signal: praise the momentum, picture what comes next, then push."
	}
	if textnorm.ContainsAny(icp.OfferCategory+" "+icp.Niche, transformativeOffers...) {
		return model.FrameworkBAB, "The offer produces a visible transformation: show before, after, and the bridge."
	}
	return model.FrameworkAIDA, "No strong signal: cold default, grab attention and lead to a single action."
}
