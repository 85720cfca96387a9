package scoring

import (
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Data-quality points.
const (
	qualityDirectEmail   = 8
	qualityGenericEmail  = 4
	qualityDecisionMaker = 5
	qualityPhone         = 4
	qualityProfile       = 3
	qualityComplete      = 2

	completeThreshold = 80
)

// dataQuality scores how reachable the contact is. The second result
// reports whether a non-generic email is known.
func dataQuality(r *model.EnrichedRecord, cfg Config) (int, bool) {
	score := 0
	direct := false
	switch email := bestEmail(r, cfg.GenericMailboxes); {
	case email == "":
	case isGenericMailbox(email, cfg.GenericMailboxes):
		score += qualityGenericEmail
	default:
		score += qualityDirectEmail
		direct = true
	}
	if r.DecisionMaker() != nil {
		score += qualityDecisionMaker
	}
	if r.PrimaryPhone() != "" {
		score += qualityPhone
	}
	if r.Social.Any() || r.Network.URL != "" {
		score += qualityProfile
	}
	if r.Completeness >= completeThreshold {
		score += qualityComplete
	}
	return clamp(score, 0, model.MaxDataQuality), direct
}

// bestEmail prefers the first direct address over shared inboxes.
func bestEmail(r *model.EnrichedRecord, generic []string) string {
	candidates := make([]string, 0, len(r.Emails)+1)
	if e := r.Contact.Key(); e != "" {
		candidates = append(candidates, e)
	}
	candidates = append(candidates, r.Emails...)
	for _, e := range candidates {
		if !isGenericMailbox(e, generic) {
			return model.NormalizeEmail(e)
		}
	}
	if len(candidates) > 0 {
		return model.NormalizeEmail(candidates[0])
	}
	return ""
}

func isGenericMailbox(email string, generic []string) bool {
	local, _, ok := strings.Cut(model.NormalizeEmail(email), "@")
	if !ok {
		return false
	}
	for _, g := range generic {
		if local == g || strings.HasPrefix(local, g+".") || strings.HasPrefix(local, g+"-") {
			return true
		}
	}
	return false
}
