package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// Raw signal points. They sum to maxRawIntent.
const (
	pointsReviewPain       = 25
	pointsHiring           = 15
	pointsNoProvider       = 10
	pointsYoungCompany     = 10
	pointsRapidGrowth      = 10
	pointsRecentFunding    = 10
	pointsManagementChange = 5
	pointsRelocation       = 5
	pointsStaleWebsite     = 5
	pointsRecentActivity   = 5

	maxRawIntent = 100
)

const (
	youngCompanyAge  = 2 * 365 * 24 * time.Hour
	recentActivity   = 90 * 24 * time.Hour
	staleWebsiteYear = 2
	painReviewRating = 2
)

// detector evaluates one buying signal. It returns nil when the signal is
// absent.
type detector func(r *model.EnrichedRecord, cfg Config, now time.Time) *model.BuyingSignal

var detectors = []detector{
	detectReviewPain,
	detectHiring,
	detectNoProvider,
	detectYoungCompany,
	detectRapidGrowth,
	detectRecentFunding,
	detectManagementChange,
	detectRelocation,
	detectStaleWebsite,
	detectRecentActivity,
}

// DetectSignals runs every detector. Signals are independent and additive.
func DetectSignals(r *model.EnrichedRecord, cfg Config, now time.Time) []model.BuyingSignal {
	cfg = cfg.withDefaults()
	var out []model.BuyingSignal
	for _, d := range detectors {
		if s := d(r, cfg, now); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// intentFromSignals scales raw signal points to the Intent sub-score and
// picks the strongest signal. Ties keep the first detected.
func intentFromSignals(signals []model.BuyingSignal) (intent, raw int, strongest *model.BuyingSignal) {
	for i := range signals {
		raw += signals[i].Points
		if strongest == nil || signals[i].Points > strongest.Points {
			s := signals[i]
			strongest = &s
		}
	}
	raw = clamp(raw, 0, maxRawIntent)
	intent = clamp((raw*model.MaxIntent+maxRawIntent/2)/maxRawIntent, 0, model.MaxIntent)
	return intent, raw, strongest
}

func detectReviewPain(r *model.EnrichedRecord, cfg Config, _ time.Time) *model.BuyingSignal {
	var hits []string
	low := 0
	for _, rv := range r.Reviews {
		folded := textnorm.Fold(rv.Text)
		matched := false
		for _, kw := range cfg.PainKeywords {
			if strings.Contains(folded, textnorm.Fold(kw)) {
				hits = append(hits, kw)
				matched = true
				break
			}
		}
		if !matched && rv.Rating > 0 && rv.Rating <= painReviewRating {
			low++
		}
	}
	if len(hits) == 0 && low == 0 {
		return nil
	}
	evidence := fmt.Sprintf("%d low rated review(s)", low)
	if len(hits) > 0 {
		evidence = "reviews mention: " + strings.Join(dedupe(hits), ", ")
	}
	return &model.BuyingSignal{
		Type:     model.SignalReviewPain,
		Points:   pointsReviewPain,
		Severity: model.SeverityHigh,
		Insight:  "customers complain publicly about a problem the offer can solve",
		Evidence: evidence,
	}
}

func detectHiring(r *model.EnrichedRecord, _ Config, _ time.Time) *model.BuyingSignal {
	if !r.Website.HiringPage && r.Network.OpenPositions == 0 {
		return nil
	}
	evidence := "careers page on the website"
	if r.Network.OpenPositions > 0 {
		evidence = fmt.Sprintf("%d open position(s)", r.Network.OpenPositions)
	}
	return &model.BuyingSignal{
		Type:     model.SignalHiring,
		Points:   pointsHiring,
		Severity: model.SeverityHigh,
		Insight:  "the company is hiring and has budget to grow",
		Evidence: evidence,
	}
}

func detectNoProvider(r *model.EnrichedRecord, _ Config, _ time.Time) *model.BuyingSignal {
	if r.HasProvider == nil || *r.HasProvider {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalNoProvider,
		Points:   pointsNoProvider,
		Severity: model.SeverityMedium,
		Insight:  "no agency or provider credited on the website",
	}
}

func detectYoungCompany(r *model.EnrichedRecord, _ Config, now time.Time) *model.BuyingSignal {
	created := r.Legal.CreatedAt
	if created == nil || created.After(now) || now.Sub(*created) >= youngCompanyAge {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalYoungCompany,
		Points:   pointsYoungCompany,
		Severity: model.SeverityMedium,
		Insight:  "young company still setting up its tools and suppliers",
		Evidence: "created " + created.Format("2006-01-02"),
	}
}

func detectRapidGrowth(r *model.EnrichedRecord, cfg Config, _ time.Time) *model.BuyingSignal {
	var evidence string
	switch {
	case r.Network.GrowthPct >= cfg.GrowthPct:
		evidence = fmt.Sprintf("headcount +%.0f%%", r.Network.GrowthPct)
	case r.Financial.Revenue != nil && r.Financial.PreviousRevenue != nil && *r.Financial.PreviousRevenue > 0:
		pct := (*r.Financial.Revenue - *r.Financial.PreviousRevenue) / *r.Financial.PreviousRevenue * 100
		if pct < cfg.GrowthPct {
			return nil
		}
		evidence = fmt.Sprintf("revenue +%.0f%%", pct)
	default:
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalRapidGrowth,
		Points:   pointsRapidGrowth,
		Severity: model.SeverityMedium,
		Insight:  "fast growth strains existing processes",
		Evidence: evidence,
	}
}

func detectRecentFunding(r *model.EnrichedRecord, _ Config, _ time.Time) *model.BuyingSignal {
	if !r.Financial.FundingRecent {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalRecentFunding,
		Points:   pointsRecentFunding,
		Severity: model.SeverityMedium,
		Insight:  "recently raised funds to invest",
	}
}

func detectManagementChange(r *model.EnrichedRecord, _ Config, _ time.Time) *model.BuyingSignal {
	if !r.Network.ManagementChange {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalManagementChange,
		Points:   pointsManagementChange,
		Severity: model.SeverityLow,
		Insight:  "new management tends to review suppliers",
	}
}

func detectRelocation(r *model.EnrichedRecord, _ Config, _ time.Time) *model.BuyingSignal {
	if !r.Network.Relocated {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalRelocation,
		Points:   pointsRelocation,
		Severity: model.SeverityLow,
		Insight:  "recent move creates new needs",
	}
}

func detectStaleWebsite(r *model.EnrichedRecord, _ Config, now time.Time) *model.BuyingSignal {
	y := r.Website.CopyrightYear
	if y == 0 || now.Year()-y < staleWebsiteYear {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalStaleWebsite,
		Points:   pointsStaleWebsite,
		Severity: model.SeverityLow,
		Insight:  "the website has not been updated for years",
		Evidence: fmt.Sprintf("copyright %d", y),
	}
}

func detectRecentActivity(r *model.EnrichedRecord, _ Config, now time.Time) *model.BuyingSignal {
	evidence := ""
	if r.Network.RecentPosts > 0 {
		evidence = fmt.Sprintf("%d post(s) in the last 90 days", r.Network.RecentPosts)
	} else {
		for _, rv := range r.Reviews {
			if !rv.Date.IsZero() && now.Sub(rv.Date) <= recentActivity {
				evidence = "recent customer review"
				break
			}
		}
	}
	if evidence == "" {
		return nil
	}
	return &model.BuyingSignal{
		Type:     model.SignalRecentActivity,
		Points:   pointsRecentActivity,
		Severity: model.SeverityLow,
		Insight:  "active online, likely to read messages",
		Evidence: evidence,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
