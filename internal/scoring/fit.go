package scoring

import (
	"strings"
	"unicode"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/textnorm"
)

// Fit sub-score points.
const (
	sectorExact    = 15
	sectorCategory = 12
	sectorGeneric  = 8
	sectorKnown    = 5
	sectorUnknown  = 3

	sizeExact      = 12
	sizeAdjacent   = 8
	sizeOther      = 4
	sizeUntargeted = sizeAdjacent

	locationCity       = 10
	locationMetro      = 9
	locationDept       = 8
	locationOther      = 2
	locationUntargeted = 5

	revenueInRange    = 8
	revenueUntargeted = 5
	revenueOutside    = 3
	revenueUnknown    = 2

	decisionMakerKnown   = 5
	decisionMakerMissing = 1
)

// largeCompany is the headcount from which a company is no longer an SME.
const largeCompany = 250

// fitScores computes the Fit sub-scores of r against icp.
func fitScores(r *model.EnrichedRecord, icp model.ICP, cfg Config) model.ScoreBreakdown {
	return model.ScoreBreakdown{
		Sector:        scoreSector(r, icp.Sectors, cfg),
		Size:          scoreSize(r.Employees(), icp.Sizes),
		Location:      scoreLocation(r.Contact, icp, cfg.Metros),
		Revenue:       scoreRevenue(r.Financial.Revenue, icp),
		DecisionMaker: scoreDecisionMaker(r),
	}
}

func fitTotal(b model.ScoreBreakdown) int {
	return clamp(b.Sector+b.Size+b.Location+b.Revenue+b.DecisionMaker, 0, model.MaxFit)
}

// sectorText is the folded text describing what the company does.
func sectorText(r *model.EnrichedRecord) string {
	parts := []string{r.Contact.Sector, r.Legal.SectorCode, r.Description, r.Website.Title}
	parts = append(parts, r.Website.Headings...)
	parts = append(parts, r.Website.Keywords...)
	return textnorm.Fold(strings.Join(parts, " "))
}

func scoreSector(r *model.EnrichedRecord, targets []string, cfg Config) int {
	text := words(sectorText(r))
	sector := textnorm.Fold(strings.TrimSpace(r.Sector()))

	var generic bool
	for _, t := range targets {
		target := textnorm.Fold(strings.TrimSpace(t))
		if target == "" {
			continue
		}
		if sector != "" && (sector == target || strings.Contains(sector, target)) {
			return sectorExact
		}
		for _, g := range cfg.GenericSectors {
			if textnorm.Fold(g) == target {
				generic = true
			}
		}
	}

	if text != "" {
		for _, t := range targets {
			for _, kws := range matchingCategories(textnorm.Fold(t), cfg.SectorCategories) {
				for _, kw := range kws {
					if hasWord(text, textnorm.Fold(kw)) {
						return sectorCategory
					}
				}
			}
		}
	}

	if generic {
		if n := r.Employees(); n < largeCompany {
			return sectorGeneric
		}
	}
	if text != "" {
		return sectorKnown
	}
	return sectorUnknown
}

// matchingCategories returns the keyword lists of the categories a target
// sector belongs to.
func matchingCategories(target string, categories map[string][]string) [][]string {
	if target == "" {
		return nil
	}
	var out [][]string
	for name, kws := range categories {
		if textnorm.Fold(name) == target {
			out = append(out, kws)
			continue
		}
		padded := words(target)
		for _, kw := range kws {
			if hasWord(padded, textnorm.Fold(kw)) {
				out = append(out, kws)
				break
			}
		}
	}
	return out
}

// words reduces folded text to space-separated words with a leading and
// trailing space, so that hasWord matches whole words only.
func words(folded string) string {
	f := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
	if len(f) == 0 {
		return ""
	}
	return " " + strings.Join(f, " ") + " "
}

func hasWord(padded, kw string) bool {
	return kw != "" && strings.Contains(padded, " "+kw+" ")
}

func scoreSize(employees int, targets []model.SizeBracket) int {
	if len(targets) == 0 {
		return sizeUntargeted
	}
	if employees < 0 {
		return sizeOther
	}
	b := model.BracketFor(employees)
	best := sizeOther
	for _, t := range targets {
		if t == b {
			return sizeExact
		}
		if t.Adjacent(b) {
			best = sizeAdjacent
		}
	}
	return best
}

func scoreLocation(c model.Contact, icp model.ICP, metros map[string][]string) int {
	if len(icp.Cities) == 0 && icp.Region == "" && len(icp.Departments) == 0 {
		return locationUntargeted
	}
	city := textnorm.Fold(strings.TrimSpace(c.City))
	region := textnorm.Fold(strings.TrimSpace(icp.Region))

	if city != "" {
		for _, t := range icp.Cities {
			if textnorm.Fold(strings.TrimSpace(t)) == city {
				return locationCity
			}
		}
		if region == city {
			return locationCity
		}

		if metro := metroOf(city, metros); metro != "" {
			if region == metro {
				return locationMetro
			}
			for _, t := range icp.Cities {
				if metroOf(textnorm.Fold(strings.TrimSpace(t)), metros) == metro {
					return locationMetro
				}
			}
		}
	}

	if dept := c.DepartmentCode(); dept != "" {
		for _, d := range icp.Departments {
			if strings.TrimSpace(d) == dept {
				return locationDept
			}
		}
	}
	return locationOther
}

func metroOf(city string, metros map[string][]string) string {
	for name, cities := range metros {
		for _, c := range cities {
			if textnorm.Fold(c) == city {
				return textnorm.Fold(name)
			}
		}
	}
	return ""
}

func scoreRevenue(revenue *float64, icp model.ICP) int {
	switch {
	case revenue == nil:
		return revenueUnknown
	case !icp.HasRevenueTarget():
		return revenueUntargeted
	case *revenue >= icp.RevenueMin && (icp.RevenueMax <= 0 || *revenue <= icp.RevenueMax):
		return revenueInRange
	default:
		return revenueOutside
	}
}

func scoreDecisionMaker(r *model.EnrichedRecord) int {
	if r.DecisionMaker() != nil {
		return decisionMakerKnown
	}
	return decisionMakerMissing
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
