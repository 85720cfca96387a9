package model

import "time"

// Priority is the outreach priority letter.
type Priority string

const (
	PriorityA Priority = "A"
	PriorityB Priority = "B"
	PriorityC Priority = "C"
	PriorityD Priority = "D"
)

// Category is the temperature label paired with a Priority.
type Category string

const (
	CategoryHot     Category = "hot"
	CategoryWarm    Category = "warm"
	CategoryCold    Category = "cold"
	CategoryNurture Category = "nurture"
)

// Score caps.
const (
	MaxFit         = 50
	MaxIntent      = 30
	MaxDataQuality = 20
	MaxTotal       = 100
)

// SignalType enumerates buying signals.
type SignalType string

const (
	SignalHiring           SignalType = "hiring"
	SignalReviewPain       SignalType = "review_pain"
	SignalNoProvider       SignalType = "no_provider"
	SignalYoungCompany     SignalType = "young_company"
	SignalRapidGrowth      SignalType = "rapid_growth"
	SignalRecentFunding    SignalType = "recent_funding"
	SignalManagementChange SignalType = "management_change"
	SignalRelocation       SignalType = "relocation"
	SignalStaleWebsite     SignalType = "stale_website"
	SignalRecentActivity   SignalType = "recent_activity"
)

// Severity grades a signal.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// BuyingSignal is one detected intent signal.
type BuyingSignal struct {
	Type     SignalType `json:"type"`
	Points   int        `json:"points"`
	Severity Severity   `json:"severity"`
	Insight  string     `json:"insight"`
	Evidence string     `json:"evidence,omitempty"`
}

// ScoreBreakdown itemizes the Fit sub-scores.
type ScoreBreakdown struct {
	Sector        int `json:"sector"`
	Size          int `json:"size"`
	Location      int `json:"location"`
	Revenue       int `json:"revenue"`
	DecisionMaker int `json:"decision_maker"`
	IntentRaw     int `json:"intent_raw"`
}

// Recommendation is the suggested next move for a priority.
type Recommendation struct {
	Channels  []Channel `json:"channels"`
	Urgency   string    `json:"urgency"`
	Reasoning string    `json:"reasoning"`
}

// Score is an immutable snapshot tied to one EnrichedRecord version.
type Score struct {
	Fit             int            `json:"fit"`
	Intent          int            `json:"intent"`
	DataQuality     int            `json:"data_quality"`
	Total           int            `json:"total"`
	Priority        Priority       `json:"priority"`
	Category        Category       `json:"category"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	Signals         []BuyingSignal `json:"signals,omitempty"`
	StrongestSignal *BuyingSignal  `json:"strongest_signal,omitempty"`
	Recommendation  Recommendation `json:"recommendation"`
	Warnings        []string       `json:"warnings,omitempty"`
	RecordVersion   int64          `json:"record_version"`
	ComputedAt      time.Time      `json:"computed_at"`
}

// HasSignal reports whether the score carries a signal of the given type.
func (s *Score) HasSignal(t SignalType) bool {
	if s == nil {
		return false
	}
	for _, sig := range s.Signals {
		if sig.Type == t {
			return true
		}
	}
	return false
}
