package model

import "time"

// ABStatus is the lifecycle state of an A/B test.
type ABStatus string

const (
	ABRunning   ABStatus = "running"
	ABCompleted ABStatus = "completed"
)

var abTransitions = map[ABStatus][]ABStatus{
	ABRunning: {ABCompleted},
}

// CanTransition reports whether s may move to next.
func (s ABStatus) CanTransition(next ABStatus) bool {
	for _, n := range abTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// VariantName is "A" or "B".
type VariantName string

const (
	VariantA VariantName = "A"
	VariantB VariantName = "B"
)

// Metric is a tracked event or the rate derived from it.
type Metric string

const (
	MetricSent        Metric = "sent"
	MetricOpen        Metric = "open"
	MetricClick       Metric = "click"
	MetricReply       Metric = "reply"
	MetricUnsubscribe Metric = "unsubscribe"
)

// Variant holds a variant's content reference and counters.
type Variant struct {
	Name         VariantName `json:"name"`
	Label        string      `json:"label,omitempty"`
	Subject      string      `json:"subject,omitempty"`
	Sent         int         `json:"sent"`
	Opened       int         `json:"opened"`
	Clicked      int         `json:"clicked"`
	Replied      int         `json:"replied"`
	Unsubscribed int         `json:"unsubscribed"`
}

// Count returns the counter for a metric.
func (v Variant) Count(m Metric) int {
	switch m {
	case MetricSent:
		return v.Sent
	case MetricOpen:
		return v.Opened
	case MetricClick:
		return v.Clicked
	case MetricReply:
		return v.Replied
	case MetricUnsubscribe:
		return v.Unsubscribed
	}
	return 0
}

// Rate returns count(m)/sent, 0 when nothing was sent.
func (v Variant) Rate(m Metric) float64 {
	if v.Sent == 0 {
		return 0
	}
	return float64(v.Count(m)) / float64(v.Sent)
}

// ABTest is one campaign-level A/B test.
type ABTest struct {
	ID                  string       `json:"id"`
	OrgID               string       `json:"org_id"`
	CampaignID          string       `json:"campaign_id"`
	Status              ABStatus     `json:"status"`
	TargetMetric        Metric       `json:"target_metric"`
	MinSampleSize       int          `json:"min_sample_size"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
	A                   Variant      `json:"a"`
	B                   Variant      `json:"b"`
	Winner              *VariantName `json:"winner,omitempty"`
	WinnerReason        string       `json:"winner_reason,omitempty"`
	ManualWinner        bool         `json:"manual_winner,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
}

// Variant returns a pointer to the named variant.
func (t *ABTest) Variant(name VariantName) *Variant {
	if name == VariantB {
		return &t.B
	}
	return &t.A
}
