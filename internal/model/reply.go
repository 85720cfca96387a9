package model

import "time"

// ReplyCategory is the terminal classification of an inbound reply.
type ReplyCategory string

const (
	ReplyPositive    ReplyCategory = "positive"
	ReplyNegative    ReplyCategory = "negative"
	ReplyObjection   ReplyCategory = "objection"
	ReplyReferral    ReplyCategory = "referral"
	ReplyOutOfOffice ReplyCategory = "out_of_office"
	ReplyWrongPerson ReplyCategory = "wrong_person"
	ReplyUnsubscribe ReplyCategory = "unsubscribe"
	ReplyNeutral     ReplyCategory = "neutral"
)

// ReplyCategories lists every category in tie-break order.
var ReplyCategories = []ReplyCategory{
	ReplyUnsubscribe,
	ReplyNegative,
	ReplyOutOfOffice,
	ReplyWrongPerson,
	ReplyReferral,
	ReplyObjection,
	ReplyPositive,
	ReplyNeutral,
}

// ReplyAction is what the executor does for a category.
type ReplyAction string

const (
	ActionNotifyUrgent   ReplyAction = "notify_urgent"
	ActionSuppress       ReplyAction = "suppress"
	ActionNotifyObjector ReplyAction = "notify_objection"
	ActionCreateReferral ReplyAction = "create_referral"
	ActionPauseSequence  ReplyAction = "pause_sequence"
	ActionStopSequence   ReplyAction = "stop_sequence"
	ActionNone           ReplyAction = "none"
)

// CategoryProfile is the fixed behaviour attached to a category.
type CategoryProfile struct {
	StopsSequence bool        `json:"stops_sequence"`
	Action        ReplyAction `json:"action"`
	Priority      string      `json:"priority"`
}

var categoryProfiles = map[ReplyCategory]CategoryProfile{
	ReplyPositive:    {StopsSequence: true, Action: ActionNotifyUrgent, Priority: "urgent"},
	ReplyNegative:    {StopsSequence: true, Action: ActionSuppress, Priority: "low"},
	ReplyObjection:   {StopsSequence: true, Action: ActionNotifyObjector, Priority: "high"},
	ReplyReferral:    {StopsSequence: true, Action: ActionCreateReferral, Priority: "high"},
	ReplyOutOfOffice: {StopsSequence: false, Action: ActionPauseSequence, Priority: "low"},
	ReplyWrongPerson: {StopsSequence: true, Action: ActionStopSequence, Priority: "low"},
	ReplyUnsubscribe: {StopsSequence: true, Action: ActionSuppress, Priority: "medium"},
	ReplyNeutral:     {StopsSequence: false, Action: ActionNone, Priority: "low"},
}

// Profile returns the fixed profile of the category. Unknown categories are
// treated as neutral.
func (c ReplyCategory) Profile() CategoryProfile {
	if p, ok := categoryProfiles[c]; ok {
		return p
	}
	return categoryProfiles[ReplyNeutral]
}

// Valid reports whether c is one of the eight categories.
func (c ReplyCategory) Valid() bool {
	_, ok := categoryProfiles[c]
	return ok
}

// Confidence grades a classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Sentiment of a reply.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Referral is a contact extracted from a "talk to X" reply.
type Referral struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Empty reports whether nothing usable was extracted.
func (r *Referral) Empty() bool {
	return r == nil || (r.Email == "" && r.Name == "" && r.Phone == "")
}

// ActionLog is one executed (or attempted) action.
type ActionLog struct {
	Action     ReplyAction `json:"action"`
	Success    bool        `json:"success"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// ReplyClassification is one immutable classification record.
type ReplyClassification struct {
	ID             string        `json:"id"`
	OrgID          string        `json:"org_id"`
	CampaignID     string        `json:"campaign_id,omitempty"`
	ContactEmail   string        `json:"contact_email"`
	Text           string        `json:"text"`
	Category       ReplyCategory `json:"category"`
	Sentiment      Sentiment     `json:"sentiment"`
	Confidence     Confidence    `json:"confidence"`
	Tier           int           `json:"tier"`
	KeywordHits    int           `json:"keyword_hits"`
	ObjectionType  string        `json:"objection_type,omitempty"`
	Referral       *Referral     `json:"referral,omitempty"`
	ReturnDate     *time.Time    `json:"return_date,omitempty"`
	SuggestedReply string        `json:"suggested_reply,omitempty"`
	StopsSequence  bool          `json:"stops_sequence"`
	Action         ReplyAction   `json:"action"`
	Priority       string        `json:"priority"`
	Actions        []ActionLog   `json:"actions,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
