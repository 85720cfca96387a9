package model

import "time"

// BlockReason is the reason code of a compliance rejection.
type BlockReason string

const (
	ReasonNone               BlockReason = ""
	ReasonSuppressed         BlockReason = "suppressed"
	ReasonBounced            BlockReason = "bounced"
	ReasonMaxTouches         BlockReason = "max_touches_reached"
	ReasonCoolingOff         BlockReason = "cooling_off"
	ReasonComplained         BlockReason = "complained"
	ReasonQuotaExhausted     BlockReason = "quota_exhausted"
	ReasonCampaignInProgress BlockReason = "campaign_in_progress"
)

// BounceType distinguishes permanent from temporary delivery failures.
type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

// SuppressionEntry permanently blocks an address until explicitly removed.
type SuppressionEntry struct {
	Email     string    `json:"email"`
	OrgID     string    `json:"org_id"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CoolingOffEntry blocks an address until ExpiresAt.
type CoolingOffEntry struct {
	Email     string    `json:"email"`
	OrgID     string    `json:"org_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the window is still open at now.
func (e CoolingOffEntry) Active(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// BounceEntry accumulates bounces for one address.
type BounceEntry struct {
	Email     string     `json:"email"`
	Count     int        `json:"count"`
	LastType  BounceType `json:"last_type"`
	Reason    string     `json:"reason,omitempty"`
	EventIDs  []string   `json:"event_ids,omitempty"`
	FirstAt   time.Time  `json:"first_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ComplaintEntry records a spam complaint.
type ComplaintEntry struct {
	Email     string    `json:"email"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TouchEntry is one outbound message that counts toward the touch cap.
type TouchEntry struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	OrgID   string    `json:"org_id"`
	Channel Channel   `json:"channel"`
	SentAt  time.Time `json:"sent_at"`
}

// Decision is the result of a compliance check. A rejection is a normal
// outcome, not an error.
type Decision struct {
	Allowed          bool              `json:"allowed"`
	Reason           BlockReason       `json:"reason,omitempty"`
	Detail           string            `json:"detail,omitempty"`
	RemainingTouches int               `json:"remaining_touches,omitempty"`
	NextContactAt    *time.Time        `json:"next_contact_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
