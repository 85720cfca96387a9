package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = eris.New("model: invalid status transition")

// CampaignStatus is the per-contact sequence state.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignReplied   CampaignStatus = "replied"
	CampaignStopped   CampaignStatus = "stopped"
	CampaignCompleted CampaignStatus = "completed"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignActive: {CampaignPaused, CampaignReplied, CampaignStopped, CampaignCompleted},
	CampaignPaused: {CampaignActive, CampaignReplied, CampaignStopped},
}

// Terminal reports whether no transition leaves s.
func (s CampaignStatus) Terminal() bool {
	return len(campaignTransitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	for _, n := range campaignTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Campaign tracks one contact's progress through its sequence.
type Campaign struct {
	ID           string         `json:"id"`
	OrgID        string         `json:"org_id"`
	ContactEmail string         `json:"contact_email"`
	Status       CampaignStatus `json:"status"`
	StatusReason string         `json:"status_reason,omitempty"`
	Sequence     *Sequence      `json:"sequence,omitempty"`
	ABTestID     string         `json:"ab_test_id,omitempty"`
	Variant      VariantName    `json:"variant,omitempty"`
	CurrentStep  int            `json:"current_step"`
	PausedUntil  *time.Time     `json:"paused_until,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Transition moves the campaign to next or returns ErrInvalidTransition.
func (c *Campaign) Transition(next CampaignStatus, reason string, now time.Time) error {
	if !c.Status.CanTransition(next) {
		return eris.Wrapf(ErrInvalidTransition, "campaign %s: %s -> %s", c.ID, c.Status, next)
	}
	c.Status = next
	c.StatusReason = reason
	c.UpdatedAt = now
	if next != CampaignPaused {
		c.PausedUntil = nil
	}
	return nil
}

// Pause moves an active campaign to paused until the given time.
func (c *Campaign) Pause(until time.Time, reason string, now time.Time) error {
	if err := c.Transition(CampaignPaused, reason, now); err != nil {
		return err
	}
	c.PausedUntil = &until
	return nil
}
