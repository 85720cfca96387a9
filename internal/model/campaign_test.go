package model

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatus_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to CampaignStatus
		want     bool
	}{
		{CampaignActive, CampaignPaused, true},
		{CampaignPaused, CampaignActive, true},
		{CampaignActive, CampaignReplied, true},
		{CampaignActive, CampaignStopped, true},
		{CampaignPaused, CampaignReplied, true},
		{CampaignReplied, CampaignActive, false},
		{CampaignStopped, CampaignPaused, false},
		{CampaignCompleted, CampaignActive, false},
		{CampaignActive, CampaignActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestCampaign_PauseAndResume(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := &Campaign{ID: "c1", Status: CampaignActive}

	until := now.Add(72 * time.Hour)
	require.NoError(t, c.Pause(until, "out of office", now))
	assert.Equal(t, CampaignPaused, c.Status)
	require.NotNil(t, c.PausedUntil)
	assert.Equal(t, until, *c.PausedUntil)

	require.NoError(t, c.Transition(CampaignActive, "resumed", now.Add(73*time.Hour)))
	assert.Nil(t, c.PausedUntil)
	assert.Equal(t, "resumed", c.StatusReason)
}

func TestCampaign_TerminalRejectsTransition(t *testing.T) {
	t.Parallel()

	c := &Campaign{ID: "c1", Status: CampaignReplied}
	assert.True(t, c.Status.Terminal())

	err := c.Transition(CampaignActive, "", time.Now())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidTransition))
	assert.Equal(t, CampaignReplied, c.Status)
}

func TestABStatus_CanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, ABRunning.CanTransition(ABCompleted))
	assert.False(t, ABCompleted.CanTransition(ABRunning))
}

func TestVariant_Rate(t *testing.T) {
	t.Parallel()

	v := Variant{Sent: 200, Opened: 50, Replied: 10}
	assert.InDelta(t, 0.25, v.Rate(MetricOpen), 1e-9)
	assert.InDelta(t, 0.05, v.Rate(MetricReply), 1e-9)
	assert.Zero(t, Variant{}.Rate(MetricOpen))
}

func TestReplyCategory_Profile(t *testing.T) {
	t.Parallel()

	assert.True(t, ReplyUnsubscribe.Profile().StopsSequence)
	assert.Equal(t, ActionSuppress, ReplyNegative.Profile().Action)
	assert.False(t, ReplyOutOfOffice.Profile().StopsSequence)
	assert.Equal(t, ActionNone, ReplyCategory("bogus").Profile().Action)
	assert.False(t, ReplyCategory("bogus").Valid())
	assert.Len(t, ReplyCategories, 8)
}
