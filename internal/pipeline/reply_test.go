package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/reply"
)

func TestHandleReply_StopsAndSuppresses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tt, err := h.tests.CreateTest(ctx, "org1", abtest.TestSpec{CampaignID: "spring"})
	require.NoError(t, err)
	res, err := h.orch.Run(ctx, "org1", testContact("a@b.fr"), testICP, RunOptions{ABTestID: tt.ID})
	require.NoError(t, err)

	cls, err := h.orch.HandleReply(ctx, reply.Inbound{
		OrgID:        "org1",
		ContactEmail: "A@b.fr",
		Text:         "Je ne suis plus intéressé, merci d'arrêter",
	})
	require.NoError(t, err)
	assert.Contains(t, []model.ReplyCategory{model.ReplyNegative, model.ReplyUnsubscribe}, cls.Category)
	assert.True(t, cls.StopsSequence)
	assert.Equal(t, res.CampaignID, cls.CampaignID, "current campaign resolved from the address")

	cmp, err := h.campaigns.Get(ctx, "org1", res.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignReplied, cmp.Status)

	d, err := h.gate.CanSend(ctx, "a@b.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSuppressed, d.Reason)

	got, err := h.tests.Get(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.A.Replied)
}

func TestHandleReply_OutOfOfficeIsNotAReply(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tt, err := h.tests.CreateTest(ctx, "org1", abtest.TestSpec{CampaignID: "spring"})
	require.NoError(t, err)
	res, err := h.orch.Run(ctx, "org1", testContact("a@b.fr"), testICP, RunOptions{ABTestID: tt.ID})
	require.NoError(t, err)

	cls, err := h.orch.HandleReply(ctx, reply.Inbound{
		OrgID:      "org1",
		CampaignID: res.CampaignID,
		Text:       "Je suis absent du bureau en congés, de retour le 16 juin. Message automatique.",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReplyOutOfOffice, cls.Category)
	assert.Equal(t, "a@b.fr", cls.ContactEmail)

	cmp, err := h.campaigns.Get(ctx, "org1", res.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignPaused, cmp.Status)

	got, err := h.tests.Get(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Zero(t, got.A.Replied)
}

func TestHandleReply_WithoutCampaign(t *testing.T) {
	h := newHarness(t, nil)

	cls, err := h.orch.HandleReply(context.Background(), reply.Inbound{
		OrgID:        "org1",
		ContactEmail: "nobody@x.fr",
		Text:         "Oui, je suis intéressé, appelez-moi quand vous voulez pour un rendez-vous.",
	})
	require.NoError(t, err)
	assert.Empty(t, cls.CampaignID)
	assert.NotEmpty(t, cls.Actions)
}

func TestHandleReply_Empty(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.HandleReply(context.Background(), reply.Inbound{OrgID: "org1", ContactEmail: "a@b.fr", Text: " "})
	assert.ErrorIs(t, err, reply.ErrEmptyReply)
}
