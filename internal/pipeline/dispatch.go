package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/quota"
)

// OutboxMessage is a step released for delivery. The transport layer reads
// the outbox collection; nothing here talks to a mail or SMS provider.
type OutboxMessage struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id"`
	CampaignID string            `json:"campaign_id"`
	AccountID  string            `json:"account_id,omitempty"`
	Email      string            `json:"email"`
	Step       int               `json:"step"`
	Channel    model.Channel     `json:"channel"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	ABTestID   string            `json:"ab_test_id,omitempty"`
	Variant    model.VariantName `json:"variant,omitempty"`
	SendAt     time.Time         `json:"send_at"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DispatchResult reports what Dispatch did with a campaign's next step.
type DispatchResult struct {
	CampaignID string `json:"campaign_id"`
	Step       int    `json:"step"`
	Sent       bool   `json:"sent"`

	// Skipped explains why nothing was attempted.
	Skipped string `json:"skipped,omitempty"`

	// NotDueUntil is set when the step is scheduled later.
	NotDueUntil *time.Time `json:"not_due_until,omitempty"`

	// Decision is set when compliance or the quota refused the send.
	Decision *model.Decision `json:"decision,omitempty"`

	Quota   *quota.Snapshot `json:"quota,omitempty"`
	Message *OutboxMessage  `json:"message,omitempty"`
}

// Dispatch releases the next step of a campaign when it is due: compliance
// check, quota, outbox, touch, campaign advance and the A/B sent counter.
// A refusal stops the campaign for permanent reasons (suppressed, bounced,
// complained) and pauses it until the next allowed contact otherwise.
func (o *Orchestrator) Dispatch(ctx context.Context, orgID, campaignID, accountID string) (*DispatchResult, error) {
	cmp, err := o.campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	out := &DispatchResult{CampaignID: cmp.ID, Step: cmp.CurrentStep}
	if cmp.Status != model.CampaignActive {
		out.Skipped = "campaign is " + string(cmp.Status)
		return out, nil
	}
	if cmp.Sequence == nil || cmp.CurrentStep >= len(cmp.Sequence.Steps) {
		out.Skipped = "no step left"
		return out, nil
	}
	step := cmp.Sequence.Steps[cmp.CurrentStep]
	now := o.now().UTC()
	if step.SendAt.After(now) {
		at := step.SendAt
		out.NotDueUntil = &at
		return out, nil
	}

	log := o.log.With(zap.String("org_id", orgID), zap.String("campaign_id", cmp.ID), zap.Int("step", cmp.CurrentStep))

	d, err := o.gate.CanSend(ctx, cmp.ContactEmail, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: dispatch compliance")
	}
	if !d.Allowed {
		out.Decision = d
		o.holdCampaign(ctx, orgID, cmp.ID, d)
		log.Info("pipeline: step blocked", zap.String("reason", string(d.Reason)))
		return out, nil
	}

	if o.quota != nil && accountID != "" {
		snap, err := o.quota.Consume(ctx, accountID)
		if eris.Is(err, quota.ErrExhausted) {
			out.Quota = &snap
			out.Decision = quotaDecision(snap)
			o.notifyQuota(ctx, orgID, snap)
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: dispatch quota")
		}
		out.Quota = &snap
	}

	msg := &OutboxMessage{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		CampaignID: cmp.ID,
		AccountID:  accountID,
		Email:      cmp.ContactEmail,
		Step:       cmp.CurrentStep,
		Channel:    step.Channel,
		Subject:    step.Subject,
		Body:       step.Body,
		ABTestID:   cmp.ABTestID,
		Variant:    cmp.Variant,
		SendAt:     step.SendAt,
		CreatedAt:  now,
	}
	if err := docstore.PutAs(ctx, o.docs, orgID, CollOutbox, msg.ID, msg); err != nil {
		return nil, eris.Wrap(err, "pipeline: write outbox")
	}
	if err := o.gate.RecordTouch(ctx, orgID, cmp.ContactEmail, step.Channel, now); err != nil {
		return nil, eris.Wrap(err, "pipeline: record touch")
	}
	if _, err := o.campaigns.Advance(ctx, orgID, cmp.ID, cmp.CurrentStep); err != nil {
		return nil, eris.Wrap(err, "pipeline: advance campaign")
	}
	if cmp.ABTestID != "" && o.tests != nil {
		if _, err := o.tests.RecordEvent(ctx, orgID, cmp.ABTestID, cmp.Variant, model.MetricSent); err != nil {
			log.Warn("pipeline: failed to count a/b send", zap.Error(err))
		}
	}

	out.Sent = true
	out.Message = msg
	log.Info("pipeline: step released", zap.String("channel", string(step.Channel)))
	return out, nil
}

// holdCampaign stops or pauses a campaign after a compliance refusal.
func (o *Orchestrator) holdCampaign(ctx context.Context, orgID, id string, d *model.Decision) {
	var err error
	switch {
	case d.Reason == model.ReasonSuppressed || d.Reason == model.ReasonBounced || d.Reason == model.ReasonComplained:
		_, err = o.campaigns.Transition(ctx, orgID, id, model.CampaignStopped, string(d.Reason))
	case d.NextContactAt != nil:
		_, err = o.campaigns.Pause(ctx, orgID, id, *d.NextContactAt, string(d.Reason))
	}
	if err != nil {
		o.log.Warn("pipeline: failed to hold campaign", zap.String("campaign_id", id), zap.Error(err))
	}
}

// DispatchReport summarizes DispatchDue.
type DispatchReport struct {
	Checked int  `json:"checked"`
	Sent    int  `json:"sent"`
	Blocked int  `json:"blocked"`
	Halted  bool `json:"halted"`
}

// DispatchDue releases every due step of the organization's active
// campaigns, oldest campaign first, up to limit sends. It halts at the first
// exhausted quota.
func (o *Orchestrator) DispatchDue(ctx context.Context, orgID, accountID string, limit int) (*DispatchReport, error) {
	active, err := o.campaigns.List(ctx, orgID, model.CampaignActive, 0)
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	report := &DispatchReport{}
	for i := len(active) - 1; i >= 0; i-- {
		if limit > 0 && report.Sent >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		cmp := active[i]
		if cmp.Sequence == nil || cmp.CurrentStep >= len(cmp.Sequence.Steps) ||
			cmp.Sequence.Steps[cmp.CurrentStep].SendAt.After(now) {
			continue
		}
		report.Checked++
		res, err := o.Dispatch(ctx, orgID, cmp.ID, accountID)
		if err != nil {
			return report, err
		}
		switch {
		case res.Sent:
			report.Sent++
		case res.Decision != nil && res.Decision.Reason == model.ReasonQuotaExhausted:
			report.Halted = true
			return report, nil
		case res.Decision != nil:
			report.Blocked++
		}
	}
	return report, nil
}
