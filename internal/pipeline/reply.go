package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/reply"
)

// ErrNoClassifier is returned by HandleReply when no classifier is wired.
var ErrNoClassifier = eris.New("pipeline: reply classifier is not configured")

// HandleReply classifies an inbound reply, runs its actions and feeds the
// campaign's A/B test. A reply without a campaign ID is attached to the
// contact's current campaign when there is one.
func (o *Orchestrator) HandleReply(ctx context.Context, in reply.Inbound) (*model.ReplyClassification, error) {
	if o.classifier == nil {
		return nil, ErrNoClassifier
	}

	var cmp *model.Campaign
	var err error
	if in.CampaignID != "" {
		cmp, err = o.campaigns.Get(ctx, in.OrgID, in.CampaignID)
	} else if in.ContactEmail != "" {
		cmp, err = o.campaigns.Current(ctx, in.OrgID, in.ContactEmail)
	}
	switch {
	case eris.Is(err, campaign.ErrNotFound):
		o.log.Debug("pipeline: reply without campaign", zap.String("email", model.NormalizeEmail(in.ContactEmail)))
	case err != nil:
		return nil, err
	case cmp != nil:
		in.CampaignID = cmp.ID
		if in.ContactEmail == "" {
			in.ContactEmail = cmp.ContactEmail
		}
	}

	cls, err := o.classifier.Classify(ctx, in)
	if err != nil {
		return nil, err
	}
	cls, err = o.executor.Execute(ctx, cls, in)
	if err != nil {
		return cls, err
	}

	if cmp != nil && cmp.ABTestID != "" && o.tests != nil {
		o.recordReplyEvents(ctx, cmp, cls.Category)
	}
	return cls, nil
}

// recordReplyEvents counts a reply for every category but out-of-office,
// and an unsubscribe on top for unsubscribe replies.
func (o *Orchestrator) recordReplyEvents(ctx context.Context, cmp *model.Campaign, cat model.ReplyCategory) {
	var metrics []model.Metric
	if cat != model.ReplyOutOfOffice {
		metrics = append(metrics, model.MetricReply)
	}
	if cat == model.ReplyUnsubscribe {
		metrics = append(metrics, model.MetricUnsubscribe)
	}
	for _, m := range metrics {
		if _, err := o.tests.RecordEvent(ctx, cmp.OrgID, cmp.ABTestID, cmp.Variant, m); err != nil {
			o.log.Warn("pipeline: failed to count a/b reply",
				zap.String("test_id", cmp.ABTestID),
				zap.String("metric", string(m)),
				zap.Error(err),
			)
		}
	}
}
