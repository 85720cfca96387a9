package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
)

// CollClassifications holds the classification log, one document per reply.
const CollClassifications = "reply_classifications"

// Pause lengths for out-of-office replies.
const (
	returnGrace    = 2 * 24 * time.Hour
	defaultAbsence = 7 * 24 * time.Hour
)

const (
	referralSource  = "referral"
	suppressionNote = "reply: "
)

// Suppressor adds an address to the suppression list.
type Suppressor interface {
	AddToSuppressionList(ctx context.Context, orgID, email, reason, source string) error
}

// Campaigns changes a campaign's status.
type Campaigns interface {
	Pause(ctx context.Context, orgID, id string, until time.Time, reason string) (*model.Campaign, error)
	Transition(ctx context.Context, orgID, id string, next model.CampaignStatus, reason string) (*model.Campaign, error)
}

// ContactSink receives contacts discovered in replies.
type ContactSink interface {
	AddContact(ctx context.Context, orgID string, c model.Contact, source string) error
}

// ContactSinkFunc adapts a function to ContactSink.
type ContactSinkFunc func(ctx context.Context, orgID string, c model.Contact, source string) error

// AddContact calls f.
func (f ContactSinkFunc) AddContact(ctx context.Context, orgID string, c model.Contact, source string) error {
	return f(ctx, orgID, c, source)
}

// Executor runs the action of a classification and stores the record.
type Executor struct {
	store      docstore.Store
	suppressor Suppressor
	campaigns  Campaigns
	contacts   ContactSink
	notifier   notify.Notifier
	now        func() time.Time
	log        *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorClock injects the time source.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an Executor. A nil notifier discards notifications.
func NewExecutor(store docstore.Store, s Suppressor, c Campaigns, contacts ContactSink, n notify.Notifier, opts ...ExecutorOption) *Executor {
	if n == nil {
		n = notify.Discard
	}
	e := &Executor{
		store:      store,
		suppressor: s,
		campaigns:  c,
		contacts:   contacts,
		notifier:   n,
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "reply_executor")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute performs the category's action, moves the campaign to replied
// when the category stops the sequence, and appends the record to the
// classification log. Action failures are recorded on the record; only a
// failure to store it is returned.
func (e *Executor) Execute(ctx context.Context, cls *model.ReplyClassification, in Inbound) (*model.ReplyClassification, error) {
	out := *cls
	out.Actions = append([]model.ActionLog(nil), cls.Actions...)

	detail, err := e.run(ctx, &out, in)
	out.Actions = append(out.Actions, e.entry(out.Action, detail, err))

	if out.StopsSequence {
		if out.CampaignID == "" {
			out.Actions = append(out.Actions, e.entry(model.ActionStopSequence, "no campaign to stop", nil))
		} else {
			_, err := e.campaigns.Transition(ctx, out.OrgID, out.CampaignID, model.CampaignReplied, "reply: "+string(out.Category))
			out.Actions = append(out.Actions, e.entry(model.ActionStopSequence, "campaign marked replied", err))
		}
	}

	if err := docstore.PutAs(ctx, e.store, out.OrgID, CollClassifications, out.ID, out); err != nil {
		return nil, eris.Wrap(err, "reply: store classification")
	}
	return &out, nil
}

func (e *Executor) entry(a model.ReplyAction, detail string, err error) model.ActionLog {
	l := model.ActionLog{Action: a, Success: err == nil, Detail: detail, ExecutedAt: e.now().UTC()}
	if err != nil {
		l.Error = err.Error()
		e.log.Warn("reply action failed", zap.String("action", string(a)), zap.Error(err))
	}
	return l
}

var errNothingExtracted = eris.New("reply: nothing to act on")

func (e *Executor) run(ctx context.Context, cls *model.ReplyClassification, in Inbound) (string, error) {
	switch cls.Action {
	case model.ActionNotifyUrgent:
		return "urgent notification sent", e.notifier.Notify(ctx, e.notification(cls, in, notify.KindPositiveReply, notify.PriorityUrgent,
			"Positive reply", fmt.Sprintf("%s replied positively: call back now.", displayName(in, cls))))

	case model.ActionNotifyObjector:
		msg := fmt.Sprintf("%s raised an objection", displayName(in, cls))
		if cls.ObjectionType != "" {
			msg += " (" + cls.ObjectionType + ")"
		}
		n := e.notification(cls, in, notify.KindObjection, notify.PriorityHigh, "Objection received", msg+".")
		if cls.SuggestedReply != "" {
			n.Details["suggested_reply"] = cls.SuggestedReply
		}
		return "objection notification sent", e.notifier.Notify(ctx, n)

	case model.ActionSuppress:
		err := e.suppressor.AddToSuppressionList(ctx, cls.OrgID, cls.ContactEmail, suppressionNote+string(cls.Category), compliance.SourceReply)
		return "address suppressed", err

	case model.ActionCreateReferral:
		if cls.Referral.Empty() {
			return "no referral extracted", errNothingExtracted
		}
		c := referralContact(cls.Referral, in)
		return "referral contact created: " + c.Key(), e.contacts.AddContact(ctx, cls.OrgID, c, referralSource)

	case model.ActionPauseSequence:
		if cls.CampaignID == "" {
			return "no campaign to pause", errNothingExtracted
		}
		until := e.now().Add(defaultAbsence + returnGrace)
		if cls.ReturnDate != nil {
			until = cls.ReturnDate.Add(returnGrace)
		}
		_, err := e.campaigns.Pause(ctx, cls.OrgID, cls.CampaignID, until, "out of office")
		return "sequence paused until " + until.UTC().Format(time.RFC3339), err
	}
	return "no action", nil
}

func (e *Executor) notification(cls *model.ReplyClassification, in Inbound, kind notify.Kind, prio, title, msg string) notify.Notification {
	return notify.Notification{
		Kind:     kind,
		OrgID:    cls.OrgID,
		Priority: prio,
		Title:    title,
		Message:  msg,
		Details: map[string]string{
			"email":          cls.ContactEmail,
			"company":        in.CompanyName,
			"campaign_id":    cls.CampaignID,
			"classification": cls.ID,
		},
		Timestamp: e.now().UTC(),
	}
}

func displayName(in Inbound, cls *model.ReplyClassification) string {
	switch {
	case in.ContactName != "" && in.CompanyName != "":
		return in.ContactName + " (" + in.CompanyName + ")"
	case in.CompanyName != "":
		return in.CompanyName
	}
	return cls.ContactEmail
}

func referralContact(r *model.Referral, in Inbound) model.Contact {
	c := model.Contact{
		Email:       r.Email,
		CompanyName: in.CompanyName,
		Attributes:  map[string]string{"referred_by": model.NormalizeEmail(in.ContactEmail)},
	}
	if r.Phone != "" {
		c.Phones = []string{r.Phone}
	}
	if r.Role != "" {
		c.Attributes["role"] = r.Role
	}
	if parts := strings.Fields(r.Name); len(parts) > 0 {
		c.FirstName = parts[0]
		c.LastName = strings.Join(parts[1:], " ")
	}
	return c
}
