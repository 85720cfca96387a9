// Package reply classifies inbound replies and carries out the action tied
// to each category.
package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
)

// ErrEmptyReply is returned for a reply without text.
var ErrEmptyReply = eris.New("reply: text is required")

// Inbound is one reply to classify.
type Inbound struct {
	OrgID        string
	CampaignID   string
	ContactEmail string
	ContactName  string
	CompanyName  string
	Subject      string
	Text         string
	LastMessage  string
}

// Classifier runs keyword matching and, unless it is conclusive, the model.
type Classifier struct {
	completer llm.Completer
	throttle  ratelimit.Throttle
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithThrottle spaces consecutive model calls.
func WithThrottle(t ratelimit.Throttle) Option {
	return func(c *Classifier) { c.throttle = t }
}

// WithLocation sets the zone used to read dates in replies.
func WithLocation(loc *time.Location) Option {
	return func(c *Classifier) { c.loc = loc }
}

// NewClassifier creates a Classifier. A nil completer keeps every reply on
// keyword matching.
func NewClassifier(c llm.Completer, opts ...Option) *Classifier {
	cl := &Classifier{
		completer: c,
		throttle:  ratelimit.None(),
		loc:       time.UTC,
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "reply")),
	}
	for _, o := range opts {
		o(cl)
	}
	return cl
}

// llmClassification is the JSON shape requested from the model.
type llmClassification struct {
	Category       string          `json:"category"`
	Sentiment      string          `json:"sentiment"`
	Confidence     string          `json:"confidence"`
	ObjectionType  string          `json:"objection_type"`
	Referral       *model.Referral `json:"referral"`
	ReturnDate     string          `json:"return_date"`
	SuggestedReply string          `json:"suggested_reply"`
}

// Classify returns a classification record for in. Only an empty reply is
// an error: model failures fall back to the keyword result.
func (c *Classifier) Classify(ctx context.Context, in Inbound) (*model.ReplyClassification, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyReply
	}
	now := c.now()
	kw := ClassifyKeywords(in.Subject + "\n" + in.Text)
	cls := &model.ReplyClassification{
		ID:           uuid.NewString(),
		OrgID:        in.OrgID,
		CampaignID:   in.CampaignID,
		ContactEmail: model.NormalizeEmail(in.ContactEmail),
		Text:         in.Text,
		Category:     kw.Category,
		Sentiment:    sentimentOf(kw.Category),
		Confidence:   kw.Confidence,
		Tier:         1,
		KeywordHits:  kw.Hits,
		CreatedAt:    now.UTC(),
	}
	log := c.log.With(zap.String("org_id", in.OrgID), zap.String("email", cls.ContactEmail))

	if kw.Confidence != model.ConfidenceHigh && c.completer != nil {
		if err := c.classifyLLM(ctx, in, cls); err != nil {
			log.Warn("model classification failed, keeping keyword result", zap.Error(err))
		}
	}

	switch cls.Category {
	case model.ReplyOutOfOffice:
		if cls.ReturnDate == nil {
			cls.ReturnDate = extractReturnDate(in.Text, now, c.loc)
		}
	case model.ReplyReferral:
		if cls.Referral.Empty() {
			cls.Referral = extractReferral(in.Text, in.ContactEmail)
		}
	}

	p := cls.Category.Profile()
	cls.StopsSequence, cls.Action, cls.Priority = p.StopsSequence, p.Action, p.Priority
	log.Info("reply classified",
		zap.String("category", string(cls.Category)),
		zap.String("confidence", string(cls.Confidence)),
		zap.Int("tier", cls.Tier),
		zap.Int("keyword_hits", cls.KeywordHits),
	)
	return cls, nil
}

// classifyLLM overwrites cls with the model's answer when it names a valid
// category.
func (c *Classifier) classifyLLM(ctx context.Context, in Inbound, cls *model.ReplyClassification) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}
	var out llmClassification
	if _, err := llm.CompleteJSON(ctx, c.completer, buildPrompt(in), &out); err != nil {
		return err
	}
	cat := model.ReplyCategory(strings.ToLower(strings.TrimSpace(out.Category)))
	if !cat.Valid() {
		return eris.Errorf("reply: model returned unknown category %q", out.Category)
	}

	cls.Tier = 2
	cls.Category = cat
	cls.Sentiment = sentimentOf(cat)
	switch s := model.Sentiment(strings.ToLower(out.Sentiment)); s {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
		cls.Sentiment = s
	}
	cls.Confidence = model.ConfidenceMedium
	switch conf := model.Confidence(strings.ToLower(out.Confidence)); conf {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
		cls.Confidence = conf
	}
	cls.ObjectionType = strings.TrimSpace(out.ObjectionType)
	cls.SuggestedReply = strings.TrimSpace(out.SuggestedReply)
	if !out.Referral.Empty() {
		r := *out.Referral
		r.Email = model.NormalizeEmail(r.Email)
		cls.Referral = &r
	}
	if out.ReturnDate != "" {
		if d, err := time.ParseInLocation("2006-01-02", out.ReturnDate, c.loc); err == nil {
			cls.ReturnDate = &d
		}
	}
	return nil
}

func buildPrompt(in Inbound) string {
	var b strings.Builder
	b.WriteString("Classify this reply to a B2B prospecting message.\n\n")

	b.WriteString("--- Prospect ---\n")
	if in.ContactName != "" {
		fmt.Fprintf(&b, "Name: %s\n", in.ContactName)
	}
	if in.CompanyName != "" {
		fmt.Fprintf(&b, "Company: %s\n", in.CompanyName)
	}
	fmt.Fprintf(&b, "Email: %s\n", in.ContactEmail)
	if in.LastMessage != "" {
		b.WriteString("\n--- Our last message ---\n")
		b.WriteString(in.LastMessage + "\n")
	}

	b.WriteString("\n--- Reply ---\n")
	if in.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", in.Subject)
	}
	b.WriteString(in.Text + "\n")

	b.WriteString("\n--- Categories ---\n")
	for _, cat := range model.ReplyCategories {
		b.WriteString("- " + string(cat) + "\n")
	}

	b.WriteString("\nAnswer with a single JSON object and nothing else:\n")
	b.WriteString(`{"category": string, "sentiment": "positive"|"neutral"|"negative", "confidence": "high"|"medium"|"low", ` +
		`"objection_type": string, "referral": {"name": string, "email": string, "role": string, "phone": string} or null, ` +
		`"return_date": "YYYY-MM-DD" or "", "suggested_reply": string}`)
	b.WriteString("\nsuggested_reply is a short answer in French for objections and positive replies, empty otherwise.\n")
	return b.String()
}
