package sequence

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/sendtime"
)

// maxSteps caps how many model steps are kept.
const maxSteps = 5

// Generator produces sequences. The zero value is not usable; call New.
type Generator struct {
	completer llm.Completer
	optimizer *sendtime.Optimizer
	fallback  *FallbackBuilder
	throttle  ratelimit.Throttle
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock injects the time source used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithThrottle spaces the two model calls of GenerateVariants.
func WithThrottle(t ratelimit.Throttle) Option {
	return func(g *Generator) { g.throttle = t }
}

// WithMessagingChannel selects sms or whatsapp for the fallback's short
// message step.
func WithMessagingChannel(ch model.Channel) Option {
	return func(g *Generator) { g.fallback = NewFallbackBuilder(ch) }
}

// New creates a Generator. A nil completer always uses the fallback.
func New(c llm.Completer, opt *sendtime.Optimizer, opts ...Option) *Generator {
	g := &Generator{
		completer: c,
		optimizer: opt,
		fallback:  NewFallbackBuilder(model.ChannelSMS),
		throttle:  ratelimit.None(),
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "sequence")),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns a five-step sequence. Model failures and unusable
// answers fall back to templates, so it always returns a sequence.
func (g *Generator) Generate(ctx context.Context, r *model.EnrichedRecord, score *model.Score, icp model.ICP) *model.Sequence {
	return g.generate(ctx, r, score, icp, StyleDirect)
}

// GenerateVariants returns a direct and a question-led sequence for an A/B
// test. The throttle runs between the two model calls.
func (g *Generator) GenerateVariants(ctx context.Context, r *model.EnrichedRecord, score *model.Score, icp model.ICP) (a, b *model.Sequence) {
	a = g.generate(ctx, r, score, icp, StyleDirect)
	if err := g.throttle.Wait(ctx); err != nil {
		g.log.Debug("throttle interrupted, variant b uses templates", zap.Error(err))
		b = g.fromFallback(r, score, icp, a.Framework, a.Justification, StyleQuestion)
		return a, b
	}
	b = g.generate(ctx, r, score, icp, StyleQuestion)
	return a, b
}

// GenerateVariant returns only the sequence of one A/B variant: direct for
// A, question-led for B.
func (g *Generator) GenerateVariant(ctx context.Context, r *model.EnrichedRecord, score *model.Score, icp model.ICP, v model.VariantName) *model.Sequence {
	if v == model.VariantB {
		return g.generate(ctx, r, score, icp, StyleQuestion)
	}
	return g.generate(ctx, r, score, icp, StyleDirect)
}

func (g *Generator) generate(ctx context.Context, r *model.EnrichedRecord, score *model.Score, icp model.ICP, style Style) *model.Sequence {
	fw, why := SelectFramework(r, score, icp)
	log := g.log.With(zap.String("company", r.Contact.CompanyName), zap.String("framework", string(fw)), zap.String("style", string(style)))

	if g.completer == nil {
		return g.fromFallback(r, score, icp, fw, why, style)
	}

	var out llmSequence
	strategy, err := llm.CompleteJSON(ctx, g.completer, buildPrompt(r, score, icp, fw, style), &out)
	if err != nil {
		log.Warn("sequence generation failed, using templates", zap.Error(err))
		return g.fromFallback(r, score, icp, fw, why, style)
	}
	steps, ok := convertSteps(out.Steps, hasMobile(r), r.Contact.CompanyName)
	if !ok {
		log.Warn("model returned unusable steps, using templates", zap.Int("steps", len(out.Steps)))
		return g.fromFallback(r, score, icp, fw, why, style)
	}
	log.Debug("sequence generated", zap.String("strategy", string(strategy)))

	if out.Justification != "" {
		why = out.Justification
	}
	seq := &model.Sequence{
		Framework:     fw,
		Justification: why,
		Style:         string(style),
		Steps:         steps,
		Source:        model.SequenceFromLLM,
		GeneratedAt:   g.now().UTC(),
	}
	g.schedule(seq, r)
	return seq
}

func (g *Generator) fromFallback(r *model.EnrichedRecord, score *model.Score, icp model.ICP, fw model.Framework, why string, style Style) *model.Sequence {
	now := g.now()
	steps, err := g.fallback.Build(r, score, icp, now.Year())
	if err != nil {
		g.log.Error("fallback templates failed", zap.Error(err))
		steps = plainSteps(r, icp)
	}
	seq := &model.Sequence{
		Framework:     fw,
		Justification: why,
		Style:         string(style),
		Steps:         steps,
		Source:        model.SequenceFromFallback,
		GeneratedAt:   now.UTC(),
	}
	g.schedule(seq, r)
	return seq
}

// schedule fills Schedule and SendAt. Send dates never go backwards: a
// step that would land on or before its predecessor moves a week later.
func (g *Generator) schedule(seq *model.Sequence, r *model.EnrichedRecord) {
	if g.optimizer == nil {
		return
	}
	var prev time.Time
	for i := range seq.Steps {
		s := &seq.Steps[i]
		s.Schedule = g.optimizer.OptimalTime(r, s.Channel, i)
		at := g.optimizer.NextSendDate(s.DayOffset, r, s.Channel, i)
		for !prev.IsZero() && !at.After(prev) {
			at = at.AddDate(0, 0, 7)
		}
		s.SendAt = at
		prev = at
	}
}

// convertSteps normalizes the model's steps. Unknown channels become email,
// a missing email subject takes defaultSubject, empty bodies are dropped and
// days are pushed forward so they strictly increase. The answer is unusable
// only when no step survives.
func convertSteps(in []llmStep, mobile bool, defaultSubject string) ([]model.SequenceStep, bool) {
	out := make([]model.SequenceStep, 0, maxSteps)
	lastDay := -1
	for _, s := range in {
		if len(out) == maxSteps {
			break
		}
		body := strings.TrimSpace(s.Body)
		if body == "" {
			continue
		}
		ch := model.Channel(strings.ToLower(strings.TrimSpace(s.Channel)))
		switch ch {
		case model.ChannelSMS, model.ChannelWhatsApp:
			if !mobile {
				ch = model.ChannelEmail
			}
		default:
			ch = model.ChannelEmail
		}
		day := s.Day
		if day <= lastDay {
			day = lastDay + 1
		}
		lastDay = day

		limit := maxEmailWords
		subject := strings.TrimSpace(s.Subject)
		if ch.IsMessaging() {
			limit, subject = maxMessagingWords, ""
		} else if subject == "" {
			subject = defaultSubject
		}
		out = append(out, model.SequenceStep{
			Index:     len(out),
			Channel:   ch,
			DayOffset: day,
			Subject:   subject,
			Body:      truncateBody(body, limit),
			Angle:     strings.TrimSpace(s.Angle),
		})
	}
	return out, len(out) > 0
}

// truncateBody caps the word count while keeping line breaks.
func truncateBody(body string, limit int) string {
	if len(strings.Fields(body)) <= limit {
		return body
	}
	return truncateWords(body, limit)
}

// plainSteps is the last resort when template rendering itself fails.
func plainSteps(r *model.EnrichedRecord, icp model.ICP) []model.SequenceStep {
	days := []int{0, 3, 6, 10, 14}
	steps := make([]model.SequenceStep, len(days))
	for i, d := range days {
		steps[i] = model.SequenceStep{
			Index:     i,
			Channel:   model.ChannelEmail,
			DayOffset: d,
			Subject:   r.Contact.CompanyName,
			Body:      "Bonjour, pouvons-nous échanger 10 minutes au sujet de " + icp.Niche + " ?",
			Angle:     "follow-up",
		}
	}
	return steps
}
