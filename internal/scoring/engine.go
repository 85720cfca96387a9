package scoring

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Engine scores enriched records.
type Engine struct {
	cfg Config
	now func() time.Time
	log *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for age and recency signals.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine. Zero-valued config fields take their defaults.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg.withDefaults(),
		now: time.Now,
		log: zap.L().With(zap.String("component", "scoring")),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Score computes a fresh snapshot for r. It never mutates r.
func (e *Engine) Score(r *model.EnrichedRecord, icp model.ICP) *model.Score {
	now := e.now()

	breakdown := fitScores(r, icp, e.cfg)
	fit := fitTotal(breakdown)

	signals := DetectSignals(r, e.cfg, now)
	intent, raw, strongest := intentFromSignals(signals)
	breakdown.IntentRaw = raw

	quality, direct := dataQuality(r, e.cfg)

	priority, category := Prioritize(fit, intent)
	s := &model.Score{
		Fit:             fit,
		Intent:          intent,
		DataQuality:     quality,
		Total:           clamp(fit+intent+quality, 0, model.MaxTotal),
		Priority:        priority,
		Category:        category,
		Breakdown:       breakdown,
		Signals:         signals,
		StrongestSignal: strongest,
		Recommendation:  Recommend(priority),
		Warnings:        warnings(r, direct),
		RecordVersion:   r.Version,
		ComputedAt:      now.UTC(),
	}

	e.log.Debug("scored company",
		zap.String("company", r.Contact.CompanyName),
		zap.Int("fit", s.Fit),
		zap.Int("intent", s.Intent),
		zap.Int("data_quality", s.DataQuality),
		zap.String("priority", string(s.Priority)),
	)
	return s
}

// Prioritize maps Fit and Intent to a priority. Rules are evaluated in
// order and the first match wins.
func Prioritize(fit, intent int) (model.Priority, model.Category) {
	switch {
	case fit >= 35 && intent >= 20:
		return model.PriorityA, model.CategoryHot
	case fit >= 30 && intent >= 10:
		return model.PriorityB, model.CategoryWarm
	case fit >= 30 || intent >= 15:
		return model.PriorityB, model.CategoryWarm
	case fit >= 25:
		return model.PriorityC, model.CategoryCold
	default:
		return model.PriorityD, model.CategoryNurture
	}
}

var recommendations = map[model.Priority]model.Recommendation{
	model.PriorityA: {
		Channels:  []model.Channel{model.ChannelPhone, model.ChannelEmail, model.ChannelSMS},
		Urgency:   "immediate",
		Reasoning: "Strong fit and active buying signals: call first, then follow up by email within 24 hours.",
	},
	model.PriorityB: {
		Channels:  []model.Channel{model.ChannelEmail, model.ChannelPhone},
		Urgency:   "this_week",
		Reasoning: "Good prospect: start a personalized email sequence and call after the second message.",
	},
	model.PriorityC: {
		Channels:  []model.Channel{model.ChannelEmail},
		Urgency:   "this_month",
		Reasoning: "Acceptable fit without clear intent: automated email sequence, watch for engagement.",
	},
	model.PriorityD: {
		Channels:  []model.Channel{model.ChannelEmail},
		Urgency:   "low",
		Reasoning: "Weak fit: keep in a low-frequency nurture sequence until new signals appear.",
	},
}

// Recommend returns the suggested channel mix and urgency for a priority.
func Recommend(p model.Priority) model.Recommendation {
	rec, ok := recommendations[p]
	if !ok {
		rec = recommendations[model.PriorityD]
	}
	rec.Channels = append([]model.Channel(nil), rec.Channels...)
	return rec
}

func warnings(r *model.EnrichedRecord, directEmail bool) []string {
	var out []string
	switch {
	case r.PrimaryEmail() == "":
		out = append(out, "no email address found")
	case !directEmail:
		out = append(out, "no direct email: only a shared inbox is known")
	}
	if r.DecisionMaker() == nil {
		out = append(out, "no named decision-maker")
	}
	if r.PrimaryPhone() == "" {
		out = append(out, "no phone number")
	}
	return out
}
