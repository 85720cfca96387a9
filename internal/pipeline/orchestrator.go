// Package pipeline runs contacts through compliance, quota, enrichment,
// scoring and sequence generation, then drives the resulting campaigns.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
	"github.com/sells-group/outreach-cli/internal/quota"
	"github.com/sells-group/outreach-cli/internal/reply"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/sequence"
)

// Collections written by the orchestrator.
const (
	CollRecords     = "records"
	CollScores      = "scores"
	CollRuns        = "runs"
	CollContacts    = "contacts"
	CollDeadLetters = "dead_letters"
	CollOutbox      = "outbox"
)

// Phase names, in run order.
const (
	PhaseCompliance = "1_compliance"
	PhaseQuota      = "2_quota"
	PhaseEnrich     = "3_enrich"
	PhaseScore      = "4_score"
	PhaseSequence   = "5_sequence"
	PhasePersist    = "6_persist"
	PhaseCampaign   = "7_campaign"
)

// ErrEmailRequired is returned by Run for a contact without an address.
var ErrEmailRequired = eris.Wrap(model.ErrInvalidContact, "email is required to schedule")

// Enricher builds an enriched record. enrich.Waterfall satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord
}

// Config tunes batch runs and dead letters.
type Config struct {
	// Concurrency bounds RunBatch.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// MaxRetries is the replay budget of a dead letter.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// SweepLimit caps each Sweep step.
	SweepLimit int `yaml:"sweep_limit" mapstructure:"sweep_limit"`

	// Retry shapes the dead-letter backoff curve.
	Retry resilience.RetryConfig `yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns 4 parallel contacts, 3 replays and 500-entry sweeps.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		MaxRetries:  3,
		SweepLimit:  500,
		Retry: resilience.RetryConfig{
			InitialBackoff: time.Minute,
			MaxBackoff:     6 * time.Hour,
			Multiplier:     4,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = d.SweepLimit
	}
	if c.Retry.InitialBackoff <= 0 {
		c.Retry = d.Retry
	}
	return c
}

// Deps are the components the orchestrator sequences. Quota, Tests,
// Classifier and Notifier are optional.
type Deps struct {
	Store      docstore.Store
	Gate       *compliance.Gate
	Quota      quota.Tracker
	Enricher   Enricher
	Scorer     *scoring.Engine
	Sequencer  *sequence.Generator
	Tests      *abtest.Controller
	Campaigns  *campaign.Store
	Classifier *reply.Classifier
	Notifier   notify.Notifier
}

// Orchestrator drives contacts through the pipeline.
type Orchestrator struct {
	docs       docstore.Store
	gate       *compliance.Gate
	quota      quota.Tracker
	enricher   Enricher
	scorer     *scoring.Engine
	sequencer  *sequence.Generator
	tests      *abtest.Controller
	campaigns  *campaign.Store
	classifier *reply.Classifier
	executor   *reply.Executor
	notifier   notify.Notifier
	cfg        Config
	now        func() time.Time
	log        *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. The reply executor is built here so that
// referral contacts flow back through AddContact.
func New(d Deps, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		docs:       d.Store,
		gate:       d.Gate,
		quota:      d.Quota,
		enricher:   d.Enricher,
		scorer:     d.Scorer,
		sequencer:  d.Sequencer,
		tests:      d.Tests,
		campaigns:  d.Campaigns,
		classifier: d.Classifier,
		notifier:   d.Notifier,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "pipeline")),
	}
	if o.notifier == nil {
		o.notifier = notify.Discard
	}
	for _, opt := range opts {
		opt(o)
	}
	o.executor = reply.NewExecutor(o.docs, o.gate, o.campaigns, o, o.notifier,
		reply.WithExecutorClock(o.now))
	return o
}

// RunOptions select the sending account and an optional A/B test.
type RunOptions struct {
	AccountID string `json:"account_id,omitempty"`
	ABTestID  string `json:"ab_test_id,omitempty"`
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeScheduled Outcome = "scheduled"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeFailed    Outcome = "failed"
)

// PhaseStatus is the result state of one phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult records one phase of a run.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the summary of one contact's run.
type Result struct {
	ID         string                `json:"id"`
	OrgID      string                `json:"org_id"`
	Contact    model.Contact         `json:"contact"`
	Outcome    Outcome               `json:"outcome"`
	Decision   *model.Decision       `json:"decision,omitempty"`
	Quota      *quota.Snapshot       `json:"quota,omitempty"`
	Record     *model.EnrichedRecord `json:"record,omitempty"`
	Score      *model.Score          `json:"score,omitempty"`
	Sequence   *model.Sequence       `json:"sequence,omitempty"`
	CampaignID string                `json:"campaign_id,omitempty"`
	ABTestID   string                `json:"ab_test_id,omitempty"`
	Variant    model.VariantName     `json:"variant,omitempty"`
	Phases     []PhaseResult         `json:"phases"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// FailedPhase returns the name of the first failed phase, or "".
func (r *Result) FailedPhase() string {
	for _, p := range r.Phases {
		if p.Status == PhaseStatusFailed {
			return p.Name
		}
	}
	return ""
}

// Run takes one contact from the compliance check to a started campaign.
// A compliance or quota rejection is a normal result with Outcome blocked.
// The returned Result is non-nil whenever validation passed, even on error.
func (o *Orchestrator) Run(ctx context.Context, orgID string, c model.Contact, icp model.ICP, opts RunOptions) (*Result, error) {
	if err := icp.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Key() == "" {
		return nil, ErrEmailRequired
	}

	log := o.log.With(zap.String("org_id", orgID), zap.String("email", c.Key()), zap.String("company", c.CompanyName))
	log.Info("pipeline: starting run")

	res := &Result{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Contact:   c,
		ABTestID:  opts.ABTestID,
		StartedAt: o.now().UTC(),
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		start := time.Now()
		var meta map[string]any
		err := ctx.Err()
		if err == nil {
			meta, err = fn()
		}
		pr := PhaseResult{Name: name, Duration: time.Since(start).Milliseconds(), Metadata: meta}
		if err != nil {
			pr.Status = PhaseStatusFailed
			pr.Error = err.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration),
				zap.Error(err),
			)
		} else {
			pr.Status = PhaseStatusComplete
			log.Debug("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration),
			)
		}
		res.Phases = append(res.Phases, pr)
		return err
	}

	err := o.run(ctx, orgID, c, icp, opts, res, trackPhase)
	res.FinishedAt = o.now().UTC()
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
	case res.Outcome == "":
		res.Outcome = OutcomeScheduled
	}

	if saveErr := docstore.PutAs(ctx, o.docs, orgID, CollRuns, res.ID, res); saveErr != nil {
		log.Warn("pipeline: failed to save run", zap.Error(saveErr))
	}
	if err != nil {
		return res, eris.Wrapf(err, "pipeline: %s", res.FailedPhase())
	}

	fields := []zap.Field{zap.String("run_id", res.ID), zap.String("outcome", string(res.Outcome))}
	if res.Decision != nil {
		fields = append(fields, zap.String("reason", string(res.Decision.Reason)))
	}
	if res.Score != nil {
		fields = append(fields, zap.Int("score", res.Score.Total), zap.String("priority", string(res.Score.Priority)))
	}
	log.Info("pipeline: run complete", fields...)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, orgID string, c model.Contact, icp model.ICP, opts RunOptions, res *Result, track func(string, func() (map[string]any, error)) error) error {
	err := track(PhaseCompliance, func() (map[string]any, error) {
		d, err := o.gate.CanSend(ctx, c.Email, orgID)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			res.Outcome = OutcomeBlocked
			res.Decision = d
			return map[string]any{"allowed": false, "reason": string(d.Reason)}, nil
		}
		cur, err := o.campaigns.Current(ctx, orgID, c.Email)
		switch {
		case err == nil:
			res.Outcome = OutcomeBlocked
			res.Decision = inProgressDecision(cur)
			res.CampaignID = cur.ID
			return map[string]any{"allowed": false, "reason": string(res.Decision.Reason), "campaign_id": cur.ID}, nil
		case !eris.Is(err, campaign.ErrNotFound):
			return nil, err
		}
		return map[string]any{"allowed": true, "reason": string(d.Reason)}, nil
	})
	if err != nil || res.Outcome == OutcomeBlocked {
		return err
	}

	if o.quota != nil && opts.AccountID != "" {
		err = track(PhaseQuota, func() (map[string]any, error) {
			snap, err := o.quota.Snapshot(ctx, opts.AccountID)
			if err != nil {
				return nil, err
			}
			res.Quota = &snap
			if snap.Exhausted() {
				res.Outcome = OutcomeBlocked
				res.Decision = quotaDecision(snap)
				o.notifyQuota(ctx, orgID, snap)
			}
			return map[string]any{"limit": snap.Limit, "remaining": snap.Remaining}, nil
		})
		if err != nil || res.Outcome == OutcomeBlocked {
			return err
		}
	}

	err = track(PhaseEnrich, func() (map[string]any, error) {
		res.Record = o.enricher.Enrich(ctx, c, icp)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]any{
			"sources":      len(res.Record.Sources),
			"completeness": res.Record.Completeness,
		}, nil
	})
	if err != nil {
		return err
	}

	err = track(PhaseScore, func() (map[string]any, error) {
		res.Score = o.scorer.Score(res.Record, icp)
		return map[string]any{
			"total":    res.Score.Total,
			"priority": string(res.Score.Priority),
		}, nil
	})
	if err != nil {
		return err
	}

	err = track(PhaseSequence, func() (map[string]any, error) {
		if opts.ABTestID != "" && o.tests != nil {
			v, err := o.tests.SelectVariant(ctx, orgID, opts.ABTestID)
			if err != nil {
				return nil, err
			}
			res.Variant = v
			res.Sequence = o.sequencer.GenerateVariant(ctx, res.Record, res.Score, icp, v)
		} else {
			res.Sequence = o.sequencer.Generate(ctx, res.Record, res.Score, icp)
		}
		return map[string]any{
			"framework": string(res.Sequence.Framework),
			"source":    string(res.Sequence.Source),
			"variant":   string(res.Variant),
		}, nil
	})
	if err != nil {
		return err
	}

	err = track(PhasePersist, func() (map[string]any, error) {
		key := c.Key()
		if err := docstore.PutAs(ctx, o.docs, orgID, CollRecords, key, res.Record); err != nil {
			return nil, eris.Wrap(err, "save record")
		}
		if err := docstore.PutAs(ctx, o.docs, orgID, CollScores, key, res.Score); err != nil {
			return nil, eris.Wrap(err, "save score")
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	return track(PhaseCampaign, func() (map[string]any, error) {
		cmp, err := o.campaigns.Start(ctx, orgID, c.Email, res.Sequence, opts.ABTestID, res.Variant)
		if eris.Is(err, campaign.ErrInProgress) && cmp != nil {
			res.Outcome = OutcomeBlocked
			res.Decision = inProgressDecision(cmp)
			res.CampaignID = cmp.ID
			return map[string]any{"campaign_id": cmp.ID, "reason": string(res.Decision.Reason)}, nil
		}
		if err != nil {
			return nil, err
		}
		res.CampaignID = cmp.ID
		return map[string]any{"campaign_id": cmp.ID}, nil
	})
}

// inProgressDecision blocks a run for a contact whose campaign is still
// active or paused.
func inProgressDecision(cmp *model.Campaign) *model.Decision {
	return &model.Decision{
		Allowed: false,
		Reason:  model.ReasonCampaignInProgress,
		Detail:  "contact already has a campaign in progress",
		Metadata: map[string]string{
			"campaign_id": cmp.ID,
			"status":      string(cmp.Status),
		},
	}
}

func quotaDecision(snap quota.Snapshot) *model.Decision {
	reset := snap.ResetAt
	return &model.Decision{
		Allowed:       false,
		Reason:        model.ReasonQuotaExhausted,
		Detail:        "daily send budget of the account is spent",
		NextContactAt: &reset,
		Metadata: map[string]string{
			"account_id": snap.AccountID,
			"limit":      strconv.Itoa(snap.Limit),
		},
	}
}

func (o *Orchestrator) notifyQuota(ctx context.Context, orgID string, snap quota.Snapshot) {
	n := notify.Notification{
		Kind:     notify.KindQuota,
		OrgID:    orgID,
		Priority: notify.PriorityHigh,
		Title:    "Daily send quota exhausted",
		Message:  "Account " + snap.AccountID + " has used its " + strconv.Itoa(snap.Limit) + " sends for today.",
		Details: map[string]string{
			"account_id": snap.AccountID,
			"reset_at":   snap.ResetAt.Format(time.RFC3339),
		},
		Timestamp: o.now().UTC(),
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.log.Warn("pipeline: quota notification failed", zap.Error(err))
	}
}

// ContactRecord is a stored contact and where it came from.
type ContactRecord struct {
	Contact   model.Contact `json:"contact"`
	Email     string        `json:"email"`
	Source    string        `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
}

// AddContact stores a contact keyed by its email, or by company name when
// it has none. An existing contact is left unchanged.
func (o *Orchestrator) AddContact(ctx context.Context, orgID string, c model.Contact, source string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	id := c.Key()
	if id == "" {
		id = model.NormalizeEmail(c.CompanyName)
	}
	now := o.now().UTC()
	_, err := docstore.UpdateAs(ctx, o.docs, orgID, CollContacts, id,
		func(r *ContactRecord, exists bool) error {
			if exists {
				return docstore.ErrSkip
			}
			*r = ContactRecord{Contact: c, Email: c.Key(), Source: source, CreatedAt: now}
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "pipeline: add contact")
	}
	o.log.Info("pipeline: contact added", zap.String("org_id", orgID), zap.String("contact", id), zap.String("source", source))
	return nil
}

// SweepResult counts what Sweep released.
type SweepResult struct {
	CoolingOffRemoved int `json:"cooling_off_removed"`
	CampaignsResumed  int `json:"campaigns_resumed"`
}

// Sweep deletes expired cooling-off windows and resumes paused campaigns
// whose pause has ended. It is safe to run repeatedly.
func (o *Orchestrator) Sweep(ctx context.Context, orgID string) (SweepResult, error) {
	var out SweepResult
	n, err := o.gate.SweepExpiredCoolingOff(ctx, orgID, o.cfg.SweepLimit)
	out.CoolingOffRemoved = n
	if err != nil {
		return out, eris.Wrap(err, "pipeline: sweep cooling-off")
	}
	n, err = o.campaigns.ResumeDue(ctx, orgID, o.cfg.SweepLimit)
	out.CampaignsResumed = n
	if err != nil {
		return out, eris.Wrap(err, "pipeline: resume campaigns")
	}
	return out, nil
}
