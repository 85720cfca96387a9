// Package abtest assigns message variants, counts their events and
// declares a winner once the difference is significant.
package abtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
)

// CollTests holds one document per test, keyed by test ID.
const CollTests = "ab_tests"

var (
	// ErrNotFound is returned for an unknown test ID.
	ErrNotFound = eris.New("abtest: test not found")
	// ErrUnknownVariant is returned for a variant other than A or B.
	ErrUnknownVariant = eris.New("abtest: unknown variant")
	// ErrUnknownMetric is returned for an event or target metric that is
	// not tracked.
	ErrUnknownMetric = eris.New("abtest: unknown metric")
	// ErrCompleted is returned when forcing a winner on a finished test.
	ErrCompleted = eris.New("abtest: test already has a winner")
)

// Config holds the defaults applied to new tests.
type Config struct {
	MinSampleSize       int          `yaml:"min_sample_size" mapstructure:"min_sample_size"`
	ConfidenceThreshold float64      `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	TargetMetric        model.Metric `yaml:"target_metric" mapstructure:"target_metric"`
}

// DefaultConfig returns 100 sends per variant, 0.95 confidence on the
// reply rate.
func DefaultConfig() Config {
	return Config{MinSampleSize: 100, ConfidenceThreshold: 0.95, TargetMetric: model.MetricReply}
}

// Controller owns the ab_tests collection.
type Controller struct {
	store    docstore.Store
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithNotifier sets where winner declarations are announced.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// New creates a Controller. Zero config fields take their defaults.
func New(store docstore.Store, cfg Config, opts ...Option) *Controller {
	d := DefaultConfig()
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = d.MinSampleSize
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if cfg.TargetMetric == "" {
		cfg.TargetMetric = d.TargetMetric
	}
	c := &Controller{
		store:    store,
		notifier: notify.Discard,
		cfg:      cfg,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "abtest")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TestSpec describes a test to create. Zero thresholds use the controller
// defaults.
type TestSpec struct {
	CampaignID          string
	A, B                model.Variant
	TargetMetric        model.Metric
	MinSampleSize       int
	ConfidenceThreshold float64
}

// CreateTest stores a running test with zeroed counters.
func (c *Controller) CreateTest(ctx context.Context, orgID string, spec TestSpec) (*model.ABTest, error) {
	t := &model.ABTest{
		ID:                  uuid.NewString(),
		OrgID:               orgID,
		CampaignID:          spec.CampaignID,
		Status:              model.ABRunning,
		TargetMetric:        spec.TargetMetric,
		MinSampleSize:       spec.MinSampleSize,
		ConfidenceThreshold: spec.ConfidenceThreshold,
		A:                   model.Variant{Name: model.VariantA, Label: spec.A.Label, Subject: spec.A.Subject},
		B:                   model.Variant{Name: model.VariantB, Label: spec.B.Label, Subject: spec.B.Subject},
		CreatedAt:           c.now().UTC(),
	}
	if t.TargetMetric == "" {
		t.TargetMetric = c.cfg.TargetMetric
	}
	switch t.TargetMetric {
	case model.MetricOpen, model.MetricClick, model.MetricReply:
	default:
		return nil, eris.Wrapf(ErrUnknownMetric, "target %q", t.TargetMetric)
	}
	if t.MinSampleSize <= 0 {
		t.MinSampleSize = c.cfg.MinSampleSize
	}
	if t.ConfidenceThreshold <= 0 {
		t.ConfidenceThreshold = c.cfg.ConfidenceThreshold
	}
	if err := docstore.PutAs(ctx, c.store, orgID, CollTests, t.ID, t); err != nil {
		return nil, eris.Wrap(err, "abtest: create")
	}
	c.log.Info("test created",
		zap.String("org_id", orgID),
		zap.String("test_id", t.ID),
		zap.String("campaign_id", t.CampaignID),
		zap.String("target", string(t.TargetMetric)),
	)
	return t, nil
}

// Get loads a test.
func (c *Controller) Get(ctx context.Context, orgID, testID string) (*model.ABTest, error) {
	t, err := docstore.GetAs[model.ABTest](ctx, c.store, orgID, CollTests, testID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, eris.Wrap(ErrNotFound, testID)
		}
		return nil, eris.Wrap(err, "abtest: get")
	}
	return t, nil
}

// SelectVariant returns the winner once declared, otherwise the variant
// with fewer sends. Ties go to A.
func (c *Controller) SelectVariant(ctx context.Context, orgID, testID string) (model.VariantName, error) {
	t, err := c.Get(ctx, orgID, testID)
	if err != nil {
		return "", err
	}
	return selectVariant(t), nil
}

func selectVariant(t *model.ABTest) model.VariantName {
	if t.Winner != nil {
		return *t.Winner
	}
	if t.B.Sent < t.A.Sent {
		return model.VariantB
	}
	return model.VariantA
}

// RecordEvent increments one counter inside a single store transaction,
// then evaluates the winner outside of it.
func (c *Controller) RecordEvent(ctx context.Context, orgID, testID string, variant model.VariantName, metric model.Metric) (*model.ABTest, error) {
	if variant != model.VariantA && variant != model.VariantB {
		return nil, eris.Wrapf(ErrUnknownVariant, "%q", variant)
	}
	t, err := docstore.UpdateAs(ctx, c.store, orgID, CollTests, testID,
		func(t *model.ABTest, exists bool) error {
			if !exists {
				return ErrNotFound
			}
			return increment(t.Variant(variant), metric)
		})
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, eris.Wrap(ErrNotFound, testID)
		}
		return nil, eris.Wrap(err, "abtest: record event")
	}

	if t.Status != model.ABRunning {
		return t, nil
	}
	declared, _, err := c.checkWinner(ctx, t)
	if err != nil {
		c.log.Warn("winner check failed", zap.String("test_id", testID), zap.Error(err))
		return t, nil
	}
	return declared, nil
}

func increment(v *model.Variant, m model.Metric) error {
	switch m {
	case model.MetricSent:
		v.Sent++
	case model.MetricOpen:
		v.Opened++
	case model.MetricClick:
		v.Clicked++
	case model.MetricReply:
		v.Replied++
	case model.MetricUnsubscribe:
		v.Unsubscribed++
	default:
		return eris.Wrapf(ErrUnknownMetric, "%q", m)
	}
	return nil
}

// CheckWinner evaluates a test and declares the leader when the sample
// size and confidence allow it. A declared winner is never replaced.
func (c *Controller) CheckWinner(ctx context.Context, orgID, testID string) (*model.ABTest, Stats, error) {
	t, err := c.Get(ctx, orgID, testID)
	if err != nil {
		return nil, Stats{}, err
	}
	return c.checkWinner(ctx, t)
}

func (c *Controller) checkWinner(ctx context.Context, t *model.ABTest) (*model.ABTest, Stats, error) {
	s := ComputeStats(t)
	if t.Winner != nil || !s.CanDeclare() {
		return t, s, nil
	}
	reason := fmt.Sprintf("%s rate %.1f%% vs %.1f%% at %.0f%% confidence",
		t.TargetMetric, 100*t.Variant(*s.Leader).Rate(t.TargetMetric),
		100*t.Variant(other(*s.Leader)).Rate(t.TargetMetric), 100*s.Confidence)
	declared, err := c.declare(ctx, t.OrgID, t.ID, *s.Leader, reason, false)
	if err != nil {
		if eris.Is(err, ErrCompleted) {
			// A concurrent writer declared first.
			latest, gerr := c.Get(ctx, t.OrgID, t.ID)
			return latest, s, gerr
		}
		return t, s, err
	}
	return declared, s, nil
}

// DeclareWinner forces a winner regardless of sample size. A test that
// already has a winner is left untouched and ErrCompleted is returned.
func (c *Controller) DeclareWinner(ctx context.Context, orgID, testID string, winner model.VariantName, reason string) (*model.ABTest, error) {
	if winner != model.VariantA && winner != model.VariantB {
		return nil, eris.Wrapf(ErrUnknownVariant, "%q", winner)
	}
	if reason == "" {
		reason = "declared manually"
	}
	return c.declare(ctx, orgID, testID, winner, reason, true)
}

func (c *Controller) declare(ctx context.Context, orgID, testID string, winner model.VariantName, reason string, manual bool) (*model.ABTest, error) {
	now := c.now().UTC()
	t, err := docstore.UpdateAs(ctx, c.store, orgID, CollTests, testID,
		func(t *model.ABTest, exists bool) error {
			if !exists {
				return ErrNotFound
			}
			if t.Winner != nil || !t.Status.CanTransition(model.ABCompleted) {
				return ErrCompleted
			}
			w := winner
			t.Winner = &w
			t.WinnerReason = reason
			t.ManualWinner = manual
			t.Status = model.ABCompleted
			t.CompletedAt = &now
			return nil
		})
	if err != nil {
		if eris.Is(err, ErrNotFound) || eris.Is(err, ErrCompleted) {
			return nil, eris.Wrap(err, testID)
		}
		return nil, eris.Wrap(err, "abtest: declare winner")
	}

	c.log.Info("winner declared",
		zap.String("org_id", orgID),
		zap.String("test_id", testID),
		zap.String("winner", string(winner)),
		zap.Bool("manual", manual),
		zap.String("reason", reason),
	)
	n := notify.Notification{
		Kind:     notify.KindABWinner,
		OrgID:    orgID,
		Priority: notify.PriorityNormal,
		Title:    "A/B test winner declared",
		Message:  fmt.Sprintf("Variant %s wins: %s", winner, reason),
		Details: map[string]string{
			"test_id":     testID,
			"campaign_id": t.CampaignID,
			"winner":      string(winner),
		},
		Timestamp: now,
	}
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.log.Warn("winner notification failed", zap.String("test_id", testID), zap.Error(err))
	}
	return t, nil
}

// ListActive returns running tests, oldest first.
func (c *Controller) ListActive(ctx context.Context, orgID string) ([]model.ABTest, error) {
	out, err := docstore.QueryAs[model.ABTest](ctx, c.store, orgID, CollTests, docstore.Filter{
		Where:   []docstore.Cond{docstore.Where("status", docstore.OpEq, string(model.ABRunning))},
		OrderBy: "created_at",
	})
	return out, eris.Wrap(err, "abtest: list active")
}

// ListHistory returns completed tests, most recently completed first.
func (c *Controller) ListHistory(ctx context.Context, orgID string, limit int) ([]model.ABTest, error) {
	out, err := docstore.QueryAs[model.ABTest](ctx, c.store, orgID, CollTests, docstore.Filter{
		Where:   []docstore.Cond{docstore.Where("status", docstore.OpEq, string(model.ABCompleted))},
		OrderBy: "completed_at",
		Desc:    true,
		Limit:   limit,
	})
	return out, eris.Wrap(err, "abtest: list history")
}

func other(v model.VariantName) model.VariantName {
	if v == model.VariantA {
		return model.VariantB
	}
	return model.VariantA
}
