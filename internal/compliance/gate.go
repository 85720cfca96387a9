// Package compliance decides whether a contact may receive another message
// and records the events (suppressions, bounces, complaints, touches) that
// feed that decision.
package compliance

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Collections used by the gate.
const (
	CollSuppressions = "suppressions"
	CollCoolingOff   = "cooling_off"
	CollBounces      = "bounces"
	CollComplaints   = "complaints"
	CollTouches      = "touches"
)

// ErrInvalidEmail is returned for an empty address.
var ErrInvalidEmail = eris.New("compliance: email is required")

// Scope selects where bounces and complaints are counted.
type Scope string

const (
	// ScopeGlobal shares bounce and complaint history across organizations.
	ScopeGlobal Scope = "global"
	// ScopeOrg keeps them per organization.
	ScopeOrg Scope = "org"
)

// Config holds the gate's thresholds.
type Config struct {
	MaxTouches      int           `yaml:"max_touches" mapstructure:"max_touches"`
	TouchWindow     time.Duration `yaml:"touch_window" mapstructure:"touch_window"`
	NextContactGap  time.Duration `yaml:"next_contact_gap" mapstructure:"next_contact_gap"`
	BounceThreshold int           `yaml:"bounce_threshold" mapstructure:"bounce_threshold"`
	Scope           Scope         `yaml:"scope" mapstructure:"scope"`
}

// DefaultConfig returns 6 touches per 30 days, 31 days to the next
// contact, 2 bounces and global bounce/complaint scope.
func DefaultConfig() Config {
	return Config{
		MaxTouches:      6,
		TouchWindow:     30 * 24 * time.Hour,
		NextContactGap:  31 * 24 * time.Hour,
		BounceThreshold: 2,
		Scope:           ScopeGlobal,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTouches <= 0 {
		c.MaxTouches = d.MaxTouches
	}
	if c.TouchWindow <= 0 {
		c.TouchWindow = d.TouchWindow
	}
	if c.NextContactGap <= 0 {
		c.NextContactGap = d.NextContactGap
	}
	if c.BounceThreshold <= 0 {
		c.BounceThreshold = d.BounceThreshold
	}
	if c.Scope != ScopeOrg {
		c.Scope = ScopeGlobal
	}
	return c
}

// Gate answers CanSend and owns the compliance collections.
type Gate struct {
	store docstore.Store
	cfg   Config
	now   func() time.Time
	log   *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a Gate.
func New(store docstore.Store, cfg Config, opts ...Option) *Gate {
	g := &Gate{
		store: store,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "compliance")),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// sharedNS is the namespace of bounce and complaint records.
func (g *Gate) sharedNS(orgID string) string {
	if g.cfg.Scope == ScopeOrg {
		return orgID
	}
	return docstore.GlobalNamespace
}

// CanSend runs the checks in order and stops at the first rejection:
// suppressed, bounced, max_touches_reached, cooling_off, complained. It
// never writes.
func (g *Gate) CanSend(ctx context.Context, email, orgID string) (*model.Decision, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	now := g.now().UTC()

	sup, err := getOptional[model.SuppressionEntry](ctx, g.store, orgID, CollSuppressions, email)
	if err != nil {
		return nil, err
	}
	if sup != nil {
		return block(model.ReasonSuppressed, "address is on the suppression list", map[string]string{
			"reason": sup.Reason,
			"since":  sup.CreatedAt.Format(time.RFC3339),
		}), nil
	}

	bounce, err := getOptional[model.BounceEntry](ctx, g.store, g.sharedNS(orgID), CollBounces, email)
	if err != nil {
		return nil, err
	}
	if bounce != nil && bounce.Count >= g.cfg.BounceThreshold {
		return block(model.ReasonBounced, "address bounced too often", map[string]string{
			"bounce_count": strconv.Itoa(bounce.Count),
		}), nil
	}

	touches, err := g.recentTouches(ctx, orgID, email, now)
	if err != nil {
		return nil, err
	}
	if len(touches) >= g.cfg.MaxTouches {
		next := touches[0].SentAt.Add(g.cfg.NextContactGap)
		d := block(model.ReasonMaxTouches, "touch limit reached for the trailing window", map[string]string{
			"touches": strconv.Itoa(len(touches)),
		})
		d.NextContactAt = &next
		return d, nil
	}

	cool, err := getOptional[model.CoolingOffEntry](ctx, g.store, orgID, CollCoolingOff, email)
	if err != nil {
		return nil, err
	}
	if cool != nil && cool.Active(now) {
		until := cool.ExpiresAt
		d := block(model.ReasonCoolingOff, "address is in a cooling-off window", map[string]string{
			"reason":     cool.Reason,
			"expires_at": until.Format(time.RFC3339),
		})
		d.NextContactAt = &until
		return d, nil
	}

	complaint, err := getOptional[model.ComplaintEntry](ctx, g.store, g.sharedNS(orgID), CollComplaints, email)
	if err != nil {
		return nil, err
	}
	if complaint != nil {
		return block(model.ReasonComplained, "recipient filed a spam complaint", nil), nil
	}

	return &model.Decision{
		Allowed:          true,
		RemainingTouches: g.cfg.MaxTouches - len(touches),
	}, nil
}

// recentTouches returns touches inside the trailing window, oldest first.
func (g *Gate) recentTouches(ctx context.Context, orgID, email string, now time.Time) ([]model.TouchEntry, error) {
	touches, err := docstore.QueryAs[model.TouchEntry](ctx, g.store, orgID, CollTouches, docstore.Filter{
		Where: []docstore.Cond{
			docstore.Where("email", docstore.OpEq, email),
			docstore.Where("sent_at", docstore.OpGte, now.Add(-g.cfg.TouchWindow)),
		},
		OrderBy: "sent_at",
	})
	return touches, eris.Wrap(err, "compliance: recent touches")
}

func block(reason model.BlockReason, detail string, meta map[string]string) *model.Decision {
	return &model.Decision{Allowed: false, Reason: reason, Detail: detail, Metadata: meta}
}

// getOptional reads a document, mapping ErrNotFound to nil.
func getOptional[T any](ctx context.Context, s docstore.Store, ns, coll, id string) (*T, error) {
	v, err := docstore.GetAs[T](ctx, s, ns, coll, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "compliance: read %s", coll)
	}
	return v, nil
}
