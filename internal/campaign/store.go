// Package campaign persists per-contact sequence runs and moves them
// through their status transitions.
package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
)

// CollCampaigns holds one document per campaign.
const CollCampaigns = "campaigns"

var (
	// ErrNotFound is returned for an unknown campaign.
	ErrNotFound = eris.New("campaign: not found")
	// ErrInProgress is returned by Start when the contact already has an
	// active or paused campaign.
	ErrInProgress = eris.New("campaign: contact already has a campaign in progress")
)

// Store reads and writes campaigns.
type Store struct {
	docs docstore.Store
	now  func() time.Time
	log  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store.
func New(docs docstore.Store, opts ...Option) *Store {
	s := &Store{
		docs: docs,
		now:  time.Now,
		log:  zap.L().With(zap.String("component", "campaign")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates an active campaign for a contact. When the contact already
// has one in progress, that campaign is returned with ErrInProgress.
func (s *Store) Start(ctx context.Context, orgID, email string, seq *model.Sequence, testID string, variant model.VariantName) (*model.Campaign, error) {
	cur, err := s.Current(ctx, orgID, email)
	switch {
	case err == nil:
		return cur, eris.Wrap(ErrInProgress, cur.ID)
	case !eris.Is(err, ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	c := &model.Campaign{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		ContactEmail: model.NormalizeEmail(email),
		Status:       model.CampaignActive,
		Sequence:     seq,
		ABTestID:     testID,
		Variant:      variant,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := docstore.PutAs(ctx, s.docs, orgID, CollCampaigns, c.ID, c); err != nil {
		return nil, eris.Wrap(err, "campaign: start")
	}
	s.log.Debug("campaign started", zap.String("org_id", orgID), zap.String("campaign_id", c.ID), zap.String("email", c.ContactEmail))
	return c, nil
}

// Get loads a campaign.
func (s *Store) Get(ctx context.Context, orgID, id string) (*model.Campaign, error) {
	c, err := docstore.GetAs[model.Campaign](ctx, s.docs, orgID, CollCampaigns, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return nil, eris.Wrap(ErrNotFound, id)
		}
		return nil, eris.Wrap(err, "campaign: get")
	}
	return c, nil
}

// Current returns the newest campaign of a contact that is still active or
// paused, or ErrNotFound.
func (s *Store) Current(ctx context.Context, orgID, email string) (*model.Campaign, error) {
	list, err := docstore.QueryAs[model.Campaign](ctx, s.docs, orgID, CollCampaigns, docstore.Filter{
		Where:   []docstore.Cond{docstore.Where("contact_email", docstore.OpEq, model.NormalizeEmail(email))},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "campaign: current")
	}
	for i := range list {
		if !list[i].Status.Terminal() {
			return &list[i], nil
		}
	}
	return nil, eris.Wrap(ErrNotFound, email)
}

// Transition moves a campaign to next. Invalid moves return
// model.ErrInvalidTransition and leave the document unchanged.
func (s *Store) Transition(ctx context.Context, orgID, id string, next model.CampaignStatus, reason string) (*model.Campaign, error) {
	return s.update(ctx, orgID, id, func(c *model.Campaign, now time.Time) error {
		return c.Transition(next, reason, now)
	})
}

// Pause suspends an active campaign until the given time.
func (s *Store) Pause(ctx context.Context, orgID, id string, until time.Time, reason string) (*model.Campaign, error) {
	return s.update(ctx, orgID, id, func(c *model.Campaign, now time.Time) error {
		return c.Pause(until.UTC(), reason, now)
	})
}

// Advance records that step index was sent.
func (s *Store) Advance(ctx context.Context, orgID, id string, step int) (*model.Campaign, error) {
	return s.update(ctx, orgID, id, func(c *model.Campaign, now time.Time) error {
		if step+1 > c.CurrentStep {
			c.CurrentStep = step + 1
		}
		c.UpdatedAt = now
		if c.Sequence != nil && c.CurrentStep >= len(c.Sequence.Steps) && c.Status == model.CampaignActive {
			return c.Transition(model.CampaignCompleted, "all steps sent", now)
		}
		return nil
	})
}

// ResumeDue reactivates paused campaigns whose pause has ended and returns
// how many were resumed.
func (s *Store) ResumeDue(ctx context.Context, orgID string, limit int) (int, error) {
	now := s.now().UTC()
	due, err := docstore.QueryAs[model.Campaign](ctx, s.docs, orgID, CollCampaigns, docstore.Filter{
		Where: []docstore.Cond{
			docstore.Where("status", docstore.OpEq, string(model.CampaignPaused)),
			docstore.Where("paused_until", docstore.OpLte, now),
		},
		OrderBy: "paused_until",
		Limit:   limit,
	})
	if err != nil {
		return 0, eris.Wrap(err, "campaign: list paused")
	}
	n := 0
	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, err := s.Transition(ctx, orgID, c.ID, model.CampaignActive, "pause ended")
		if eris.Is(err, model.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		s.log.Info("resumed paused campaigns", zap.String("org_id", orgID), zap.Int("count", n))
	}
	return n, nil
}

// List returns campaigns with the given status, newest first. An empty
// status lists all.
func (s *Store) List(ctx context.Context, orgID string, status model.CampaignStatus, limit int) ([]model.Campaign, error) {
	f := docstore.Filter{OrderBy: "created_at", Desc: true, Limit: limit}
	if status != "" {
		f.Where = []docstore.Cond{docstore.Where("status", docstore.OpEq, string(status))}
	}
	out, err := docstore.QueryAs[model.Campaign](ctx, s.docs, orgID, CollCampaigns, f)
	return out, eris.Wrap(err, "campaign: list")
}

func (s *Store) update(ctx context.Context, orgID, id string, fn func(c *model.Campaign, now time.Time) error) (*model.Campaign, error) {
	now := s.now().UTC()
	c, err := docstore.UpdateAs(ctx, s.docs, orgID, CollCampaigns, id,
		func(c *model.Campaign, exists bool) error {
			if !exists {
				return ErrNotFound
			}
			return fn(c, now)
		})
	if err != nil {
		if eris.Is(err, ErrNotFound) {
			return nil, eris.Wrap(ErrNotFound, id)
		}
		if eris.Is(err, model.ErrInvalidTransition) {
			return nil, err
		}
		return nil, eris.Wrap(err, "campaign: update")
	}
	return c, nil
}
