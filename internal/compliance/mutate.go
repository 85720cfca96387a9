package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/model"
)

// ErrNotSuppressed is returned when removing an address that is not listed.
var ErrNotSuppressed = eris.New("compliance: address is not suppressed")

// Suppression sources.
const (
	SourceManual    = "manual"
	SourceBounce    = "bounce"
	SourceComplaint = "complaint"
	SourceReply     = "reply"
)

// maxEventIDs bounds the dedup window kept on a bounce entry.
const maxEventIDs = 50

// AddToSuppressionList suppresses email for orgID. Re-adding an already
// suppressed address keeps the original entry and succeeds.
func (g *Gate) AddToSuppressionList(ctx context.Context, orgID, email, reason, source string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	now := g.now().UTC()
	_, err := docstore.UpdateAs(ctx, g.store, orgID, CollSuppressions, email,
		func(e *model.SuppressionEntry, exists bool) error {
			if exists {
				return docstore.ErrSkip
			}
			*e = model.SuppressionEntry{Email: email, OrgID: orgID, Reason: reason, Source: source, CreatedAt: now}
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "compliance: suppress")
	}
	g.log.Info("address suppressed",
		zap.String("org_id", orgID),
		zap.String("email", email),
		zap.String("reason", reason),
		zap.String("source", source),
	)
	return nil
}

// RemoveFromSuppressionList lifts a suppression.
func (g *Gate) RemoveFromSuppressionList(ctx context.Context, orgID, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	existing, err := getOptional[model.SuppressionEntry](ctx, g.store, orgID, CollSuppressions, email)
	if err != nil {
		return err
	}
	if existing == nil {
		return eris.Wrap(ErrNotSuppressed, email)
	}
	if err := g.store.Delete(ctx, orgID, CollSuppressions, email); err != nil {
		return eris.Wrap(err, "compliance: unsuppress")
	}
	g.log.Info("suppression removed", zap.String("org_id", orgID), zap.String("email", email))
	return nil
}

// AddToCoolingOff blocks email until now+d. An existing window is extended,
// never shortened.
func (g *Gate) AddToCoolingOff(ctx context.Context, orgID, email, reason string, d time.Duration) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	now := g.now().UTC()
	until := now.Add(d)
	_, err := docstore.UpdateAs(ctx, g.store, orgID, CollCoolingOff, email,
		func(e *model.CoolingOffEntry, exists bool) error {
			if exists && !e.ExpiresAt.Before(until) {
				return docstore.ErrSkip
			}
			*e = model.CoolingOffEntry{Email: email, OrgID: orgID, Reason: reason, ExpiresAt: until, CreatedAt: now}
			return nil
		})
	return eris.Wrap(err, "compliance: cooling off")
}

// BounceEvent is a delivery failure notification.
type BounceEvent struct {
	Email   string
	Type    model.BounceType
	Reason  string
	EventID string
}

// RecordBounce counts a bounce. An EventID already seen is ignored so that
// redelivered webhooks count once. Hard bounces also suppress the address.
func (g *Gate) RecordBounce(ctx context.Context, orgID string, ev BounceEvent) error {
	email := model.NormalizeEmail(ev.Email)
	if email == "" {
		return ErrInvalidEmail
	}
	now := g.now().UTC()
	entry, err := docstore.UpdateAs(ctx, g.store, g.sharedNS(orgID), CollBounces, email,
		func(e *model.BounceEntry, exists bool) error {
			if ev.EventID != "" {
				for _, id := range e.EventIDs {
					if id == ev.EventID {
						return docstore.ErrSkip
					}
				}
				e.EventIDs = append(e.EventIDs, ev.EventID)
				if len(e.EventIDs) > maxEventIDs {
					e.EventIDs = e.EventIDs[len(e.EventIDs)-maxEventIDs:]
				}
			}
			if !exists {
				e.Email = email
				e.FirstAt = now
			}
			e.Count++
			e.LastType = ev.Type
			e.Reason = ev.Reason
			e.UpdatedAt = now
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "compliance: record bounce")
	}
	g.log.Debug("bounce recorded", zap.String("email", email), zap.Int("count", entry.Count))

	if ev.Type == model.BounceHard {
		return g.AddToSuppressionList(ctx, orgID, email, "hard bounce: "+ev.Reason, SourceBounce)
	}
	return nil
}

// RecordComplaint stores a spam complaint and suppresses the address.
func (g *Gate) RecordComplaint(ctx context.Context, orgID, email, reason string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	now := g.now().UTC()
	_, err := docstore.UpdateAs(ctx, g.store, g.sharedNS(orgID), CollComplaints, email,
		func(e *model.ComplaintEntry, exists bool) error {
			if exists {
				return docstore.ErrSkip
			}
			*e = model.ComplaintEntry{Email: email, Reason: reason, CreatedAt: now}
			return nil
		})
	if err != nil {
		return eris.Wrap(err, "compliance: record complaint")
	}
	return g.AddToSuppressionList(ctx, orgID, email, "spam complaint", SourceComplaint)
}

// RecordTouch logs one outbound message toward the touch cap.
func (g *Gate) RecordTouch(ctx context.Context, orgID, email string, ch model.Channel, sentAt time.Time) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if sentAt.IsZero() {
		sentAt = g.now()
	}
	t := model.TouchEntry{ID: uuid.NewString(), Email: email, OrgID: orgID, Channel: ch, SentAt: sentAt.UTC()}
	return eris.Wrap(docstore.PutAs(ctx, g.store, orgID, CollTouches, t.ID, t), "compliance: record touch")
}

// SweepExpiredCoolingOff deletes at most limit cooling-off entries whose
// expiry has passed. It is safe to run repeatedly.
func (g *Gate) SweepExpiredCoolingOff(ctx context.Context, orgID string, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	expired, err := docstore.QueryAs[model.CoolingOffEntry](ctx, g.store, orgID, CollCoolingOff, docstore.Filter{
		Where:   []docstore.Cond{docstore.Where("expires_at", docstore.OpLte, g.now().UTC())},
		OrderBy: "expires_at",
		Limit:   limit,
	})
	if err != nil {
		return 0, eris.Wrap(err, "compliance: list expired cooling-off")
	}
	removed := 0
	for _, e := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := g.store.Delete(ctx, orgID, CollCoolingOff, e.Email); err != nil {
			return removed, eris.Wrap(err, "compliance: delete cooling-off")
		}
		removed++
	}
	if removed > 0 {
		g.log.Info("swept expired cooling-off entries", zap.String("org_id", orgID), zap.Int("removed", removed))
	}
	return removed, nil
}

// Stats summarizes an organization's suppression list.
type Stats struct {
	Total       int            `json:"total"`
	ByReason    map[string]int `json:"by_reason"`
	BySource    map[string]int `json:"by_source"`
	Last24Hours int            `json:"last_24_hours"`
	CoolingOff  int            `json:"cooling_off"`
}

// Stats counts suppressions by reason and source plus active cooling-off
// windows.
func (g *Gate) Stats(ctx context.Context, orgID string) (*Stats, error) {
	entries, err := docstore.QueryAs[model.SuppressionEntry](ctx, g.store, orgID, CollSuppressions, docstore.Filter{})
	if err != nil {
		return nil, eris.Wrap(err, "compliance: list suppressions")
	}
	now := g.now().UTC()
	st := &Stats{Total: len(entries), ByReason: map[string]int{}, BySource: map[string]int{}}
	for _, e := range entries {
		st.ByReason[e.Reason]++
		st.BySource[e.Source]++
		if now.Sub(e.CreatedAt) <= 24*time.Hour {
			st.Last24Hours++
		}
	}

	cooling, err := g.store.Query(ctx, orgID, CollCoolingOff, docstore.Filter{
		Where: []docstore.Cond{docstore.Where("expires_at", docstore.OpGt, now)},
	})
	if err != nil {
		return nil, eris.Wrap(err, "compliance: list cooling-off")
	}
	st.CoolingOff = len(cooling)
	return st, nil
}

// ListSuppressions returns the newest suppressions first.
func (g *Gate) ListSuppressions(ctx context.Context, orgID string, limit int) ([]model.SuppressionEntry, error) {
	out, err := docstore.QueryAs[model.SuppressionEntry](ctx, g.store, orgID, CollSuppressions, docstore.Filter{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	return out, eris.Wrap(err, "compliance: list suppressions")
}
