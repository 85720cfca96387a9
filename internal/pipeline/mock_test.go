package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
	"github.com/sells-group/outreach-cli/internal/quota"
)

// --- Quota Mock ---

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Snapshot(ctx context.Context, accountID string) (quota.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(quota.Snapshot), args.Error(1)
}

func (m *mockTracker) Consume(ctx context.Context, accountID string) (quota.Snapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(quota.Snapshot), args.Error(1)
}

func snapshot(limit, used int) quota.Snapshot {
	return quota.Snapshot{
		AccountID: "acct1",
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetAt:   testNow.Add(18 * time.Hour),
	}
}

// --- Enricher Fake ---

type enricherFunc func(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord

func (f enricherFunc) Enrich(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord {
	return f(ctx, c, icp)
}

func fixedEnricher() Enricher {
	return enricherFunc(func(_ context.Context, c model.Contact, _ model.ICP) *model.EnrichedRecord {
		r := model.NewEnrichedRecord(c)
		r.Sources = []model.SourceName{model.SourceWebsite, model.SourceMaps}
		r.Phones = []string{"06 12 34 56 78"}
		r.Emails = []string{c.Email}
		r.DecisionMakers = []model.DecisionMaker{{Name: "Jean-Pierre Durand", Role: "Gérant"}}
		emp := 6
		r.Financial.Employees = &emp
		r.Completeness = 70
		return r
	})
}

// --- Notifier Recorder ---

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}
