package abtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/docstore/docstoretest"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func newTestController(t *testing.T) (*Controller, docstore.Store, *recorder) {
	t.Helper()
	store := docstoretest.New(t)
	rec := &recorder{}
	c := New(store, Config{MinSampleSize: 100}, WithClock(func() time.Time { return testNow }), WithNotifier(rec))
	return c, store, rec
}

func createTest(t *testing.T, c *Controller) *model.ABTest {
	t.Helper()
	tt, err := c.CreateTest(context.Background(), "org1", TestSpec{
		CampaignID: "camp1",
		A:          model.Variant{Label: "direct", Subject: "Vos avis"},
		B:          model.Variant{Label: "question", Subject: "Une question ?"},
	})
	require.NoError(t, err)
	return tt
}

// seed overwrites the counters of a stored test.
func seed(t *testing.T, store docstore.Store, tt *model.ABTest, a, b model.Variant) {
	t.Helper()
	a.Name, b.Name = model.VariantA, model.VariantB
	tt.A, tt.B = a, b
	require.NoError(t, docstore.PutAs(context.Background(), store, tt.OrgID, CollTests, tt.ID, tt))
}

func TestCreateTest_Defaults(t *testing.T) {
	c, _, _ := newTestController(t)
	tt := createTest(t, c)

	assert.NotEmpty(t, tt.ID)
	assert.Equal(t, model.ABRunning, tt.Status)
	assert.Equal(t, model.MetricReply, tt.TargetMetric)
	assert.Equal(t, 100, tt.MinSampleSize)
	assert.InDelta(t, 0.95, tt.ConfidenceThreshold, 1e-9)
	assert.Equal(t, model.VariantA, tt.A.Name)
	assert.Equal(t, "question", tt.B.Label)
	assert.Nil(t, tt.Winner)

	_, err := c.CreateTest(context.Background(), "org1", TestSpec{TargetMetric: model.MetricSent})
	assert.True(t, eris.Is(err, ErrUnknownMetric))
}

func TestSelectVariant_BalancesSends(t *testing.T) {
	c, store, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)

	v, err := c.SelectVariant(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantA, v, "fresh test starts with A")

	seed(t, store, tt, model.Variant{Sent: 5}, model.Variant{Sent: 3})
	v, err = c.SelectVariant(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantB, v)

	seed(t, store, tt, model.Variant{Sent: 4}, model.Variant{Sent: 4})
	v, err = c.SelectVariant(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantA, v, "ties favor A")

	_, err = c.SelectVariant(ctx, "org1", "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSelectVariant_WinnerIsSticky(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)

	_, err := c.DeclareWinner(ctx, "org1", tt.ID, model.VariantB, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		v, err := c.SelectVariant(ctx, "org1", tt.ID)
		require.NoError(t, err)
		assert.Equal(t, model.VariantB, v)
	}
}

func TestRecordEvent_ConcurrentIncrements(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := model.VariantA
			if i%2 == 1 {
				v = model.VariantB
			}
			_, err := c.RecordEvent(ctx, "org1", tt.ID, v, model.MetricSent)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := c.Get(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.A.Sent)
	assert.Equal(t, 10, got.B.Sent)
}

func TestRecordEvent_Rejects(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)

	_, err := c.RecordEvent(ctx, "org1", tt.ID, "C", model.MetricOpen)
	assert.True(t, eris.Is(err, ErrUnknownVariant))

	_, err = c.RecordEvent(ctx, "org1", tt.ID, model.VariantA, "bounce")
	assert.True(t, eris.Is(err, ErrUnknownMetric))

	_, err = c.RecordEvent(ctx, "org1", "missing", model.VariantA, model.MetricOpen)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestRecordEvent_AutoDeclaresWinner(t *testing.T) {
	c, store, rec := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)
	seed(t, store, tt, model.Variant{Sent: 100, Replied: 29}, model.Variant{Sent: 100, Replied: 10})

	got, err := c.RecordEvent(ctx, "org1", tt.ID, model.VariantA, model.MetricReply)
	require.NoError(t, err)
	require.NotNil(t, got.Winner)
	assert.Equal(t, model.VariantA, *got.Winner)
	assert.Equal(t, model.ABCompleted, got.Status)
	assert.False(t, got.ManualWinner)
	assert.Contains(t, got.WinnerReason, "99% confidence")
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(testNow))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, notify.KindABWinner, rec.sent[0].Kind)
	assert.Equal(t, "A", rec.sent[0].Details["winner"])

	// Later events still count but never replace the winner.
	for i := 0; i < 50; i++ {
		_, err = c.RecordEvent(ctx, "org1", tt.ID, model.VariantB, model.MetricReply)
		require.NoError(t, err)
	}
	got, err = c.Get(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VariantA, *got.Winner)
	assert.Equal(t, 60, got.B.Replied)
	assert.Len(t, rec.sent, 1)
}

func TestCheckWinner_NeedsSampleSize(t *testing.T) {
	c, store, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)
	seed(t, store, tt, model.Variant{Sent: 99, Replied: 60}, model.Variant{Sent: 100, Replied: 5})

	got, s, err := c.CheckWinner(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Winner)
	assert.False(t, s.SampleReached)
	assert.True(t, s.Significant)
	assert.False(t, s.CanDeclare())
}

func TestCheckWinner_IdenticalRatesNeverWin(t *testing.T) {
	c, store, _ := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)
	seed(t, store, tt, model.Variant{Sent: 500, Replied: 50}, model.Variant{Sent: 500, Replied: 50})

	got, s, err := c.CheckWinner(ctx, "org1", tt.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Winner)
	assert.Nil(t, s.Leader)
	assert.Zero(t, s.Confidence)
	assert.True(t, s.SampleReached)
}

func TestDeclareWinner_ManualOverride(t *testing.T) {
	c, _, rec := newTestController(t)
	ctx := context.Background()
	tt := createTest(t, c)

	got, err := c.DeclareWinner(ctx, "org1", tt.ID, model.VariantB, "brand preference")
	require.NoError(t, err)
	assert.Equal(t, model.VariantB, *got.Winner)
	assert.True(t, got.ManualWinner)
	assert.Equal(t, "brand preference", got.WinnerReason)
	assert.Len(t, rec.sent, 1)

	_, err = c.DeclareWinner(ctx, "org1", tt.ID, model.VariantA, "changed my mind")
	assert.True(t, eris.Is(err, ErrCompleted))

	_, err = c.DeclareWinner(ctx, "org1", tt.ID, "Z", "")
	assert.True(t, eris.Is(err, ErrUnknownVariant))
}

func TestListActiveAndHistory(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	first := createTest(t, c)
	second := createTest(t, c)
	_, err := c.DeclareWinner(ctx, "org1", first.ID, model.VariantA, "")
	require.NoError(t, err)

	active, err := c.ListActive(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	history, err := c.ListHistory(ctx, "org1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)

	other, err := c.ListActive(ctx, "org2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		z    float64
		want float64
	}{
		{3.2, 0.99},
		{2.58, 0.99},
		{2.0, 0.95},
		{1.96, 0.95},
		{1.7, 0.90},
		{1.3, 0.80},
		{1.0, 0.50},
		{0, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Confidence(tt.z), 1e-9, "z=%v", tt.z)
	}
}

func TestComputeStats(t *testing.T) {
	tt := &model.ABTest{
		TargetMetric:        model.MetricReply,
		MinSampleSize:       100,
		ConfidenceThreshold: 0.95,
		A:                   model.Variant{Sent: 100, Opened: 40, Replied: 30},
		B:                   model.Variant{Sent: 100, Opened: 20, Replied: 10},
	}
	s := ComputeStats(tt)
	require.NotNil(t, s.Leader)
	assert.Equal(t, model.VariantA, *s.Leader)
	assert.InDelta(t, 0.30, s.A.Reply, 1e-9)
	assert.InDelta(t, 0.20, s.B.Open, 1e-9)
	assert.InDelta(t, 2.0, s.Lift, 1e-9)
	assert.InDelta(t, 3.5355, s.ZScore, 1e-3)
	assert.InDelta(t, 0.99, s.Confidence, 1e-9)
	assert.True(t, s.CanDeclare())

	empty := ComputeStats(&model.ABTest{TargetMetric: model.MetricReply})
	assert.Nil(t, empty.Leader)
	assert.Zero(t, empty.ZScore)
}

func TestGenerateInsights(t *testing.T) {
	tt := &model.ABTest{
		TargetMetric:        model.MetricReply,
		MinSampleSize:       100,
		ConfidenceThreshold: 0.95,
		A:                   model.Variant{Sent: 60, Opened: 30, Replied: 6, Unsubscribed: 3},
		B:                   model.Variant{Sent: 40, Opened: 12, Replied: 2},
	}
	got := GenerateInsights(tt)
	require.NotEmpty(t, got)
	assert.Contains(t, got[0], "60 more sends")
	assert.Contains(t, got[1], "Variant A leads on reply rate: 10.0% vs 5.0% (+100% relative)")
	assert.Contains(t, got[2], "below the 95%")
	assert.Contains(t, got[3], "Variant A has a high unsubscribe rate (5.0%)")
	assert.Contains(t, got[4], "variant A gets noticeably more opens")

	w := model.VariantB
	tt.Winner, tt.WinnerReason, tt.ManualWinner = &w, "brand preference", true
	got = GenerateInsights(tt)
	assert.Equal(t, "Variant B was declared the winner manually: brand preference.", got[0])
}
