package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/docstore/docstoretest"
	"github.com/sells-group/outreach-cli/internal/model"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestGate(t *testing.T, cfg Config) (*Gate, *time.Time) {
	t.Helper()
	now := testNow
	g := New(docstoretest.New(t), cfg, WithClock(func() time.Time { return now }))
	return g, &now
}

func TestCanSend_AllowedWithRemainingTouches(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.RecordTouch(ctx, "org1", "lead@acme.fr", model.ChannelEmail, testNow.Add(-48*time.Hour)))

	d, err := g.CanSend(ctx, "Lead@Acme.fr ", "org1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, model.ReasonNone, d.Reason)
	assert.Equal(t, 5, d.RemainingTouches)
}

func TestCanSend_RejectsEmpty(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	_, err := g.CanSend(context.Background(), "  ", "org1")
	assert.True(t, eris.Is(err, ErrInvalidEmail))
}

func TestCanSend_SuppressedUntilRemoved(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.AddToSuppressionList(ctx, "org1", "a@b.fr", "asked", SourceManual))
	require.NoError(t, g.AddToSuppressionList(ctx, "org1", "A@B.fr", "again", SourceManual), "re-adding is a no-op")

	d, err := g.CanSend(ctx, "a@b.fr", "org1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonSuppressed, d.Reason)
	assert.Equal(t, "asked", d.Metadata["reason"], "original entry is kept")

	other, err := g.CanSend(ctx, "a@b.fr", "org2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "suppression lists are per organization")

	require.NoError(t, g.RemoveFromSuppressionList(ctx, "org1", "a@b.fr"))
	d, err = g.CanSend(ctx, "a@b.fr", "org1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	err = g.RemoveFromSuppressionList(ctx, "org1", "a@b.fr")
	assert.True(t, eris.Is(err, ErrNotSuppressed))
}

func TestCanSend_BouncedAfterTwoSoftBounces(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "x@y.fr", Type: model.BounceSoft, EventID: "e1"}))
	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "x@y.fr", Type: model.BounceSoft, EventID: "e1"}))

	d, err := g.CanSend(ctx, "x@y.fr", "org1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "duplicate event counts once")

	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "x@y.fr", Type: model.BounceSoft, EventID: "e2"}))

	d, err = g.CanSend(ctx, "x@y.fr", "org2")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonBounced, d.Reason, "bounces are global by default")
	assert.Equal(t, "2", d.Metadata["bounce_count"])
}

func TestCanSend_BounceScopeOrg(t *testing.T) {
	g, _ := newTestGate(t, Config{Scope: ScopeOrg})
	ctx := context.Background()

	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "x@y.fr", Type: model.BounceSoft, EventID: id}))
	}

	d, err := g.CanSend(ctx, "x@y.fr", "org2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = g.CanSend(ctx, "x@y.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonBounced, d.Reason)
}

func TestRecordBounce_HardBounceSuppresses(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "gone@y.fr", Type: model.BounceHard, Reason: "550 user unknown"}))

	d, err := g.CanSend(ctx, "gone@y.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSuppressed, d.Reason)
}

func TestCanSend_MaxTouchesReached(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	oldest := testNow.Add(-29 * 24 * time.Hour)
	require.NoError(t, g.RecordTouch(ctx, "org1", "p@q.fr", model.ChannelEmail, testNow.Add(-40*24*time.Hour)))
	require.NoError(t, g.RecordTouch(ctx, "org1", "p@q.fr", model.ChannelEmail, oldest))
	for i := 1; i <= 5; i++ {
		require.NoError(t, g.RecordTouch(ctx, "org1", "p@q.fr", model.ChannelSMS, oldest.Add(time.Duration(i)*24*time.Hour)))
	}

	d, err := g.CanSend(ctx, "p@q.fr", "org1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonMaxTouches, d.Reason)
	require.NotNil(t, d.NextContactAt)
	assert.True(t, d.NextContactAt.Equal(oldest.Add(31*24*time.Hour)))
	assert.GreaterOrEqual(t, d.NextContactAt.Sub(oldest), 31*24*time.Hour)
}

func TestCanSend_CoolingOffAndSweep(t *testing.T) {
	g, now := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.AddToCoolingOff(ctx, "org1", "c@d.fr", "not now", 7*24*time.Hour))
	require.NoError(t, g.AddToCoolingOff(ctx, "org1", "c@d.fr", "shorter", time.Hour), "never shortens")

	d, err := g.CanSend(ctx, "c@d.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonCoolingOff, d.Reason)
	assert.Equal(t, "not now", d.Metadata["reason"])

	n, err := g.SweepExpiredCoolingOff(ctx, "org1", 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	*now = now.Add(8 * 24 * time.Hour)
	d, err = g.CanSend(ctx, "c@d.fr", "org1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "expired window no longer blocks")

	n, err = g.SweepExpiredCoolingOff(ctx, "org1", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = g.SweepExpiredCoolingOff(ctx, "org1", 10)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep is repeatable")
}

func TestCanSend_ComplaintSuppresses(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.RecordComplaint(ctx, "org1", "angry@x.fr", "fbl"))
	require.NoError(t, g.RecordComplaint(ctx, "org1", "angry@x.fr", "fbl"))

	d, err := g.CanSend(ctx, "angry@x.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSuppressed, d.Reason, "suppression is checked first")

	d, err = g.CanSend(ctx, "angry@x.fr", "org2")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonComplained, d.Reason, "complaints are shared across organizations")
}

func TestCanSend_OrderSuppressedBeforeBounced(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "z@z.fr", Type: model.BounceHard}))
	require.NoError(t, g.RecordBounce(ctx, "org1", BounceEvent{Email: "z@z.fr", Type: model.BounceHard}))

	d, err := g.CanSend(ctx, "z@z.fr", "org1")
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSuppressed, d.Reason)
}

func TestStats(t *testing.T) {
	g, _ := newTestGate(t, Config{})
	ctx := context.Background()

	require.NoError(t, g.AddToSuppressionList(ctx, "org1", "a@x.fr", "unsubscribe", SourceReply))
	require.NoError(t, g.AddToSuppressionList(ctx, "org1", "b@x.fr", "unsubscribe", SourceReply))
	require.NoError(t, g.RecordComplaint(ctx, "org1", "c@x.fr", ""))
	require.NoError(t, g.AddToCoolingOff(ctx, "org1", "d@x.fr", "ooo", time.Hour))

	st, err := g.Stats(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.BySource[SourceReply])
	assert.Equal(t, 1, st.BySource[SourceComplaint])
	assert.Equal(t, 3, st.Last24Hours)
	assert.Equal(t, 1, st.CoolingOff)

	list, err := g.ListSuppressions(ctx, "org1", 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
