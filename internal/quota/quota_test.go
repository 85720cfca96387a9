package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestWarmupLimit(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		day  int
		want int
	}{
		{-1, 20},
		{0, 20},
		{6, 20},
		{7, 40},
		{13, 40},
		{14, 80},
		{20, 80},
		{21, 150},
		{400, 150},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.WarmupLimit(tt.day), "day %d", tt.day)
	}

	assert.Equal(t, 10, Config{DailyLimit: 10}.WarmupLimit(0), "no warm-up")
}

func TestRedisTracker_ConsumeUntilExhausted(t *testing.T) {
	client, _ := setupTestRedis(t)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tr := NewRedisTracker(client, Config{DailyLimit: 5, Warmup: []Phase{{Days: 2, DailyLimit: 2}}},
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		snap, err := tr.Consume(ctx, "acct1")
		require.NoError(t, err)
		assert.Equal(t, i, snap.Used)
		assert.Equal(t, 2, snap.Limit)
	}
	snap, err := tr.Consume(ctx, "acct1")
	assert.True(t, eris.Is(err, ErrExhausted))
	assert.True(t, snap.Exhausted())
	assert.Equal(t, 2, snap.Used, "a refused send is not counted")
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), snap.ResetAt)

	other, err := tr.Snapshot(ctx, "acct2")
	require.NoError(t, err)
	assert.Equal(t, 2, other.Remaining, "accounts are independent")

	// Two days later warm-up is over and the counter is fresh.
	now = now.Add(48 * time.Hour)
	snap, err = tr.Snapshot(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Day)
	assert.Equal(t, 5, snap.Limit)
	assert.Zero(t, snap.Used)
}

func TestRedisTracker_CountersExpire(t *testing.T) {
	client, mr := setupTestRedis(t)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	tr := NewRedisTracker(client, Config{}, WithClock(func() time.Time { return now }))

	_, err := tr.Consume(context.Background(), "acct1")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, mr.TTL("outreach:quota:acct1:2025-06-02"))
	start, err := mr.Get("outreach:quota:acct1:start")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", start)
}

func TestRedisTracker_ConcurrentConsume(t *testing.T) {
	client, _ := setupTestRedis(t)
	tr := NewRedisTracker(client, Config{DailyLimit: 10, Warmup: []Phase{}})
	ctx := context.Background()

	results := make(chan error, 25)
	for i := 0; i < 25; i++ {
		go func() {
			_, err := tr.Consume(ctx, "acct1")
			results <- err
		}()
	}
	ok := 0
	for i := 0; i < 25; i++ {
		if <-results == nil {
			ok++
		}
	}
	assert.Equal(t, 10, ok)

	snap, err := tr.Snapshot(ctx, "acct1")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Used)
}
