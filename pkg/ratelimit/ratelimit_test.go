package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter() (*MemoryRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewMemoryRateLimiter(time.Minute)
	l.now = clock.now
	return l, clock
}

func TestMemoryRateLimiterBlocksAfterBurst(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()
	limit := PerSecond(1, 2)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "10.0.0.1", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := l.Allow(ctx, "10.0.0.1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	clock.t = clock.t.Add(time.Second)
	res, err = l.Allow(ctx, "10.0.0.1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryRateLimiterSeparatesKeys(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()
	limit := PerSecond(1, 1)

	res, err := l.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "b", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "a", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemoryRateLimiterEvictsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()

	_, err := l.Allow(ctx, "idle", PerSecond(1, 1))
	require.NoError(t, err)
	require.Len(t, l.visitors, 1)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = l.Allow(ctx, "fresh", PerSecond(1, 1))
	require.NoError(t, err)
	assert.NotContains(t, l.visitors, "idle")
}

func TestMemoryRateLimiterSweepsAtMostOncePerTTL(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()
	start := clock.t
	at := func(d time.Duration, key string) {
		t.Helper()
		clock.t = start.Add(d)
		_, err := l.Allow(ctx, key, PerSecond(1, 1))
		require.NoError(t, err)
	}

	at(0, "a")
	at(59*time.Second, "b")
	at(119*time.Second, "c")
	assert.NotContains(t, l.visitors, "a")
	assert.Contains(t, l.visitors, "b")

	// b 已空闲超过 ttl，但距上次清理不足 ttl，不会被扫描
	at(150*time.Second, "d")
	assert.Contains(t, l.visitors, "b")

	at(180*time.Second, "e")
	assert.NotContains(t, l.visitors, "b")
	assert.Contains(t, l.visitors, "d")
}

func TestMemoryRateLimiterRejectsInvalidLimit(t *testing.T) {
	l, _ := newTestLimiter()
	_, err := l.Allow(context.Background(), "k", Limit{})
	assert.Error(t, err)
}
