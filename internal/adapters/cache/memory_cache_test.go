package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/reply-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(now time.Time) *MemoryCache {
	c := NewMemoryCache(zap.NewNop(), 0)
	c.now = func() time.Time { return now }
	return c
}

func TestMemoryCacheGetSet(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newTestCache(now)
	ctx := context.Background()

	_, err := c.Get(ctx, "instantly:ws:r1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, c.Set(ctx, &core.CacheEntry{
		Key:       "instantly:ws:r1",
		Tier:      core.TierHot,
		Rationale: "asks for a call",
		Model:     "claude",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	got, err := c.Get(ctx, "instantly:ws:r1")
	require.NoError(t, err)
	assert.Equal(t, core.TierHot, got.Tier)
	assert.Equal(t, "asks for a call", got.Rationale)

	require.NoError(t, c.Delete(ctx, "instantly:ws:r1"))
	_, err = c.Get(ctx, "instantly:ws:r1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c := newTestCache(now)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &core.CacheEntry{Key: "old", Tier: core.TierWarm, ExpiresAt: now}))
	require.NoError(t, c.Set(ctx, &core.CacheEntry{Key: "live", Tier: core.TierWarm, ExpiresAt: now.Add(time.Minute)}))

	_, err := c.Get(ctx, "old")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, c.Cleanup(ctx))
	assert.Equal(t, 1, c.Len())

	_, err = c.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestMemoryCacheStopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Millisecond)
	c.Stop()
	c.Stop()
}
