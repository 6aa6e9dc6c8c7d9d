package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardRepository(t *testing.T) {
	repo := NewMemoryGuardRepository()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("Guard", func(t *testing.T) {
		token, ok, err := repo.AcquireSlot(ctx, "slot", 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, _ = repo.AcquireSlot(ctx, "slot", 10*time.Second)
		assert.False(t, ok)

		require.NoError(t, repo.ReleaseSlot(ctx, "slot", "wrong"))
		_, ok, _ = repo.AcquireSlot(ctx, "slot", 10*time.Second)
		assert.False(t, ok, "foreign token must not release")

		require.NoError(t, repo.ReleaseSlot(ctx, "slot", token))
		_, ok, _ = repo.AcquireSlot(ctx, "slot", 10*time.Second)
		assert.True(t, ok)
	})

	t.Run("GuardExpires", func(t *testing.T) {
		_, ok, _ := repo.AcquireSlot(ctx, "expiring", time.Second)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		_, ok, _ = repo.AcquireSlot(ctx, "expiring", time.Second)
		assert.True(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, err := repo.CheckRateLimit(ctx, "client", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "client", 1, time.Minute)
		assert.False(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "other", 1, time.Minute)
		assert.True(t, allowed)

		now = now.Add(time.Minute + time.Second)
		allowed, _ = repo.CheckRateLimit(ctx, "client", 1, time.Minute)
		assert.True(t, allowed)
	})
}

func TestMemoryGuardRepository_SweepsExpiredEntries(t *testing.T) {
	repo := NewMemoryGuardRepository()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		_, err := repo.CheckRateLimit(ctx, fmt.Sprintf("c1:client-%d", i), 3, time.Minute)
		require.NoError(t, err)
	}
	for i := 0; i < 50; i++ {
		_, ok, err := repo.AcquireSlot(ctx, fmt.Sprintf("c1:2024-05-06:%02d:00", i), 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}
	guards, counters := repo.Len()
	require.Equal(t, 50, guards)
	require.Equal(t, 10000, counters)

	now = now.Add(24 * time.Hour)
	allowed, err := repo.CheckRateLimit(ctx, "c1:latecomer", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	guards, counters = repo.Len()
	assert.Equal(t, 0, guards)
	assert.Equal(t, 1, counters)
}

func TestMemoryGuardRepository_SweepKeepsLiveEntries(t *testing.T) {
	repo := NewMemoryGuardRepository()
	now := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := repo.CheckRateLimit(ctx, "short", 1, time.Minute)
	require.NoError(t, err)
	_, err = repo.CheckRateLimit(ctx, "long", 1, time.Hour)
	require.NoError(t, err)
	_, ok, _ := repo.AcquireSlot(ctx, "held", time.Hour)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = repo.CheckRateLimit(ctx, "fresh", 1, time.Minute)
	require.NoError(t, err)

	guards, counters := repo.Len()
	assert.Equal(t, 1, guards)
	assert.Equal(t, 2, counters)

	allowed, _ := repo.CheckRateLimit(ctx, "long", 1, time.Hour)
	assert.False(t, allowed, "live counter must survive the sweep")
}
