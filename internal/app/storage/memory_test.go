package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPlainKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "i:1", "cars,pets"))
	value, err := m.Get(ctx, "i:1")
	require.NoError(t, err)
	require.Equal(t, "cars,pets", value)
}

func TestMemoryCacheNamespaceIsSeparate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "plain"))
	require.True(t, m.CacheSet(ctx, "k", "cached", time.Hour))

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "plain", value)

	cached, ok := m.CacheGet(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "cached", cached)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	m.SetClock(func() time.Time { return now })

	require.True(t, m.CacheSet(ctx, "score", "3.0", time.Hour))

	_, ok := m.CacheGet(ctx, "score")
	require.True(t, ok)

	now = now.Add(time.Hour + time.Second)
	_, ok = m.CacheGet(ctx, "score")
	require.False(t, ok, "entry should have expired")

	// Plain keys never expire.
	require.NoError(t, m.Set(ctx, "i:2", "tv,geek"))
	now = now.Add(240 * time.Hour)
	value, err := m.Get(ctx, "i:2")
	require.NoError(t, err)
	require.Equal(t, "tv,geek", value)
}
