package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"planrag/internal/domain"
)

func TestMemoryPutThenGetRoundTrips(t *testing.T) {
	store := NewMemory()
	entry := domain.CacheEntry{Answer: "respuesta", Question: "pregunta"}
	require.NoError(t, store.Put(context.Background(), "qh", "ph", entry, nil))
	got, ok, err := store.Get(context.Background(), "qh", "ph")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Answer, got.Answer)
}

func TestMemoryExpiredEntryIsLazilyDeleted(t *testing.T) {
	store := NewMemory()
	ttl := -time.Second // already expired
	require.NoError(t, store.Put(context.Background(), "qh", "ph", domain.CacheEntry{Answer: "x"}, &ttl))
	_, ok, err := store.Get(context.Background(), "qh", "ph")
	require.NoError(t, err)
	require.False(t, ok)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total, "expired entry must be removed by the lazy-delete-on-read path")
}

func TestMemoryLastWriteWins(t *testing.T) {
	store := NewMemory()
	require.NoError(t, store.Put(context.Background(), "qh", "ph", domain.CacheEntry{Answer: "first"}, nil))
	require.NoError(t, store.Put(context.Background(), "qh", "ph", domain.CacheEntry{Answer: "second"}, nil))
	got, ok, err := store.Get(context.Background(), "qh", "ph")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", got.Answer)
}
