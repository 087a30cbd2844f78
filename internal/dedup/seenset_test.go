package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griguv/pricewatch/internal/extract"
	"github.com/griguv/pricewatch/services/cache"
)

func items(ids ...string) []extract.ListingRecord {
	out := make([]extract.ListingRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, extract.ListingRecord{ID: id, Title: "item " + id, Link: "https://example.org/" + id})
	}
	return out
}

func TestDiffSeedsSilently(t *testing.T) {
	store := NewStore(nil, 0)

	newItems, seeded := store.Diff("search-1", items("a", "b", "c"))
	assert.True(t, seeded)
	assert.Empty(t, newItems)
	assert.Equal(t, 3, store.Size("search-1"))
}

func TestDiffReportsOnlyNew(t *testing.T) {
	store := NewStore(nil, 0)
	store.Diff("search-1", items("a", "b", "c"))

	newItems, seeded := store.Diff("search-1", items("a", "b", "c", "d"))
	assert.False(t, seeded)
	require.Len(t, newItems, 1)
	assert.Equal(t, "d", newItems[0].ID)

	// Not marked yet: the same diff reports d again.
	newItems, _ = store.Diff("search-1", items("a", "b", "c", "d"))
	require.Len(t, newItems, 1)

	store.MarkSeen("search-1", items("d"))
	newItems, _ = store.Diff("search-1", items("a", "b", "c", "d"))
	assert.Empty(t, newItems)
}

func TestSetGrowsMonotonically(t *testing.T) {
	store := NewStore(nil, 0)
	store.Diff("search-1", items("a", "b"))

	// An item disappearing from the page does not shrink the set.
	newItems, _ := store.Diff("search-1", items("b"))
	assert.Empty(t, newItems)
	assert.Equal(t, 2, store.Size("search-1"))

	// Reappearing later is still not new.
	newItems, _ = store.Diff("search-1", items("a", "b"))
	assert.Empty(t, newItems)
}

func TestSeparateKeysSeparateSets(t *testing.T) {
	store := NewStore(nil, 0)
	store.Diff("search-1", items("a"))

	_, seeded := store.Diff("search-2", items("a"))
	assert.True(t, seeded)
}

func TestCheckpointSurvivesRestart(t *testing.T) {
	shared := cache.NewMemoryService(16)

	store := NewStore(shared, time.Hour)
	store.Diff("search-1", items("a", "b"))
	store.MarkSeen("search-1", items("c"))

	// New store over the same cache backend: not a fresh seed.
	restarted := NewStore(shared, time.Hour)
	newItems, seeded := restarted.Diff("search-1", items("a", "b", "c", "d"))
	assert.False(t, seeded)
	require.Len(t, newItems, 1)
	assert.Equal(t, "d", newItems[0].ID)
}
