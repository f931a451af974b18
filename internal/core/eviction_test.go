package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/types"
)

func cacheEntryAt(key string, size int64, age time.Duration, now time.Time) types.CacheEntry {
	return types.CacheEntry{
		Key:       key,
		Algorithm: types.DigestAlgorithmSHA256,
		Digest:    "0000",
		Size:      size,
		CreatedAt: now.Add(-age),
	}
}

func evictedKeys(plan EvictionPlan) []string {
	var keys []string
	for _, entry := range plan.Evict {
		keys = append(keys, entry.Key)
	}
	return keys
}

func TestBuildEvictionPlanZeroPolicyKeepsEverything(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("a", 100, time.Hour, now),
		cacheEntryAt("b", 200, 90*24*time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{}, now)

	assert.Len(t, plan.Keep, 2)
	assert.Empty(t, plan.Evict)
}

func TestBuildEvictionPlanEvictsPastMaxAge(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("fresh", 100, time.Hour, now),
		cacheEntryAt("stale", 100, 30*time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{MaxAge: 24 * time.Hour}, now)

	assert.Equal(t, []string{"stale"}, evictedKeys(plan))
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, "fresh", plan.Keep[0].Key)
}

func TestBuildEvictionPlanAgeSkipsEntriesWithoutTimestamp(t *testing.T) {
	now := time.Now().UTC()
	undated := types.CacheEntry{Key: "undated", Size: 100}
	entries := []types.CacheEntry{
		undated,
		cacheEntryAt("stale", 100, 30*time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{MaxAge: 24 * time.Hour}, now)

	assert.Equal(t, []string{"stale"}, evictedKeys(plan))
}

func TestBuildEvictionPlanSizeBudgetEvictsOldestFirst(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("newest", 400, time.Hour, now),
		cacheEntryAt("oldest", 400, 72*time.Hour, now),
		cacheEntryAt("middle", 400, 24*time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{MaxTotalBytes: 900}, now)

	assert.Equal(t, []string{"oldest"}, evictedKeys(plan))
}

func TestBuildEvictionPlanSizeBudgetStopsOnceUnderLimit(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("a", 500, 3*time.Hour, now),
		cacheEntryAt("b", 500, 2*time.Hour, now),
		cacheEntryAt("c", 500, time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{MaxTotalBytes: 500}, now)

	assert.Equal(t, []string{"a", "b"}, evictedKeys(plan))
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, "c", plan.Keep[0].Key)
}

func TestBuildEvictionPlanAgeThenSizeCombined(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("ancient", 100, 100*time.Hour, now),
		cacheEntryAt("older", 600, 10*time.Hour, now),
		cacheEntryAt("newer", 600, time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{
		MaxAge:        24 * time.Hour,
		MaxTotalBytes: 700,
	}, now)

	// Age removes ancient; size then drops the oldest survivor.
	assert.Equal(t, []string{"ancient", "older"}, evictedKeys(plan))
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, "newer", plan.Keep[0].Key)
}

func TestBuildEvictionPlanPreservesInputOrder(t *testing.T) {
	now := time.Now().UTC()
	entries := []types.CacheEntry{
		cacheEntryAt("z", 100, 30*time.Hour, now),
		cacheEntryAt("a", 100, time.Hour, now),
		cacheEntryAt("m", 100, 40*time.Hour, now),
	}

	plan := BuildEvictionPlan(entries, types.EvictionPolicy{MaxAge: 24 * time.Hour}, now)

	assert.Equal(t, []string{"z", "m"}, evictedKeys(plan))
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, "a", plan.Keep[0].Key)
}
