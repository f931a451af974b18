package core

import (
	"sort"
	"time"

	"devkit-installer/internal/types"
)

// EvictionPlan splits cache entries into those to keep and those to
// remove. Building the plan is pure; executing it is the cache's job.
type EvictionPlan struct {
	Keep  []types.CacheEntry
	Evict []types.CacheEntry
}

// BuildEvictionPlan applies the cache retention policy: entries past
// MaxAge go first, then the oldest survivors until the total size fits
// under MaxTotalBytes. A zero policy keeps everything.
func BuildEvictionPlan(entries []types.CacheEntry, policy types.EvictionPolicy, now time.Time) EvictionPlan {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	evicted := map[string]struct{}{}
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		for _, entry := range entries {
			if !entry.CreatedAt.IsZero() && entry.CreatedAt.Before(cutoff) {
				evicted[entry.Key] = struct{}{}
			}
		}
	}

	if policy.MaxTotalBytes > 0 {
		var total int64
		var survivors []types.CacheEntry
		for _, entry := range entries {
			if _, gone := evicted[entry.Key]; gone {
				continue
			}
			total += entry.Size
			survivors = append(survivors, entry)
		}
		sort.SliceStable(survivors, func(i, j int) bool {
			return survivors[i].CreatedAt.Before(survivors[j].CreatedAt)
		})
		for _, entry := range survivors {
			if total <= policy.MaxTotalBytes {
				break
			}
			evicted[entry.Key] = struct{}{}
			total -= entry.Size
		}
	}

	plan := EvictionPlan{}
	for _, entry := range entries {
		if _, gone := evicted[entry.Key]; gone {
			plan.Evict = append(plan.Evict, entry)
		} else {
			plan.Keep = append(plan.Keep, entry)
		}
	}
	return plan
}
