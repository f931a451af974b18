package types

import "time"

// CacheEntry is one verified artifact in the download cache. Key is the
// component name; the blob path is derived from the digest, so two
// components sharing content share a blob.
type CacheEntry struct {
	Key       string          `yaml:"key"`
	Path      string          `yaml:"path"`
	Algorithm DigestAlgorithm `yaml:"algorithm"`
	Digest    string          `yaml:"digest"`
	Size      int64           `yaml:"size"`
	CreatedAt time.Time       `yaml:"created_at"`
}

// EvictionPolicy bounds the cache. Zero MaxAge disables age eviction;
// zero MaxTotalBytes disables size eviction. DryRun reports what would
// be evicted without removing anything.
type EvictionPolicy struct {
	MaxAge        time.Duration
	MaxTotalBytes int64
	DryRun        bool
}

type EvictionReport struct {
	Evicted        []CacheEntry
	Kept           int
	BytesReclaimed int64
}
