package ports

import "devkit-installer/internal/types"

// ArtifactCachePort is the content-addressed store of verified
// downloads. Lookup must only return entries whose blob still matches
// the digest the spec demands; anything stale is evicted, not served.
type ArtifactCachePort interface {
	Lookup(spec types.ComponentSpec) (types.CacheEntry, bool, error)
	Put(spec types.ComponentSpec, artifactPath string) (types.CacheEntry, error)
	Evict(policy types.EvictionPolicy) (types.EvictionReport, error)
}
