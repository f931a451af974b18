package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/types"
)

func cacheSpec(name string, url string, payload []byte) types.ComponentSpec {
	sum := sha256.Sum256(payload)
	return types.ComponentSpec{
		Name:    name,
		Version: "1.0.0",
		URL:     url,
		Digest: types.Digest{
			Algorithm: types.DigestAlgorithmSHA256,
			Value:     hex.EncodeToString(sum[:]),
		},
	}
}

func writeArtifact(t *testing.T, payload []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.tar.gz")
	require.NoError(t, os.WriteFile(path, payload, 0644))
	return path
}

func TestDirCacheAdapterPutAndLookup(t *testing.T) {
	dir := t.TempDir()
	adapter := NewDirCacheAdapter(dir)
	payload := []byte("toolchain archive contents")
	spec := cacheSpec("base-toolchain", "https://dl.example.com/base-toolchain-1.0.0.tar.gz", payload)

	put, err := adapter.Put(spec, writeArtifact(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "base-toolchain", put.Key)
	assert.Equal(t, int64(len(payload)), put.Size)

	// Blobs are sharded by the first two digest characters and keep the
	// archive suffix.
	wantBlob := filepath.Join(dir, "blobs", "sha256", spec.Digest.Value[:2], spec.Digest.Value+".tar.gz")
	require.Equal(t, wantBlob, put.Path)
	data, err := os.ReadFile(put.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	entry, hit, err := adapter.Lookup(spec)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, put.Path, entry.Path)
	assert.Equal(t, spec.Digest.Value, entry.Digest)
}

func TestDirCacheAdapterLookupMissesOnDigestChange(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	payload := []byte("editor v1")
	spec := cacheSpec("editor", "https://dl.example.com/editor-1.tar.gz", payload)

	_, err := adapter.Put(spec, writeArtifact(t, payload))
	require.NoError(t, err)

	// The catalog now pins a newer artifact for the same component.
	newer := cacheSpec("editor", "https://dl.example.com/editor-2.tar.gz", []byte("editor v2"))
	_, hit, err := adapter.Lookup(newer)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirCacheAdapterLookupMissesWithoutDigest(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	payload := []byte("profile")
	spec := cacheSpec("profile", "https://dl.example.com/profile.conf", payload)

	_, err := adapter.Put(spec, writeArtifact(t, payload))
	require.NoError(t, err)

	spec.Digest = types.Digest{}
	_, hit, err := adapter.Lookup(spec)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDirCacheAdapterCorruptBlobSelfHeals(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	payload := []byte("runtime archive")
	spec := cacheSpec("runtime", "https://dl.example.com/runtime.tar.gz", payload)

	put, err := adapter.Put(spec, writeArtifact(t, payload))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(put.Path, []byte("bit rot"), 0644))

	_, hit, err := adapter.Lookup(spec)
	require.NoError(t, err)
	require.False(t, hit)

	// The poisoned entry is gone: the blob is removed and a fresh Put
	// repopulates the cache.
	_, statErr := os.Stat(put.Path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = adapter.Put(spec, writeArtifact(t, payload))
	require.NoError(t, err)
	_, hit, err = adapter.Lookup(spec)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestDirCacheAdapterPutRefusals(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*types.ComponentSpec)
		wantCode errbuilder.ErrCode
	}{
		{
			name:     "no digest",
			mutate:   func(spec *types.ComponentSpec) { spec.Digest = types.Digest{} },
			wantCode: errbuilder.CodeInvalidArgument,
		},
		{
			name: "digest mismatch",
			mutate: func(spec *types.ComponentSpec) {
				spec.Digest.Value = "deadbeef" + spec.Digest.Value[8:]
			},
			wantCode: errbuilder.CodeFailedPrecondition,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewDirCacheAdapter(t.TempDir())
			payload := []byte("payload")
			spec := cacheSpec("tool", "https://dl.example.com/tool.tar.gz", payload)
			tt.mutate(&spec)

			_, err := adapter.Put(spec, writeArtifact(t, payload))
			require.Error(t, err)
			if diff := cmp.Diff(tt.wantCode, errbuilder.CodeOf(err)); diff != "" {
				t.Fatalf("unexpected error code (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirCacheAdapterEvictByAge(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	adapter.Clock = func() time.Time { return now.Add(-30 * time.Hour) }
	oldSpec := cacheSpec("old-tool", "https://dl.example.com/old-tool.tar.gz", []byte("old payload"))
	_, err := adapter.Put(oldSpec, writeArtifact(t, []byte("old payload")))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now.Add(-time.Hour) }
	freshSpec := cacheSpec("fresh-tool", "https://dl.example.com/fresh-tool.tar.gz", []byte("fresh payload"))
	_, err = adapter.Put(freshSpec, writeArtifact(t, []byte("fresh payload")))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now }
	report, err := adapter.Evict(types.EvictionPolicy{MaxAge: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, report.Evicted, 1)
	assert.Equal(t, "old-tool", report.Evicted[0].Key)
	assert.Equal(t, 1, report.Kept)

	_, hit, err := adapter.Lookup(oldSpec)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = adapter.Lookup(freshSpec)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestDirCacheAdapterEvictBySizeOldestFirst(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	bigPayload := make([]byte, 2000)
	smallPayload := make([]byte, 800)
	for i := range bigPayload {
		bigPayload[i] = byte(i)
	}
	copy(smallPayload, "small")

	adapter.Clock = func() time.Time { return now.Add(-2 * time.Hour) }
	oldest := cacheSpec("oldest", "https://dl.example.com/oldest.tar.gz", bigPayload)
	_, err := adapter.Put(oldest, writeArtifact(t, bigPayload))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now.Add(-time.Hour) }
	newest := cacheSpec("newest", "https://dl.example.com/newest.tar.gz", smallPayload)
	_, err = adapter.Put(newest, writeArtifact(t, smallPayload))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now }
	report, err := adapter.Evict(types.EvictionPolicy{MaxTotalBytes: 1000})
	require.NoError(t, err)
	require.Len(t, report.Evicted, 1)
	assert.Equal(t, "oldest", report.Evicted[0].Key)
	assert.Equal(t, int64(2000), report.BytesReclaimed)

	_, hit, err := adapter.Lookup(newest)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestDirCacheAdapterEvictDryRun(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	adapter.Clock = func() time.Time { return now.Add(-48 * time.Hour) }
	spec := cacheSpec("stale", "https://dl.example.com/stale.tar.gz", []byte("stale payload"))
	put, err := adapter.Put(spec, writeArtifact(t, []byte("stale payload")))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now }
	report, err := adapter.Evict(types.EvictionPolicy{MaxAge: 24 * time.Hour, DryRun: true})
	require.NoError(t, err)
	require.Len(t, report.Evicted, 1)

	_, statErr := os.Stat(put.Path)
	require.NoError(t, statErr)
	_, hit, err := adapter.Lookup(spec)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestDirCacheAdapterSharedBlobSurvivesPartialEviction(t *testing.T) {
	adapter := NewDirCacheAdapter(t.TempDir())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	payload := []byte("shared archive bytes")

	adapter.Clock = func() time.Time { return now.Add(-30 * time.Hour) }
	older := cacheSpec("mirror-a", "https://dl.example.com/shared.tar.gz", payload)
	_, err := adapter.Put(older, writeArtifact(t, payload))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now.Add(-time.Hour) }
	younger := cacheSpec("mirror-b", "https://dl.example.com/shared.tar.gz", payload)
	put, err := adapter.Put(younger, writeArtifact(t, payload))
	require.NoError(t, err)

	adapter.Clock = func() time.Time { return now }
	report, err := adapter.Evict(types.EvictionPolicy{MaxAge: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, report.Evicted, 1)
	assert.Equal(t, "mirror-a", report.Evicted[0].Key)

	// Both entries point at the same content-addressed blob, so it must
	// survive until the last reference goes.
	_, statErr := os.Stat(put.Path)
	require.NoError(t, statErr)
	entry, hit, err := adapter.Lookup(younger)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, put.Path, entry.Path)
}
