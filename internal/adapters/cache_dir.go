package adapters

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"devkit-installer/internal/core"
	"devkit-installer/internal/types"
)

const cacheIndexName = "index.yaml"

// DirCacheAdapter stores verified artifacts under a directory, one blob
// per digest plus a YAML index keyed by component. Blobs shared by
// several components (same digest) are stored once and only removed
// when the last referencing entry is evicted.
type DirCacheAdapter struct {
	Dir      string
	Verifier core.ChecksumVerifier
	Clock    func() time.Time

	mu sync.Mutex
}

func NewDirCacheAdapter(dir string) *DirCacheAdapter {
	return &DirCacheAdapter{
		Dir:      dir,
		Verifier: core.NewChecksumVerifier(),
		Clock:    time.Now,
	}
}

type cacheIndex struct {
	Entries []types.CacheEntry `yaml:"entries"`
}

// Lookup returns the cached artifact for the component, but only when
// the stored blob still hashes to the digest the spec demands. A stale
// or corrupted entry is dropped from the index and reported as a miss.
func (a *DirCacheAdapter) Lookup(spec types.ComponentSpec) (types.CacheEntry, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	index, err := a.loadIndex()
	if err != nil {
		return types.CacheEntry{}, false, err
	}
	position := -1
	for i, entry := range index.Entries {
		if entry.Key == spec.Name {
			position = i
			break
		}
	}
	if position < 0 {
		return types.CacheEntry{}, false, nil
	}
	entry := index.Entries[position]
	wanted := types.Digest{Algorithm: spec.Digest.Algorithm, Value: spec.Digest.Value}
	stored := types.Digest{Algorithm: entry.Algorithm, Value: entry.Digest}
	if wanted.IsZero() || !stored.Equal(wanted) {
		return types.CacheEntry{}, false, nil
	}

	blobPath := a.abs(entry.Path)
	ok, verifyErr := a.Verifier.Verify(blobPath, wanted)
	if verifyErr != nil || !ok {
		log.Warn().
			Str("component", spec.Name).
			Str("blob", blobPath).
			Msg("cached artifact no longer matches its digest, evicting")
		index.Entries = append(index.Entries[:position], index.Entries[position+1:]...)
		a.removeBlobIfUnreferenced(index, entry)
		if err := a.saveIndex(index); err != nil {
			return types.CacheEntry{}, false, err
		}
		return types.CacheEntry{}, false, nil
	}

	entry.Path = blobPath
	return entry, true, nil
}

// Put verifies the artifact against the spec digest, copies it into the
// blob store and records the index entry. The blob lands via a staging
// file and rename so a crash never leaves a half-written artifact at
// its published path.
func (a *DirCacheAdapter) Put(spec types.ComponentSpec, artifactPath string) (types.CacheEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if spec.Digest.IsZero() {
		return types.CacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("refusing to cache an artifact without a digest")
	}
	ok, err := a.Verifier.Verify(artifactPath, spec.Digest)
	if err != nil {
		return types.CacheEntry{}, err
	}
	if !ok {
		return types.CacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("artifact for %s does not match its digest, not caching", spec.Name))
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return types.CacheEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact to cache not found").
			WithCause(err)
	}

	relBlob := a.blobRelPath(spec)
	blobPath := a.abs(relBlob)
	if _, err := os.Stat(blobPath); err != nil {
		if err := a.writeBlob(artifactPath, blobPath); err != nil {
			return types.CacheEntry{}, err
		}
	}

	entry := types.CacheEntry{
		Key:       spec.Name,
		Path:      relBlob,
		Algorithm: spec.Digest.Algorithm,
		Digest:    strings.ToLower(strings.TrimSpace(spec.Digest.Value)),
		Size:      info.Size(),
		CreatedAt: a.now(),
	}

	index, err := a.loadIndex()
	if err != nil {
		return types.CacheEntry{}, err
	}
	replaced := false
	for i, existing := range index.Entries {
		if existing.Key == spec.Name {
			index.Entries[i] = entry
			a.removeBlobIfUnreferenced(index, existing)
			replaced = true
			break
		}
	}
	if !replaced {
		index.Entries = append(index.Entries, entry)
	}
	if err := a.saveIndex(index); err != nil {
		return types.CacheEntry{}, err
	}

	entry.Path = blobPath
	return entry, nil
}

// Evict applies the retention policy. With DryRun set the report lists
// the would-be victims and nothing is removed.
func (a *DirCacheAdapter) Evict(policy types.EvictionPolicy) (types.EvictionReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	index, err := a.loadIndex()
	if err != nil {
		return types.EvictionReport{}, err
	}
	plan := core.BuildEvictionPlan(index.Entries, policy, a.now())

	report := types.EvictionReport{
		Evicted: plan.Evict,
		Kept:    len(plan.Keep),
	}
	for _, entry := range plan.Evict {
		report.BytesReclaimed += entry.Size
	}
	if policy.DryRun || len(plan.Evict) == 0 {
		return report, nil
	}

	index.Entries = plan.Keep
	for _, entry := range plan.Evict {
		a.removeBlobIfUnreferenced(index, entry)
	}
	if err := a.saveIndex(index); err != nil {
		return types.EvictionReport{}, err
	}
	return report, nil
}

// blobRelPath derives the content-addressed location of a blob. The
// original filename extension is preserved so archive handling can
// still sniff the format from the path.
func (a *DirCacheAdapter) blobRelPath(spec types.ComponentSpec) string {
	digest := strings.ToLower(strings.TrimSpace(spec.Digest.Value))
	shard := digest
	if len(shard) > 2 {
		shard = digest[:2]
	}
	return filepath.Join("blobs", string(spec.Digest.Algorithm), shard, digest+artifactExtension(spec.URL))
}

func (a *DirCacheAdapter) writeBlob(artifactPath string, blobPath string) error {
	if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot create cache blob directory").
			WithCause(err)
	}
	staging := blobPath + ".staging"
	in, err := os.Open(artifactPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact to cache not found").
			WithCause(err)
	}
	defer in.Close()
	out, err := os.Create(staging)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot stage cache blob").
			WithCause(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(staging)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot write cache blob").
			WithCause(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(staging)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot finalize cache blob").
			WithCause(err)
	}
	if err := os.Rename(staging, blobPath); err != nil {
		_ = os.Remove(staging)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot publish cache blob").
			WithCause(err)
	}
	return nil
}

// removeBlobIfUnreferenced deletes an evicted entry's blob unless
// another index entry still points at the same content.
func (a *DirCacheAdapter) removeBlobIfUnreferenced(index cacheIndex, evicted types.CacheEntry) {
	for _, entry := range index.Entries {
		if entry.Path == evicted.Path {
			return
		}
	}
	if err := os.Remove(a.abs(evicted.Path)); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("blob", evicted.Path).Msg("could not remove evicted cache blob")
	}
}

func (a *DirCacheAdapter) loadIndex() (cacheIndex, error) {
	data, err := os.ReadFile(filepath.Join(a.Dir, cacheIndexName))
	if err != nil {
		if os.IsNotExist(err) {
			return cacheIndex{}, nil
		}
		return cacheIndex{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot read cache index").
			WithCause(err)
	}
	var index cacheIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return cacheIndex{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cache index is corrupted").
			WithCause(err)
	}
	return index, nil
}

func (a *DirCacheAdapter) saveIndex(index cacheIndex) error {
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot create cache directory").
			WithCause(err)
	}
	data, err := yaml.Marshal(index)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot encode cache index").
			WithCause(err)
	}
	path := filepath.Join(a.Dir, cacheIndexName)
	staging := path + ".staging"
	if err := os.WriteFile(staging, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot stage cache index").
			WithCause(err)
	}
	if err := os.Rename(staging, path); err != nil {
		_ = os.Remove(staging)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot publish cache index").
			WithCause(err)
	}
	return nil
}

func (a *DirCacheAdapter) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(a.Dir, rel)
}

func (a *DirCacheAdapter) now() time.Time {
	if a.Clock == nil {
		return time.Now().UTC()
	}
	return a.Clock().UTC()
}

// artifactExtension keeps multi-part archive suffixes intact so cached
// blobs stay recognizable as tarballs.
func artifactExtension(url string) string {
	base := strings.ToLower(filepath.Base(url))
	for _, suffix := range []string{".tar.gz", ".tar.xz"} {
		if strings.HasSuffix(base, suffix) {
			return suffix
		}
	}
	return filepath.Ext(base)
}
