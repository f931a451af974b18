package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// fakeFetcher serves canned bodies per URL, or an error.
type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (ports.FetchResponse, error) {
	f.calls = append(f.calls, url)
	if err := ctx.Err(); err != nil {
		return ports.FetchResponse{}, err
	}
	if err, ok := f.errs[url]; ok {
		return ports.FetchResponse{}, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return ports.FetchResponse{}, errors.New("no route")
	}
	return ports.FetchResponse{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}

func (f *fakeFetcher) Probe(ctx context.Context, url string) error {
	if _, ok := f.bodies[url]; ok {
		return nil
	}
	return errors.New("unreachable")
}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func specFor(name string, url string, content string) types.ComponentSpec {
	return types.ComponentSpec{
		Name:    name,
		Version: "1.0.0",
		URL:     url,
		Digest: types.Digest{
			Algorithm: types.DigestAlgorithmSHA256,
			Value:     sha256Hex(content),
		},
	}
}

func TestFetchSuccess(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "artifact-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	outcome := engine.Fetch(t.Context(), specFor("tool", url, "artifact-bytes"), url, dest, nil)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.Verified)
	assert.Equal(t, types.FailureKindNone, outcome.Failure)
	assert.Equal(t, dest, outcome.Path)
	assert.Equal(t, int64(len("artifact-bytes")), outcome.Bytes)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(data))

	_, err = os.Stat(dest + stagingSuffix)
	assert.True(t, os.IsNotExist(err), "staging file must be gone")
}

func TestFetchMissingDigestIsSecurityFailure(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "artifact-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	spec := types.ComponentSpec{Name: "tool", URL: url}
	outcome := engine.Fetch(t.Context(), spec, url, dest, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, types.FailureKindSecurity, outcome.Failure)
	assert.Empty(t, fetcher.calls, "no network activity without a digest")
	assert.Contains(t, outcome.Message, "no digest")
}

func TestFetchUnsupportedAlgorithmIsConfigurationFailure(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "artifact-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	spec := types.ComponentSpec{
		Name:   "tool",
		URL:    url,
		Digest: types.Digest{Algorithm: "md5", Value: "abc"},
	}
	outcome := engine.Fetch(t.Context(), spec, url, dest, nil)

	assert.Equal(t, types.FailureKindConfiguration, outcome.Failure)
	assert.Empty(t, fetcher.calls)
}

func TestFetchDigestMismatchLeavesNoFile(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "tampered-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	spec := specFor("tool", url, "expected-bytes")
	outcome := engine.Fetch(t.Context(), spec, url, dest, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, types.FailureKindVerification, outcome.Failure)
	assert.Equal(t, "sha256:"+sha256Hex("expected-bytes"), outcome.ExpectedDigest)
	assert.Equal(t, "sha256:"+sha256Hex("tampered-bytes"), outcome.ActualDigest)

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "no file at the destination after mismatch")
	_, err = os.Stat(dest + stagingSuffix)
	assert.True(t, os.IsNotExist(err), "staging file removed after mismatch")
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{errs: map[string]error{url: errors.New("connection refused")}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	outcome := engine.Fetch(t.Context(), specFor("tool", url, "x"), url, dest, nil)

	assert.Equal(t, types.FailureKindTransientNetwork, outcome.Failure)
	assert.Contains(t, outcome.Message, "connection refused")
}

func TestFetchCancelledContext(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "artifact-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	outcome := engine.Fetch(ctx, specFor("tool", url, "artifact-bytes"), url, dest, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, types.FailureKindCancelled, outcome.Failure)
}

func TestFetchEmitsProgress(t *testing.T) {
	const url = "https://dl.example.com/tool.tar.gz"
	fetcher := &fakeFetcher{bodies: map[string]string{url: "artifact-bytes"}}
	engine := NewDownloadEngine(fetcher)
	dest := filepath.Join(t.TempDir(), "tool.tar.gz")

	var snapshots []types.ProgressSnapshot
	outcome := engine.Fetch(t.Context(), specFor("tool", url, "artifact-bytes"), url, dest,
		func(s types.ProgressSnapshot) { snapshots = append(snapshots, s) })

	require.True(t, outcome.Success)
	require.NotEmpty(t, snapshots, "final snapshot always emitted")
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, int64(len("artifact-bytes")), last.BytesDone)
	assert.Equal(t, "tool", last.Component)
}
