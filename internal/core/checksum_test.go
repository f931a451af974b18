package core

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/types"
)

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestComputeSHA256(t *testing.T) {
	path := writeArtifact(t, "hello world")
	sum := sha256.Sum256([]byte("hello world"))

	got, err := NewChecksumVerifier().Compute(path, types.DigestAlgorithmSHA256)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestComputeSHA512(t *testing.T) {
	path := writeArtifact(t, "hello world")
	sum := sha512.Sum512([]byte("hello world"))

	got, err := NewChecksumVerifier().Compute(path, types.DigestAlgorithmSHA512)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestComputeUnsupportedAlgorithm(t *testing.T) {
	path := writeArtifact(t, "hello world")
	_, err := NewChecksumVerifier().Compute(path, "md5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported digest algorithm")
}

func TestComputeMissingFile(t *testing.T) {
	_, err := NewChecksumVerifier().Compute(filepath.Join(t.TempDir(), "missing"), types.DigestAlgorithmSHA256)
	require.Error(t, err)
}

func TestVerifyMatch(t *testing.T) {
	path := writeArtifact(t, "payload")
	sum := sha256.Sum256([]byte("payload"))

	ok, err := NewChecksumVerifier().Verify(path, types.Digest{
		Algorithm: types.DigestAlgorithmSHA256,
		Value:     hex.EncodeToString(sum[:]),
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMatchUppercaseDigest(t *testing.T) {
	path := writeArtifact(t, "payload")
	sum := sha256.Sum256([]byte("payload"))

	ok, err := NewChecksumVerifier().Verify(path, types.Digest{
		Algorithm: types.DigestAlgorithmSHA256,
		Value:     "  " + hex.EncodeToString(sum[:]) + "  ",
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMismatchIsNotError(t *testing.T) {
	path := writeArtifact(t, "payload")

	ok, err := NewChecksumVerifier().Verify(path, types.Digest{
		Algorithm: types.DigestAlgorithmSHA256,
		Value:     "deadbeef",
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyEmptyDigest(t *testing.T) {
	path := writeArtifact(t, "payload")
	_, err := NewChecksumVerifier().Verify(path, types.Digest{Algorithm: types.DigestAlgorithmSHA256})
	require.Error(t, err)
}
