package core

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/types"
)

// ChecksumVerifier computes and checks artifact digests. It is the
// single authority for hashing in the codebase; adapters and the
// download engine all route through it.
type ChecksumVerifier struct{}

func NewChecksumVerifier() ChecksumVerifier {
	return ChecksumVerifier{}
}

// Compute streams the file at path through the given hash algorithm
// and returns the lowercase hex digest.
func (v ChecksumVerifier) Compute(path string, algorithm types.DigestAlgorithm) (string, error) {
	hasher, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact not found for checksum").
			WithCause(err)
	}
	defer file.Close()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read artifact for checksum").
			WithCause(err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify reports whether the file at path matches the expected digest.
// A mismatch is (false, nil); errors are reserved for unreadable files
// and unsupported algorithms.
func (v ChecksumVerifier) Verify(path string, expected types.Digest) (bool, error) {
	if expected.IsZero() {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("expected digest is empty")
	}
	actual, err := v.Compute(path, expected.Algorithm)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, strings.TrimSpace(expected.Value)), nil
}

func newHasher(algorithm types.DigestAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case types.DigestAlgorithmSHA256:
		return sha256.New(), nil
	case types.DigestAlgorithmSHA512:
		return sha512.New(), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported digest algorithm: %s", algorithm))
	}
}
