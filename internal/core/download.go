package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// stagingSuffix marks in-flight downloads. Nothing is ever visible at
// the destination path before its digest has been verified.
const stagingSuffix = ".partial"

// DownloadEngine performs one fetch attempt against one URL: stream to
// a staging file, verify the digest, atomically publish. All failure
// modes come back as DownloadOutcome values, never as errors.
type DownloadEngine struct {
	Fetcher  ports.FetchPort
	Verifier ChecksumVerifier
	Clock    func() time.Time
}

func NewDownloadEngine(fetcher ports.FetchPort) DownloadEngine {
	return DownloadEngine{
		Fetcher:  fetcher,
		Verifier: NewChecksumVerifier(),
		Clock:    time.Now,
	}
}

func (e DownloadEngine) Fetch(ctx context.Context, spec types.ComponentSpec, candidateURL string, destPath string, onProgress ProgressFunc) types.DownloadOutcome {
	started := e.now()
	outcome := types.DownloadOutcome{
		Component:      spec.Name,
		URL:            candidateURL,
		Attempts:       1,
		ExpectedDigest: spec.Digest.String(),
	}

	// Mandatory verification: a component without a digest is never
	// fetched, not even to inspect the bytes.
	if spec.Digest.IsZero() {
		outcome.Failure = types.FailureKindSecurity
		outcome.Message = fmt.Sprintf("refusing to download %s: catalog entry has no digest; add one before installing", spec.Name)
		outcome.ExpectedDigest = ""
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}
	if _, err := newHasher(spec.Digest.Algorithm); err != nil {
		outcome.Failure = types.FailureKindConfiguration
		outcome.Message = fmt.Sprintf("cannot verify %s: unsupported digest algorithm %q", spec.Name, spec.Digest.Algorithm)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		outcome.Failure = types.FailureKindConfiguration
		outcome.Message = fmt.Sprintf("cannot create download directory %s: %v", filepath.Dir(destPath), err)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}

	response, err := e.Fetcher.Get(ctx, candidateURL)
	if err != nil {
		outcome.Failure = classifyFetchFailure(ctx, err)
		outcome.Message = fmt.Sprintf("download failed: %v", err)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}
	defer response.Body.Close()

	stagingPath := destPath + stagingSuffix
	written, err := e.stage(ctx, response, stagingPath, spec, candidateURL, onProgress)
	outcome.Bytes = written
	if err != nil {
		_ = os.Remove(stagingPath)
		outcome.Failure = classifyFetchFailure(ctx, err)
		outcome.Message = fmt.Sprintf("download interrupted after %d bytes: %v", written, err)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}

	actual, err := e.Verifier.Compute(stagingPath, spec.Digest.Algorithm)
	if err != nil {
		_ = os.Remove(stagingPath)
		outcome.Failure = types.FailureKindTransientNetwork
		outcome.Message = fmt.Sprintf("could not hash downloaded artifact: %v", err)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}
	outcome.ActualDigest = string(spec.Digest.Algorithm) + ":" + actual
	verified := types.Digest{Algorithm: spec.Digest.Algorithm, Value: actual}
	if !verified.Equal(spec.Digest) {
		_ = os.Remove(stagingPath)
		outcome.Failure = types.FailureKindVerification
		outcome.Message = fmt.Sprintf("digest mismatch from %s: expected %s, got %s", candidateURL, outcome.ExpectedDigest, outcome.ActualDigest)
		outcome.Elapsed = e.now().Sub(started)
		log.Ctx(ctx).Warn().
			Str("component", spec.Name).
			Str("url", candidateURL).
			Str("expected", outcome.ExpectedDigest).
			Str("actual", outcome.ActualDigest).
			Msg("artifact failed verification, discarded")
		return outcome
	}

	if err := os.Rename(stagingPath, destPath); err != nil {
		_ = os.Remove(stagingPath)
		outcome.Failure = types.FailureKindConfiguration
		outcome.Message = fmt.Sprintf("cannot publish verified artifact to %s: %v", destPath, err)
		outcome.Elapsed = e.now().Sub(started)
		return outcome
	}

	outcome.Success = true
	outcome.Verified = true
	outcome.Path = destPath
	outcome.Elapsed = e.now().Sub(started)
	log.Ctx(ctx).Debug().
		Str("component", spec.Name).
		Str("url", candidateURL).
		Int64("bytes", written).
		Dur("elapsed", outcome.Elapsed).
		Msg("artifact downloaded and verified")
	return outcome
}

// stage streams the response body into the staging file, reporting
// progress as bytes land.
func (e DownloadEngine) stage(ctx context.Context, response ports.FetchResponse, stagingPath string, spec types.ComponentSpec, candidateURL string, onProgress ProgressFunc) (int64, error) {
	file, err := os.Create(stagingPath)
	if err != nil {
		return 0, err
	}
	total := response.ContentLength
	if total < 0 {
		total = spec.SizeEstimate
	}
	tracker := newProgressTracker(spec.Name, candidateURL, total, e.Clock, onProgress)
	written, err := io.Copy(&countingWriter{file: file, tracker: tracker}, response.Body)
	closeErr := file.Close()
	if err != nil {
		return written, err
	}
	if closeErr != nil {
		return written, closeErr
	}
	tracker.Finish()
	return written, nil
}

func (e DownloadEngine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

type countingWriter struct {
	file    io.Writer
	tracker *progressTracker
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if n > 0 {
		w.tracker.Add(int64(n))
	}
	return n, err
}

// classifyFetchFailure separates caller cancellation from genuine
// network trouble so cancelled components are not reported as flaky
// mirrors. Attempt deadlines stay transient: a timed-out URL is worth
// retrying.
func classifyFetchFailure(ctx context.Context, err error) types.FailureKind {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return types.FailureKindCancelled
	}
	return types.FailureKindTransientNetwork
}
