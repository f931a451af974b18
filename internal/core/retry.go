package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"devkit-installer/internal/types"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	defaultAttemptTimeout = 2 * time.Minute
)

// RetryCoordinator drives the download engine across the candidate URL
// list. Transient failures retry the same URL up to MaxAttempts times
// with exponential backoff; a digest mismatch consumes its URL for good
// and, once one has been seen, caps the total attempt count at
// MaxAttempts. Security and configuration failures return immediately.
type RetryCoordinator struct {
	Engine         DownloadEngine
	Mirrors        MirrorResolver
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration

	mu        sync.Mutex
	preferred map[string]string
}

func NewRetryCoordinator(engine DownloadEngine, mirrors MirrorResolver) *RetryCoordinator {
	return &RetryCoordinator{
		Engine:         engine,
		Mirrors:        mirrors,
		MaxAttempts:    defaultMaxAttempts,
		BaseDelay:      defaultRetryBaseDelay,
		MaxDelay:       defaultRetryMaxDelay,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

func (c *RetryCoordinator) Download(ctx context.Context, spec types.ComponentSpec, destPath string, onProgress ProgressFunc) types.DownloadOutcome {
	candidates := c.Mirrors.Candidates(ctx, spec)
	if len(candidates) == 0 {
		return types.DownloadOutcome{
			Component: spec.Name,
			Failure:   types.FailureKindConfiguration,
			Message:   fmt.Sprintf("component %s has no download URL", spec.Name),
		}
	}
	candidates = c.promotePreferred(spec.Name, candidates)
	maxAttempts := c.maxAttempts()

	var attempted []string
	var last types.DownloadOutcome
	totalAttempts := 0
	mismatchSeen := false

	for _, candidate := range candidates {
		perURL := 0
		for {
			if err := ctx.Err(); err != nil {
				return c.cancelledOutcome(spec, attempted, totalAttempts, err)
			}
			if mismatchSeen && totalAttempts >= maxAttempts {
				return c.exhaustedOutcome(spec, destPath, attempted, totalAttempts, last)
			}

			// The attempt runs detached from batch cancellation so an
			// in-flight transfer finishes instead of leaving a torn
			// staging file; cancellation is honored between attempts.
			attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.attemptTimeout())
			outcome := c.Engine.Fetch(attemptCtx, spec, candidate, destPath, onProgress)
			cancel()
			totalAttempts++
			perURL++
			if len(attempted) == 0 || attempted[len(attempted)-1] != candidate {
				attempted = append(attempted, candidate)
			}

			if outcome.Success {
				outcome.Attempts = totalAttempts
				outcome.Retries = totalAttempts - 1
				outcome.AttemptedURLs = attempted
				if candidate != candidates[0] || outcome.Retries > 0 {
					outcome.Message = fmt.Sprintf("downloaded from %s after %d failed attempts", candidate, outcome.Retries)
				}
				c.rememberPreferred(spec.Name, candidate)
				return outcome
			}
			last = outcome

			switch outcome.Failure {
			case types.FailureKindSecurity, types.FailureKindConfiguration:
				outcome.Attempts = totalAttempts
				outcome.Retries = totalAttempts - 1
				outcome.AttemptedURLs = attempted
				return outcome
			case types.FailureKindCancelled:
				return c.cancelledOutcome(spec, attempted, totalAttempts, ctx.Err())
			case types.FailureKindVerification:
				mismatchSeen = true
				log.Ctx(ctx).Warn().
					Str("component", spec.Name).
					Str("url", candidate).
					Msg("mirror served mismatching content, advancing to next candidate")
			default: // transient network
				if perURL < maxAttempts {
					if !c.wait(ctx, perURL) {
						return c.cancelledOutcome(spec, attempted, totalAttempts, ctx.Err())
					}
					continue
				}
				log.Ctx(ctx).Debug().
					Str("component", spec.Name).
					Str("url", candidate).
					Int("attempts", perURL).
					Msg("candidate exhausted, advancing to next")
			}
			break
		}
	}
	return c.exhaustedOutcome(spec, destPath, attempted, totalAttempts, last)
}

// promotePreferred moves the last URL that served verified bytes for
// this component to the front of the candidate list.
func (c *RetryCoordinator) promotePreferred(component string, candidates []string) []string {
	c.mu.Lock()
	preferred, ok := c.preferred[component]
	c.mu.Unlock()
	if !ok {
		return candidates
	}
	for i, candidate := range candidates {
		if candidate == preferred && i > 0 {
			reordered := make([]string, 0, len(candidates))
			reordered = append(reordered, preferred)
			reordered = append(reordered, candidates[:i]...)
			reordered = append(reordered, candidates[i+1:]...)
			return reordered
		}
	}
	return candidates
}

func (c *RetryCoordinator) rememberPreferred(component string, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preferred == nil {
		c.preferred = map[string]string{}
	}
	c.preferred[component] = url
}

// wait sleeps the backoff delay for the given attempt number, returning
// false when the context is cancelled first.
func (c *RetryCoordinator) wait(ctx context.Context, attempt int) bool {
	delay := c.baseDelay() * time.Duration(1<<(attempt-1))
	if limit := c.maxDelay(); delay > limit {
		delay = limit
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	select {
	case <-time.After(delay + jitter):
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *RetryCoordinator) cancelledOutcome(spec types.ComponentSpec, attempted []string, attempts int, cause error) types.DownloadOutcome {
	message := "download cancelled"
	if cause != nil {
		message = fmt.Sprintf("download cancelled: %v", cause)
	}
	return types.DownloadOutcome{
		Component:     spec.Name,
		Failure:       types.FailureKindCancelled,
		Message:       message,
		Attempts:      attempts,
		Retries:       maxInt(attempts-1, 0),
		AttemptedURLs: attempted,
	}
}

func (c *RetryCoordinator) exhaustedOutcome(spec types.ComponentSpec, destPath string, attempted []string, attempts int, last types.DownloadOutcome) types.DownloadOutcome {
	outcome := last
	outcome.Component = spec.Name
	outcome.Attempts = attempts
	outcome.Retries = maxInt(attempts-1, 0)
	outcome.AttemptedURLs = attempted
	if outcome.Failure == types.FailureKindNone {
		outcome.Failure = types.FailureKindTransientNetwork
	}
	outcome.Message = fmt.Sprintf(
		"could not download %s after %d attempts (tried: %s); last failure: %s; download the artifact manually, verify its %s digest, and place it at %s",
		spec.Name, attempts, strings.Join(attempted, ", "), last.Message, spec.Digest.Algorithm, destPath)
	return outcome
}

func (c *RetryCoordinator) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c *RetryCoordinator) baseDelay() time.Duration {
	if c.BaseDelay <= 0 {
		return defaultRetryBaseDelay
	}
	return c.BaseDelay
}

func (c *RetryCoordinator) maxDelay() time.Duration {
	if c.MaxDelay <= 0 {
		return defaultRetryMaxDelay
	}
	return c.MaxDelay
}

func (c *RetryCoordinator) attemptTimeout() time.Duration {
	if c.AttemptTimeout <= 0 {
		return defaultAttemptTimeout
	}
	return c.AttemptTimeout
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}
