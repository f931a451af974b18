package core

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

const defaultProbeTimeout = 5 * time.Second

// MirrorResolver derives the ordered candidate URL list for a
// component: primary first, then manual mirrors, then alternates
// produced by substituting known hosts for the primary URL's host.
type MirrorResolver struct {
	MirrorMap    ports.MirrorMapPort
	Fetcher      ports.FetchPort
	ProbeTimeout time.Duration
}

func NewMirrorResolver(mirrorMap ports.MirrorMapPort, fetcher ports.FetchPort) MirrorResolver {
	return MirrorResolver{
		MirrorMap:    mirrorMap,
		Fetcher:      fetcher,
		ProbeTimeout: defaultProbeTimeout,
	}
}

// Candidates returns the de-duplicated candidate list, first occurrence
// winning. A mirror map load failure is logged and ignored: the primary
// and manual mirrors are always enough to proceed.
func (r MirrorResolver) Candidates(ctx context.Context, spec types.ComponentSpec) []string {
	ordered := make([]string, 0, 1+len(spec.Mirrors))
	if strings.TrimSpace(spec.URL) != "" {
		ordered = append(ordered, strings.TrimSpace(spec.URL))
	}
	for _, mirror := range spec.Mirrors {
		if strings.TrimSpace(mirror) != "" {
			ordered = append(ordered, strings.TrimSpace(mirror))
		}
	}
	ordered = append(ordered, r.derivedAlternates(ctx, spec.URL)...)

	seen := map[string]struct{}{}
	var unique []string
	for _, candidate := range ordered {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		unique = append(unique, candidate)
	}
	return unique
}

// derivedAlternates swaps the primary URL's host through the mirror
// map. URLs that do not parse yield no alternates.
func (r MirrorResolver) derivedAlternates(ctx context.Context, primary string) []string {
	if r.MirrorMap == nil || strings.TrimSpace(primary) == "" {
		return nil
	}
	hostMap, err := r.MirrorMap.Load()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("mirror map unavailable, using primary and manual mirrors only")
		return nil
	}
	parsed, err := url.Parse(strings.TrimSpace(primary))
	if err != nil || parsed.Host == "" {
		return nil
	}
	alternates := hostMap[parsed.Host]
	derived := make([]string, 0, len(alternates))
	for _, host := range alternates {
		host = strings.TrimSpace(host)
		if host == "" || host == parsed.Host {
			continue
		}
		swapped := *parsed
		swapped.Host = host
		derived = append(derived, swapped.String())
	}
	return derived
}

// Probe reports whether a candidate URL answers within the probe
// timeout. Diagnostics only: install outcomes never depend on it.
func (r MirrorResolver) Probe(ctx context.Context, candidate string) bool {
	if r.Fetcher == nil {
		return false
	}
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.Fetcher.Probe(probeCtx, candidate); err != nil {
		log.Ctx(ctx).Debug().Str("url", candidate).Err(err).Msg("mirror probe failed")
		return false
	}
	return true
}
