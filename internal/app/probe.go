package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/core"
)

// Probe lists one component's candidate download URLs (primary, manual
// mirrors, mirror-map alternates) and checks which of them answer.
// Diagnostics only: install decisions never depend on probe results.
func (s Service) Probe(ctx context.Context, req ProbeRequest) (ProbeResult, error) {
	catalogPath := strings.TrimSpace(req.CatalogPath)
	if catalogPath == "" {
		return ProbeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog path is required")
	}
	component := strings.TrimSpace(req.Component)
	if component == "" {
		return ProbeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("component name is required")
	}
	catalog, err := s.Catalog.LoadCatalog(catalogPath)
	if err != nil {
		return ProbeResult{}, err
	}
	if err := core.NewCatalogValidator().Validate(ctx, catalog); err != nil {
		return ProbeResult{}, err
	}
	graph, err := core.BuildGraph(catalog.Components)
	if err != nil {
		return ProbeResult{}, err
	}
	spec, ok := graph.Component(component)
	if !ok {
		return ProbeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("component not in catalog: %s", component))
	}

	mirrorMap := firstNonEmpty(req.MirrorMap, catalog.Defaults.MirrorMap)
	resolver := core.NewMirrorResolver(adapters.NewMirrorMapFileAdapter(mirrorMap), s.Fetcher)

	result := ProbeResult{Component: component}
	for _, candidate := range resolver.Candidates(ctx, spec) {
		result.Candidates = append(result.Candidates, ProbeCandidate{
			URL:       candidate,
			Reachable: resolver.Probe(ctx, candidate),
		})
	}
	log.Ctx(ctx).Debug().
		Str("component", component).
		Int("candidates", len(result.Candidates)).
		Msg("mirror probe finished")
	return result, nil
}
