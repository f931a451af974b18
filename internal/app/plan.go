package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/core"
)

// Plan resolves the install order for the selected components without
// touching the network, the cache, or the ledger. It is the dry-run
// counterpart of Install's planning phase.
func (s Service) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	catalogPath := strings.TrimSpace(req.CatalogPath)
	if catalogPath == "" {
		return PlanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog path is required")
	}
	catalog, err := s.Catalog.LoadCatalog(catalogPath)
	if err != nil {
		return PlanResult{}, err
	}
	if err := core.NewCatalogValidator().Validate(ctx, catalog); err != nil {
		return PlanResult{}, err
	}
	full, err := core.BuildGraph(catalog.Components)
	if err != nil {
		return PlanResult{}, err
	}
	selected, err := full.Closure(req.Components)
	if err != nil {
		return PlanResult{}, err
	}
	graph, err := core.BuildGraph(selected)
	if err != nil {
		return PlanResult{}, err
	}
	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return PlanResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("dependency cycle: %s; resolve the cycle in the catalog before installing", core.FormatCycle(cycles[0])))
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return PlanResult{}, err
	}
	groups, err := graph.IndependentGroups()
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{
		CatalogName: catalog.Metadata.Name,
		Order:       order,
		Groups:      groups,
	}, nil
}
