package app

import (
	"context"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/core"
	"devkit-installer/internal/types"
)

// CheckUpdates compares the installation ledger against the catalog for
// the selected components (the dependency closure of the requested
// names, or the whole catalog). It never touches the network.
func (s Service) CheckUpdates(ctx context.Context, req CheckUpdatesRequest) (CheckUpdatesResult, error) {
	catalogPath := strings.TrimSpace(req.CatalogPath)
	if catalogPath == "" {
		return CheckUpdatesResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog path is required")
	}
	catalog, err := s.Catalog.LoadCatalog(catalogPath)
	if err != nil {
		return CheckUpdatesResult{}, err
	}
	if err := core.NewCatalogValidator().Validate(ctx, catalog); err != nil {
		return CheckUpdatesResult{}, err
	}
	graph, err := core.BuildGraph(catalog.Components)
	if err != nil {
		return CheckUpdatesResult{}, err
	}
	selected, err := graph.Closure(req.Components)
	if err != nil {
		return CheckUpdatesResult{}, err
	}

	stateDir := firstNonEmpty(req.StateDir, catalog.Defaults.StateDir, defaultBaseDir("state"))
	state := adapters.NewDirStateAdapter(stateDir)

	// The comparer caches parsed versions and is not safe for
	// concurrent use; this loop stays sequential.
	comparer := core.NewVersionComparer()
	updates := make([]types.ComponentUpdate, 0, len(selected))
	for _, spec := range selected {
		update := types.ComponentUpdate{
			Name:           spec.Name,
			CatalogVersion: spec.Version,
			Scheme:         spec.EffectiveScheme(),
		}
		record, found, err := state.Load(spec.Name)
		if err != nil {
			return CheckUpdatesResult{}, err
		}
		if found && record.Status == types.RecordStatusCompleted {
			update.Installed = true
			update.InstalledVersion = record.Version
			newer, err := comparer.IsNewer(spec.EffectiveScheme(), spec.Version, record.Version)
			if err != nil {
				return CheckUpdatesResult{}, err
			}
			update.UpdateAvailable = newer
		}
		updates = append(updates, update)
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].Name < updates[j].Name })

	log.Ctx(ctx).Debug().
		Int("components", len(updates)).
		Str("state_dir", stateDir).
		Msg("update check finished")
	return CheckUpdatesResult{Updates: updates}, nil
}
