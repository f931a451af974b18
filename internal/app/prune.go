package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/types"
)

// Prune evicts cache entries older than the given age and then, oldest
// first, enough further entries to fit the size bound. With DryRun set
// it only reports what would go.
func (s Service) Prune(ctx context.Context, req PruneRequest) (PruneResult, error) {
	if req.MaxAge <= 0 && req.MaxTotalBytes <= 0 {
		return PruneResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("nothing to prune: set a maximum age or a maximum total size")
	}
	cacheDir := strings.TrimSpace(req.CacheDir)
	if cacheDir == "" {
		cacheDir = defaultBaseDir("cache")
	}

	cache := adapters.NewDirCacheAdapter(cacheDir)
	report, err := cache.Evict(types.EvictionPolicy{
		MaxAge:        req.MaxAge,
		MaxTotalBytes: req.MaxTotalBytes,
		DryRun:        req.DryRun,
	})
	if err != nil {
		return PruneResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("cache_dir", cacheDir).
		Int("evicted", len(report.Evicted)).
		Int("kept", report.Kept).
		Int64("bytes_reclaimed", report.BytesReclaimed).
		Bool("dry_run", req.DryRun).
		Msg("cache prune finished")

	return PruneResult{
		Evicted:        report.Evicted,
		Kept:           report.Kept,
		BytesReclaimed: report.BytesReclaimed,
		DryRun:         req.DryRun,
	}, nil
}
