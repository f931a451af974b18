package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devkit-installer/internal/app"
)

type pruneOptions struct {
	CacheDir      string
	MaxAgeHours   int
	MaxTotalBytes int64
	DryRun        bool
}

func newPruneCommand() *cobra.Command {
	opts := pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict stale or oversized entries from the artifact cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "Artifact cache directory")
	cmd.Flags().IntVar(&opts.MaxAgeHours, "max-age-hours", 0, "Evict entries older than N hours (0 = no age bound)")
	cmd.Flags().Int64Var(&opts.MaxTotalBytes, "max-total-bytes", 0, "Evict oldest entries until the cache fits N bytes (0 = no size bound)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", true, "Only report what would be evicted")

	_ = viper.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("max_age_hours", cmd.Flags().Lookup("max-age-hours"))
	_ = viper.BindPFlag("max_total_bytes", cmd.Flags().Lookup("max-total-bytes"))
	_ = viper.BindPFlag("prune_dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runPrune(ctx context.Context, cmd *cobra.Command, opts pruneOptions) error {
	service := newAppService()
	result, err := service.Prune(ctx, app.PruneRequest{
		CacheDir:      resolveString(cmd, opts.CacheDir, "cache_dir", "cache-dir"),
		MaxAge:        time.Duration(resolveInt(cmd, opts.MaxAgeHours, "max_age_hours", "max-age-hours")) * time.Hour,
		MaxTotalBytes: resolveInt64(cmd, opts.MaxTotalBytes, "max_total_bytes", "max-total-bytes"),
		DryRun:        resolveBool(cmd, opts.DryRun, "prune_dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}

	verb := "evicted"
	if result.DryRun {
		verb = "would evict"
	}
	for _, entry := range result.Evicted {
		fmt.Printf("  %s %s (%d bytes, cached %s)\n", verb, entry.Key, entry.Size, entry.CreatedAt.Format(time.RFC3339))
	}
	fmt.Printf("%s %d entries (%d bytes), kept %d\n", verb, len(result.Evicted), result.BytesReclaimed, result.Kept)
	return nil
}
