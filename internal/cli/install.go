package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devkit-installer/internal/adapters"
	"devkit-installer/internal/app"
	"devkit-installer/internal/types"
)

type installOptions struct {
	Catalog         string
	Components      []string
	Concurrency     int
	MaxAttempts     int
	StrictRollback  bool
	CacheDir        string
	StateDir        string
	WorkDir         string
	MirrorMap       string
	DownloadTimeout time.Duration
	InstallTimeout  time.Duration
	NoProgress      bool
}

func newInstallCommand() *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify and install components with their dependencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "Component catalog path")
	cmd.Flags().StringSliceVar(&opts.Components, "component", nil, "Component to install (repeatable; default: whole catalog)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel downloads/installs per group (0 = catalog default)")
	cmd.Flags().IntVar(&opts.MaxAttempts, "max-attempts", 0, "Download attempts per mirror (0 = catalog default)")
	cmd.Flags().BoolVar(&opts.StrictRollback, "strict-rollback", false, "Undo everything this batch installed when any component fails")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "Artifact cache directory")
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "Installation ledger directory")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "Staging directory for in-flight downloads")
	cmd.Flags().StringVar(&opts.MirrorMap, "mirror-map", "", "Mirror host substitution file")
	cmd.Flags().DurationVar(&opts.DownloadTimeout, "download-timeout", 0, "Per-attempt download timeout (0 = default)")
	cmd.Flags().DurationVar(&opts.InstallTimeout, "install-timeout", 0, "Per-component install timeout (0 = default)")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "Log events instead of rendering a progress bar")

	_ = viper.BindPFlag("catalog", cmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("components", cmd.Flags().Lookup("component"))
	_ = viper.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("max_attempts", cmd.Flags().Lookup("max-attempts"))
	_ = viper.BindPFlag("strict_rollback", cmd.Flags().Lookup("strict-rollback"))
	_ = viper.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("state_dir", cmd.Flags().Lookup("state-dir"))
	_ = viper.BindPFlag("work_dir", cmd.Flags().Lookup("work-dir"))
	_ = viper.BindPFlag("mirror_map", cmd.Flags().Lookup("mirror-map"))
	_ = viper.BindPFlag("download_timeout", cmd.Flags().Lookup("download-timeout"))
	_ = viper.BindPFlag("install_timeout", cmd.Flags().Lookup("install-timeout"))
	_ = viper.BindPFlag("no_progress", cmd.Flags().Lookup("no-progress"))

	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, opts installOptions) error {
	service := newAppService()

	finish := func() {}
	if resolveBool(cmd, opts.NoProgress, "no_progress", "no-progress") {
		notifier := adapters.NewLogNotifierAdapter(log.Logger)
		finish = notifier.Close
		service.Notifier = notifier
	} else {
		bar := adapters.NewConsoleProgressNotifier(-1, os.Stderr)
		finish = bar.Finish
		service.Notifier = bar
	}

	result, err := service.Install(ctx, app.InstallRequest{
		CatalogPath:     resolveString(cmd, opts.Catalog, "catalog", "catalog"),
		Components:      resolveStrings(cmd, opts.Components, "components", "component"),
		Concurrency:     resolveInt(cmd, opts.Concurrency, "concurrency", "concurrency"),
		MaxAttempts:     resolveInt(cmd, opts.MaxAttempts, "max_attempts", "max-attempts"),
		StrictRollback:  resolveBool(cmd, opts.StrictRollback, "strict_rollback", "strict-rollback"),
		CacheDir:        resolveString(cmd, opts.CacheDir, "cache_dir", "cache-dir"),
		StateDir:        resolveString(cmd, opts.StateDir, "state_dir", "state-dir"),
		WorkDir:         resolveString(cmd, opts.WorkDir, "work_dir", "work-dir"),
		MirrorMap:       resolveString(cmd, opts.MirrorMap, "mirror_map", "mirror-map"),
		DownloadTimeout: resolveDuration(cmd, opts.DownloadTimeout, "download_timeout", "download-timeout"),
		InstallTimeout:  resolveDuration(cmd, opts.InstallTimeout, "install_timeout", "install-timeout"),
	})
	finish()
	if err != nil {
		return err
	}

	printBatchResult(result)
	if result.Status != types.BatchStatusCompleted {
		completed, failed, skipped, cancelled := result.Counts()
		return errbuilder.New().
			WithMsg(fmt.Sprintf("batch %s: %d completed, %d failed, %d skipped, %d cancelled",
				result.Status, completed, failed, skipped, cancelled))
	}
	return nil
}

func printBatchResult(result types.BatchResult) {
	fmt.Printf("batch %s finished %s in %s\n", result.ID, result.Status, result.Elapsed.Round(time.Millisecond))
	for _, name := range result.Order {
		component := result.Results[name]
		if component == nil {
			continue
		}
		line := fmt.Sprintf("  %-11s %s", component.Status, name)
		if component.Download != nil && component.Download.FromCache {
			line += " [cache]"
		}
		if component.Message != "" {
			line += "  " + component.Message
		}
		fmt.Println(line)
	}
}
