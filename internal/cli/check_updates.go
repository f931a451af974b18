package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devkit-installer/internal/app"
)

type checkUpdatesOptions struct {
	Catalog    string
	Components []string
	StateDir   string
}

func newCheckUpdatesCommand() *cobra.Command {
	opts := checkUpdatesOptions{}
	cmd := &cobra.Command{
		Use:   "check-updates",
		Short: "Compare installed component versions against the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckUpdates(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "Component catalog path")
	cmd.Flags().StringSliceVar(&opts.Components, "component", nil, "Component to check (repeatable; default: whole catalog)")
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "", "Installation ledger directory")
	_ = viper.BindPFlag("catalog", cmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("components", cmd.Flags().Lookup("component"))
	_ = viper.BindPFlag("state_dir", cmd.Flags().Lookup("state-dir"))
	return cmd
}

func runCheckUpdates(ctx context.Context, cmd *cobra.Command, opts checkUpdatesOptions) error {
	service := newAppService()
	result, err := service.CheckUpdates(ctx, app.CheckUpdatesRequest{
		CatalogPath: resolveString(cmd, opts.Catalog, "catalog", "catalog"),
		Components:  resolveStrings(cmd, opts.Components, "components", "component"),
		StateDir:    resolveString(cmd, opts.StateDir, "state_dir", "state-dir"),
	})
	if err != nil {
		return err
	}

	available := 0
	for _, update := range result.Updates {
		switch {
		case !update.Installed:
			fmt.Printf("  %s: not installed (catalog has %s)\n", update.Name, update.CatalogVersion)
		case update.UpdateAvailable:
			available++
			fmt.Printf("  %s: %s -> %s update available\n", update.Name, update.InstalledVersion, update.CatalogVersion)
		default:
			fmt.Printf("  %s: %s up to date\n", update.Name, update.InstalledVersion)
		}
	}
	fmt.Printf("%d of %d components have updates\n", available, len(result.Updates))
	return nil
}
