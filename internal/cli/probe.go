package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devkit-installer/internal/app"
)

type probeOptions struct {
	Catalog   string
	Component string
	MirrorMap string
}

func newProbeCommand() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check which download mirrors answer for a component",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "Component catalog path")
	cmd.Flags().StringVar(&opts.Component, "component", "", "Component whose mirrors to probe")
	cmd.Flags().StringVar(&opts.MirrorMap, "mirror-map", "", "Mirror host substitution file")
	_ = viper.BindPFlag("catalog", cmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("probe_component", cmd.Flags().Lookup("component"))
	_ = viper.BindPFlag("mirror_map", cmd.Flags().Lookup("mirror-map"))
	return cmd
}

func runProbe(ctx context.Context, cmd *cobra.Command, opts probeOptions) error {
	service := newAppService()
	result, err := service.Probe(ctx, app.ProbeRequest{
		CatalogPath: resolveString(cmd, opts.Catalog, "catalog", "catalog"),
		Component:   resolveString(cmd, opts.Component, "probe_component", "component"),
		MirrorMap:   resolveString(cmd, opts.MirrorMap, "mirror_map", "mirror-map"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("candidates for %s:\n", result.Component)
	for _, candidate := range result.Candidates {
		status := "unreachable"
		if candidate.Reachable {
			status = "reachable"
		}
		fmt.Printf("  %-11s %s\n", status, candidate.URL)
	}
	return nil
}
