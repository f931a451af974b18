package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devkit-installer/internal/app"
)

type planOptions struct {
	Catalog    string
	Components []string
}

func newPlanCommand() *cobra.Command {
	opts := planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the install order and parallel groups without installing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "Component catalog path")
	cmd.Flags().StringSliceVar(&opts.Components, "component", nil, "Component to plan (repeatable; default: whole catalog)")
	_ = viper.BindPFlag("catalog", cmd.Flags().Lookup("catalog"))
	_ = viper.BindPFlag("components", cmd.Flags().Lookup("component"))
	return cmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, opts planOptions) error {
	service := newAppService()
	result, err := service.Plan(ctx, app.PlanRequest{
		CatalogPath: resolveString(cmd, opts.Catalog, "catalog", "catalog"),
		Components:  resolveStrings(cmd, opts.Components, "components", "component"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("catalog %s: %d components\n", result.CatalogName, len(result.Order))
	for i, group := range result.Groups {
		fmt.Printf("  group %d: %s\n", i+1, strings.Join(group, ", "))
	}
	fmt.Printf("install order: %s\n", strings.Join(result.Order, " -> "))
	return nil
}
