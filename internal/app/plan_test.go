package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"devkit-installer/internal/types"
)

func planComponent(name string, deps ...string) types.ComponentSpec {
	return types.ComponentSpec{
		Name:      name,
		Version:   "1.0.0",
		Action:    types.InstallAction{Kind: types.ActionKindNone},
		DependsOn: deps,
	}
}

func TestPlanDiamondOrderAndGroups(t *testing.T) {
	catalogPath := writeCatalog(t, testCatalog(
		planComponent("base"),
		planComponent("left", "base"),
		planComponent("right", "base"),
		planComponent("top", "left", "right"),
	))

	service := newTestService()
	result, err := service.Plan(t.Context(), PlanRequest{CatalogPath: catalogPath})
	require.NoError(t, err)

	require.Equal(t, "workstation", result.CatalogName)
	require.Len(t, result.Order, 4)
	require.Equal(t, "base", result.Order[0])
	require.Equal(t, "top", result.Order[3])

	require.Equal(t, [][]string{{"base"}, {"left", "right"}, {"top"}}, result.Groups)
}

func TestPlanSelectsClosureOnly(t *testing.T) {
	catalogPath := writeCatalog(t, testCatalog(
		planComponent("base"),
		planComponent("tool", "base"),
		planComponent("unrelated"),
	))

	service := newTestService()
	result, err := service.Plan(t.Context(), PlanRequest{
		CatalogPath: catalogPath,
		Components:  []string{"tool"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"base", "tool"}, result.Order)
}

func TestPlanRejectsCycle(t *testing.T) {
	catalogPath := writeCatalog(t, testCatalog(
		planComponent("alpha", "beta"),
		planComponent("beta", "alpha"),
	))

	service := newTestService()
	_, err := service.Plan(t.Context(), PlanRequest{CatalogPath: catalogPath})
	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency cycle:")
}

func TestPlanRejectsUnknownComponent(t *testing.T) {
	catalogPath := writeCatalog(t, testCatalog(planComponent("known")))

	service := newTestService()
	_, err := service.Plan(t.Context(), PlanRequest{
		CatalogPath: catalogPath,
		Components:  []string{"ghost"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "component not in catalog: ghost")
}

func TestPlanRequiresCatalogPath(t *testing.T) {
	service := newTestService()
	_, err := service.Plan(t.Context(), PlanRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "catalog path is required")
}
