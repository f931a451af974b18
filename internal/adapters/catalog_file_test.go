package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/core"
	"devkit-installer/internal/types"
)

func TestCatalogFileAdapterLoadsSampleFixture(t *testing.T) {
	catalog, err := NewCatalogFileAdapter().LoadCatalog("../../fixtures/catalog-sample.yaml")
	require.NoError(t, err)

	assert.Equal(t, "workstation-dev", catalog.Metadata.Name)
	assert.Equal(t, []string{"platform-team"}, catalog.Metadata.Owners)
	assert.Equal(t, 4, catalog.Defaults.Concurrency)
	require.Len(t, catalog.Components, 5)

	toolchain, ok := catalog.Component("base-toolchain")
	require.True(t, ok)
	assert.Equal(t, types.DigestAlgorithmSHA256, toolchain.Digest.Algorithm)
	assert.Len(t, toolchain.Mirrors, 1)
	assert.Equal(t, types.ActionKindExtract, toolchain.Action.Kind)
	assert.Equal(t, "base-toolchain-1.24.0/", toolchain.Action.StripPrefix)
	require.Len(t, toolchain.Action.Checks, 1)
	assert.Equal(t, types.CheckKindFileExists, toolchain.Action.Checks[0].Kind)

	python, ok := catalog.Component("python-runtime")
	require.True(t, ok)
	assert.Equal(t, types.VersionSchemePep440, python.Scheme)
	require.NotNil(t, python.Action.Undo)
	assert.Equal(t, "/usr/local/bin/pyinstall", python.Action.Undo.Command)

	meta, ok := catalog.Component("workstation-meta")
	require.True(t, ok)
	assert.Equal(t, types.ActionKindNone, meta.Action.Kind)
	assert.Empty(t, meta.URL)

	// The shipped sample must stay valid.
	require.NoError(t, core.NewCatalogValidator().Validate(t.Context(), catalog))
}

func TestCatalogFileAdapterMissingFile(t *testing.T) {
	_, err := NewCatalogFileAdapter().LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	if diff := cmp.Diff(errbuilder.CodeNotFound, errbuilder.CodeOf(err)); diff != "" {
		t.Fatalf("unexpected error code (-want +got):\n%s", diff)
	}
}

func TestCatalogFileAdapterRejectsWrongKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_version: v1\nkind: product\n"), 0644))

	_, err := NewCatalogFileAdapter().LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a catalog file")
	if diff := cmp.Diff(errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err)); diff != "" {
		t.Fatalf("unexpected error code (-want +got):\n%s", diff)
	}
}

func TestCatalogFileAdapterRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("components: [unclosed"), 0644))

	_, err := NewCatalogFileAdapter().LoadCatalog(path)
	require.Error(t, err)
	if diff := cmp.Diff(errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err)); diff != "" {
		t.Fatalf("unexpected error code (-want +got):\n%s", diff)
	}
}
