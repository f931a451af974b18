package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorMapFileAdapterLoadsSampleFixture(t *testing.T) {
	mirrors, err := NewMirrorMapFileAdapter("../../fixtures/mirrors-sample.yaml").Load()
	require.NoError(t, err)

	want := map[string][]string{
		"dl.example.com":        {"mirror-eu.example.com", "mirror-us.example.com"},
		"dl.python.example.com": {"mirror-eu.example.com"},
	}
	if diff := cmp.Diff(want, mirrors); diff != "" {
		t.Fatalf("mirror map (-want +got):\n%s", diff)
	}
}

func TestMirrorMapFileAdapterEmptyPathMeansNoMirrors(t *testing.T) {
	mirrors, err := NewMirrorMapFileAdapter("").Load()
	require.NoError(t, err)
	assert.Empty(t, mirrors)
}

func TestMirrorMapFileAdapterMissingFile(t *testing.T) {
	_, err := NewMirrorMapFileAdapter(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.Error(t, err)
	if diff := cmp.Diff(errbuilder.CodeNotFound, errbuilder.CodeOf(err)); diff != "" {
		t.Fatalf("unexpected error code (-want +got):\n%s", diff)
	}
}

func TestMirrorMapFileAdapterEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# nothing configured\n"), 0644))

	mirrors, err := NewMirrorMapFileAdapter(path).Load()
	require.NoError(t, err)
	assert.Empty(t, mirrors)
}
