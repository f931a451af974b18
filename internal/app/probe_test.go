package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"
)

func writeMirrorMap(t *testing.T, primaryHost string, altHosts ...string) string {
	t.Helper()
	data := fmt.Sprintf("mirrors:\n  %q:\n", primaryHost)
	for _, host := range altHosts {
		data += fmt.Sprintf("    - %q\n", host)
	}
	path := filepath.Join(t.TempDir(), "mirrors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestProbeChecksEveryCandidateURL(t *testing.T) {
	server, mux := newArtifactServer(t)
	payload := []byte("toolchain payload")
	mux.serve("/go-toolchain.tar.gz", payload)

	component := fetchedComponent("go-toolchain", server.URL, "/go-toolchain.tar.gz", payload)
	component.Mirrors = []string{
		server.URL + "/go-toolchain.tar.gz", // duplicate of the primary
		server.URL + "/retired/go-toolchain.tar.gz",
	}
	catalogPath := writeCatalog(t, testCatalog(component))

	service := newTestService()
	result, err := service.Probe(t.Context(), ProbeRequest{
		CatalogPath: catalogPath,
		Component:   "go-toolchain",
	})
	require.NoError(t, err)

	require.Equal(t, "go-toolchain", result.Component)
	require.Equal(t, []ProbeCandidate{
		{URL: server.URL + "/go-toolchain.tar.gz", Reachable: true},
		{URL: server.URL + "/retired/go-toolchain.tar.gz", Reachable: false},
	}, result.Candidates)
}

func TestProbeIncludesMirrorMapAlternates(t *testing.T) {
	primary, primaryMux := newArtifactServer(t)
	alt, altMux := newArtifactServer(t)
	payload := []byte("editor payload")
	primaryMux.serve("/editor.tar.gz", payload)
	altMux.serve("/editor.tar.gz", payload)

	primaryURL, err := url.Parse(primary.URL)
	require.NoError(t, err)
	altURL, err := url.Parse(alt.URL)
	require.NoError(t, err)

	catalogPath := writeCatalog(t, testCatalog(
		fetchedComponent("editor", primary.URL, "/editor.tar.gz", payload),
	))

	service := newTestService()
	result, err := service.Probe(t.Context(), ProbeRequest{
		CatalogPath: catalogPath,
		Component:   "editor",
		MirrorMap:   writeMirrorMap(t, primaryURL.Host, altURL.Host),
	})
	require.NoError(t, err)

	require.Equal(t, []ProbeCandidate{
		{URL: primary.URL + "/editor.tar.gz", Reachable: true},
		{URL: alt.URL + "/editor.tar.gz", Reachable: true},
	}, result.Candidates)
}

func TestProbeRequestValidation(t *testing.T) {
	service := newTestService()

	tests := []struct {
		name    string
		req     ProbeRequest
		wantMsg string
	}{
		{
			name:    "missing catalog path",
			req:     ProbeRequest{Component: "go-toolchain"},
			wantMsg: "catalog path is required",
		},
		{
			name:    "missing component",
			req:     ProbeRequest{CatalogPath: "catalog.yaml"},
			wantMsg: "component name is required",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Probe(t.Context(), tt.req)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantMsg)

			var built *errbuilder.ErrBuilder
			require.True(t, errors.As(err, &built))
			require.Equal(t, errbuilder.CodeInvalidArgument, built.Code)
		})
	}
}

func TestProbeUnknownComponentNotFound(t *testing.T) {
	server, mux := newArtifactServer(t)
	payload := []byte("payload")
	mux.serve("/known.tar.gz", payload)
	catalogPath := writeCatalog(t, testCatalog(
		fetchedComponent("known", server.URL, "/known.tar.gz", payload),
	))

	service := newTestService()
	_, err := service.Probe(t.Context(), ProbeRequest{
		CatalogPath: catalogPath,
		Component:   "ghost",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "component not in catalog: ghost")

	var built *errbuilder.ErrBuilder
	require.True(t, errors.As(err, &built))
	require.Equal(t, errbuilder.CodeNotFound, built.Code)
}
