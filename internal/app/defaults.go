package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devkit-installer/internal/types"
)

const (
	defaultConcurrency = 3
	defaultMaxAttempts = 3
)

// batchSettings is the fully-resolved configuration for one request:
// explicit request values win, then catalog defaults, then the
// built-in fallbacks.
type batchSettings struct {
	CacheDir    string
	StateDir    string
	WorkDir     string
	MirrorMap   string
	Concurrency int
	MaxAttempts int
}

func resolveSettings(req InstallRequest, defaults types.CatalogDefaults) batchSettings {
	settings := batchSettings{
		CacheDir:    firstNonEmpty(req.CacheDir, defaults.CacheDir, defaultBaseDir("cache")),
		StateDir:    firstNonEmpty(req.StateDir, defaults.StateDir, defaultBaseDir("state")),
		WorkDir:     firstNonEmpty(req.WorkDir, defaults.WorkDir, filepath.Join(os.TempDir(), "devkit-installer")),
		MirrorMap:   firstNonEmpty(req.MirrorMap, defaults.MirrorMap),
		Concurrency: firstPositive(req.Concurrency, defaults.Concurrency, defaultConcurrency),
		MaxAttempts: firstPositive(req.MaxAttempts, defaults.MaxAttempts, defaultMaxAttempts),
	}
	return settings
}

// checkInstallDefaultsHints returns hints for install flags that
// duplicate a non-empty catalog default, so the flag can be omitted.
func checkInstallDefaultsHints(req InstallRequest, defaults types.CatalogDefaults) []string {
	checks := []struct {
		flagName    string
		defaultsKey string
		provided    bool
		hasDefault  bool
	}{
		{"--cache-dir", "defaults.cache_dir", strings.TrimSpace(req.CacheDir) != "", defaults.CacheDir != ""},
		{"--state-dir", "defaults.state_dir", strings.TrimSpace(req.StateDir) != "", defaults.StateDir != ""},
		{"--work-dir", "defaults.work_dir", strings.TrimSpace(req.WorkDir) != "", defaults.WorkDir != ""},
		{"--mirror-map", "defaults.mirror_map", strings.TrimSpace(req.MirrorMap) != "", defaults.MirrorMap != ""},
		{"--concurrency", "defaults.concurrency", req.Concurrency > 0, defaults.Concurrency > 0},
		{"--max-attempts", "defaults.max_attempts", req.MaxAttempts > 0, defaults.MaxAttempts > 0},
	}
	var hints []string
	for _, c := range checks {
		if c.provided && c.hasDefault {
			hints = append(hints, fmt.Sprintf(
				"hint: %s is also set in the catalog (%s); you can omit the flag",
				c.flagName, c.defaultsKey,
			))
		}
	}
	return hints
}

// emitHints writes hint messages to stderr.
func emitHints(hints []string) {
	for _, h := range hints {
		fmt.Fprintln(os.Stderr, h)
	}
}

// defaultBaseDir places per-user tool state under the home directory,
// falling back to a relative directory when home is unknown.
func defaultBaseDir(kind string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".devkit-installer", kind)
	}
	return filepath.Join(home, ".devkit-installer", kind)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
