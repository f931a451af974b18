package app

import (
	"time"

	"devkit-installer/internal/types"
)

type InstallRequest struct {
	CatalogPath     string
	Components      []string
	CacheDir        string
	StateDir        string
	WorkDir         string
	MirrorMap       string
	Concurrency     int
	MaxAttempts     int
	StrictRollback  bool
	DownloadTimeout time.Duration
	InstallTimeout  time.Duration
}

type CheckUpdatesRequest struct {
	CatalogPath string
	Components  []string
	StateDir    string
}

type CheckUpdatesResult struct {
	Updates []types.ComponentUpdate
}

type PlanRequest struct {
	CatalogPath string
	Components  []string
}

// PlanResult previews a batch without touching the network or the
// filesystem: the install order and its parallelizable waves.
type PlanResult struct {
	CatalogName string
	Order       []string
	Groups      [][]string
}

type PruneRequest struct {
	CacheDir      string
	MaxAge        time.Duration
	MaxTotalBytes int64
	DryRun        bool
}

type PruneResult struct {
	Evicted        []types.CacheEntry
	Kept           int
	BytesReclaimed int64
	DryRun         bool
}

type ProbeRequest struct {
	CatalogPath string
	Component   string
	MirrorMap   string
}

type ProbeCandidate struct {
	URL       string
	Reachable bool
}

type ProbeResult struct {
	Component  string
	Candidates []ProbeCandidate
}
