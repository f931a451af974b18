package types

import "time"

// ComponentResult is the per-component slot inside a BatchResult. The
// pointers stay nil for phases the component never reached.
type ComponentResult struct {
	Name     string
	Status   ComponentStatus
	Download *DownloadOutcome
	Record   *InstallationRecord
	Message  string
}

// BatchResult aggregates one install run. Results holds a slot for
// every component in the resolved closure, keyed by name; Order is the
// dependency-safe install sequence and Groups its partition into
// independently-installable waves.
type BatchResult struct {
	ID        string
	Order     []string
	Groups    [][]string
	Results   map[string]*ComponentResult
	Status    BatchStatus
	StartedAt time.Time
	Elapsed   time.Duration
}

// Counts tallies component results by terminal status.
func (b BatchResult) Counts() (completed int, failed int, skipped int, cancelled int) {
	for _, result := range b.Results {
		switch result.Status {
		case ComponentStatusCompleted:
			completed++
		case ComponentStatusFailed:
			failed++
		case ComponentStatusSkipped:
			skipped++
		case ComponentStatusCancelled:
			cancelled++
		}
	}
	return completed, failed, skipped, cancelled
}

// ComponentUpdate is one row of a check-updates report.
type ComponentUpdate struct {
	Name             string
	InstalledVersion string
	CatalogVersion   string
	Scheme           VersionScheme
	Installed        bool
	UpdateAvailable  bool
}
