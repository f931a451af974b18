package ports

import "devkit-installer/internal/types"

// NotifierPort receives download and install events. Implementations
// must return quickly and never block the caller; dropping events under
// load is acceptable.
type NotifierPort interface {
	Outcome(outcome types.DownloadOutcome)
	Progress(snapshot types.ProgressSnapshot)
	Installed(record types.InstallationRecord)
}
