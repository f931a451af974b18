package ports

import "devkit-installer/internal/types"

// StatePort persists the per-component installation ledger. Save must
// be atomic: a crash mid-write leaves either the old record or the new
// one, never a torn file.
type StatePort interface {
	Save(record types.InstallationRecord) error
	Load(component string) (types.InstallationRecord, bool, error)
	List() ([]types.InstallationRecord, error)
}
