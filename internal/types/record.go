package types

import "time"

// RecordedEffect is one reversible mutation applied during an install.
// Effects are journaled in apply order; rollback walks them in reverse.
type RecordedEffect struct {
	Kind        EffectKind `yaml:"kind"`
	Path        string     `yaml:"path,omitempty"`
	BackupPath  string     `yaml:"backup_path,omitempty"`
	UndoCommand string     `yaml:"undo_command,omitempty"`
	UndoArgs    []string   `yaml:"undo_args,omitempty"`
	AppliedAt   time.Time  `yaml:"applied_at"`
}

// InstallationRecord is the persisted ledger entry for one component
// install. It is created before the first mutation and updated as
// effects land, so a crash mid-install leaves enough on disk to roll
// back.
type InstallationRecord struct {
	ID         string           `yaml:"id"`
	Component  string           `yaml:"component"`
	Version    string           `yaml:"version"`
	Algorithm  DigestAlgorithm  `yaml:"algorithm"`
	Digest     string           `yaml:"digest"`
	Status     RecordStatus     `yaml:"status"`
	Effects    []RecordedEffect `yaml:"effects,omitempty"`
	StartedAt  time.Time        `yaml:"started_at"`
	FinishedAt time.Time        `yaml:"finished_at,omitempty"`
	Warnings   []string         `yaml:"warnings,omitempty"`
	Error      string           `yaml:"error,omitempty"`
}

// Matches reports whether the record describes a completed install of
// exactly this component spec (same version and digest). Used for the
// idempotent re-install check.
func (r InstallationRecord) Matches(spec ComponentSpec) bool {
	if r.Status != RecordStatusCompleted {
		return false
	}
	if r.Component != spec.Name || r.Version != spec.Version {
		return false
	}
	recorded := Digest{Algorithm: r.Algorithm, Value: r.Digest}
	return recorded.Equal(spec.Digest)
}
