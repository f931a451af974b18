package types

type DigestAlgorithm string

const (
	DigestAlgorithmSHA256 DigestAlgorithm = "sha256"
	DigestAlgorithmSHA512 DigestAlgorithm = "sha512"
)

type VersionScheme string

const (
	VersionSchemeDeb    VersionScheme = "deb"
	VersionSchemePep440 VersionScheme = "pep440"
)

type CatalogKind string

const (
	CatalogKindCatalog CatalogKind = "catalog"
)

type ActionKind string

const (
	ActionKindNone    ActionKind = "none"
	ActionKindCommand ActionKind = "command"
	ActionKindCopy    ActionKind = "copy"
	ActionKindExtract ActionKind = "extract"
)

type CheckKind string

const (
	CheckKindFileExists CheckKind = "file_exists"
	CheckKindCommand    CheckKind = "command"
)

// FailureKind classifies why a download or install attempt did not
// produce a usable artifact. It is a value carried on outcomes, not an
// error: orchestration keeps running and aggregates these per component.
type FailureKind string

const (
	FailureKindNone             FailureKind = ""
	FailureKindSecurity         FailureKind = "security"
	FailureKindVerification     FailureKind = "verification"
	FailureKindTransientNetwork FailureKind = "transient_network"
	FailureKindConfiguration    FailureKind = "configuration"
	FailureKindInstallation     FailureKind = "installation"
	FailureKindCancelled        FailureKind = "cancelled"
)

type ComponentStatus string

const (
	ComponentStatusPending     ComponentStatus = "pending"
	ComponentStatusDownloading ComponentStatus = "downloading"
	ComponentStatusInstalling  ComponentStatus = "installing"
	ComponentStatusCompleted   ComponentStatus = "completed"
	ComponentStatusFailed      ComponentStatus = "failed"
	ComponentStatusSkipped     ComponentStatus = "skipped"
	ComponentStatusCancelled   ComponentStatus = "cancelled"
)

type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusInProgress RecordStatus = "in_progress"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusFailed     RecordStatus = "failed"
	RecordStatusRolledBack RecordStatus = "rolled_back"
)

type BatchStatus string

const (
	BatchStatusPlanning    BatchStatus = "planning"
	BatchStatusDownloading BatchStatus = "downloading"
	BatchStatusInstalling  BatchStatus = "installing"
	BatchStatusCompleted   BatchStatus = "completed"
	BatchStatusPartial     BatchStatus = "partial"
	BatchStatusFailed      BatchStatus = "failed"
)

type EffectKind string

const (
	EffectKindFileCreated  EffectKind = "file_created"
	EffectKindDirCreated   EffectKind = "dir_created"
	EffectKindFileReplaced EffectKind = "file_replaced"
	EffectKindCommand      EffectKind = "command"
)
