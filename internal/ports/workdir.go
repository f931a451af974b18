package ports

// WorkDirPort manages per-batch staging directories under the work
// root. Downloads land here before installation; a fully completed
// batch leaves nothing behind.
type WorkDirPort interface {
	// EnsureBatchDir creates the staging directory for a batch and
	// returns the downloads path inside it.
	EnsureBatchDir(batchID string) (string, error)
	// Cleanup removes one batch's staging tree.
	Cleanup(batchID string) error
}
