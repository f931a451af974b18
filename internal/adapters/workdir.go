package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/ports"
)

// WorkDirAdapter lays out per-batch staging directories under a single
// work root: <root>/<batch-id>/downloads. Cleanup removes one batch's
// tree and never reaches outside the root.
type WorkDirAdapter struct {
	Root string
}

func NewWorkDirAdapter(root string) WorkDirAdapter {
	return WorkDirAdapter{Root: root}
}

func (a WorkDirAdapter) EnsureBatchDir(batchID string) (string, error) {
	dir, err := a.batchPath(batchID)
	if err != nil {
		return "", err
	}
	downloads := filepath.Join(dir, "downloads")
	if err := os.MkdirAll(downloads, 0755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot create batch work directory").
			WithCause(err)
	}
	return downloads, nil
}

func (a WorkDirAdapter) Cleanup(batchID string) error {
	dir, err := a.batchPath(batchID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("cannot remove batch work directory").
			WithCause(err)
	}
	return nil
}

// batchPath rejects IDs that could climb out of the work root.
func (a WorkDirAdapter) batchPath(batchID string) (string, error) {
	if strings.TrimSpace(a.Root) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("work root is empty")
	}
	id := strings.TrimSpace(batchID)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid batch id")
	}
	return filepath.Join(a.Root, id), nil
}

var _ ports.WorkDirPort = WorkDirAdapter{}
