package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/types"
)

// CheckConflicts rejects a batch whose closure contains components that
// declare each other as conflicts, or that conflict with a component
// already installed on this machine. Conflicts are treated as
// symmetric: either side declaring the other is enough.
func CheckConflicts(selected []types.ComponentSpec, installed []types.InstallationRecord) error {
	selectedNames := map[string]struct{}{}
	for _, component := range selected {
		selectedNames[component.Name] = struct{}{}
	}
	installedNames := map[string]struct{}{}
	for _, record := range installed {
		if record.Status == types.RecordStatusCompleted {
			installedNames[record.Component] = struct{}{}
		}
	}

	for _, component := range selected {
		for _, conflict := range component.ConflictsWith {
			name := strings.TrimSpace(conflict)
			if name == "" || name == component.Name {
				continue
			}
			if _, ok := selectedNames[name]; ok {
				return conflictError(fmt.Sprintf(
					"components %s and %s conflict; drop one of them from the request",
					component.Name, name))
			}
			// A component being reinstalled does not conflict with its
			// own previous install.
			if _, ok := installedNames[name]; ok {
				if _, alsoSelected := selectedNames[name]; !alsoSelected {
					return conflictError(fmt.Sprintf(
						"component %s conflicts with already-installed %s; remove %s before installing",
						component.Name, name, name))
				}
			}
		}
	}
	return nil
}

func conflictError(message string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("conflict: " + message)
}
