package adapters

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"devkit-installer/internal/types"
)

func TestConsoleProgressNotifierRendersTerminalEvents(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewConsoleProgressNotifier(2, &buf)

	notifier.Outcome(types.DownloadOutcome{
		Component: "base-toolchain",
		Success:   false,
		Failure:   types.FailureKindTransientNetwork,
	})
	notifier.Installed(types.InstallationRecord{
		Component: "editor",
		Status:    types.RecordStatusCompleted,
	})
	notifier.Finish()

	out := buf.String()
	assert.NotEmpty(t, out)
	assert.Contains(t, out, "editor completed")
}

func TestConsoleProgressNotifierSpinnerWhenTotalUnknown(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewConsoleProgressNotifier(-1, &buf)

	notifier.Progress(types.ProgressSnapshot{Component: "python-runtime", BytesTotal: 0})
	notifier.Outcome(types.DownloadOutcome{Component: "python-runtime", Success: true})
	notifier.Installed(types.InstallationRecord{
		Component: "python-runtime",
		Status:    types.RecordStatusCompleted,
	})
	notifier.Finish()

	assert.NotEmpty(t, buf.String())
}
