package adapters

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// ConsoleProgressNotifier renders one progress bar for a whole batch,
// advancing a tick per failed download outcome or installation record.
// Components that never start (skipped, cancelled) emit no event;
// Finish fills the remainder of the bar.
type ConsoleProgressNotifier struct {
	bar *progressbar.ProgressBar
}

func NewConsoleProgressNotifier(total int, out io.Writer) *ConsoleProgressNotifier {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("installing components"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	return &ConsoleProgressNotifier{bar: bar}
}

func (n *ConsoleProgressNotifier) Outcome(outcome types.DownloadOutcome) {
	if n.bar == nil {
		return
	}
	if outcome.Success {
		n.bar.Describe(fmt.Sprintf("installing %s", outcome.Component))
		return
	}
	n.bar.Describe(fmt.Sprintf("%s: %s", outcome.Component, outcome.Failure))
	_ = n.bar.Add(1)
}

func (n *ConsoleProgressNotifier) Progress(snapshot types.ProgressSnapshot) {
	if n.bar == nil {
		return
	}
	if snapshot.BytesTotal > 0 {
		n.bar.Describe(fmt.Sprintf("downloading %s %3.0f%%", snapshot.Component, snapshot.Percent))
		return
	}
	n.bar.Describe(fmt.Sprintf("downloading %s", snapshot.Component))
}

func (n *ConsoleProgressNotifier) Installed(record types.InstallationRecord) {
	if n.bar == nil {
		return
	}
	n.bar.Describe(fmt.Sprintf("%s %s", record.Component, record.Status))
	_ = n.bar.Add(1)
}

// Finish completes the bar once the batch is done.
func (n *ConsoleProgressNotifier) Finish() {
	if n.bar != nil {
		_ = n.bar.Finish()
	}
}

var _ ports.NotifierPort = (*ConsoleProgressNotifier)(nil)
