package ports

import "context"

// CommandOutput is the synchronous result of one external command.
type CommandOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// InstallerPort runs external install and undo commands. A non-zero
// exit is reported through CommandOutput, not the error; the error is
// reserved for failures to start or complete the process.
type InstallerPort interface {
	Run(ctx context.Context, command string, args []string, workDir string) (CommandOutput, error)
}

// ExtractorPort unpacks an archive artifact into a directory and
// reports every path it created, in creation order.
type ExtractorPort interface {
	Extract(ctx context.Context, archivePath string, destDir string, stripPrefix string) ([]string, error)
}
