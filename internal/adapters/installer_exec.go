package adapters

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/shared"
)

// ExecInstallerAdapter runs install and undo commands through the host
// shell environment. A non-zero exit code is a normal result the caller
// inspects; only failures to launch the process surface as errors.
type ExecInstallerAdapter struct{}

func NewExecInstallerAdapter() ExecInstallerAdapter {
	return ExecInstallerAdapter{}
}

func (a ExecInstallerAdapter) Run(ctx context.Context, command string, args []string, workDir string) (ports.CommandOutput, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := ports.CommandOutput{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if err == nil {
		return output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		output.ExitCode = exitErr.ExitCode()
		return output, nil
	}
	return output, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to run command").
		WithCause(shared.CommandError(stderr.Bytes(), err))
}
