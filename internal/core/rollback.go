package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// RollbackManager journals reversible effects onto an installation
// record and undoes them in reverse order. Every append is persisted
// immediately so a crash mid-install still leaves a replayable journal.
type RollbackManager struct {
	State  ports.StatePort
	Runner ports.InstallerPort
	Clock  func() time.Time
}

func NewRollbackManager(state ports.StatePort, runner ports.InstallerPort) RollbackManager {
	return RollbackManager{
		State:  state,
		Runner: runner,
		Clock:  time.Now,
	}
}

// Record appends one effect to the journal and persists the record.
func (m RollbackManager) Record(record *types.InstallationRecord, effect types.RecordedEffect) error {
	effect.AppliedAt = m.now()
	record.Effects = append(record.Effects, effect)
	return m.State.Save(*record)
}

// RecordAll appends a batch of effects with a single persist, for
// callers journaling many paths at once (archive extraction).
func (m RollbackManager) RecordAll(record *types.InstallationRecord, effects []types.RecordedEffect) error {
	if len(effects) == 0 {
		return nil
	}
	now := m.now()
	for _, effect := range effects {
		effect.AppliedAt = now
		record.Effects = append(record.Effects, effect)
	}
	return m.State.Save(*record)
}

// Rollback undoes the record's effects newest-first. Undo failures
// become warnings on the record rather than aborting the sweep: a
// partial rollback with a precise report beats none. The record ends
// rolled_back either way.
func (m RollbackManager) Rollback(ctx context.Context, record *types.InstallationRecord) error {
	for i := len(record.Effects) - 1; i >= 0; i-- {
		effect := record.Effects[i]
		if err := m.undo(ctx, effect); err != nil {
			warning := fmt.Sprintf("undo %s %s: %v", effect.Kind, effect.Path, err)
			record.Warnings = append(record.Warnings, warning)
			log.Ctx(ctx).Warn().
				Str("component", record.Component).
				Str("effect", string(effect.Kind)).
				Str("path", effect.Path).
				Err(err).
				Msg("rollback step failed, continuing")
		}
	}
	record.Status = types.RecordStatusRolledBack
	record.FinishedAt = m.now()
	log.Ctx(ctx).Info().
		Str("component", record.Component).
		Int("effects", len(record.Effects)).
		Int("warnings", len(record.Warnings)).
		Msg("install rolled back")
	return m.State.Save(*record)
}

func (m RollbackManager) undo(ctx context.Context, effect types.RecordedEffect) error {
	switch effect.Kind {
	case types.EffectKindFileCreated:
		if err := os.Remove(effect.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	case types.EffectKindDirCreated:
		// Reverse order empties a directory before its turn comes, so
		// plain Remove suffices and never deletes user data.
		if err := os.Remove(effect.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	case types.EffectKindFileReplaced:
		if strings.TrimSpace(effect.BackupPath) == "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("replaced file has no backup to restore")
		}
		return os.Rename(effect.BackupPath, effect.Path)
	case types.EffectKindCommand:
		return m.undoCommand(ctx, effect)
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown effect kind: %s", effect.Kind))
	}
}

func (m RollbackManager) undoCommand(ctx context.Context, effect types.RecordedEffect) error {
	if strings.TrimSpace(effect.UndoCommand) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("command effect has no undo command")
	}
	if m.Runner == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("no command runner available for undo")
	}
	output, err := m.Runner.Run(ctx, effect.UndoCommand, effect.UndoArgs, "")
	if err != nil {
		return err
	}
	if output.ExitCode != 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("undo command exited %d: %s", output.ExitCode, tailOf(output.Stderr)))
	}
	return nil
}

func (m RollbackManager) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock().UTC()
}

// tailOf keeps the last few lines of command output for error
// messages.
func tailOf(output string) string {
	trimmed := strings.TrimSpace(output)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 5 {
		return trimmed
	}
	return strings.Join(lines[len(lines)-5:], "\n")
}
