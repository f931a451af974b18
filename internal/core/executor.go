package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/ports"
	"devkit-installer/internal/types"
)

// defaultInstallTimeout bounds one component's install action so a hung
// installer script fails the component instead of the whole batch.
const defaultInstallTimeout = 5 * time.Minute

// Placeholders expanded in command arguments, destinations and
// post-check paths before the action runs.
const (
	artifactToken = "{artifact}"
	destToken     = "{dest}"
)

// InstallationExecutor applies one component's install action against a
// verified artifact. Every reversible effect is journaled through the
// rollback manager before or as it lands, and any failure (action,
// timeout, or post-check) rolls the component back. Results come back
// as InstallationRecord values; the executor never returns an error.
type InstallationExecutor struct {
	Runner    ports.InstallerPort
	Extractor ports.ExtractorPort
	State     ports.StatePort
	Rollback  RollbackManager
	Timeout   time.Duration
	BackupDir string
	Clock     func() time.Time
}

func NewInstallationExecutor(runner ports.InstallerPort, extractor ports.ExtractorPort, state ports.StatePort) InstallationExecutor {
	return InstallationExecutor{
		Runner:    runner,
		Extractor: extractor,
		State:     state,
		Rollback:  NewRollbackManager(state, runner),
		Timeout:   defaultInstallTimeout,
		Clock:     time.Now,
	}
}

// Install applies the component's action and post-checks. Re-installing
// a component whose completed record matches the spec's version and
// digest returns that record untouched.
func (e InstallationExecutor) Install(ctx context.Context, spec types.ComponentSpec, artifactPath string) types.InstallationRecord {
	if existing, ok, err := e.State.Load(spec.Name); err == nil && ok && existing.Matches(spec) {
		log.Ctx(ctx).Debug().
			Str("component", spec.Name).
			Str("version", spec.Version).
			Msg("already installed at this version and digest, nothing to do")
		return existing
	}

	record := types.InstallationRecord{
		ID:        uuid.NewString(),
		Component: spec.Name,
		Version:   spec.Version,
		Algorithm: spec.Digest.Algorithm,
		Digest:    strings.ToLower(strings.TrimSpace(spec.Digest.Value)),
		Status:    types.RecordStatusInProgress,
		StartedAt: e.now(),
	}
	if err := e.State.Save(record); err != nil {
		record.Status = types.RecordStatusFailed
		record.Error = fmt.Sprintf("cannot persist installation ledger, refusing to mutate the system: %v", err)
		record.FinishedAt = e.now()
		return record
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.timeout())
	err := e.apply(actionCtx, spec, artifactPath, &record)
	if err == nil {
		err = e.runPostChecks(actionCtx, spec, &record)
	}
	cancel()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actionCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("install action exceeded %s timeout: %w", e.timeout(), err)
		}
		return e.fail(ctx, &record, err)
	}

	record.Status = types.RecordStatusCompleted
	record.FinishedAt = e.now()
	if err := e.State.Save(record); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", spec.Name).Msg("install succeeded but ledger update failed")
	}
	log.Ctx(ctx).Info().
		Str("component", spec.Name).
		Str("version", spec.Version).
		Int("effects", len(record.Effects)).
		Dur("elapsed", record.FinishedAt.Sub(record.StartedAt)).
		Msg("component installed")
	return record
}

// fail marks the record failed, rolls its effects back, and returns the
// terminal record. Rollback runs on a fresh context so a timed-out or
// cancelled install can still be undone.
func (e InstallationExecutor) fail(ctx context.Context, record *types.InstallationRecord, cause error) types.InstallationRecord {
	record.Status = types.RecordStatusFailed
	record.Error = cause.Error()
	record.FinishedAt = e.now()
	if err := e.State.Save(*record); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", record.Component).Msg("could not persist failed install record")
	}
	log.Ctx(ctx).Warn().
		Str("component", record.Component).
		Str("error", record.Error).
		Msg("install failed, rolling back")
	rollbackCtx := context.WithoutCancel(ctx)
	if err := e.Rollback.Rollback(rollbackCtx, record); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", record.Component).Msg("rollback bookkeeping failed")
	}
	return *record
}

func (e InstallationExecutor) apply(ctx context.Context, spec types.ComponentSpec, artifactPath string, record *types.InstallationRecord) error {
	switch spec.Action.Kind {
	case types.ActionKindNone, "":
		return nil
	case types.ActionKindCommand:
		return e.applyCommand(ctx, spec, artifactPath, record)
	case types.ActionKindCopy:
		return e.applyCopy(ctx, spec, artifactPath, record)
	case types.ActionKindExtract:
		return e.applyExtract(ctx, spec, artifactPath, record)
	default:
		return fmt.Errorf("unsupported install action kind: %s", spec.Action.Kind)
	}
}

// applyCommand journals the command effect (with its declared undo)
// before running it, so a crash mid-command still leaves the undo on
// disk.
func (e InstallationExecutor) applyCommand(ctx context.Context, spec types.ComponentSpec, artifactPath string, record *types.InstallationRecord) error {
	if e.Runner == nil {
		return fmt.Errorf("no command runner configured")
	}
	command := expandTokens(spec.Action.Command, artifactPath, spec.Action.Dest)
	args := expandTokenList(spec.Action.Args, artifactPath, spec.Action.Dest)

	effect := types.RecordedEffect{Kind: types.EffectKindCommand, Path: command}
	if spec.Action.Undo != nil {
		effect.UndoCommand = expandTokens(spec.Action.Undo.Command, artifactPath, spec.Action.Dest)
		effect.UndoArgs = expandTokenList(spec.Action.Undo.Args, artifactPath, spec.Action.Dest)
	}
	if err := e.Rollback.Record(record, effect); err != nil {
		return fmt.Errorf("cannot journal install command: %w", err)
	}

	output, err := e.Runner.Run(ctx, command, args, spec.Action.WorkDir)
	if err != nil {
		return fmt.Errorf("install command did not run: %w", err)
	}
	if output.ExitCode != 0 {
		return fmt.Errorf("install command exited %d: %s", output.ExitCode, tailOf(output.Stderr))
	}
	return nil
}

// applyCopy snapshots its planned effects (directories, backup of a
// replaced file, the new file) into the journal before touching the
// destination.
func (e InstallationExecutor) applyCopy(ctx context.Context, spec types.ComponentSpec, artifactPath string, record *types.InstallationRecord) error {
	dest := expandTokens(spec.Action.Dest, artifactPath, "")
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("copy action has no destination")
	}
	if strings.TrimSpace(artifactPath) == "" {
		return fmt.Errorf("copy action has no artifact")
	}

	var planned []types.RecordedEffect
	for _, dir := range missingAncestors(filepath.Dir(dest)) {
		planned = append(planned, types.RecordedEffect{Kind: types.EffectKindDirCreated, Path: dir})
	}
	replacing := false
	backupPath := ""
	if _, err := os.Stat(dest); err == nil {
		replacing = true
		backupPath = e.backupPath(record.ID, dest)
		planned = append(planned, types.RecordedEffect{
			Kind:       types.EffectKindFileReplaced,
			Path:       dest,
			BackupPath: backupPath,
		})
	} else {
		planned = append(planned, types.RecordedEffect{Kind: types.EffectKindFileCreated, Path: dest})
	}
	if err := e.Rollback.RecordAll(record, planned); err != nil {
		return fmt.Errorf("cannot journal copy effects: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("cannot create destination directory: %w", err)
	}
	if replacing {
		if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
			return fmt.Errorf("cannot create backup directory: %w", err)
		}
		if err := os.Rename(dest, backupPath); err != nil {
			return fmt.Errorf("cannot back up existing file: %w", err)
		}
	}
	if err := copyFile(artifactPath, dest); err != nil {
		return fmt.Errorf("cannot copy artifact to %s: %w", dest, err)
	}
	log.Ctx(ctx).Debug().
		Str("component", spec.Name).
		Str("dest", dest).
		Bool("replaced", replacing).
		Msg("artifact copied into place")
	return nil
}

// applyExtract journals the destination root ahead of extraction when
// the extractor will create it; entries inside an existing root are
// journaled as they land, since an archive's contents are unknown until
// read.
func (e InstallationExecutor) applyExtract(ctx context.Context, spec types.ComponentSpec, artifactPath string, record *types.InstallationRecord) error {
	if e.Extractor == nil {
		return fmt.Errorf("no archive extractor configured")
	}
	dest := expandTokens(spec.Action.Dest, artifactPath, "")
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("extract action has no destination")
	}
	var planned []types.RecordedEffect
	for _, dir := range missingAncestors(dest) {
		planned = append(planned, types.RecordedEffect{Kind: types.EffectKindDirCreated, Path: dir})
	}
	if len(planned) > 0 {
		if err := e.Rollback.RecordAll(record, planned); err != nil {
			return fmt.Errorf("cannot journal extract destination: %w", err)
		}
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("cannot create extract destination: %w", err)
	}

	created, err := e.Extractor.Extract(ctx, artifactPath, dest, spec.Action.StripPrefix)
	if len(created) > 0 {
		effects := make([]types.RecordedEffect, 0, len(created))
		for _, path := range created {
			kind := types.EffectKindFileCreated
			if info, statErr := os.Lstat(path); statErr == nil && info.IsDir() {
				kind = types.EffectKindDirCreated
			}
			effects = append(effects, types.RecordedEffect{Kind: kind, Path: path})
		}
		if recordErr := e.Rollback.RecordAll(record, effects); recordErr != nil && err == nil {
			err = fmt.Errorf("cannot journal extracted paths: %w", recordErr)
		}
	}
	if err != nil {
		return fmt.Errorf("archive extraction failed: %w", err)
	}
	log.Ctx(ctx).Debug().
		Str("component", spec.Name).
		Str("dest", dest).
		Int("entries", len(created)).
		Msg("artifact extracted")
	return nil
}

// runPostChecks verifies the component's declared post-conditions. A
// failed check is an installation failure.
func (e InstallationExecutor) runPostChecks(ctx context.Context, spec types.ComponentSpec, record *types.InstallationRecord) error {
	for _, check := range spec.Action.Checks {
		switch check.Kind {
		case types.CheckKindFileExists:
			path := expandTokens(check.Path, "", spec.Action.Dest)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("post-check failed: expected file %s: %v", path, err)
			}
		case types.CheckKindCommand:
			if e.Runner == nil {
				return fmt.Errorf("post-check failed: no command runner configured")
			}
			command := expandTokens(check.Command, "", spec.Action.Dest)
			args := expandTokenList(check.Args, "", spec.Action.Dest)
			output, err := e.Runner.Run(ctx, command, args, spec.Action.WorkDir)
			if err != nil {
				return fmt.Errorf("post-check command did not run: %w", err)
			}
			if output.ExitCode != 0 {
				return fmt.Errorf("post-check command exited %d: %s", output.ExitCode, tailOf(output.Stderr))
			}
		default:
			return fmt.Errorf("unsupported post-check kind: %s", check.Kind)
		}
	}
	return nil
}

func (e InstallationExecutor) backupPath(recordID string, dest string) string {
	name := filepath.Base(dest) + ".replaced"
	if e.BackupDir != "" {
		return filepath.Join(e.BackupDir, shortID(recordID), name)
	}
	return dest + ".backup-" + shortID(recordID)
}

func (e InstallationExecutor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return defaultInstallTimeout
	}
	return e.Timeout
}

func (e InstallationExecutor) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock().UTC()
}

func expandTokens(value string, artifactPath string, dest string) string {
	value = strings.ReplaceAll(value, artifactToken, artifactPath)
	return strings.ReplaceAll(value, destToken, dest)
}

func expandTokenList(values []string, artifactPath string, dest string) []string {
	if len(values) == 0 {
		return nil
	}
	expanded := make([]string, len(values))
	for i, value := range values {
		expanded[i] = expandTokens(value, artifactPath, dest)
	}
	return expanded
}

// missingAncestors lists the directories MkdirAll would create for
// path, outermost first, so each can be journaled before creation.
func missingAncestors(path string) []string {
	var missing []string
	current := filepath.Clean(path)
	for {
		if current == "." || current == string(filepath.Separator) || current == "" {
			break
		}
		if _, err := os.Stat(current); err == nil {
			break
		}
		missing = append(missing, current)
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	// Collected innermost-first; reverse to creation order.
	for i, j := 0, len(missing)-1; i < j; i, j = i+1, j-1 {
		missing[i], missing[j] = missing[j], missing[i]
	}
	return missing
}

func copyFile(src string, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
