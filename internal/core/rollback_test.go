package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devkit-installer/internal/types"
)

func TestRollbackManagerRecordPersistsJournal(t *testing.T) {
	state := newMemState()
	manager := NewRollbackManager(state, &scriptRunner{})
	record := types.InstallationRecord{
		ID:        "rec-1",
		Component: "code-editor",
		Status:    types.RecordStatusInProgress,
	}

	err := manager.Record(&record, types.RecordedEffect{
		Kind: types.EffectKindFileCreated,
		Path: "/opt/devkit/editor",
	})

	require.NoError(t, err)
	persisted, ok, err := state.Load("code-editor")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, persisted.Effects, 1)
	assert.False(t, persisted.Effects[0].AppliedAt.IsZero())
}

func TestRollbackRestoresReplacedFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "profile.conf")
	backup := filepath.Join(dir, "profile.conf.backup-rec")
	require.NoError(t, os.WriteFile(target, []byte("new"), 0644))
	require.NoError(t, os.WriteFile(backup, []byte("old"), 0644))

	state := newMemState()
	manager := NewRollbackManager(state, &scriptRunner{})
	record := types.InstallationRecord{
		ID:        "rec-2",
		Component: "shell-profile",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{Kind: types.EffectKindFileReplaced, Path: target, BackupPath: backup},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Equal(t, types.RecordStatusRolledBack, record.Status)
	assert.Empty(t, record.Warnings)
	body, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(body))
	_, statErr := os.Stat(backup)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRollbackRemovesCreatedPathsInReverseOrder(t *testing.T) {
	dir := t.TempDir()
	created := filepath.Join(dir, "tool")
	inner := filepath.Join(created, "bin")
	require.NoError(t, os.MkdirAll(inner, 0755))
	file := filepath.Join(inner, "run")
	require.NoError(t, os.WriteFile(file, []byte("#!/bin/sh\n"), 0755))

	state := newMemState()
	manager := NewRollbackManager(state, &scriptRunner{})
	record := types.InstallationRecord{
		ID:        "rec-3",
		Component: "base-toolchain",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{Kind: types.EffectKindDirCreated, Path: created},
			{Kind: types.EffectKindDirCreated, Path: inner},
			{Kind: types.EffectKindFileCreated, Path: file},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Empty(t, record.Warnings)
	_, err := os.Stat(created)
	assert.True(t, os.IsNotExist(err), "created tree should be fully removed")
}

func TestRollbackRunsUndoCommand(t *testing.T) {
	state := newMemState()
	runner := &scriptRunner{}
	manager := NewRollbackManager(state, runner)
	record := types.InstallationRecord{
		ID:        "rec-4",
		Component: "python-runtime",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{
				Kind:        types.EffectKindCommand,
				Path:        "/usr/local/bin/pyinstall",
				UndoCommand: "/usr/local/bin/pyinstall",
				UndoArgs:    []string{"--uninstall", "--version", "3.12.4"},
			},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Empty(t, record.Warnings)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/usr/local/bin/pyinstall", runner.calls[0].command)
	assert.Equal(t, []string{"--uninstall", "--version", "3.12.4"}, runner.calls[0].args)
}

func TestRollbackUndoFailureBecomesWarning(t *testing.T) {
	state := newMemState()
	runner := &scriptRunner{exits: map[string]int{"/usr/local/bin/teardown": 2}}
	manager := NewRollbackManager(state, runner)
	record := types.InstallationRecord{
		ID:        "rec-5",
		Component: "flaky-tool",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{Kind: types.EffectKindCommand, Path: "/usr/local/bin/setup", UndoCommand: "/usr/local/bin/teardown"},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Equal(t, types.RecordStatusRolledBack, record.Status)
	require.Len(t, record.Warnings, 1)
	assert.Contains(t, record.Warnings[0], "exited 2")

	persisted, ok, err := state.Load("flaky-tool")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.RecordStatusRolledBack, persisted.Status)
	assert.Len(t, persisted.Warnings, 1)
}

func TestRollbackMissingBackupBecomesWarning(t *testing.T) {
	state := newMemState()
	manager := NewRollbackManager(state, &scriptRunner{})
	record := types.InstallationRecord{
		ID:        "rec-6",
		Component: "shell-profile",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{Kind: types.EffectKindFileReplaced, Path: "/etc/devkit/profile.conf"},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Equal(t, types.RecordStatusRolledBack, record.Status)
	require.Len(t, record.Warnings, 1)
	assert.Contains(t, record.Warnings[0], "no backup")
}

func TestRollbackKeepsUserFilesInCreatedDir(t *testing.T) {
	dir := t.TempDir()
	created := filepath.Join(dir, "workspace")
	require.NoError(t, os.MkdirAll(created, 0755))
	userFile := filepath.Join(created, "notes.txt")
	require.NoError(t, os.WriteFile(userFile, []byte("mine"), 0644))

	state := newMemState()
	manager := NewRollbackManager(state, &scriptRunner{})
	record := types.InstallationRecord{
		ID:        "rec-7",
		Component: "code-editor",
		Status:    types.RecordStatusFailed,
		Effects: []types.RecordedEffect{
			{Kind: types.EffectKindDirCreated, Path: created},
		},
	}

	require.NoError(t, manager.Rollback(t.Context(), &record))

	assert.Equal(t, types.RecordStatusRolledBack, record.Status)
	require.Len(t, record.Warnings, 1)
	body, err := os.ReadFile(userFile)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(body), "rollback must never delete files it did not create")
}
