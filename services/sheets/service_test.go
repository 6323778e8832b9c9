// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AleutianAI/AleutianSheets/services/sheets/diff"
	"github.com/AleutianAI/AleutianSheets/services/sheets/forkstore"
	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	config := DefaultServiceConfig()
	config.Workspace = t.TempDir()
	svc, err := NewService(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newBaseWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 1))
	path := filepath.Join(t.TempDir(), "base.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

// Walks the whole lifecycle: fork, stage, apply, checkpoint, diverge,
// restore, diff.
func TestForkLifecycle(t *testing.T) {
	svc := newTestService(t)
	base := newBaseWorkbook(t)
	ctx := context.Background()

	fork, err := svc.CreateFork(ctx, base)
	require.NoError(t, err)

	change, err := svc.StageChange(ctx, fork.ID, "set A1", []forkstore.StagedOp{{
		Kind: forkstore.OpEditBatch,
		EditBatch: &forkstore.EditBatch{Edits: []forkstore.CellEdit{
			{Sheet: "Sheet1", Cell: "A1", Value: "5"},
		}},
	}})
	require.NoError(t, err)

	_, err = svc.ApplyStagedChange(ctx, fork.ID, change.ID)
	require.NoError(t, err)

	cp, err := svc.CreateCheckpoint(ctx, fork.ID, "cp1")
	require.NoError(t, err)

	_, err = svc.ApplyEdits(ctx, fork.ID, []forkstore.CellEdit{
		{Sheet: "Sheet1", Cell: "A1", Value: "10"},
	})
	require.NoError(t, err)

	changes, err := svc.ForkChangeset(ctx, fork.ID, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeValueEdit, changes[0].Kind)
	assert.Equal(t, "10", changes[0].New)

	require.NoError(t, svc.RestoreCheckpoint(ctx, fork.ID, cp.ID))

	changes, err = svc.ForkChangeset(ctx, fork.ID, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeValueEdit, changes[0].Kind)
	assert.Equal(t, "A1", changes[0].Cell)
	assert.Equal(t, "1", changes[0].Old)
	assert.Equal(t, "5", changes[0].New, "restore rolled the divergent edit back")

	staged, err := svc.ListStagedChanges(ctx, fork.ID)
	require.NoError(t, err)
	assert.Empty(t, staged, "no staged changes survive beyond those applied before the checkpoint")

	info, err := svc.GetFork(ctx, fork.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, info.EditCount)
	assert.Equal(t, 1, info.CheckpointCount)

	require.NoError(t, svc.DiscardFork(ctx, fork.ID))
	_, err = svc.GetFork(ctx, fork.ID)
	assert.ErrorIs(t, err, ErrForkNotFound)
}

func TestStyleThenChangeset(t *testing.T) {
	svc := newTestService(t)
	base := newBaseWorkbook(t)
	ctx := context.Background()

	fork, err := svc.CreateFork(ctx, base)
	require.NoError(t, err)

	bold := true
	summary, err := svc.ApplyStyleBatch(ctx, fork.ID, []style.Op{{
		Sheet: "Sheet1",
		Cells: []string{"A1"},
		Mode:  style.ModeMerge,
		Patch: style.Patch{Font: &style.FontPatch{Bold: &bold}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CellsTouched)

	changes, err := svc.ForkChangeset(ctx, fork.ID, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeStyleEdit, changes[0].Kind)

	t.Run("repeating the batch stays quiet in the diff", func(t *testing.T) {
		summary, err := svc.ApplyStyleBatch(ctx, fork.ID, []style.Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  style.ModeMerge,
			Patch: style.Patch{Font: &style.FontPatch{Bold: &bold}},
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.CellsTouched, "touch count still increments")

		again, err := svc.ForkChangeset(ctx, fork.ID, "")
		require.NoError(t, err)
		assert.Equal(t, changes, again, "no extra style_edit entries")
	})
}

func TestShiftFormula(t *testing.T) {
	svc := newTestService(t)

	shifted, err := svc.ShiftFormula("A1+B1", 1, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "=B3 + C3", shifted)

	shifted, err = svc.ShiftFormula("A1", 2, 1, "abs_cols")
	require.NoError(t, err)
	assert.Equal(t, "=$A2", shifted)

	_, err = svc.ShiftFormula("A1", -5, 0, "")
	assert.ErrorIs(t, err, ErrBeforeA1)

	_, err = svc.ShiftFormula("A1", 0, 0, "diagonal")
	require.Error(t, err)
}

func TestFillFormulaPattern(t *testing.T) {
	svc := newTestService(t)

	filled, err := svc.FillFormulaPattern("=A1+B1", "C1", []string{"C2", "C3"}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"C2": "=A2 + B2",
		"C3": "=A3 + B3",
	}, filled)
}

func TestComputeChangesetBetweenFiles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := newBaseWorkbook(t)
	b := newBaseWorkbook(t)

	f, err := excelize.OpenFile(b)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 2))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	changes, err := svc.ComputeChangeset(ctx, a, b, "")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, diff.ChangeValueEdit, changes[0].Kind)

	t.Run("missing sheet filter", func(t *testing.T) {
		_, err := svc.ComputeChangeset(ctx, a, b, "NoSuch")
		assert.ErrorIs(t, err, ErrSheetNotFound)
	})
}

func TestNewServiceValidation(t *testing.T) {
	config := DefaultServiceConfig()
	config.Workspace = t.TempDir()
	config.PruneBoundary = "sideways"
	_, err := NewService(config)
	require.Error(t, err)

	config = DefaultServiceConfig()
	_, err = NewService(config)
	require.Error(t, err, "workspace is required")
}
