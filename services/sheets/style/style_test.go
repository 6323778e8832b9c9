// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package style

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newWorkbook(t *testing.T) *excelize.File {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "x"))
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func boolPtr(b bool) *bool        { return &b }
func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }

func TestApplyBatchTargets(t *testing.T) {
	ctx := context.Background()

	t.Run("range touches rows x cols", func(t *testing.T) {
		f := newWorkbook(t)
		summary, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Range: "A1:C2",
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		require.NoError(t, err)
		assert.Equal(t, 6, summary.CellsTouched)
	})

	t.Run("reversed range corners normalize", func(t *testing.T) {
		f := newWorkbook(t)
		summary, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Range: "C2:A1",
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		require.NoError(t, err)
		assert.Equal(t, 6, summary.CellsTouched)
	})

	t.Run("duplicate cells count once", func(t *testing.T) {
		f := newWorkbook(t)
		summary, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1", "A1", "B1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Italic: boolPtr(true)}},
		}})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.CellsTouched)
	})

	t.Run("empty target conflicts", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		assert.ErrorIs(t, err, ErrConflictingTarget)
	})

	t.Run("unknown sheet conflicts", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "NoSuch",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		assert.ErrorIs(t, err, ErrConflictingTarget)
	})

	t.Run("bad op fails the whole batch before any write", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{
			{
				Sheet: "Sheet1",
				Cells: []string{"A1"},
				Mode:  ModeMerge,
				Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
			},
			{
				Sheet: "Sheet1",
				Mode:  ModeMerge,
				Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
			},
		})
		assert.ErrorIs(t, err, ErrConflictingTarget)

		id, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		assert.Zero(t, id, "first op must not have been applied")
	})
}

func TestApplyBatchModes(t *testing.T) {
	ctx := context.Background()

	t.Run("merge keeps unpatched fields", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Italic: boolPtr(true), Size: floatPtr(14)}},
		}})
		require.NoError(t, err)

		_, err = ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		require.NoError(t, err)

		id, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		got, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, got.Font)
		assert.True(t, got.Font.Bold)
		assert.True(t, got.Font.Italic, "merge keeps the earlier italic")
		assert.Equal(t, 14.0, got.Font.Size)
	})

	t.Run("set resets unspecified fields", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Italic: boolPtr(true)}},
		}})
		require.NoError(t, err)

		_, err = ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeSet,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		require.NoError(t, err)

		id, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		got, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, got.Font)
		assert.True(t, got.Font.Bold)
		assert.False(t, got.Font.Italic, "set replaces the font category")
	})

	t.Run("alignment and number format patches", func(t *testing.T) {
		f := newWorkbook(t)
		numFmt := 2
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{
				Alignment: &AlignmentPatch{Horizontal: strPtr("center"), WrapText: boolPtr(true)},
				NumFmt:    &numFmt,
			},
		}})
		require.NoError(t, err)

		id, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		got, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, got.Alignment)
		assert.Equal(t, "center", got.Alignment.Horizontal)
		assert.True(t, got.Alignment.WrapText)
		assert.Equal(t, 2, got.NumFmt)
	})
}

func TestApplyBatchInterning(t *testing.T) {
	ctx := context.Background()

	t.Run("identical result keeps the current id and still counts", func(t *testing.T) {
		f := newWorkbook(t)
		op := Op{
			Sheet: "Sheet1",
			Cells: []string{"A1"},
			Mode:  ModeMerge,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}

		_, err := ApplyBatch(ctx, f, []Op{op})
		require.NoError(t, err)
		first, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)

		summary, err := ApplyBatch(ctx, f, []Op{op})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.CellsTouched, "idempotence is at the diff level, not the touch count")

		second, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("same content interns once per batch", func(t *testing.T) {
		f := newWorkbook(t)
		_, err := ApplyBatch(ctx, f, []Op{{
			Sheet: "Sheet1",
			Cells: []string{"A1", "B1", "C1"},
			Mode:  ModeSet,
			Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
		}})
		require.NoError(t, err)

		a, err := f.GetCellStyle("Sheet1", "A1")
		require.NoError(t, err)
		c, err := f.GetCellStyle("Sheet1", "C1")
		require.NoError(t, err)
		assert.Equal(t, a, c, "cells with identical content share one interned record")
	})
}

func TestApplyBatchCancellation(t *testing.T) {
	f := newWorkbook(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ApplyBatch(ctx, f, []Op{{
		Sheet: "Sheet1",
		Range: "A1:J10",
		Mode:  ModeMerge,
		Patch: Patch{Font: &FontPatch{Bold: boolPtr(true)}},
	}})
	assert.ErrorIs(t, err, context.Canceled)
}
