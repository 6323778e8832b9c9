// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 5))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "text"))
	require.NoError(t, f.SetCellFormula("Sheet1", "C1", "=A1*2"))
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Data", "A1", "d"))
	require.NoError(t, f.AddTable("Data", &excelize.Table{
		Range: "A1:B3",
		Name:  "Orders",
	}))
	require.NoError(t, f.SetDefinedName(&excelize.DefinedName{
		Name:     "Revenue",
		RefersTo: "Sheet1!$A$1",
	}))

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestEditable(t *testing.T) {
	path := writeWorkbook(t)

	doc, err := OpenEditable(path)
	require.NoError(t, err)

	assert.True(t, doc.HasSheet("Sheet1"))
	assert.False(t, doc.HasSheet("NoSuch"))
	assert.Equal(t, path, doc.Path())

	require.NoError(t, doc.SetValue("Sheet1", "A2", 9))
	require.NoError(t, doc.SetFormula("Sheet1", "A3", "=A1+A2"))
	assert.ErrorIs(t, doc.SetValue("NoSuch", "A1", 1), ErrSheetNotFound)
	assert.ErrorIs(t, doc.SetFormula("NoSuch", "A1", "=1"), ErrSheetNotFound)

	require.NoError(t, doc.Save())
	require.NoError(t, doc.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "9", v)
	formulaText, err := f.GetCellFormula("Sheet1", "A3")
	require.NoError(t, err)
	assert.Equal(t, "A1+A2", formulaText)

	t.Run("missing file", func(t *testing.T) {
		_, err := OpenEditable(path + ".missing")
		var ioErr *IOError
		assert.ErrorAs(t, err, &ioErr)
	})
}

func TestCopyFile(t *testing.T) {
	path := writeWorkbook(t)
	dst := filepath.Join(t.TempDir(), "nested", "deep", "copy.xlsx")

	require.NoError(t, CopyFile(path, dst))

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	t.Run("missing source", func(t *testing.T) {
		err := CopyFile(path+".missing", filepath.Join(t.TempDir(), "x.xlsx"))
		var ioErr *IOError
		assert.ErrorAs(t, err, &ioErr)
	})
}

func TestReplaceFile(t *testing.T) {
	path := writeWorkbook(t)
	snapshot := filepath.Join(t.TempDir(), "snap.xlsx")
	require.NoError(t, CopyFile(path, snapshot))

	doc, err := OpenEditable(path)
	require.NoError(t, err)
	require.NoError(t, doc.SetValue("Sheet1", "A1", 99))
	require.NoError(t, doc.Save())
	require.NoError(t, doc.Close())

	require.NoError(t, ReplaceFile(snapshot, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "5", v, "content rolls back to the snapshot")

	assert.FileExists(t, snapshot, "the snapshot itself survives")
	_, err = os.Stat(path + ".restore.tmp")
	assert.True(t, os.IsNotExist(err), "scratch file is cleaned up")
}

func TestSnapshot(t *testing.T) {
	path := writeWorkbook(t)

	state, err := Snapshot(path, "")
	require.NoError(t, err)

	require.Contains(t, state.Sheets, "Sheet1")
	require.Contains(t, state.Sheets, "Data")

	grid := state.Sheets["Sheet1"].Cells
	assert.Equal(t, "5", grid["A1"].Value)
	assert.Equal(t, "text", grid["B2"].Value)
	assert.Equal(t, "A1*2", grid["C1"].Formula)
	_, blank := grid["A2"]
	assert.False(t, blank, "empty cells are not addressed")

	require.Len(t, state.Names, 1)
	assert.Equal(t, "Revenue", state.Names[0].Name)
	assert.Equal(t, "Sheet1!$A$1", state.Names[0].RefersTo)

	tables := state.Sheets["Data"].Tables
	require.Len(t, tables, 1)
	assert.Equal(t, "Orders", tables[0].Name)
	assert.Equal(t, "A1:B3", tables[0].Range)

	t.Run("sheet filter", func(t *testing.T) {
		state, err := Snapshot(path, "Data")
		require.NoError(t, err)
		assert.Len(t, state.Sheets, 1)
		assert.Contains(t, state.Sheets, "Data")
	})

	t.Run("missing sheet", func(t *testing.T) {
		_, err := Snapshot(path, "NoSuch")
		assert.ErrorIs(t, err, ErrSheetNotFound)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Snapshot(path+".missing", "")
		var ioErr *IOError
		assert.ErrorAs(t, err, &ioErr)
	})
}
