// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// execute runs the root command with args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeWorkbook(t *testing.T, cells map[string]any) string {
	t.Helper()
	f := excelize.NewFile()
	for cell, value := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, value))
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestShiftCommand(t *testing.T) {
	out, err := execute(t, "shift", "=A1+B1", "--cols", "1", "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "=B3 + C3")

	t.Run("bad mode", func(t *testing.T) {
		_, err := execute(t, "shift", "=A1", "--mode", "sideways")
		assert.Error(t, err)
	})

	t.Run("shift before column A", func(t *testing.T) {
		_, err := execute(t, "shift", "=A1", "--cols", "-1", "--rows", "0", "--mode", "")
		assert.Error(t, err)
	})
}

func TestFillCommand(t *testing.T) {
	out, err := execute(t, "fill", "=A1*2", "B2", "B3", "--anchor", "B1")
	require.NoError(t, err)

	var formulas map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &formulas))
	assert.Equal(t, map[string]string{
		"B2": "=A2 * 2",
		"B3": "=A3 * 2",
	}, formulas)
}

func TestDiffCommand(t *testing.T) {
	pathA := writeWorkbook(t, map[string]any{"A1": 1, "B1": "x"})
	pathB := writeWorkbook(t, map[string]any{"A1": 2, "B1": "x"})

	out, err := execute(t, "diff", pathA, pathB)
	require.NoError(t, err)

	var changes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "value_edit", changes[0]["kind"])
	assert.Equal(t, "A1", changes[0]["cell"])
	assert.Equal(t, "1", changes[0]["old"])
	assert.Equal(t, "2", changes[0]["new"])

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "diff", pathA, filepath.Join(t.TempDir(), "nope.xlsx"))
		assert.Error(t, err)
	})
}
