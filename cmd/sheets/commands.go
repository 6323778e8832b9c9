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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	shiftCols  int
	shiftRows  int
	shiftMode  string
	fillAnchor string
	fillMode   string
	diffSheet  string

	rootCmd = &cobra.Command{
		Use:   "sheets",
		Short: "Workbook versioning and transformation for xlsx files",
		Long: `Aleutian Sheets manages forked copies of xlsx workbooks with
checkpoints, staged changes, formula pattern filling and structured diffs.`,
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Sheets API server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Formula Utilities ---
	shiftCmd = &cobra.Command{
		Use:   "shift [formula]",
		Short: "Shift the relative references of a formula by a column/row delta",
		Args:  cobra.ExactArgs(1),
		RunE:  runShift, // Defined in cmd_formula.go
	}
	fillCmd = &cobra.Command{
		Use:   "fill [formula] [target...]",
		Short: "Fill a formula pattern from an anchor cell into target cells",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runFill, // Defined in cmd_formula.go
	}

	// --- Diff ---
	diffCmd = &cobra.Command{
		Use:   "diff [workbook_a] [workbook_b]",
		Short: "Print the structured changeset between two xlsx workbooks",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff, // Defined in cmd_diff.go
	}
)

func init() {
	shiftCmd.Flags().IntVar(&shiftCols, "cols", 0, "Column delta to apply")
	shiftCmd.Flags().IntVar(&shiftRows, "rows", 0, "Row delta to apply")
	shiftCmd.Flags().StringVar(&shiftMode, "mode", "", "Relative mode: excel, abs_cols or abs_rows")

	fillCmd.Flags().StringVar(&fillAnchor, "anchor", "A1", "Anchor cell the formula is written against")
	fillCmd.Flags().StringVar(&fillMode, "mode", "", "Relative mode: excel, abs_cols or abs_rows")

	diffCmd.Flags().StringVar(&diffSheet, "sheet", "", "Restrict the diff to a single sheet")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shiftCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(diffCmd)
}
