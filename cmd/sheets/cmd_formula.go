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
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianSheets/services/sheets/formula"
	"github.com/spf13/cobra"
)

// runShift shifts a single formula by the flag deltas and prints the result.
func runShift(cmd *cobra.Command, args []string) error {
	mode, err := formula.ParseRelativeMode(shiftMode)
	if err != nil {
		return err
	}
	shifted, err := formula.ShiftFormula(args[0], shiftCols, shiftRows, mode)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), shifted)
	return nil
}

// runFill fills a formula pattern into the target cells and prints
// the cell-to-formula mapping as JSON.
func runFill(cmd *cobra.Command, args []string) error {
	mode, err := formula.ParseRelativeMode(fillMode)
	if err != nil {
		return err
	}
	formulas, err := formula.FillPattern(args[0], fillAnchor, args[1:], mode)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(formulas, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
