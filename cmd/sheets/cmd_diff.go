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

	"github.com/AleutianAI/AleutianSheets/services/sheets/diff"
	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/spf13/cobra"
)

// runDiff prints the structured changeset between two workbooks as JSON.
func runDiff(cmd *cobra.Command, args []string) error {
	stateA, err := document.Snapshot(args[0], diffSheet)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	stateB, err := document.Snapshot(args[1], diffSheet)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	engine := diff.NewEngine(logger)
	changes, err := engine.Changeset(cmd.Context(), stateA, stateB, diffSheet)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(changes, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
