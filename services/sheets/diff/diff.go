// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff compares two workbook state snapshots and emits a typed,
// deterministically ordered changeset. Changes are produced, never
// persisted; callers own what to do with them.
package diff

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
)

// ChangeKind tags one changeset entry.
type ChangeKind string

const (
	// Cell aspects. A single cell may contribute several entries when
	// more than one aspect changed.
	ChangeValueEdit    ChangeKind = "value_edit"
	ChangeFormulaEdit  ChangeKind = "formula_edit"
	ChangeRecalcResult ChangeKind = "recalc_result"
	ChangeStyleEdit    ChangeKind = "style_edit"

	// Defined names, matched by name string.
	ChangeNameAdded    ChangeKind = "name_added"
	ChangeNameRemoved  ChangeKind = "name_removed"
	ChangeNameModified ChangeKind = "name_modified"

	// Tables, matched by display name per sheet.
	ChangeTableAdded    ChangeKind = "table_added"
	ChangeTableRemoved  ChangeKind = "table_removed"
	ChangeTableModified ChangeKind = "table_modified"
)

// Change is one entry of a changeset. Which fields are set depends on
// Kind: cell aspects fill Sheet/Cell, name entries fill Name, table
// entries fill Sheet/Name. Old and New carry the before/after text of
// whatever the kind compares (value, formula, style id, refers-to,
// range).
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Sheet string     `json:"sheet,omitempty"`
	Cell  string     `json:"cell,omitempty"`
	Name  string     `json:"name,omitempty"`
	Old   string     `json:"old,omitempty"`
	New   string     `json:"new,omitempty"`
}

// Engine computes changesets between two document states.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a diff engine. A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "diff.Engine")}
}

// Changeset compares two states and returns the ordered changes from a
// to b.
//
// Description:
//
//	Sheets are compared concurrently, one goroutine per sheet, then
//	merged in sheet order. Cell entries come first ordered by sheet,
//	row, column and aspect; then defined names by name; then tables by
//	sheet and name. Identical states yield an empty, non-nil slice.
//
// Inputs:
//
//	ctx - Cancels in-flight sheet comparisons.
//	a - Earlier state.
//	b - Later state.
//	sheetFilter - Optional; restricts the comparison to one sheet. A
//	filter naming a sheet missing from both states is an error.
//
// Outputs:
//
//	[]Change - Ordered changeset.
//	error - document.ErrSheetNotFound for a bad filter, or ctx.Err().
func (e *Engine) Changeset(ctx context.Context, a, b *document.State, sheetFilter string) ([]Change, error) {
	sheets := unionSheets(a, b)
	if sheetFilter != "" {
		if _, ok := sheets[sheetFilter]; !ok {
			return nil, fmt.Errorf("sheet %q: %w", sheetFilter, document.ErrSheetNotFound)
		}
		sheets = map[string]struct{}{sheetFilter: {}}
	}

	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}
	sort.Strings(names)

	// Each goroutine owns one slot; no further synchronization needed.
	perSheet := make([][]Change, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, sheet := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perSheet[i] = diffSheet(sheet, a.Sheets[sheet], b.Sheets[sheet])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Change, 0)
	for _, changes := range perSheet {
		out = append(out, changes...)
	}
	out = append(out, diffNames(a.Names, b.Names)...)
	for _, sheet := range names {
		out = append(out, diffTables(sheet, a.Sheets[sheet].Tables, b.Sheets[sheet].Tables)...)
	}

	e.logger.Debug("computed changeset",
		"sheets", len(names),
		"changes", len(out))
	return out, nil
}

func unionSheets(a, b *document.State) map[string]struct{} {
	sheets := make(map[string]struct{})
	for name := range a.Sheets {
		sheets[name] = struct{}{}
	}
	for name := range b.Sheets {
		sheets[name] = struct{}{}
	}
	return sheets
}

// diffSheet classifies every cell present in either side of one sheet.
func diffSheet(sheet string, a, b document.SheetState) []Change {
	cells := make(map[string]struct{})
	for addr := range a.Cells {
		cells[addr] = struct{}{}
	}
	for addr := range b.Cells {
		cells[addr] = struct{}{}
	}

	var out []Change
	for addr := range cells {
		out = append(out, classifyCell(sheet, addr, a.Cells[addr], b.Cells[addr])...)
	}
	sortCellChanges(out)
	return out
}

// classifyCell emits one entry per changed aspect of a cell.
func classifyCell(sheet, addr string, a, b document.Cell) []Change {
	if a == b {
		return nil
	}

	var out []Change
	switch {
	case a.Formula != b.Formula:
		out = append(out, Change{
			Kind: ChangeFormulaEdit, Sheet: sheet, Cell: addr,
			Old: a.Formula, New: b.Formula,
		})
	case a.Formula != "" && a.Value != b.Value:
		// Same formula, new cached result: recalculation.
		out = append(out, Change{
			Kind: ChangeRecalcResult, Sheet: sheet, Cell: addr,
			Old: a.Value, New: b.Value,
		})
	case a.Value != b.Value:
		out = append(out, Change{
			Kind: ChangeValueEdit, Sheet: sheet, Cell: addr,
			Old: a.Value, New: b.Value,
		})
	}

	if a.StyleID != b.StyleID && a.Value == b.Value && a.Formula == b.Formula {
		out = append(out, Change{
			Kind: ChangeStyleEdit, Sheet: sheet, Cell: addr,
			Old: fmt.Sprintf("%d", a.StyleID), New: fmt.Sprintf("%d", b.StyleID),
		})
	}
	return out
}

func diffNames(a, b []document.DefinedName) []Change {
	old := make(map[string]string, len(a))
	for _, n := range a {
		old[n.Name] = n.RefersTo
	}
	cur := make(map[string]string, len(b))
	for _, n := range b {
		cur[n.Name] = n.RefersTo
	}

	var out []Change
	for name, refersTo := range old {
		newRefersTo, ok := cur[name]
		switch {
		case !ok:
			out = append(out, Change{Kind: ChangeNameRemoved, Name: name, Old: refersTo})
		case newRefersTo != refersTo:
			out = append(out, Change{Kind: ChangeNameModified, Name: name, Old: refersTo, New: newRefersTo})
		}
	}
	for name, refersTo := range cur {
		if _, ok := old[name]; !ok {
			out = append(out, Change{Kind: ChangeNameAdded, Name: name, New: refersTo})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func diffTables(sheet string, a, b []document.Table) []Change {
	old := make(map[string]string, len(a))
	for _, t := range a {
		old[t.Name] = t.Range
	}
	cur := make(map[string]string, len(b))
	for _, t := range b {
		cur[t.Name] = t.Range
	}

	var out []Change
	for name, rng := range old {
		newRange, ok := cur[name]
		switch {
		case !ok:
			out = append(out, Change{Kind: ChangeTableRemoved, Sheet: sheet, Name: name, Old: rng})
		case newRange != rng:
			out = append(out, Change{Kind: ChangeTableModified, Sheet: sheet, Name: name, Old: rng, New: newRange})
		}
	}
	for name, rng := range cur {
		if _, ok := old[name]; !ok {
			out = append(out, Change{Kind: ChangeTableAdded, Sheet: sheet, Name: name, New: rng})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// aspectRank fixes the order of a cell's multiple entries.
func aspectRank(k ChangeKind) int {
	switch k {
	case ChangeValueEdit:
		return 0
	case ChangeFormulaEdit:
		return 1
	case ChangeRecalcResult:
		return 2
	case ChangeStyleEdit:
		return 3
	}
	return 4
}

func sortCellChanges(changes []Change) {
	type entry struct {
		change         Change
		row, col, rank int
	}
	entries := make([]entry, len(changes))
	for i, c := range changes {
		col, row, err := excelize.CellNameToCoordinates(c.Cell)
		if err != nil {
			col, row = 0, 0
		}
		entries[i] = entry{change: c, row: row, col: col, rank: aspectRank(c.Kind)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.row != b.row {
			return a.row < b.row
		}
		if a.col != b.col {
			return a.col < b.col
		}
		return a.rank < b.rank
	})
	for i, e := range entries {
		changes[i] = e.change
	}
}
