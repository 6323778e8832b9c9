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
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Cell is one addressed cell in a snapshot.
type Cell struct {
	// Value is the displayed value. For formula cells this is the cached
	// result from the last recalculation; the engine never computes it.
	Value string `json:"value"`

	// Formula is the cell's formula text, empty for plain values.
	Formula string `json:"formula,omitempty"`

	// StyleID is the workbook-interned style id.
	StyleID int `json:"style_id"`
}

// Table is a named rectangular region on a sheet.
type Table struct {
	Name  string `json:"name"`
	Range string `json:"range"` // TopLeft:BottomRight form
}

// DefinedName is a workbook-scoped named range.
type DefinedName struct {
	Name     string `json:"name"`
	RefersTo string `json:"refers_to"`
}

// SheetState holds the addressed cells and tables of one sheet.
// A cell is present when it carries a value or a formula; cells that are
// merely styled inherit sheet defaults and are not addressed.
type SheetState struct {
	Cells  map[string]Cell `json:"cells"`
	Tables []Table         `json:"tables,omitempty"`
}

// State is an immutable point-in-time snapshot of a workbook, the input
// form consumed by the diff engine. Safe to share across goroutines.
type State struct {
	Path   string                `json:"path"`
	Sheets map[string]SheetState `json:"sheets"`
	Names  []DefinedName         `json:"names,omitempty"`
}

// Snapshot reads a workbook into a State.
//
// Description:
//
//	Captures every value- or formula-bearing cell (value, formula text,
//	cached result, style id), the workbook's defined names, and each
//	sheet's tables. When sheetFilter is non-empty only that sheet's grid
//	and tables are captured; a filter naming a missing sheet is an error,
//	never a silently empty snapshot.
//
// Inputs:
//
//	path - Workbook file path.
//	sheetFilter - Optional sheet name; "" captures all sheets.
//
// Outputs:
//
//	*State - The snapshot.
//	error - ErrSheetNotFound for a bad filter, *IOError otherwise.
func Snapshot(path, sheetFilter string) (*State, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetFilter != "" {
		found := false
		for _, s := range sheets {
			if s == sheetFilter {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sheet %q: %w", sheetFilter, ErrSheetNotFound)
		}
		sheets = []string{sheetFilter}
	}

	state := &State{
		Path:   path,
		Sheets: make(map[string]SheetState, len(sheets)),
	}

	for _, sheet := range sheets {
		ss, err := snapshotSheet(f, sheet)
		if err != nil {
			return nil, err
		}
		state.Sheets[sheet] = ss
	}

	for _, dn := range f.GetDefinedName() {
		state.Names = append(state.Names, DefinedName{Name: dn.Name, RefersTo: dn.RefersTo})
	}

	return state, nil
}

func snapshotSheet(f *excelize.File, sheet string) (SheetState, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return SheetState{}, &IOError{Op: "read rows", Path: f.Path, Err: err}
	}

	ss := SheetState{Cells: make(map[string]Cell)}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			addr, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return SheetState{}, &IOError{Op: "address", Path: f.Path, Err: err}
			}
			formulaText, err := f.GetCellFormula(sheet, addr)
			if err != nil {
				return SheetState{}, &IOError{Op: "read formula", Path: f.Path, Err: err}
			}
			if value == "" && formulaText == "" {
				continue
			}
			styleID, err := f.GetCellStyle(sheet, addr)
			if err != nil {
				return SheetState{}, &IOError{Op: "read style", Path: f.Path, Err: err}
			}
			ss.Cells[addr] = Cell{Value: value, Formula: formulaText, StyleID: styleID}
		}
	}

	tables, err := f.GetTables(sheet)
	if err != nil {
		return SheetState{}, &IOError{Op: "read tables", Path: f.Path, Err: err}
	}
	for _, tbl := range tables {
		ss.Tables = append(ss.Tables, Table{Name: tbl.Name, Range: tbl.Range})
	}

	return ss, nil
}
