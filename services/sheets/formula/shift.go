// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package formula

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrBeforeA1 indicates a shift would move a reference before column 1 or
// row 1. The operation produces no partial output.
var ErrBeforeA1 = errors.New("shifted reference falls before A1")

// RelativeMode controls which axes of a shifted reference become absolute.
type RelativeMode int

const (
	// ModeExcel respects each reference's own $ markers: an axis shifts
	// only when its marker is relative.
	ModeExcel RelativeMode = iota

	// ModeAbsCols forces every shifted reference's column absolute and
	// never advances columns. Used to freeze columns while filling down.
	ModeAbsCols

	// ModeAbsRows forces rows absolute and never advances rows.
	ModeAbsRows
)

// ParseRelativeMode maps the wire names "excel", "abs_cols" and "abs_rows".
func ParseRelativeMode(s string) (RelativeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "excel":
		return ModeExcel, nil
	case "abs_cols":
		return ModeAbsCols, nil
	case "abs_rows":
		return ModeAbsRows, nil
	}
	return ModeExcel, fmt.Errorf("unknown relative mode %q", s)
}

func (m RelativeMode) String() string {
	switch m {
	case ModeAbsCols:
		return "abs_cols"
	case ModeAbsRows:
		return "abs_rows"
	default:
		return "excel"
	}
}

// Shift rewrites every coordinate-bearing reference in the tree by the
// given deltas and returns the canonical formula text.
//
// Description:
//
//	Plain, range and sheet-qualified cell references shift per the mode;
//	column-only ranges shift only columns and row-only ranges only rows.
//	Sheet qualifiers, defined names and structured table references pass
//	through untouched. The walk is all-or-nothing: if any shifted
//	coordinate would land before column 1 or row 1, the whole operation
//	fails with ErrBeforeA1 and no output is produced.
//
// Inputs:
//
//	n - Parsed expression tree. The input tree is not modified.
//	colDelta, rowDelta - Signed shift amounts.
//	mode - Relative-reference policy.
//
// Outputs:
//
//	string - The shifted formula, "=" prefixed.
//	error - ErrBeforeA1 (wrapped with the offending reference) on underflow.
func Shift(n Node, colDelta, rowDelta int, mode RelativeMode) (string, error) {
	shifted, err := shiftNode(n, colDelta, rowDelta, mode)
	if err != nil {
		return "", err
	}
	return Serialize(shifted), nil
}

// ShiftFormula is the parse-then-shift-then-serialize convenience form.
func ShiftFormula(src string, colDelta, rowDelta int, mode RelativeMode) (string, error) {
	n, err := Parse(src)
	if err != nil {
		return "", err
	}
	return Shift(n, colDelta, rowDelta, mode)
}

// FillPattern shifts an anchor formula to each target cell, producing the
// formula text per target. Deltas are computed as target minus anchor.
//
// Inputs:
//
//	src - The anchor cell's formula.
//	anchor - Anchor cell name, e.g. "B2".
//	targets - Target cell names; each receives its own shifted formula.
//	mode - Relative-reference policy applied to every shift.
//
// Outputs:
//
//	map[string]string - target cell name -> shifted formula.
//	error - First parse, coordinate or underflow failure; no partial map.
func FillPattern(src, anchor string, targets []string, mode RelativeMode) (map[string]string, error) {
	tree, err := Parse(src)
	if err != nil {
		return nil, err
	}
	aCol, aRow, err := excelize.CellNameToCoordinates(anchor)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor cell %q: %w", anchor, err)
	}

	out := make(map[string]string, len(targets))
	for _, target := range targets {
		tCol, tRow, err := excelize.CellNameToCoordinates(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target cell %q: %w", target, err)
		}
		text, err := Shift(tree, tCol-aCol, tRow-aRow, mode)
		if err != nil {
			return nil, fmt.Errorf("filling %s: %w", target, err)
		}
		out[target] = text
	}
	return out, nil
}

func shiftNode(n Node, dc, dr int, mode RelativeMode) (Node, error) {
	switch v := n.(type) {
	case *Literal:
		return v, nil
	case *NameRef:
		return v, nil
	case *TableRef:
		return v, nil

	case *CellRef:
		out, err := shiftCell(*v, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &out, nil

	case *RangeRef:
		from, err := shiftCell(v.From, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		to, err := shiftCell(v.To, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &RangeRef{From: from, To: to}, nil

	case *ColRange:
		out := *v
		switch mode {
		case ModeExcel:
			if !out.AbsFrom {
				out.FromCol += dc
			}
			if !out.AbsTo {
				out.ToCol += dc
			}
		case ModeAbsCols:
			out.AbsFrom, out.AbsTo = true, true
		case ModeAbsRows:
			// rows are not represented; shift columns per markers
			if !out.AbsFrom {
				out.FromCol += dc
			}
			if !out.AbsTo {
				out.ToCol += dc
			}
		}
		if out.FromCol < 1 || out.ToCol < 1 {
			return nil, fmt.Errorf("column range %s: %w", Serialize(v)[1:], ErrBeforeA1)
		}
		return &out, nil

	case *RowRange:
		out := *v
		switch mode {
		case ModeExcel:
			if !out.AbsFrom {
				out.FromRow += dr
			}
			if !out.AbsTo {
				out.ToRow += dr
			}
		case ModeAbsRows:
			out.AbsFrom, out.AbsTo = true, true
		case ModeAbsCols:
			if !out.AbsFrom {
				out.FromRow += dr
			}
			if !out.AbsTo {
				out.ToRow += dr
			}
		}
		if out.FromRow < 1 || out.ToRow < 1 {
			return nil, fmt.Errorf("row range %s: %w", Serialize(v)[1:], ErrBeforeA1)
		}
		return &out, nil

	case *SheetRef:
		inner, err := shiftNode(v.Inner, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &SheetRef{Sheet: v.Sheet, Quoted: v.Quoted, Inner: inner}, nil

	case *FuncCall:
		out := &FuncCall{Name: v.Name, Args: make([]Node, len(v.Args))}
		for i, arg := range v.Args {
			shifted, err := shiftNode(arg, dc, dr, mode)
			if err != nil {
				return nil, err
			}
			out.Args[i] = shifted
		}
		return out, nil

	case *Binary:
		left, err := shiftNode(v.Left, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		right, err := shiftNode(v.Right, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: v.Op, Left: left, Right: right}, nil

	case *Unary:
		operand, err := shiftNode(v.Operand, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: v.Op, Operand: operand, Postfix: v.Postfix}, nil

	case *Paren:
		inner, err := shiftNode(v.Inner, dc, dr, mode)
		if err != nil {
			return nil, err
		}
		return &Paren{Inner: inner}, nil
	}
	return nil, fmt.Errorf("unknown node type %T", n)
}

func shiftCell(c CellRef, dc, dr int, mode RelativeMode) (CellRef, error) {
	out := c
	switch mode {
	case ModeExcel:
		if !out.AbsCol {
			out.Col += dc
		}
		if !out.AbsRow {
			out.Row += dr
		}
	case ModeAbsCols:
		out.AbsCol = true
		if !out.AbsRow {
			out.Row += dr
		}
	case ModeAbsRows:
		out.AbsRow = true
		if !out.AbsCol {
			out.Col += dc
		}
	}
	if out.Col < 1 || out.Row < 1 {
		var sb strings.Builder
		c.write(&sb)
		return CellRef{}, fmt.Errorf("reference %s: %w", sb.String(), ErrBeforeA1)
	}
	return out, nil
}
