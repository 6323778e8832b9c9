// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package style applies sparse style patches to cell and range targets.
//
// Styles are interned: a patch resolves to an existing or newly created
// workbook style record keyed by its canonical content, and the cell's
// style reference is reassigned. Style records are never edited in place.
package style

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrConflictingTarget indicates a style target resolved to zero cells.
var ErrConflictingTarget = errors.New("style target resolves to no cells")

// Mode selects how a patch combines with a cell's existing style.
type Mode string

const (
	// ModeMerge combines patch fields onto the cell's existing style.
	ModeMerge Mode = "merge"

	// ModeSet replaces the touched style categories outright; categories
	// the patch does not mention reset to workbook defaults.
	ModeSet Mode = "set"
)

// FontPatch selects font fields. Nil fields are untouched in merge mode.
type FontPatch struct {
	Bold   *bool    `json:"bold,omitempty"`
	Italic *bool    `json:"italic,omitempty"`
	Size   *float64 `json:"size,omitempty"`
	Color  *string  `json:"color,omitempty"`
}

// FillPatch selects a solid pattern fill.
type FillPatch struct {
	Color   *string `json:"color,omitempty"`
	Pattern *int    `json:"pattern,omitempty"`
}

// AlignmentPatch selects alignment fields.
type AlignmentPatch struct {
	Horizontal *string `json:"horizontal,omitempty"`
	Vertical   *string `json:"vertical,omitempty"`
	WrapText   *bool   `json:"wrap_text,omitempty"`
}

// Patch is a sparse style description; only present categories are applied.
type Patch struct {
	Font      *FontPatch      `json:"font,omitempty"`
	Fill      *FillPatch      `json:"fill,omitempty"`
	Alignment *AlignmentPatch `json:"alignment,omitempty"`
	NumFmt    *int            `json:"num_fmt,omitempty"`
}

// Op is one style operation against a sheet target.
//
// Exactly one of Cells or Range must be set. Range is of the form
// "A1:C3"; every cell in the rectangle is touched.
type Op struct {
	Sheet string   `json:"sheet"`
	Cells []string `json:"cells,omitempty"`
	Range string   `json:"range,omitempty"`
	Mode  Mode     `json:"mode"`
	Patch Patch    `json:"patch"`
}

// Summary reports the touched-cell count of an applied batch.
//
// A cell counts once per op that targets it, even when the resulting
// style is identical to its current style; idempotence shows up in the
// diff engine (no style_edit entry), not in the touch count.
type Summary struct {
	CellsTouched int `json:"cells_touched"`
}

// ApplyBatch applies style ops to an open workbook.
//
// Description:
//
//	Every op's target is resolved and validated before the first write,
//	so a bad target fails the whole batch with no mutation. For each
//	resolved cell the patch is combined with (merge) or substituted for
//	(set) the current style, the result is interned by canonical content,
//	and the cell is repointed at the interned record. Cells whose
//	resulting style equals their current style keep their existing id.
//
// Inputs:
//
//	ctx - Cancels between cells; the caller applies to a scratch copy, so
//	      a cancelled batch leaves the fork untouched.
//	f - Open workbook; the caller owns saving and serialization.
//	ops - Style operations, applied in order.
//
// Outputs:
//
//	Summary - Total touched cells across ops.
//	error - ErrConflictingTarget, document sheet errors, or I/O failures.
func ApplyBatch(ctx context.Context, f *excelize.File, ops []Op) (Summary, error) {
	resolved := make([][]string, len(ops))
	for i, op := range ops {
		cells, err := resolveTarget(f, op)
		if err != nil {
			return Summary{}, fmt.Errorf("style op %d: %w", i, err)
		}
		resolved[i] = cells
	}

	interner := newInterner(f)
	var summary Summary
	for i, op := range ops {
		for _, cell := range resolved[i] {
			if err := ctx.Err(); err != nil {
				return Summary{}, err
			}
			if err := applyToCell(f, interner, op, cell); err != nil {
				return Summary{}, fmt.Errorf("style op %d cell %s: %w", i, cell, err)
			}
		}
		summary.CellsTouched += len(resolved[i])
	}
	return summary, nil
}

// resolveTarget expands an op's target to a deduplicated, ordered cell set.
func resolveTarget(f *excelize.File, op Op) ([]string, error) {
	idx, err := f.GetSheetIndex(op.Sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q: %w", op.Sheet, ErrConflictingTarget)
	}

	seen := make(map[string]struct{})
	var cells []string
	add := func(cell string) {
		if _, ok := seen[cell]; ok {
			return
		}
		seen[cell] = struct{}{}
		cells = append(cells, cell)
	}

	for _, cell := range op.Cells {
		col, row, err := excelize.CellNameToCoordinates(cell)
		if err != nil {
			return nil, fmt.Errorf("cell %q: %w", cell, ErrConflictingTarget)
		}
		normalized, _ := excelize.CoordinatesToCellName(col, row)
		add(normalized)
	}

	if op.Range != "" {
		parts := strings.SplitN(op.Range, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("range %q: %w", op.Range, ErrConflictingTarget)
		}
		c1, r1, err := excelize.CellNameToCoordinates(parts[0])
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", op.Range, ErrConflictingTarget)
		}
		c2, r2, err := excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", op.Range, ErrConflictingTarget)
		}
		if c2 < c1 {
			c1, c2 = c2, c1
		}
		if r2 < r1 {
			r1, r2 = r2, r1
		}
		for row := r1; row <= r2; row++ {
			for col := c1; col <= c2; col++ {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				add(cell)
			}
		}
	}

	if len(cells) == 0 {
		return nil, ErrConflictingTarget
	}
	return cells, nil
}

func applyToCell(f *excelize.File, in *interner, op Op, cell string) error {
	currentID, err := f.GetCellStyle(op.Sheet, cell)
	if err != nil {
		return err
	}
	current, err := f.GetStyle(currentID)
	if err != nil {
		return err
	}
	if current == nil {
		current = &excelize.Style{}
	}

	var next *excelize.Style
	switch op.Mode {
	case ModeSet:
		next = applyPatch(&excelize.Style{}, op.Patch)
	case ModeMerge, "":
		next = applyPatch(current, op.Patch)
	default:
		return fmt.Errorf("unknown style mode %q", op.Mode)
	}

	// Identical content keeps the current id so later changesets stay
	// quiet for this cell.
	if canonical(next) == canonical(current) {
		return nil
	}

	id, err := in.intern(next)
	if err != nil {
		return err
	}
	return f.SetCellStyle(op.Sheet, cell, cell, id)
}

// applyPatch combines a sparse patch onto a base style, returning a copy.
func applyPatch(base *excelize.Style, patch Patch) *excelize.Style {
	out := *base

	if patch.Font != nil {
		font := excelize.Font{}
		if out.Font != nil {
			font = *out.Font
		}
		if patch.Font.Bold != nil {
			font.Bold = *patch.Font.Bold
		}
		if patch.Font.Italic != nil {
			font.Italic = *patch.Font.Italic
		}
		if patch.Font.Size != nil {
			font.Size = *patch.Font.Size
		}
		if patch.Font.Color != nil {
			font.Color = *patch.Font.Color
		}
		out.Font = &font
	}

	if patch.Fill != nil {
		fill := out.Fill
		fill.Type = "pattern"
		if patch.Fill.Pattern != nil {
			fill.Pattern = *patch.Fill.Pattern
		} else if fill.Pattern == 0 {
			fill.Pattern = 1 // solid
		}
		if patch.Fill.Color != nil {
			fill.Color = []string{*patch.Fill.Color}
		}
		out.Fill = fill
	}

	if patch.Alignment != nil {
		align := excelize.Alignment{}
		if out.Alignment != nil {
			align = *out.Alignment
		}
		if patch.Alignment.Horizontal != nil {
			align.Horizontal = *patch.Alignment.Horizontal
		}
		if patch.Alignment.Vertical != nil {
			align.Vertical = *patch.Alignment.Vertical
		}
		if patch.Alignment.WrapText != nil {
			align.WrapText = *patch.Alignment.WrapText
		}
		out.Alignment = &align
	}

	if patch.NumFmt != nil {
		out.NumFmt = *patch.NumFmt
	}

	return &out
}

// interner maps canonical style content to a workbook style id, so that
// repeated patches never create duplicate records within a batch.
type interner struct {
	f   *excelize.File
	ids map[string]int
}

func newInterner(f *excelize.File) *interner {
	return &interner{f: f, ids: make(map[string]int)}
}

func (in *interner) intern(s *excelize.Style) (int, error) {
	key := canonical(s)
	if id, ok := in.ids[key]; ok {
		return id, nil
	}
	id, err := in.f.NewStyle(s)
	if err != nil {
		return 0, err
	}
	in.ids[key] = id
	return id, nil
}

// canonical renders style content as a stable content-address key.
func canonical(s *excelize.Style) string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", s)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
