// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forkstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianSheets/pkg/validation"
	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/AleutianAI/AleutianSheets/services/sheets/formula"
	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

// ApplyResult summarizes one committed mutation of a fork.
type ApplyResult struct {
	ChangeID     string `json:"change_id,omitempty"`
	EditsApplied int    `json:"edits_applied"`
	CellsTouched int    `json:"cells_touched"`
}

// ApplyEdits commits a batch of cell edits directly, bypassing the
// staged log. All-or-nothing: on any failure the fork's workbook and
// edit log are unchanged.
func (s *Store) ApplyEdits(ctx context.Context, forkID string, edits []CellEdit) (ApplyResult, error) {
	ops := []StagedOp{{Kind: OpEditBatch, EditBatch: &EditBatch{Edits: edits}}}

	var result ApplyResult
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		var err error
		result, err = s.applyOps(ctx, f, ops)
		return err
	})
	return result, err
}

// ApplyStyleBatch commits a batch of style ops directly. Style changes
// do not produce edit-log entries; only cell content edits do.
func (s *Store) ApplyStyleBatch(ctx context.Context, forkID string, ops []style.Op) (style.Summary, error) {
	staged := []StagedOp{{Kind: OpStyleBatch, StyleBatch: ops}}

	var summary style.Summary
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		result, err := s.applyOps(ctx, f, staged)
		if err != nil {
			return err
		}
		summary = style.Summary{CellsTouched: result.CellsTouched}
		return nil
	})
	return summary, err
}

// ApplyFormulaPattern shifts an anchor formula onto each target cell and
// commits the filled formulas.
func (s *Store) ApplyFormulaPattern(ctx context.Context, forkID string, pattern FormulaPattern) (ApplyResult, error) {
	ops := []StagedOp{{Kind: OpFormulaPattern, FormulaPattern: &pattern}}

	var result ApplyResult
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		var err error
		result, err = s.applyOps(ctx, f, ops)
		return err
	})
	return result, err
}

// ApplyStagedChange executes a staged change against the fork's
// committed content, appends the resulting edit ops, and removes the
// entry from the staged log.
//
// Description:
//
//	The change's ops run against a scratch copy of the workbook that
//	replaces the fork copy only after every op succeeded, so a failing
//	op leaves both the workbook and the staged log untouched.
//
// Inputs:
//
//	ctx - Cancellation; honored between ops.
//	forkID - Fork holding the staged change.
//	changeID - Staged change to apply.
//
// Outputs:
//
//	ApplyResult - Edit and cell counts for the committed change.
//	error - ErrForkNotFound, ErrStagedChangeNotFound, or apply failures.
func (s *Store) ApplyStagedChange(ctx context.Context, forkID, changeID string) (ApplyResult, error) {
	var result ApplyResult
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		idx := -1
		for i, change := range f.Staged {
			if change.ID == changeID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("staged change %s on fork %s: %w",
				changeID, forkID, ErrStagedChangeNotFound)
		}

		applied, err := s.applyOps(ctx, f, f.Staged[idx].Ops)
		if err != nil {
			return err
		}

		f.Staged = append(f.Staged[:idx], f.Staged[idx+1:]...)
		result = applied
		result.ChangeID = changeID

		s.logger.Info("applied staged change",
			"fork_id", forkID,
			"change_id", changeID,
			"edits_applied", result.EditsApplied,
			"cells_touched", result.CellsTouched)
		return nil
	})
	return result, err
}

// applyOps runs a closed set of op kinds against a scratch copy of the
// fork workbook, swaps the copy in on success, and appends the edit ops.
// Must be called while the fork is held.
func (s *Store) applyOps(ctx context.Context, f *Fork, ops []StagedOp) (ApplyResult, error) {
	scratch := filepath.Join(f.Dir, "apply.tmp"+filepath.Ext(f.Path))
	if err := document.CopyFile(f.Path, scratch); err != nil {
		return ApplyResult{}, err
	}
	defer os.Remove(scratch)

	doc, err := document.OpenEditable(scratch)
	if err != nil {
		return ApplyResult{}, err
	}

	var pending []EditOp
	var result ApplyResult
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			doc.Close()
			return ApplyResult{}, err
		}

		switch op.Kind {
		case OpEditBatch:
			var batch EditBatch
			if op.EditBatch != nil {
				batch = *op.EditBatch
			}
			committed, err := applyEditBatch(doc, batch)
			if err != nil {
				doc.Close()
				return ApplyResult{}, err
			}
			pending = append(pending, committed...)
			result.EditsApplied += len(committed)
			result.CellsTouched += len(committed)

		case OpStyleBatch:
			summary, err := style.ApplyBatch(ctx, doc.File(), op.StyleBatch)
			if err != nil {
				doc.Close()
				return ApplyResult{}, err
			}
			result.CellsTouched += summary.CellsTouched

		case OpFormulaPattern:
			var pattern FormulaPattern
			if op.FormulaPattern != nil {
				pattern = *op.FormulaPattern
			}
			committed, err := applyFormulaPattern(doc, pattern)
			if err != nil {
				doc.Close()
				return ApplyResult{}, err
			}
			pending = append(pending, committed...)
			result.EditsApplied += len(committed)
			result.CellsTouched += len(committed)

		default:
			doc.Close()
			return ApplyResult{}, fmt.Errorf("unknown staged op kind %q", op.Kind)
		}
	}

	if err := doc.Save(); err != nil {
		doc.Close()
		return ApplyResult{}, err
	}
	if err := doc.Close(); err != nil {
		return ApplyResult{}, err
	}

	if err := os.Rename(scratch, f.Path); err != nil {
		return ApplyResult{}, &document.IOError{Op: "rename", Path: f.Path, Err: err}
	}
	// Rename replaces the watched inode.
	if s.watcher != nil {
		s.watcher.watch(f)
	}

	for _, op := range pending {
		op.Timestamp = f.NextStamp()
		f.Edits = append(f.Edits, op)
	}
	return result, nil
}

// applyEditBatch writes each edit to the open workbook and returns the
// edit ops to commit, timestamps unset.
func applyEditBatch(doc *document.Editable, batch EditBatch) ([]EditOp, error) {
	ops := make([]EditOp, 0, len(batch.Edits))
	for _, edit := range batch.Edits {
		if err := validation.ValidateSheetName(edit.Sheet); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		if err := validation.ValidateCellRef(edit.Cell); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		if edit.IsFormula {
			if err := doc.SetFormula(edit.Sheet, edit.Cell, edit.Value); err != nil {
				return nil, err
			}
		} else {
			if err := doc.SetValue(edit.Sheet, edit.Cell, parseScalar(edit.Value)); err != nil {
				return nil, err
			}
		}
		ops = append(ops, EditOp{
			Sheet:     edit.Sheet,
			Cell:      edit.Cell,
			Value:     edit.Value,
			IsFormula: edit.IsFormula,
		})
	}
	return ops, nil
}

// applyFormulaPattern fills the pattern's anchor formula across its
// targets and writes each shifted formula.
func applyFormulaPattern(doc *document.Editable, pattern FormulaPattern) ([]EditOp, error) {
	if err := validation.ValidateSheetName(pattern.Sheet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	mode := formula.ModeExcel
	if pattern.Mode != "" {
		var err error
		mode, err = formula.ParseRelativeMode(pattern.Mode)
		if err != nil {
			return nil, err
		}
	}

	filled, err := formula.FillPattern(pattern.Formula, pattern.Anchor, pattern.Targets, mode)
	if err != nil {
		return nil, err
	}

	ops := make([]EditOp, 0, len(pattern.Targets))
	for _, target := range pattern.Targets {
		text := filled[target]
		if err := doc.SetFormula(pattern.Sheet, target, text); err != nil {
			return nil, err
		}
		ops = append(ops, EditOp{
			Sheet:     pattern.Sheet,
			Cell:      target,
			Value:     text,
			IsFormula: true,
		})
	}
	return ops, nil
}

// parseScalar converts a raw cell value string to the most specific
// scalar type so numbers land as numbers in the sheet.
func parseScalar(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(trimmed); err == nil {
		return b
	}
	return raw
}
