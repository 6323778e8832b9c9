// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forkstore owns the registry of document forks: each fork is an
// isolated on-disk copy of a base workbook plus an ordered edit log, a
// bounded staged-change log, and a checkpoint list.
package forkstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

// OpKind tags a staged operation payload. The set is closed; apply-time
// dispatch switches over it exhaustively.
type OpKind string

const (
	OpEditBatch      OpKind = "edit_batch"
	OpStyleBatch     OpKind = "style_batch"
	OpFormulaPattern OpKind = "formula_pattern"
)

// CellEdit is one pending cell mutation inside an edit batch.
type CellEdit struct {
	Sheet     string `json:"sheet"`
	Cell      string `json:"cell"`
	Value     string `json:"value"`
	IsFormula bool   `json:"is_formula"`
}

// EditBatch is an ordered list of cell edits applied as one unit.
type EditBatch struct {
	Edits []CellEdit `json:"edits"`
}

// FormulaPattern fills an anchor formula across target cells, shifting
// references by each target's offset from the anchor.
type FormulaPattern struct {
	Sheet   string   `json:"sheet"`
	Anchor  string   `json:"anchor"`
	Formula string   `json:"formula"`
	Targets []string `json:"targets"`
	Mode    string   `json:"mode,omitempty"` // excel | abs_cols | abs_rows
}

// StagedOp is one tagged unit of pending work inside a staged change.
// Exactly the payload matching Kind is non-nil.
type StagedOp struct {
	Kind           OpKind          `json:"kind"`
	EditBatch      *EditBatch      `json:"edit_batch,omitempty"`
	StyleBatch     []style.Op      `json:"style_batch,omitempty"`
	FormulaPattern *FormulaPattern `json:"formula_pattern,omitempty"`
}

// StagedChange is a named, not-yet-committed bundle of pending ops.
// Staging never mutates the fork's committed content.
type StagedChange struct {
	ID        string     `json:"change_id"`
	CreatedAt time.Time  `json:"created_at"`
	Label     string     `json:"label,omitempty"`
	Ops       []StagedOp `json:"ops"`
	Summary   string     `json:"summary"`
}

// EditOp is one committed cell mutation. Immutable once appended;
// ordering is by Timestamp, which is strictly increasing per fork.
type EditOp struct {
	Timestamp time.Time `json:"timestamp"`
	Sheet     string    `json:"sheet"`
	Cell      string    `json:"cell"`
	Value     string    `json:"value"`
	IsFormula bool      `json:"is_formula"`
}

// Checkpoint marks a restorable point-in-time snapshot of a fork.
// Immutable once created; released when the fork is discarded.
type Checkpoint struct {
	ID        string    `json:"checkpoint_id"`
	CreatedAt time.Time `json:"created_at"`
	Label     string    `json:"label,omitempty"`
	Path      string    `json:"-"`
}

// Fork is one isolated working copy. All fields are owned by the store:
// read or written only inside WithForkMut or under the registry lock.
type Fork struct {
	ID        string
	BasePath  string
	Path      string // private workbook copy
	Dir       string // fork-scoped directory inside the workspace
	CreatedAt time.Time

	Edits       []EditOp
	Staged      []StagedChange
	Checkpoints []Checkpoint

	// ExternallyModified flags an out-of-band write to the private copy
	// observed by the workspace watcher. Advisory only.
	ExternallyModified bool

	sem       chan struct{} // capacity 1; held for the duration of WithForkMut
	discarded bool
	lastStamp time.Time
}

// NextStamp returns a timestamp strictly greater than every timestamp
// previously issued for this fork. Wall clock when it advances, last+1ns
// when it does not; checkpoint-restore pruning depends on this total order.
//
// Must be called while the fork is held via WithForkMut.
func (f *Fork) NextStamp() time.Time {
	now := time.Now()
	if !now.After(f.lastStamp) {
		now = f.lastStamp.Add(time.Nanosecond)
	}
	f.lastStamp = now
	return now
}

func summarizeOps(ops []StagedOp) string {
	if len(ops) == 0 {
		return "empty change"
	}
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case OpEditBatch:
			n := 0
			if op.EditBatch != nil {
				n = len(op.EditBatch.Edits)
			}
			parts = append(parts, fmt.Sprintf("edit_batch(%d)", n))
		case OpStyleBatch:
			parts = append(parts, fmt.Sprintf("style_batch(%d)", len(op.StyleBatch)))
		case OpFormulaPattern:
			n := 0
			if op.FormulaPattern != nil {
				n = len(op.FormulaPattern.Targets)
			}
			parts = append(parts, fmt.Sprintf("formula_pattern(%d)", n))
		default:
			parts = append(parts, string(op.Kind))
		}
	}
	return fmt.Sprintf("%d op(s): %s", len(ops), strings.Join(parts, ", "))
}
