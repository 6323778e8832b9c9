// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sheets

import (
	"github.com/AleutianAI/AleutianSheets/services/sheets/diff"
	"github.com/AleutianAI/AleutianSheets/services/sheets/forkstore"
	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// CreateForkRequest opens a new fork of a base workbook.
type CreateForkRequest struct {
	BasePath string `json:"base_path" binding:"required"`
}

// ForkResponse describes one fork.
type ForkResponse struct {
	Fork forkstore.ForkInfo `json:"fork"`
}

// ForkListResponse lists every live fork.
type ForkListResponse struct {
	Forks []forkstore.ForkInfo `json:"forks"`
}

// ApplyEditsRequest commits a batch of cell edits to a fork.
type ApplyEditsRequest struct {
	Edits []forkstore.CellEdit `json:"edits" binding:"required"`
}

// ApplyResponse reports a committed mutation.
type ApplyResponse struct {
	Result forkstore.ApplyResult `json:"result"`
}

// StageChangeRequest stages a named bundle of pending ops on a fork.
type StageChangeRequest struct {
	Label string               `json:"label"`
	Ops   []forkstore.StagedOp `json:"ops" binding:"required"`
}

// StagedChangeResponse describes one staged change.
type StagedChangeResponse struct {
	Change forkstore.StagedChange `json:"change"`
}

// StagedChangeListResponse lists a fork's staged log, oldest first.
type StagedChangeListResponse struct {
	Changes []forkstore.StagedChange `json:"changes"`
}

// CheckpointRequest creates a checkpoint on a fork.
type CheckpointRequest struct {
	Label string `json:"label"`
}

// CheckpointResponse describes one checkpoint.
type CheckpointResponse struct {
	Checkpoint forkstore.Checkpoint `json:"checkpoint"`
}

// CheckpointListResponse lists a fork's checkpoints, oldest first.
type CheckpointListResponse struct {
	Checkpoints []forkstore.Checkpoint `json:"checkpoints"`
}

// ShiftFormulaRequest shifts one formula's references.
type ShiftFormulaRequest struct {
	Formula  string `json:"formula" binding:"required"`
	ColDelta int    `json:"col_delta"`
	RowDelta int    `json:"row_delta"`
	Mode     string `json:"mode"` // excel | abs_cols | abs_rows
}

// ShiftFormulaResponse carries the shifted formula text.
type ShiftFormulaResponse struct {
	Formula string `json:"formula"`
}

// FillPatternRequest shifts an anchor formula onto each target cell.
type FillPatternRequest struct {
	Formula string   `json:"formula" binding:"required"`
	Anchor  string   `json:"anchor" binding:"required"`
	Targets []string `json:"targets" binding:"required"`
	Mode    string   `json:"mode"`
}

// FillPatternResponse maps each target cell to its filled formula.
type FillPatternResponse struct {
	Formulas map[string]string `json:"formulas"`
}

// ChangesetRequest compares two workbook files.
type ChangesetRequest struct {
	PathA string `json:"path_a" binding:"required"`
	PathB string `json:"path_b" binding:"required"`
	Sheet string `json:"sheet"`
}

// ChangesetResponse is the ordered changeset between two states.
type ChangesetResponse struct {
	Changes []diff.Change `json:"changes"`
}

// StyleBatchRequest applies style ops to a fork.
type StyleBatchRequest struct {
	Ops []style.Op `json:"ops" binding:"required"`
}

// StyleBatchResponse reports the touched-cell count.
type StyleBatchResponse struct {
	Summary style.Summary `json:"summary"`
}
