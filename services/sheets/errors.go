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
	"github.com/AleutianAI/AleutianSheets/services/sheets/checkpoint"
	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/AleutianAI/AleutianSheets/services/sheets/forkstore"
	"github.com/AleutianAI/AleutianSheets/services/sheets/formula"
	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

// Sentinel errors of the sheets service, re-exported from the packages
// that own them so handlers and callers match on one import.
var (
	// ErrForkNotFound indicates an unknown or discarded fork id.
	ErrForkNotFound = forkstore.ErrForkNotFound

	// ErrStagedChangeNotFound indicates an unknown staged-change id.
	ErrStagedChangeNotFound = forkstore.ErrStagedChangeNotFound

	// ErrInvalidReference indicates a malformed sheet name or cell
	// reference in a requested edit.
	ErrInvalidReference = forkstore.ErrInvalidReference

	// ErrCheckpointNotFound indicates an unknown checkpoint id.
	ErrCheckpointNotFound = checkpoint.ErrCheckpointNotFound

	// ErrSheetNotFound indicates an unresolvable sheet name.
	ErrSheetNotFound = document.ErrSheetNotFound

	// ErrConflictingTarget indicates a style target resolving to zero cells.
	ErrConflictingTarget = style.ErrConflictingTarget

	// ErrBeforeA1 indicates a shift that would move a reference before
	// column 1 or row 1.
	ErrBeforeA1 = formula.ErrBeforeA1
)
