// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint snapshots fork workbooks and rolls them back.
// A checkpoint is a frozen copy of the fork's private workbook plus the
// timestamp cutoff used to prune the edit and staged logs on restore.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/AleutianAI/AleutianSheets/services/sheets/forkstore"
)

// ErrCheckpointNotFound indicates an unknown checkpoint id on a fork.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// PruneBoundary decides what happens to log entries stamped exactly at
// the restored checkpoint's creation time.
type PruneBoundary int

const (
	// BoundaryInclusive keeps entries stamped at the cutoff. Default.
	BoundaryInclusive PruneBoundary = iota

	// BoundaryExclusive drops entries stamped at the cutoff.
	BoundaryExclusive
)

// Config configures a Manager.
type Config struct {
	// Boundary for restore-time log pruning.
	// Default: BoundaryInclusive.
	Boundary PruneBoundary

	// Logger for checkpoint events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Manager creates, lists and restores checkpoints on a fork store.
type Manager struct {
	store    *forkstore.Store
	boundary PruneBoundary
	logger   *slog.Logger
}

// NewManager creates a checkpoint manager over a fork store.
func NewManager(store *forkstore.Store, config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		boundary: config.Boundary,
		logger:   logger.With("component", "checkpoint.Manager"),
	}
}

// Create snapshots the fork's current workbook into a new checkpoint.
//
// Description:
//
//	The snapshot lives under the fork's own directory and is immutable;
//	its creation time comes from the fork's logical clock, so it orders
//	totally against every edit and staged change on the fork.
//
// Inputs:
//
//	ctx - Cancellation; cancels waiting for the fork.
//	forkID - Fork to snapshot.
//	label - Optional display label. Labels need not be unique.
//
// Outputs:
//
//	forkstore.Checkpoint - The created checkpoint.
//	error - forkstore.ErrForkNotFound or copy failures.
func (m *Manager) Create(ctx context.Context, forkID, label string) (forkstore.Checkpoint, error) {
	var cp forkstore.Checkpoint
	err := m.store.WithForkMut(ctx, forkID, func(f *forkstore.Fork) error {
		id := uuid.NewString()
		path := filepath.Join(f.Dir, "checkpoints", id+filepath.Ext(f.Path))

		if err := document.CopyFile(f.Path, path); err != nil {
			return err
		}

		cp = forkstore.Checkpoint{
			ID:        id,
			CreatedAt: f.NextStamp(),
			Label:     label,
			Path:      path,
		}
		f.Checkpoints = append(f.Checkpoints, cp)

		m.logger.Info("created checkpoint",
			"fork_id", forkID,
			"checkpoint_id", id,
			"label", label)
		return nil
	})
	return cp, err
}

// List returns the fork's checkpoints, oldest to newest.
func (m *Manager) List(ctx context.Context, forkID string) ([]forkstore.Checkpoint, error) {
	var out []forkstore.Checkpoint
	err := m.store.WithForkMut(ctx, forkID, func(f *forkstore.Fork) error {
		out = make([]forkstore.Checkpoint, len(f.Checkpoints))
		copy(out, f.Checkpoints)
		return nil
	})
	return out, err
}

// Restore rolls the fork's workbook back to a checkpoint's snapshot and
// prunes edit ops and staged changes stamped after it.
//
// Description:
//
//	The snapshot replaces the fork copy through a temp file and rename,
//	so a failed restore leaves the previous content intact. Entries
//	stamped exactly at the checkpoint's creation time follow the
//	manager's PruneBoundary. Restoring the same checkpoint twice is a
//	no-op the second time.
//
// Inputs:
//
//	ctx - Cancellation; cancels waiting for the fork.
//	forkID - Fork to roll back.
//	checkpointID - Checkpoint to restore. Checkpoints survive restores.
//
// Outputs:
//
//	error - forkstore.ErrForkNotFound, ErrCheckpointNotFound, or I/O
//	failures swapping the workbook.
func (m *Manager) Restore(ctx context.Context, forkID, checkpointID string) error {
	return m.store.WithForkMut(ctx, forkID, func(f *forkstore.Fork) error {
		var cp *forkstore.Checkpoint
		for i := range f.Checkpoints {
			if f.Checkpoints[i].ID == checkpointID {
				cp = &f.Checkpoints[i]
				break
			}
		}
		if cp == nil {
			return fmt.Errorf("checkpoint %s on fork %s: %w",
				checkpointID, forkID, ErrCheckpointNotFound)
		}

		if err := m.store.SwapWorkbook(f, cp.Path); err != nil {
			return err
		}

		cutoff := cp.CreatedAt
		edits := f.Edits[:0]
		for _, op := range f.Edits {
			if m.keep(op.Timestamp, cutoff) {
				edits = append(edits, op)
			}
		}
		pruned := len(f.Edits) - len(edits)
		f.Edits = edits

		staged := f.Staged[:0]
		for _, change := range f.Staged {
			if m.keep(change.CreatedAt, cutoff) {
				staged = append(staged, change)
			}
		}
		pruned += len(f.Staged) - len(staged)
		f.Staged = staged

		m.logger.Info("restored checkpoint",
			"fork_id", forkID,
			"checkpoint_id", checkpointID,
			"pruned_entries", pruned)
		return nil
	})
}

// keep reports whether a log entry stamped at ts survives a restore
// with the given cutoff.
func (m *Manager) keep(ts, cutoff time.Time) bool {
	if ts.Before(cutoff) {
		return true
	}
	return ts.Equal(cutoff) && m.boundary == BoundaryInclusive
}
