// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sheets provides the workbook versioning HTTP service.
//
// The service exposes endpoints for:
//   - Forking base workbooks and discarding forks
//   - Staging, listing and applying batches of cell/style/formula edits
//   - Creating, listing and restoring checkpoints
//   - Shifting formulas and computing changesets between workbook states
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianSheets/services/sheets/checkpoint"
	"github.com/AleutianAI/AleutianSheets/services/sheets/diff"
	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
	"github.com/AleutianAI/AleutianSheets/services/sheets/forkstore"
	"github.com/AleutianAI/AleutianSheets/services/sheets/formula"
	"github.com/AleutianAI/AleutianSheets/services/sheets/style"
)

// ServiceVersion is the sheets service version.
const ServiceVersion = "0.1.0"

// ServiceConfig configures the sheets service.
type ServiceConfig struct {
	// Workspace is the directory holding fork copies and checkpoints.
	// Required.
	Workspace string

	// StagedCapacity bounds the per-fork staged-change log.
	// Default: forkstore.DefaultStagedCapacity.
	StagedCapacity int

	// PruneBoundary selects restore-time pruning at the cutoff instant:
	// "inclusive" keeps entries stamped exactly at the checkpoint,
	// "exclusive" drops them.
	// Default: "inclusive".
	PruneBoundary string

	// WatchForks enables out-of-band modification detection on fork
	// copies.
	// Default: false.
	WatchForks bool

	// Logger for service events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns sensible defaults. Workspace must still
// be set by the caller.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		StagedCapacity: forkstore.DefaultStagedCapacity,
		PruneBoundary:  "inclusive",
	}
}

// Service is the sheets service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Operations on different forks
//	proceed in parallel; operations on one fork are serialized by the
//	fork store.
type Service struct {
	config      ServiceConfig
	logger      *slog.Logger
	store       *forkstore.Store
	checkpoints *checkpoint.Manager
	differ      *diff.Engine
}

// NewService creates a sheets service rooted at the configured
// workspace.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "sheets.Service")

	var boundary checkpoint.PruneBoundary
	switch config.PruneBoundary {
	case "", "inclusive":
		boundary = checkpoint.BoundaryInclusive
	case "exclusive":
		boundary = checkpoint.BoundaryExclusive
	default:
		return nil, fmt.Errorf("unknown prune boundary %q", config.PruneBoundary)
	}

	store, err := forkstore.NewStore(forkstore.StoreConfig{
		Workspace:      config.Workspace,
		StagedCapacity: config.StagedCapacity,
		WatchForks:     config.WatchForks,
		Logger:         config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fork store: %w", err)
	}

	return &Service{
		config:      config,
		logger:      logger,
		store:       store,
		checkpoints: checkpoint.NewManager(store, checkpoint.Config{Boundary: boundary, Logger: config.Logger}),
		differ:      diff.NewEngine(config.Logger),
	}, nil
}

// Close releases the service's background resources. Fork files stay on
// disk.
func (s *Service) Close() error {
	return s.store.Close()
}

// CreateFork opens a new fork of a base workbook.
func (s *Service) CreateFork(ctx context.Context, basePath string) (forkstore.ForkInfo, error) {
	ctx, span := startOpSpan(ctx, "CreateFork")
	defer span.End()
	start := time.Now()

	forkID, err := s.store.CreateFork(ctx, basePath)
	if err != nil {
		recordOpMetrics(ctx, "CreateFork", start, err)
		return forkstore.ForkInfo{}, err
	}
	info, err := s.store.Info(ctx, forkID)
	recordOpMetrics(ctx, "CreateFork", start, err)
	return info, err
}

// DiscardFork removes a fork's files and logs. Terminal.
func (s *Service) DiscardFork(ctx context.Context, forkID string) error {
	ctx, span := startOpSpan(ctx, "DiscardFork")
	defer span.End()
	start := time.Now()

	err := s.store.DiscardFork(ctx, forkID)
	recordOpMetrics(ctx, "DiscardFork", start, err)
	return err
}

// GetFork returns one fork's info.
func (s *Service) GetFork(ctx context.Context, forkID string) (forkstore.ForkInfo, error) {
	return s.store.Info(ctx, forkID)
}

// ListForks returns every live fork, ordered by creation time.
func (s *Service) ListForks(ctx context.Context) ([]forkstore.ForkInfo, error) {
	return s.store.List(ctx)
}

// ApplyEdits commits a batch of cell edits to a fork.
func (s *Service) ApplyEdits(ctx context.Context, forkID string, edits []forkstore.CellEdit) (forkstore.ApplyResult, error) {
	ctx, span := startOpSpan(ctx, "ApplyEdits")
	defer span.End()
	start := time.Now()

	result, err := s.store.ApplyEdits(ctx, forkID, edits)
	recordOpMetrics(ctx, "ApplyEdits", start, err)
	if err == nil {
		recordCellsTouched(ctx, "ApplyEdits", result.CellsTouched)
	}
	return result, err
}

// StageChange stages a named bundle of pending ops on a fork.
func (s *Service) StageChange(ctx context.Context, forkID, label string, ops []forkstore.StagedOp) (forkstore.StagedChange, error) {
	ctx, span := startOpSpan(ctx, "StageChange")
	defer span.End()
	start := time.Now()

	change, err := s.store.AddStagedChange(ctx, forkID, label, ops)
	recordOpMetrics(ctx, "StageChange", start, err)
	return change, err
}

// ListStagedChanges returns a fork's staged log, oldest first.
func (s *Service) ListStagedChanges(ctx context.Context, forkID string) ([]forkstore.StagedChange, error) {
	return s.store.ListStagedChanges(ctx, forkID)
}

// ApplyStagedChange commits a staged change and removes it from the log.
func (s *Service) ApplyStagedChange(ctx context.Context, forkID, changeID string) (forkstore.ApplyResult, error) {
	ctx, span := startOpSpan(ctx, "ApplyStagedChange")
	defer span.End()
	start := time.Now()

	result, err := s.store.ApplyStagedChange(ctx, forkID, changeID)
	recordOpMetrics(ctx, "ApplyStagedChange", start, err)
	if err == nil {
		recordCellsTouched(ctx, "ApplyStagedChange", result.CellsTouched)
	}
	return result, err
}

// ApplyStyleBatch applies style ops to a fork's workbook.
func (s *Service) ApplyStyleBatch(ctx context.Context, forkID string, ops []style.Op) (style.Summary, error) {
	ctx, span := startOpSpan(ctx, "ApplyStyleBatch")
	defer span.End()
	start := time.Now()

	summary, err := s.store.ApplyStyleBatch(ctx, forkID, ops)
	recordOpMetrics(ctx, "ApplyStyleBatch", start, err)
	if err == nil {
		recordCellsTouched(ctx, "ApplyStyleBatch", summary.CellsTouched)
	}
	return summary, err
}

// CreateCheckpoint snapshots a fork's current content.
func (s *Service) CreateCheckpoint(ctx context.Context, forkID, label string) (forkstore.Checkpoint, error) {
	ctx, span := startOpSpan(ctx, "CreateCheckpoint")
	defer span.End()
	start := time.Now()

	cp, err := s.checkpoints.Create(ctx, forkID, label)
	recordOpMetrics(ctx, "CreateCheckpoint", start, err)
	return cp, err
}

// ListCheckpoints returns a fork's checkpoints, oldest first.
func (s *Service) ListCheckpoints(ctx context.Context, forkID string) ([]forkstore.Checkpoint, error) {
	return s.checkpoints.List(ctx, forkID)
}

// RestoreCheckpoint rolls a fork back to a checkpoint.
func (s *Service) RestoreCheckpoint(ctx context.Context, forkID, checkpointID string) error {
	ctx, span := startOpSpan(ctx, "RestoreCheckpoint")
	defer span.End()
	start := time.Now()

	err := s.checkpoints.Restore(ctx, forkID, checkpointID)
	recordOpMetrics(ctx, "RestoreCheckpoint", start, err)
	return err
}

// ShiftFormula shifts a formula's references by a column and row delta.
func (s *Service) ShiftFormula(formulaText string, colDelta, rowDelta int, mode string) (string, error) {
	relMode := formula.ModeExcel
	if mode != "" {
		var err error
		relMode, err = formula.ParseRelativeMode(mode)
		if err != nil {
			return "", err
		}
	}
	return formula.ShiftFormula(formulaText, colDelta, rowDelta, relMode)
}

// FillFormulaPattern shifts an anchor formula onto each target cell.
func (s *Service) FillFormulaPattern(formulaText, anchor string, targets []string, mode string) (map[string]string, error) {
	relMode := formula.ModeExcel
	if mode != "" {
		var err error
		relMode, err = formula.ParseRelativeMode(mode)
		if err != nil {
			return nil, err
		}
	}
	return formula.FillPattern(formulaText, anchor, targets, relMode)
}

// ComputeChangeset compares two workbook files and returns the ordered
// changes from A to B.
func (s *Service) ComputeChangeset(ctx context.Context, pathA, pathB, sheet string) ([]diff.Change, error) {
	ctx, span := startOpSpan(ctx, "ComputeChangeset")
	defer span.End()
	start := time.Now()

	changes, err := s.computeChangeset(ctx, pathA, pathB, sheet)
	recordOpMetrics(ctx, "ComputeChangeset", start, err)
	return changes, err
}

func (s *Service) computeChangeset(ctx context.Context, pathA, pathB, sheet string) ([]diff.Change, error) {
	stateA, err := document.Snapshot(pathA, sheet)
	if err != nil {
		return nil, fmt.Errorf("state A: %w", err)
	}
	stateB, err := document.Snapshot(pathB, sheet)
	if err != nil {
		return nil, fmt.Errorf("state B: %w", err)
	}
	return s.differ.Changeset(ctx, stateA, stateB, sheet)
}

// ForkChangeset compares a fork's base workbook against its current
// content.
func (s *Service) ForkChangeset(ctx context.Context, forkID, sheet string) ([]diff.Change, error) {
	ctx, span := startOpSpan(ctx, "ForkChangeset")
	defer span.End()
	start := time.Now()

	info, err := s.store.Info(ctx, forkID)
	if err != nil {
		recordOpMetrics(ctx, "ForkChangeset", start, err)
		return nil, err
	}
	changes, err := s.computeChangeset(ctx, info.BasePath, info.Path, sheet)
	recordOpMetrics(ctx, "ForkChangeset", start, err)
	return changes, err
}
