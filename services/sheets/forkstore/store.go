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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSheets/services/sheets/document"
)

// Sentinel errors for the fork store.
var (
	// ErrForkNotFound indicates an unknown or already discarded fork id.
	ErrForkNotFound = errors.New("fork not found")

	// ErrStagedChangeNotFound indicates an unknown staged-change id.
	ErrStagedChangeNotFound = errors.New("staged change not found")

	// ErrInvalidReference indicates a malformed sheet name or cell
	// reference in a requested edit.
	ErrInvalidReference = errors.New("invalid reference")
)

// DefaultStagedCapacity bounds the staged-change log per fork; insertion
// beyond capacity evicts the oldest entries first.
const DefaultStagedCapacity = 20

// StoreConfig configures a Store.
type StoreConfig struct {
	// Workspace is the directory holding every fork's private copy,
	// checkpoints and scratch files. Required.
	Workspace string

	// StagedCapacity bounds the per-fork staged-change log.
	// Default: DefaultStagedCapacity.
	StagedCapacity int

	// WatchForks enables an fsnotify watcher that flags forks whose
	// private copy is modified out-of-band.
	// Default: false.
	WatchForks bool

	// Logger for store events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Store is the registry of live forks.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. The registry map is
// guarded by one mutex held only for lookups, insertions and removals;
// mutation of a fork's content is serialized per fork id through
// WithForkMut, so operations on different forks never block each other.
type Store struct {
	workspace string
	capacity  int
	logger    *slog.Logger

	mu    sync.Mutex
	forks map[string]*Fork

	watcher *forkWatcher
}

// NewStore creates a fork store rooted at a workspace directory.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	if config.StagedCapacity <= 0 {
		config.StagedCapacity = DefaultStagedCapacity
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(config.Workspace, "forks"), 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", config.Workspace, err)
	}

	s := &Store{
		workspace: config.Workspace,
		capacity:  config.StagedCapacity,
		logger:    config.Logger.With("component", "forkstore.Store"),
		forks:     make(map[string]*Fork),
	}

	if config.WatchForks {
		w, err := newForkWatcher(s)
		if err != nil {
			return nil, fmt.Errorf("creating fork watcher: %w", err)
		}
		s.watcher = w
	}

	return s, nil
}

// CreateFork makes a private on-disk copy of the base workbook and
// registers a fresh fork for it.
//
// Description:
//
//	The copy lives under <workspace>/forks/<fork_id>/work.xlsx and never
//	shares mutable state with the base or with any other fork.
//
// Inputs:
//
//	ctx - Cancellation; checked before the copy starts.
//	basePath - Path of the base workbook. Must exist.
//
// Outputs:
//
//	string - The new fork id.
//	error - I/O failures copying the base.
func (s *Store) CreateFork(ctx context.Context, basePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	dir := filepath.Join(s.workspace, "forks", id)
	path := filepath.Join(dir, "work"+filepath.Ext(basePath))

	if err := document.CopyFile(basePath, path); err != nil {
		return "", err
	}

	fork := &Fork{
		ID:        id,
		BasePath:  basePath,
		Path:      path,
		Dir:       dir,
		CreatedAt: time.Now(),
		sem:       make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.forks[id] = fork
	s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.watch(fork)
	}

	s.logger.Info("created fork",
		"fork_id", id,
		"base", basePath)
	return id, nil
}

// WithForkMut runs fn with exclusive access to the fork.
//
// Description:
//
//	The sole mutation gateway: at most one caller holds a given fork at
//	a time, while different forks proceed in parallel. Acquisition is
//	cancellable; fn runs only after the fork is held and still live.
//
// Inputs:
//
//	ctx - Cancels waiting for the fork.
//	forkID - Fork to lock.
//	fn - Closure run under exclusive access. Its error is propagated.
//
// Outputs:
//
//	error - ErrForkNotFound, ctx.Err(), or fn's error.
func (s *Store) WithForkMut(ctx context.Context, forkID string, fn func(*Fork) error) error {
	fork, err := s.lookup(forkID)
	if err != nil {
		return err
	}

	select {
	case fork.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-fork.sem }()

	// The fork may have been discarded while we waited.
	if fork.discarded {
		return fmt.Errorf("fork %s: %w", forkID, ErrForkNotFound)
	}
	return fn(fork)
}

// DiscardFork releases a fork's on-disk copy and all in-memory logs.
// Subsequent operations on the id fail with ErrForkNotFound. Terminal.
func (s *Store) DiscardFork(ctx context.Context, forkID string) error {
	s.mu.Lock()
	fork, ok := s.forks[forkID]
	if ok {
		delete(s.forks, forkID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("fork %s: %w", forkID, ErrForkNotFound)
	}

	// Wait out any in-flight mutator before tearing down the files.
	select {
	case fork.sem <- struct{}{}:
	case <-ctx.Done():
		// Re-register so the fork is not half-discarded.
		s.mu.Lock()
		s.forks[forkID] = fork
		s.mu.Unlock()
		return ctx.Err()
	}
	fork.discarded = true
	<-fork.sem

	if s.watcher != nil {
		s.watcher.unwatch(fork)
	}
	if err := os.RemoveAll(fork.Dir); err != nil {
		s.logger.Warn("failed to remove fork directory",
			"fork_id", forkID,
			"error", err)
	}

	s.logger.Info("discarded fork", "fork_id", forkID)
	return nil
}

// AddStagedChange appends a named bundle of pending ops to the fork's
// staged log without touching committed content. When the log exceeds
// its capacity the oldest entries are evicted first.
func (s *Store) AddStagedChange(ctx context.Context, forkID, label string, ops []StagedOp) (StagedChange, error) {
	var change StagedChange
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		change = StagedChange{
			ID:        uuid.NewString(),
			CreatedAt: f.NextStamp(),
			Label:     label,
			Ops:       ops,
			Summary:   summarizeOps(ops),
		}
		f.Staged = append(f.Staged, change)
		for len(f.Staged) > s.capacity {
			evicted := f.Staged[0]
			f.Staged = f.Staged[1:]
			s.logger.Info("evicted oldest staged change",
				"fork_id", forkID,
				"change_id", evicted.ID)
		}
		return nil
	})
	return change, err
}

// ListStagedChanges returns the fork's staged log, oldest to newest.
func (s *Store) ListStagedChanges(ctx context.Context, forkID string) ([]StagedChange, error) {
	var out []StagedChange
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		out = make([]StagedChange, len(f.Staged))
		copy(out, f.Staged)
		return nil
	})
	return out, err
}

// ForkInfo is the read-only view of a fork exposed to callers.
type ForkInfo struct {
	ID                 string    `json:"fork_id"`
	BasePath           string    `json:"base_path"`
	Path               string    `json:"path"`
	CreatedAt          time.Time `json:"created_at"`
	EditCount          int       `json:"edit_count"`
	StagedCount        int       `json:"staged_count"`
	CheckpointCount    int       `json:"checkpoint_count"`
	ExternallyModified bool      `json:"externally_modified,omitempty"`
}

// Info returns the read-only view of one fork.
func (s *Store) Info(ctx context.Context, forkID string) (ForkInfo, error) {
	var info ForkInfo
	err := s.WithForkMut(ctx, forkID, func(f *Fork) error {
		info = infoOf(f)
		return nil
	})
	return info, err
}

// List returns every live fork, ordered by creation time then id.
// Forks discarded while listing are skipped.
func (s *Store) List(ctx context.Context) ([]ForkInfo, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.forks))
	for id := range s.forks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]ForkInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.Info(ctx, id)
		if errors.Is(err, ErrForkNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SwapWorkbook replaces the fork's private copy with the file at src,
// via a scratch copy and rename so readers never observe a partial
// workbook. Must be called while the fork is held via WithForkMut.
func (s *Store) SwapWorkbook(f *Fork, src string) error {
	if err := document.ReplaceFile(src, f.Path); err != nil {
		return err
	}
	// The rename replaced the watched inode.
	if s.watcher != nil {
		s.watcher.watch(f)
	}
	return nil
}

// Close tears down the watcher. Live forks and their files are kept;
// discarding remains an explicit caller decision.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.close()
	}
	return nil
}

// Workspace returns the store's root directory.
func (s *Store) Workspace() string { return s.workspace }

func (s *Store) lookup(forkID string) (*Fork, error) {
	s.mu.Lock()
	fork, ok := s.forks[forkID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fork %s: %w", forkID, ErrForkNotFound)
	}
	return fork, nil
}

func infoOf(f *Fork) ForkInfo {
	return ForkInfo{
		ID:                 f.ID,
		BasePath:           f.BasePath,
		Path:               f.Path,
		CreatedAt:          f.CreatedAt,
		EditCount:          len(f.Edits),
		StagedCount:        len(f.Staged),
		CheckpointCount:    len(f.Checkpoints),
		ExternallyModified: f.ExternallyModified,
	}
}
