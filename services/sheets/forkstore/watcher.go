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
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// forkWatcher flags forks whose private workbook copy changes on disk
// outside the store. Detection is advisory: a flagged fork keeps
// working, callers see ExternallyModified on its info.
type forkWatcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu    sync.Mutex
	paths map[string]*Fork
	done  chan struct{}
}

func newForkWatcher(s *Store) (*forkWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &forkWatcher{
		store:   s,
		watcher: watcher,
		logger:  s.logger.With("component", "forkstore.watcher"),
		paths:   make(map[string]*Fork),
		done:    make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

func (w *forkWatcher) watch(fork *Fork) {
	abs, err := filepath.Abs(fork.Path)
	if err != nil {
		abs = fork.Path
	}

	w.mu.Lock()
	w.paths[abs] = fork
	w.mu.Unlock()

	if err := w.watcher.Add(abs); err != nil {
		w.logger.Warn("failed to watch fork file",
			"fork_id", fork.ID,
			"path", abs,
			"error", err)
	}
}

func (w *forkWatcher) unwatch(fork *Fork) {
	abs, err := filepath.Abs(fork.Path)
	if err != nil {
		abs = fork.Path
	}

	w.mu.Lock()
	delete(w.paths, abs)
	w.mu.Unlock()

	// The file is usually gone by now; ignore remove errors.
	_ = w.watcher.Remove(abs)
}

func (w *forkWatcher) close() error {
	close(w.done)
	return w.watcher.Close()
}

// watchLoop handles fsnotify events until close.
func (w *forkWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fork watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// handleEvent flags a fork as externally modified unless the event
// coincides with one of our own mutations.
func (w *forkWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}

	w.mu.Lock()
	fork, ok := w.paths[abs]
	w.mu.Unlock()
	if !ok {
		return
	}

	// If the fork is held, the write is one of ours.
	select {
	case fork.sem <- struct{}{}:
	default:
		return
	}
	if !fork.discarded && !fork.ExternallyModified {
		fork.ExternallyModified = true
		w.logger.Warn("external modification detected on fork file",
			"fork_id", fork.ID,
			"path", abs,
			"event", event.Op.String())
	}
	<-fork.sem
}
