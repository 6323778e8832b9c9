// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document wraps xlsx workbook access for the sheets service.
//
// All on-disk cell, style, name and table storage goes through excelize;
// this package narrows that surface to what the fork store, diff engine
// and style applicator need: private file copies, editable handles, and
// immutable state snapshots.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound indicates a named sheet does not exist in the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// IOError wraps an underlying read/write failure with its operation and path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Editable is an open workbook accepting mutations. Not safe for
// concurrent use; callers serialize access per fork.
type Editable struct {
	f    *excelize.File
	path string
}

// OpenEditable opens a workbook for mutation.
func OpenEditable(path string) (*Editable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return &Editable{f: f, path: path}, nil
}

// File exposes the underlying excelize handle for style operations.
func (e *Editable) File() *excelize.File { return e.f }

// Path returns the on-disk location of the workbook.
func (e *Editable) Path() string { return e.path }

// HasSheet reports whether the named sheet exists.
func (e *Editable) HasSheet(sheet string) bool {
	idx, err := e.f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

// SetValue writes a plain value into a cell.
func (e *Editable) SetValue(sheet, cell string, value any) error {
	if !e.HasSheet(sheet) {
		return fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}
	if err := e.f.SetCellValue(sheet, cell, value); err != nil {
		return &IOError{Op: "set value", Path: e.path, Err: err}
	}
	return nil
}

// SetFormula writes a formula into a cell. The cached result is left to
// the workbook's recalculation engine; this package never computes it.
func (e *Editable) SetFormula(sheet, cell, formulaText string) error {
	if !e.HasSheet(sheet) {
		return fmt.Errorf("sheet %q: %w", sheet, ErrSheetNotFound)
	}
	if err := e.f.SetCellFormula(sheet, cell, formulaText); err != nil {
		return &IOError{Op: "set formula", Path: e.path, Err: err}
	}
	return nil
}

// Save writes the workbook back to its path.
func (e *Editable) Save() error {
	if err := e.f.Save(); err != nil {
		return &IOError{Op: "save", Path: e.path, Err: err}
	}
	return nil
}

// Close releases the handle without saving.
func (e *Editable) Close() error { return e.f.Close() }

// CopyFile copies a workbook byte-for-byte, creating the destination
// directory as needed and fsyncing before returning.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	out, err := os.Create(dst)
	if err != nil {
		return &IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &IOError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return &IOError{Op: "sync", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &IOError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// ReplaceFile atomically replaces dst with a copy of src via a temp file
// and rename in dst's directory. Used by checkpoint restore so a failed
// copy never leaves a half-written fork.
func ReplaceFile(src, dst string) error {
	tmp := dst + ".restore.tmp"
	if err := CopyFile(src, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "rename", Path: dst, Err: err}
	}
	return nil
}
