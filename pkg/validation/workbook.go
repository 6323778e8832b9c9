// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up in
// file paths or workbook mutations. Using these validators keeps malformed
// references out of the mutation path and prevents path traversal through
// user-supplied names.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// cellRefPattern matches a bare A1-style cell reference.
// Columns go up to XFD (3 letters), rows up to 1048576 (7 digits).
var cellRefPattern = regexp.MustCompile(`^\$?[A-Z]{1,3}\$?[1-9][0-9]{0,6}$`)

// sheetNameForbidden lists the characters xlsx forbids in sheet names.
const sheetNameForbidden = `[]:*?/\`

// MaxSheetNameLength is the xlsx limit on sheet name length.
const MaxSheetNameLength = 31

// ValidateCellRef validates a single A1-style cell reference.
//
// Valid references:
//   - 1-3 uppercase column letters (A through XFD)
//   - 1-7 digit row number starting from 1
//   - Optional $ before the column and/or row part
//
// Returns an error if the reference is malformed.
//
// Example:
//
//	if err := validation.ValidateCellRef(cell); err != nil {
//	    return fmt.Errorf("invalid cell: %w", err)
//	}
//	// Safe to hand to the workbook layer
func ValidateCellRef(cell string) error {
	if cell == "" {
		return fmt.Errorf("cell reference cannot be empty")
	}
	if !cellRefPattern.MatchString(strings.ToUpper(cell)) {
		return fmt.Errorf("invalid cell reference %q (expected A1-style, e.g. B12 or $C$3)", cell)
	}
	return nil
}

// ValidateCellRefs validates multiple cell references.
// Returns an error listing all invalid references if any fail.
func ValidateCellRefs(cells []string) error {
	var invalid []string
	for _, c := range cells {
		if err := ValidateCellRef(c); err != nil {
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid cell references: %v", invalid)
	}
	return nil
}

// ValidateSheetName validates a worksheet name against the xlsx rules.
//
// Valid names:
//   - 1-31 characters
//   - No [ ] : * ? / \ characters
//   - No leading or trailing apostrophe
//
// Returns an error if the name is invalid.
func ValidateSheetName(name string) error {
	if name == "" {
		return fmt.Errorf("sheet name cannot be empty")
	}
	if len(name) > MaxSheetNameLength {
		return fmt.Errorf("sheet name %q exceeds %d characters", name, MaxSheetNameLength)
	}
	if strings.ContainsAny(name, sheetNameForbidden) {
		return fmt.Errorf("sheet name %q contains a forbidden character (%s)", name, sheetNameForbidden)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("sheet name %q cannot start or end with an apostrophe", name)
	}
	return nil
}

// SanitizeCellRef normalizes and validates a cell reference.
// Returns the uppercase reference if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	cell, err := validation.SanitizeCellRef(userInput)
//	if err != nil {
//	    return err
//	}
//	// cell is uppercase and validated
func SanitizeCellRef(cell string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(cell))
	if err := ValidateCellRef(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
