// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package formula parses spreadsheet formulas into a reference-aware
// expression tree and regenerates them with cell and range coordinates
// shifted by a row/column delta.
//
// Only reference *text* is transformed; the package never evaluates a
// formula. Named ranges and structured table references are carried as
// opaque tokens and are never decomposed or shifted.
package formula

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Node is one node of a parsed formula expression tree.
//
// The tree is a simple owned recursive structure: no node holds a
// back-reference, so plain pointers suffice.
type Node interface {
	// write appends the canonical serialization of the node to sb.
	write(sb *strings.Builder)
}

// Literal is a number, quoted string, or boolean passed through verbatim.
type Literal struct {
	// Text is the canonical source text, including quotes for strings.
	Text string
}

// CellRef is a plain cell reference such as A1, $B2, C$3 or $D$4.
type CellRef struct {
	Col    int // 1-based column
	Row    int // 1-based row
	AbsCol bool
	AbsRow bool
}

// RangeRef is a rectangular range between two cell references (A1:B2).
type RangeRef struct {
	From CellRef
	To   CellRef
}

// ColRange is a column-only range such as A:C or $A:$A.
type ColRange struct {
	FromCol int
	ToCol   int
	AbsFrom bool
	AbsTo   bool
}

// RowRange is a row-only range such as 1:3 or $2:$2.
type RowRange struct {
	FromRow int
	ToRow   int
	AbsFrom bool
	AbsTo   bool
}

// SheetRef qualifies an inner reference with a sheet name, for example
// Sheet1!A1 or 'My Sheet'!B2:C4. The qualifier itself is never shifted.
type SheetRef struct {
	Sheet  string
	Quoted bool
	Inner  Node
}

// NameRef is a defined-name reference. Opaque: never decomposed.
type NameRef struct {
	Name string
}

// TableRef is a structured table reference such as Table1[Col1].
// Opaque: the bracket payload is carried verbatim and never shifted.
type TableRef struct {
	Text string
}

// FuncCall is a function application with ordered arguments.
type FuncCall struct {
	Name string
	Args []Node
}

// Binary is a binary operator application.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Unary is a prefix (+x, -x) or postfix (x%) operator application.
type Unary struct {
	Op      string
	Operand Node
	Postfix bool
}

// Paren is an explicitly parenthesized subexpression.
type Paren struct {
	Inner Node
}

func (n *Literal) write(sb *strings.Builder) { sb.WriteString(n.Text) }

func (n *CellRef) write(sb *strings.Builder) {
	if n.AbsCol {
		sb.WriteByte('$')
	}
	name, _ := excelize.ColumnNumberToName(n.Col)
	sb.WriteString(name)
	if n.AbsRow {
		sb.WriteByte('$')
	}
	sb.WriteString(itoa(n.Row))
}

func (n *RangeRef) write(sb *strings.Builder) {
	n.From.write(sb)
	sb.WriteByte(':')
	n.To.write(sb)
}

func (n *ColRange) write(sb *strings.Builder) {
	if n.AbsFrom {
		sb.WriteByte('$')
	}
	from, _ := excelize.ColumnNumberToName(n.FromCol)
	sb.WriteString(from)
	sb.WriteByte(':')
	if n.AbsTo {
		sb.WriteByte('$')
	}
	to, _ := excelize.ColumnNumberToName(n.ToCol)
	sb.WriteString(to)
}

func (n *RowRange) write(sb *strings.Builder) {
	if n.AbsFrom {
		sb.WriteByte('$')
	}
	sb.WriteString(itoa(n.FromRow))
	sb.WriteByte(':')
	if n.AbsTo {
		sb.WriteByte('$')
	}
	sb.WriteString(itoa(n.ToRow))
}

func (n *SheetRef) write(sb *strings.Builder) {
	if n.Quoted {
		sb.WriteByte('\'')
		sb.WriteString(strings.ReplaceAll(n.Sheet, "'", "''"))
		sb.WriteByte('\'')
	} else {
		sb.WriteString(n.Sheet)
	}
	sb.WriteByte('!')
	n.Inner.write(sb)
}

func (n *NameRef) write(sb *strings.Builder)  { sb.WriteString(n.Name) }
func (n *TableRef) write(sb *strings.Builder) { sb.WriteString(n.Text) }

func (n *FuncCall) write(sb *strings.Builder) {
	sb.WriteString(n.Name)
	sb.WriteByte('(')
	for i, arg := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		arg.write(sb)
	}
	sb.WriteByte(')')
}

func (n *Binary) write(sb *strings.Builder) {
	n.Left.write(sb)
	sb.WriteByte(' ')
	sb.WriteString(n.Op)
	sb.WriteByte(' ')
	n.Right.write(sb)
}

func (n *Unary) write(sb *strings.Builder) {
	if n.Postfix {
		n.Operand.write(sb)
		sb.WriteString(n.Op)
		return
	}
	sb.WriteString(n.Op)
	n.Operand.write(sb)
}

func (n *Paren) write(sb *strings.Builder) {
	sb.WriteByte('(')
	n.Inner.write(sb)
	sb.WriteByte(')')
}

// Serialize renders a tree back to formula text.
//
// Description:
//
//	Output is always prefixed with "=" and uses a single canonical space
//	around binary operators regardless of the input's spacing. Unary
//	operators, range colons and function parentheses carry no extra
//	whitespace.
//
// Inputs:
//
//	n - Root of the expression tree.
//
// Outputs:
//
//	string - The canonical formula text.
func Serialize(n Node) string {
	var sb strings.Builder
	sb.WriteByte('=')
	n.write(&sb)
	return sb.String()
}

func itoa(v int) string { return strconv.Itoa(v) }
