// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package formula

import (
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	cellRefPattern = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)$`)
	colRefPattern  = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})$`)
	rowRefPattern  = regexp.MustCompile(`^(\$?)([0-9]+)$`)
)

// Parse parses a formula into an expression tree.
//
// Description:
//
//	Accepts the formula with or without a leading "=". Cell, range,
//	column-only and row-only references are decomposed into coordinates
//	with per-axis absolute flags; sheet qualifiers wrap their inner
//	reference; defined names and structured table references stay opaque.
//
// Inputs:
//
//	src - The formula text, e.g. "=SUM(A1:B2) * 2".
//
// Outputs:
//
//	Node - Root of the expression tree.
//	error - *ParseError naming the offending fragment and offset.
func Parse(src string) (Node, error) {
	body := strings.TrimSpace(src)
	body = strings.TrimPrefix(body, "=")
	if strings.TrimSpace(body) == "" {
		return nil, &ParseError{Pos: 0, Fragment: src, Msg: "empty formula"}
	}

	lex := &lexer{src: body}
	var toks []token
	for {
		t, err := lex.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokenEOF {
			break
		}
	}

	p := &parser{toks: toks}
	n, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokenEOF {
		t := p.cur()
		return nil, &ParseError{Pos: t.pos, Fragment: t.text, Msg: "unexpected token"}
	}
	return n, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) cur() token { return p.toks[p.i] }
func (p *parser) peek() token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *parser) advance() token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) errf(t token, msg string) error {
	frag := t.text
	if t.kind == tokenEOF {
		frag = "<end of formula>"
	}
	return &ParseError{Pos: t.pos, Fragment: frag, Msg: msg}
}

func binaryPrec(op string) int {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return 1
	case "&":
		return 2
	case "+", "-":
		return 3
	case "*", "/":
		return 4
	case "^":
		return 5
	}
	return 0
}

// parseExpr implements precedence climbing over binary operators.
func (p *parser) parseExpr(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.kind != tokenOp {
			break
		}
		prec := binaryPrec(t.text)
		if prec == 0 || prec < minPrec {
			break
		}
		p.advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	t := p.cur()
	if t.kind == tokenOp && (t.text == "+" || t.text == "-") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.text, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles the percent postfix operator (50%).
func (p *parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokenOp && p.cur().text == "%" {
		p.advance()
		n = &Unary{Op: "%", Operand: n, Postfix: true}
	}
	return n, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tokenNumber:
		// A bare integer followed by ':' is a row-only range (1:3).
		if p.peek().kind == tokenColon && !strings.Contains(t.text, ".") {
			return p.parseRefBody()
		}
		p.advance()
		return &Literal{Text: t.text}, nil

	case tokenString:
		p.advance()
		return &Literal{Text: t.text}, nil

	case tokenLParen:
		p.advance()
		inner, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokenRParen {
			return nil, p.errf(p.cur(), "expected ')'")
		}
		p.advance()
		return &Paren{Inner: inner}, nil

	case tokenSheet:
		p.advance()
		if p.cur().kind != tokenBang {
			return nil, p.errf(p.cur(), "expected '!' after sheet name")
		}
		p.advance()
		inner, err := p.parseRefBody()
		if err != nil {
			return nil, err
		}
		return &SheetRef{Sheet: t.text, Quoted: true, Inner: inner}, nil

	case tokenTableRef:
		p.advance()
		return &TableRef{Text: t.text}, nil

	case tokenIdent:
		if p.peek().kind == tokenBang {
			p.advance() // sheet name
			p.advance() // '!'
			inner, err := p.parseRefBody()
			if err != nil {
				return nil, err
			}
			return &SheetRef{Sheet: t.text, Inner: inner}, nil
		}
		if p.peek().kind == tokenLParen {
			return p.parseFuncCall()
		}
		if strings.EqualFold(t.text, "TRUE") || strings.EqualFold(t.text, "FALSE") {
			p.advance()
			return &Literal{Text: strings.ToUpper(t.text)}, nil
		}
		return p.parseRefBody()
	}
	return nil, p.errf(t, "expected expression")
}

func (p *parser) parseFuncCall() (Node, error) {
	name := p.advance().text
	p.advance() // '('
	call := &FuncCall{Name: name}
	if p.cur().kind == tokenRParen {
		p.advance()
		return call, nil
	}
	for {
		arg, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		switch p.cur().kind {
		case tokenComma:
			p.advance()
		case tokenRParen:
			p.advance()
			return call, nil
		default:
			return nil, p.errf(p.cur(), "expected ',' or ')' in argument list")
		}
	}
}

// parseRefBody parses the reference forms that may follow a sheet
// qualifier or stand alone: A1, A1:B2, A:C, 1:3, a defined name, or a
// structured table reference.
func (p *parser) parseRefBody() (Node, error) {
	t := p.cur()

	if t.kind == tokenTableRef {
		p.advance()
		return &TableRef{Text: t.text}, nil
	}

	// Row-only ranges arrive as numbers (1:3) or $-idents ($1:$3).
	if from, ok := rowPart(t); ok && p.peek().kind == tokenColon {
		p.advance() // from
		p.advance() // ':'
		to, ok := rowPart(p.cur())
		if !ok {
			return nil, p.errf(p.cur(), "expected row reference after ':'")
		}
		p.advance()
		return &RowRange{FromRow: from.row, ToRow: to.row, AbsFrom: from.abs, AbsTo: to.abs}, nil
	}

	if t.kind != tokenIdent {
		return nil, p.errf(t, "expected reference")
	}

	if cell, ok := parseCellText(t.text); ok {
		p.advance()
		if p.cur().kind != tokenColon {
			return &cell, nil
		}
		p.advance() // ':'
		next := p.cur()
		if next.kind != tokenIdent {
			return nil, p.errf(next, "expected cell reference after ':'")
		}
		to, ok := parseCellText(next.text)
		if !ok {
			return nil, p.errf(next, "expected cell reference after ':'")
		}
		p.advance()
		return &RangeRef{From: cell, To: to}, nil
	}

	if from, ok := colPart(t.text); ok && p.peek().kind == tokenColon {
		mark := p.i
		p.advance() // from
		p.advance() // ':'
		if p.cur().kind == tokenIdent {
			if to, ok := colPart(p.cur().text); ok {
				p.advance()
				return &ColRange{FromCol: from.col, ToCol: to.col, AbsFrom: from.abs, AbsTo: to.abs}, nil
			}
		}
		p.i = mark
	}

	p.advance()
	return &NameRef{Name: t.text}, nil
}

type rowToken struct {
	row int
	abs bool
}

type colToken struct {
	col int
	abs bool
}

func rowPart(t token) (rowToken, bool) {
	var text string
	switch t.kind {
	case tokenNumber:
		text = t.text
	case tokenIdent:
		text = t.text
	default:
		return rowToken{}, false
	}
	m := rowRefPattern.FindStringSubmatch(text)
	if m == nil {
		return rowToken{}, false
	}
	row := 0
	for _, c := range m[2] {
		row = row*10 + int(c-'0')
	}
	if row < 1 {
		return rowToken{}, false
	}
	return rowToken{row: row, abs: m[1] == "$"}, true
}

func colPart(text string) (colToken, bool) {
	m := colRefPattern.FindStringSubmatch(text)
	if m == nil {
		return colToken{}, false
	}
	col, err := excelize.ColumnNameToNumber(strings.ToUpper(m[2]))
	if err != nil {
		return colToken{}, false
	}
	return colToken{col: col, abs: m[1] == "$"}, true
}

// parseCellText decomposes text like "$B$12" into a CellRef.
func parseCellText(text string) (CellRef, bool) {
	m := cellRefPattern.FindStringSubmatch(text)
	if m == nil {
		return CellRef{}, false
	}
	col, err := excelize.ColumnNameToNumber(strings.ToUpper(m[2]))
	if err != nil {
		return CellRef{}, false
	}
	row := 0
	for _, c := range m[4] {
		row = row*10 + int(c-'0')
		if row > excelize.TotalRows {
			return CellRef{}, false
		}
	}
	if row < 1 {
		return CellRef{}, false
	}
	return CellRef{Col: col, Row: row, AbsCol: m[1] == "$", AbsRow: m[3] == "$"}, true
}
