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
	"fmt"
	"strings"
)

// tokenKind classifies lexer output.
type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenString   // quoted string literal, quotes included
	tokenIdent    // bare word: cell ref, column, named range, function name, bool
	tokenTableRef // Name[...] structured reference, carried verbatim
	tokenSheet    // quoted sheet name, quotes stripped, '' unescaped
	tokenBang     // !
	tokenColon
	tokenComma
	tokenLParen
	tokenRParen
	tokenOp // + - * / ^ & % = <> < <= > >=
)

// character constants. slightly easier to read than raw literals.
const (
	charQuote      = '"'
	charApostrophe = '\''
	charDollar     = '$'
	charBang       = '!'
	charLBracket   = '['
	charRBracket   = ']'
)

type token struct {
	kind tokenKind
	text string
	pos  int // byte offset into the formula body
}

// lexer walks a formula body (leading "=" already stripped).
type lexer struct {
	src string
	pos int
}

// ParseError reports malformed formula syntax with the offending fragment.
type ParseError struct {
	Pos      int
	Fragment string
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula parse error at offset %d near %q: %s", e.Pos, e.Fragment, e.Msg)
}

func (l *lexer) errf(pos int, fragment, format string, args ...any) error {
	return &ParseError{Pos: pos, Fragment: fragment, Msg: fmt.Sprintf(format, args...)}
}

// next returns the next token, skipping whitespace.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == charQuote:
		return l.lexString()
	case c == charApostrophe:
		return l.lexQuotedSheet()
	case isDigit(c):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	}

	switch c {
	case charBang:
		l.pos++
		return token{kind: tokenBang, text: "!", pos: start}, nil
	case ':':
		l.pos++
		return token{kind: tokenColon, text: ":", pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokenComma, text: ",", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case '<':
		if l.pos+1 < len(l.src) && (l.src[l.pos+1] == '>' || l.src[l.pos+1] == '=') {
			l.pos += 2
			return token{kind: tokenOp, text: l.src[start:l.pos], pos: start}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: "<", pos: start}, nil
	case '>':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokenOp, text: ">=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: ">", pos: start}, nil
	case '+', '-', '*', '/', '^', '&', '%', '=':
		l.pos++
		return token{kind: tokenOp, text: string(c), pos: start}, nil
	}

	return token{}, l.errf(start, string(c), "unexpected character")
}

// lexString scans a double-quoted string literal; "" escapes a quote.
// The returned text keeps its surrounding quotes so serialization is verbatim.
func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		if l.src[l.pos] == charQuote {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == charQuote {
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokenString, text: l.src[start:l.pos], pos: start}, nil
		}
		l.pos++
	}
	return token{}, l.errf(start, l.src[start:], "unterminated string literal")
}

// lexQuotedSheet scans a 'Sheet Name' qualifier; a doubled apostrophe
// escapes a literal one.
func (l *lexer) lexQuotedSheet() (token, error) {
	start := l.pos
	l.pos++ // opening apostrophe
	var sb strings.Builder
	for l.pos < len(l.src) {
		if l.src[l.pos] == charApostrophe {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == charApostrophe {
				sb.WriteByte(charApostrophe)
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokenSheet, text: sb.String(), pos: start}, nil
		}
		sb.WriteByte(l.src[l.pos])
		l.pos++
	}
	return token{}, l.errf(start, l.src[start:], "unterminated sheet name")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	// exponent form 1e5 / 1.5E-3
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			// not an exponent after all (e.g. "1e" would be malformed anyway)
			l.pos = mark
		}
	}
	return token{kind: tokenNumber, text: l.src[start:l.pos], pos: start}, nil
}

// lexIdent scans a bare word: cell refs ($A$1), column/row parts ($A, $1),
// function names, booleans and defined names. An ident immediately followed
// by '[' is consumed through the matching bracket as one opaque table
// reference token.
func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	if l.src[l.pos] == charDollar {
		l.pos++
	}
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start || (l.pos == start+1 && l.src[start] == charDollar) {
		return token{}, l.errf(start, l.src[start:min(start+4, len(l.src))], "expected identifier")
	}
	if l.pos < len(l.src) && l.src[l.pos] == charLBracket {
		depth := 0
		for l.pos < len(l.src) {
			switch l.src[l.pos] {
			case charLBracket:
				depth++
			case charRBracket:
				depth--
			}
			l.pos++
			if depth == 0 {
				return token{kind: tokenTableRef, text: l.src[start:l.pos], pos: start}, nil
			}
		}
		return token{}, l.errf(start, l.src[start:], "unterminated structured reference")
	}
	return token{kind: tokenIdent, text: l.src[start:l.pos], pos: start}, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == charDollar || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return c == charDollar || c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c)
}
