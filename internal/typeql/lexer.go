package typeql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokVar
	tokLabel
	tokString
	tokInt
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokVar:
		return "variable"
	case tokLabel:
		return "label"
	case tokString:
		return "string"
	case tokInt:
		return "integer"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	text string // variable name without '$', unquoted string, or raw text
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokVar:
		return "$" + t.text
	case tokString:
		return strconv.Quote(t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// ParseError reports a syntax error with its position.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	rs := []rune(src)
	i := 0
	advance := func(n int) {
		for k := 0; k < n; k++ {
			if rs[i] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			i++
		}
	}
	isLabel := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '@'
	}

	for i < len(rs) {
		r := rs[i]
		startLine, startCol := line, col
		switch {
		case unicode.IsSpace(r):
			advance(1)
		case r == '#':
			for i < len(rs) && rs[i] != '\n' {
				advance(1)
			}
		case r == '$':
			j := i + 1
			for j < len(rs) && isLabel(rs[j]) {
				j++
			}
			if j == i+1 {
				return nil, &ParseError{Line: line, Col: col, Message: "empty variable name"}
			}
			toks = append(toks, token{kind: tokVar, text: string(rs[i+1 : j]), line: startLine, col: startCol})
			advance(j - i)
		case r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				if rs[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(rs) {
				return nil, &ParseError{Line: line, Col: col, Message: "unterminated string"}
			}
			s, err := strconv.Unquote(string(rs[i : j+1]))
			if err != nil {
				return nil, &ParseError{Line: line, Col: col, Message: "invalid string literal"}
			}
			toks = append(toks, token{kind: tokString, text: s, line: startLine, col: startCol})
			advance(j + 1 - i)
		case (r == '!' || r == '=') && i+1 < len(rs) && rs[i+1] == '=':
			toks = append(toks, token{kind: tokPunct, text: string(r) + "=", line: startLine, col: startCol})
			advance(2)
		case r == '<' || r == '>':
			text := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				text += "="
			}
			toks = append(toks, token{kind: tokPunct, text: text, line: startLine, col: startCol})
			advance(len(text))
		case strings.ContainsRune(";,:(){}[]", r):
			toks = append(toks, token{kind: tokPunct, text: string(r), line: startLine, col: startCol})
			advance(1)
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && isLabel(rs[j]) {
				j++
			}
			text := string(rs[i:j])
			kind := tokLabel
			if _, err := strconv.ParseInt(text, 10, 64); err == nil {
				kind = tokInt
			}
			toks = append(toks, token{kind: kind, text: text, line: startLine, col: startCol})
			advance(j - i)
		case isLabel(r):
			j := i
			for j < len(rs) && isLabel(rs[j]) {
				j++
			}
			// isa! is a single keyword
			if j < len(rs) && rs[j] == '!' && string(rs[i:j]) == "isa" && (j+1 >= len(rs) || rs[j+1] != '=') {
				j++
			}
			toks = append(toks, token{kind: tokLabel, text: string(rs[i:j]), line: startLine, col: startCol})
			advance(j - i)
		default:
			return nil, &ParseError{Line: line, Col: col, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line, col: col})
	return toks, nil
}
