package pdxscript

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind   tokenKind
	text   string
	op     Op
	line   int
	column int
}

type lexer struct {
	file string
	src  string
	pos  int
	line int
	col  int
}

const bom = "\ufeff"

func newLexer(file string, src []byte) *lexer {
	return &lexer{
		file: file,
		src:  strings.TrimPrefix(string(src), bom),
		line: 1,
		col:  1,
	}
}

func (l *lexer) errorf(line, col int, format string, args ...any) *ParseError {
	return &ParseError{File: l.file, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		default:
			return
		}
	}
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '}', '=', '<', '>', '!', '#', '"':
		return true
	}
	return false
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, column: col}, nil
	}

	c := l.src[l.pos]
	switch c {
	case '{':
		l.advance()
		return token{kind: tokOpen, text: "{", line: line, column: col}, nil
	case '}':
		l.advance()
		return token{kind: tokClose, text: "}", line: line, column: col}, nil
	case '=', '<', '>', '!':
		return l.lexOp(line, col)
	case '"':
		return l.lexString(line, col)
	}

	start := l.pos
	for l.pos < len(l.src) && !isDelimiter(l.src[l.pos]) {
		l.advance()
	}
	return token{kind: tokWord, text: l.src[start:l.pos], line: line, column: col}, nil
}

func (l *lexer) lexOp(line, col int) (token, error) {
	first := l.advance()
	second := l.peekByte() == '='
	if second {
		l.advance()
	}
	var op Op
	switch {
	case first == '=' && second:
		op = OpEq
	case first == '=':
		op = OpAssign
	case first == '<' && second:
		op = OpLessEq
	case first == '<':
		op = OpLess
	case first == '>' && second:
		op = OpGreaterEq
	case first == '>':
		op = OpGreater
	case first == '!' && second:
		op = OpNotEq
	default:
		return token{}, l.errorf(line, col, "unexpected '!'")
	}
	return token{kind: tokOp, text: op.String(), op: op, line: line, column: col}, nil
}

func (l *lexer) lexString(line, col int) (token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, l.errorf(line, col, "unterminated string")
		}
		r := l.advance()
		switch r {
		case '"':
			return token{kind: tokString, text: sb.String(), line: line, column: col}, nil
		case '\\':
			if l.pos < len(l.src) {
				next := l.peekByte()
				if next == '"' || next == '\\' {
					sb.WriteRune(l.advance())
					continue
				}
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
}
