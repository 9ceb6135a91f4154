package pdxscript

import (
	"fmt"
	"os"
)

// ParseError describes a syntax error at a source position.
type ParseError struct {
	File   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

// ParseFile reads and parses a script file.
func ParseFile(path string) (*Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

// Parse parses script source. name is used in error positions only.
// The returned root is a block node whose Children are the top-level statements.
func Parse(name string, src []byte) (*Node, error) {
	p := &parser{lex: newLexer(name, src)}
	if err := p.fill(); err != nil {
		return nil, err
	}
	children, err := p.parseStatements(false)
	if err != nil {
		return nil, err
	}
	return &Node{IsBlock: true, Children: children, Line: 1, Column: 1}, nil
}

type parser struct {
	lex  *lexer
	tok  token
	peek token
}

// fill primes the two-token window.
func (p *parser) fill() error {
	var err error
	if p.tok, err = p.lex.next(); err != nil {
		return err
	}
	p.peek, err = p.lex.next()
	return err
}

func (p *parser) advance() error {
	p.tok = p.peek
	if p.tok.kind == tokEOF {
		return nil
	}
	var err error
	p.peek, err = p.lex.next()
	return err
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return p.lex.errorf(t.line, t.column, format, args...)
}

func (p *parser) parseStatements(inBlock bool) ([]*Node, error) {
	var out []*Node
	for {
		t := p.tok
		switch t.kind {
		case tokEOF:
			if inBlock {
				return nil, p.errorf(t, "unexpected end of file, expected '}'")
			}
			return out, nil

		case tokClose:
			if !inBlock {
				return nil, p.errorf(t, "unexpected '}'")
			}
			return out, nil

		case tokOpen:
			// anonymous block, as in lists of blocks: { a b } { c d }
			n, err := p.parseBlock(&Node{Line: t.line, Column: t.column})
			if err != nil {
				return nil, err
			}
			out = append(out, n)

		case tokOp:
			return nil, p.errorf(t, "unexpected operator %q", t.text)

		case tokWord, tokString:
			n, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
}

// parseStatement parses from a key token.
func (p *parser) parseStatement() (*Node, error) {
	key := p.tok
	n := &Node{Key: key.text, Line: key.line, Column: key.column}

	if p.peek.kind != tokOp {
		n.Quoted = key.kind == tokString
		return n, p.advance()
	}

	if err := p.advance(); err != nil {
		return nil, err
	}
	n.Op = p.tok.op
	if err := p.advance(); err != nil {
		return nil, err
	}

	val := p.tok
	switch val.kind {
	case tokOpen:
		return p.parseBlock(n)
	case tokWord, tokString:
		n.Value = val.text
		n.Quoted = val.kind == tokString
		if val.kind == tokWord && p.peek.kind == tokOpen {
			// tagged block: rgb { ... }
			if err := p.advance(); err != nil {
				return nil, err
			}
			return p.parseBlock(n)
		}
		return n, p.advance()
	default:
		return nil, p.errorf(val, "expected value after %q", n.Op.String())
	}
}

// parseBlock parses from an opening brace into n.
func (p *parser) parseBlock(n *Node) (*Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	children, err := p.parseStatements(true)
	if err != nil {
		return nil, err
	}
	n.IsBlock = true
	n.Children = children
	return n, p.advance() // closing brace
}
