// Package pdxscript parses Paradox script, the clausewitz-style key/value
// format used by Hearts of Iron IV game and mod content.
//
// # Grammar
//
// A file is a sequence of statements. A statement is either
//
//	key <op> value
//	key <op> { statements or items }
//	key <op> tag { statements or items }   (e.g. color = rgb { 1 2 3 })
//	item                                   (bare list entry inside a block)
//
// where <op> is one of = < > <= >= != ==. Comments start with '#' and run
// to the end of the line. Strings may be double-quoted with \" and \\ escapes.
//
// # Thread Safety
//
// Parsing creates no shared state. A returned tree is never mutated by this
// package and may be read from any goroutine.
package pdxscript

import (
	"strings"
)

// Op is a statement operator.
type Op int

const (
	OpNone Op = iota // bare list item
	OpAssign         // =
	OpLess           // <
	OpGreater        // >
	OpLessEq         // <=
	OpGreaterEq      // >=
	OpNotEq          // !=
	OpEq             // ==
)

var opNames = [...]string{"", "=", "<", ">", "<=", ">=", "!=", "=="}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "?"
	}
	return opNames[o]
}

// Node is one statement. Leaf statements carry Value; block statements carry
// Children (and optionally a tag in Value, as in `rgb { ... }`).
type Node struct {
	Key      string
	Op       Op
	Value    string
	Quoted   bool
	IsBlock  bool
	Children []*Node

	Line   int
	Column int
}

// IsLeaf reports whether the node is a key/value statement with a scalar value.
func (n *Node) IsLeaf() bool {
	return !n.IsBlock && n.Op != OpNone
}

// IsItem reports whether the node is a bare list entry.
func (n *Node) IsItem() bool {
	return !n.IsBlock && n.Op == OpNone
}

// Child returns the first direct child whose key matches (case-insensitive).
func (n *Node) Child(key string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child whose key matches (case-insensitive).
func (n *Node) ChildrenNamed(key string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			out = append(out, c)
		}
	}
	return out
}

// Lookup walks a key path from n and returns the first match, or nil.
func (n *Node) Lookup(path ...string) *Node {
	cur := n
	for _, key := range path {
		cur = cur.Child(key)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Leaves returns the direct key/value children in source order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.IsLeaf() {
			out = append(out, c)
		}
	}
	return out
}

// Blocks returns the direct block children in source order.
func (n *Node) Blocks() []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.IsBlock {
			out = append(out, c)
		}
	}
	return out
}

// Items returns the values of bare list entries, e.g. `{ a b c }`.
func (n *Node) Items() []string {
	if n == nil {
		return nil
	}
	var out []string
	for _, c := range n.Children {
		if c.IsItem() {
			out = append(out, c.Key)
		}
	}
	return out
}
