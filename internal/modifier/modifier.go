// Package modifier folds game modifiers into exact running totals.
//
// A Merger accumulates flat modifiers (key, value) and grouped modifiers
// (a named block of flat ones) by decimal addition. Remove subtracts the
// same amounts, so Add and Remove are exact inverses under any
// interleaving. Totals that reach exactly zero are pruned, as are groups
// left empty. Tooltip keys carry text rather than numbers and are kept in
// an ordered list instead.
package modifier

import (
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// DefaultPassthroughKeys are keys kept verbatim instead of summed.
var DefaultPassthroughKeys = []string{
	"custom_modifier_tooltip",
	"custom_effect_tooltip",
}

// Modifier is either a flat leaf (Key, Value) or a group named Key whose
// Leaves are flat modifiers.
type Modifier struct {
	Key    string
	Value  apd.Decimal
	Raw    string // source text of the value
	Leaves []Modifier
}

// IsGroup reports whether m is a group.
func (m Modifier) IsGroup() bool {
	return m.Leaves != nil
}

// maxDigits bounds the integer and fractional digits of a leaf value.
const maxDigits = 28

// Leaf builds a flat modifier from source text. Text that is not a finite
// number within 28 integer and 28 fractional digits counts as 0.
func Leaf(key, raw string) Modifier {
	m := Modifier{Key: key, Raw: raw}
	if _, _, err := m.Value.SetString(strings.TrimSpace(raw)); err != nil || !inRange(&m.Value) {
		m.Value.SetInt64(0)
	}
	return m
}

// inRange reports whether d is finite and fits maxDigits on both sides of
// the decimal point. Sums of such values are exact at decimalContext's
// precision.
func inRange(d *apd.Decimal) bool {
	if d.Form != apd.Finite {
		return false
	}
	if d.IsZero() {
		return true
	}
	digits := d.NumDigits()
	exp := int64(d.Exponent)
	return digits <= maxDigits && exp >= -maxDigits && digits+exp <= maxDigits
}

// LeafValue builds a flat modifier from a decimal.
func LeafValue(key string, v *apd.Decimal) Modifier {
	m := Modifier{Key: key}
	m.Value.Set(v)
	m.Raw = m.Value.String()
	return m
}

// Group builds a grouped modifier.
func Group(name string, leaves ...Modifier) Modifier {
	if leaves == nil {
		leaves = []Modifier{}
	}
	return Modifier{Key: name, Leaves: leaves}
}

// FromBlock converts the children of a modifier block. Key/value lines
// become leaves and nested blocks become groups of their key/value lines.
func FromBlock(block *pdxscript.Node) []Modifier {
	if block == nil {
		return nil
	}
	var out []Modifier
	for _, n := range block.Children {
		switch {
		case n.IsLeaf():
			out = append(out, Leaf(n.Key, n.Value))
		case n.IsBlock && n.Key != "":
			leaves := make([]Modifier, 0, len(n.Children))
			for _, l := range n.Leaves() {
				leaves = append(leaves, Leaf(l.Key, l.Value))
			}
			out = append(out, Group(n.Key, leaves...))
		}
	}
	return out
}

// Equal reports whether m and o have the same key, source text, value and
// leaves.
func (m Modifier) Equal(o Modifier) bool {
	if m.Key != o.Key || m.Raw != o.Raw || m.IsGroup() != o.IsGroup() || len(m.Leaves) != len(o.Leaves) {
		return false
	}
	if m.Value.Cmp(&o.Value) != 0 {
		return false
	}
	for i := range m.Leaves {
		if !m.Leaves[i].Equal(o.Leaves[i]) {
			return false
		}
	}
	return true
}

// EqualAll reports whether two modifier lists are element-wise equal.
func EqualAll(a, b []Modifier) bool {
	return slices.EqualFunc(a, b, Modifier.Equal)
}
