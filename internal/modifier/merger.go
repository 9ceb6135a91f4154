package modifier

import (
	"iter"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/pkg/util"
)

// decimalContext holds any sum of in-range leaf values exactly: 56 digits
// for one value plus headroom for carries.
var decimalContext = apd.BaseContext.WithPrecision(64)

// Merger maintains running totals. It is not safe for concurrent use.
type Merger struct {
	passthroughKeys map[string]struct{}

	passthrough []Modifier
	flat        map[string]*apd.Decimal
	grouped     map[string]map[string]*apd.Decimal
}

// NewMerger creates an empty merger. With no keys, DefaultPassthroughKeys
// are used.
func NewMerger(passthroughKeys ...string) *Merger {
	if len(passthroughKeys) == 0 {
		passthroughKeys = DefaultPassthroughKeys
	}
	keys := make(map[string]struct{}, len(passthroughKeys))
	for _, k := range passthroughKeys {
		keys[strings.ToLower(k)] = struct{}{}
	}
	m := &Merger{passthroughKeys: keys}
	m.Clear()
	return m
}

func (m *Merger) isPassthrough(key string) bool {
	_, ok := m.passthroughKeys[strings.ToLower(key)]
	return ok
}

// Add folds mod into the totals.
func (m *Merger) Add(mod Modifier) {
	m.apply(mod, false)
}

// Remove subtracts mod from the totals.
func (m *Merger) Remove(mod Modifier) {
	m.apply(mod, true)
}

// AddAll adds each modifier in order.
func (m *Merger) AddAll(mods []Modifier) {
	for _, mod := range mods {
		m.Add(mod)
	}
}

// RemoveAll removes each modifier in order.
func (m *Merger) RemoveAll(mods []Modifier) {
	for _, mod := range mods {
		m.Remove(mod)
	}
}

func (m *Merger) apply(mod Modifier, negate bool) {
	if m.isPassthrough(mod.Key) {
		m.applyPassthrough(mod, negate)
		return
	}
	if !mod.IsGroup() {
		accumulate(m.flat, mod.Key, &mod.Value, negate)
		return
	}

	group := m.grouped[mod.Key]
	if group == nil {
		group = make(map[string]*apd.Decimal)
		m.grouped[mod.Key] = group
	}
	for _, leaf := range mod.Leaves {
		if m.isPassthrough(leaf.Key) {
			m.applyPassthrough(leaf, negate)
			continue
		}
		accumulate(group, leaf.Key, &leaf.Value, negate)
	}
	if len(group) == 0 {
		delete(m.grouped, mod.Key)
	}
}

func (m *Merger) applyPassthrough(mod Modifier, remove bool) {
	if !remove {
		m.passthrough = append(m.passthrough, mod)
		return
	}
	i := slices.IndexFunc(m.passthrough, func(p Modifier) bool {
		return p.Key == mod.Key && p.Raw == mod.Raw
	})
	if i >= 0 {
		m.passthrough = slices.Delete(m.passthrough, i, i+1)
	}
}

// accumulate adds (or subtracts) v into totals[key], pruning exact zeros.
// Values outside the exact range, and results that would be rounded, leave
// the total untouched so a later inverse operation cannot drift.
func accumulate(totals map[string]*apd.Decimal, key string, v *apd.Decimal, negate bool) {
	if !inRange(v) {
		log.Debug("modifier value out of range, counted as 0", "key", key, "value", v.String())
		return
	}
	var next apd.Decimal
	if cur, ok := totals[key]; ok {
		next.Set(cur)
	}
	var cond apd.Condition
	var err error
	if negate {
		cond, err = decimalContext.Sub(&next, &next, v)
	} else {
		cond, err = decimalContext.Add(&next, &next, v)
	}
	if err != nil || cond.Inexact() || cond.Rounded() || next.Form != apd.Finite {
		log.Warn("inexact modifier sum, value ignored", "key", key, "value", v.String(), "condition", cond.String())
		return
	}
	if next.IsZero() {
		delete(totals, key)
		return
	}
	totals[key] = &next
}

// Merged lazily yields the passthrough list, then flat totals, then grouped
// totals, each in key order. The merger must not be modified while the
// sequence is being consumed.
func (m *Merger) Merged() iter.Seq[Modifier] {
	return func(yield func(Modifier) bool) {
		for _, p := range m.passthrough {
			if !yield(p) {
				return
			}
		}
		for _, key := range util.SortedKeys(m.flat) {
			if !yield(LeafValue(key, m.flat[key])) {
				return
			}
		}
		for _, name := range util.SortedKeys(m.grouped) {
			group := m.grouped[name]
			leaves := make([]Modifier, 0, len(group))
			for _, key := range util.SortedKeys(group) {
				leaves = append(leaves, LeafValue(key, group[key]))
			}
			if !yield(Group(name, leaves...)) {
				return
			}
		}
	}
}

// Value returns the flat total for key.
func (m *Merger) Value(key string) (apd.Decimal, bool) {
	var out apd.Decimal
	v, ok := m.flat[key]
	if ok {
		out.Set(v)
	}
	return out, ok
}

// GroupValue returns the total for key inside group.
func (m *Merger) GroupValue(group, key string) (apd.Decimal, bool) {
	var out apd.Decimal
	v, ok := m.grouped[group][key]
	if ok {
		out.Set(v)
	}
	return out, ok
}

// Len returns the number of items Merged would yield.
func (m *Merger) Len() int {
	return len(m.passthrough) + len(m.flat) + len(m.grouped)
}

// IsEmpty reports whether nothing is accumulated.
func (m *Merger) IsEmpty() bool {
	return m.Len() == 0
}

// Clear resets all totals.
func (m *Merger) Clear() {
	m.passthrough = nil
	m.flat = make(map[string]*apd.Decimal)
	m.grouped = make(map[string]map[string]*apd.Decimal)
}
