package resources

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/albertocavalcante/modlens/internal/modifier"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// Building cache identity.
const (
	BuildingsKind = "buildings"
	BuildingsRoot = "common/buildings"
)

// Building is one entry of a buildings block.
type Building struct {
	Name string

	// MaxLevel is level_cap.state_max, falling back to
	// level_cap.province_max. Zero when neither is set.
	MaxLevel int

	// Modifiers are the state_modifiers and country_modifiers.modifiers
	// blocks, in file order.
	Modifiers []modifier.Modifier
}

// Buildings caches building definitions per file.
type Buildings struct {
	*rescache.Cache[[]Building, *pdxscript.Node]

	index *view[buildingIndex]
}

type buildingIndex struct {
	list   []Building
	byName map[string]int
}

// NewBuildings loads common/buildings.
func NewBuildings(ctx context.Context, r *overlay.Resolver, opts Options) (*Buildings, error) {
	c, err := newCache(ctx, r, projector[[]Building](projectBuildings), opts.cache(BuildingsKind, BuildingsRoot))
	if err != nil {
		return nil, err
	}
	b := &Buildings{Cache: c}
	b.index = newView(b.buildIndex)
	c.Subscribe(func(string) { b.index.invalidate() })
	return b, nil
}

func projectBuildings(_ string, root *pdxscript.Node) ([]Building, bool) {
	var out []Building
	for _, block := range root.ChildrenNamed("buildings") {
		for _, n := range block.Blocks() {
			if n.Key == "" {
				continue
			}
			out = append(out, parseBuilding(n))
		}
	}
	return out, len(out) > 0
}

func parseBuilding(n *pdxscript.Node) Building {
	b := Building{Name: n.Key}
	if v := n.Lookup("level_cap", "state_max"); v != nil {
		b.MaxLevel = atoi(v.Value)
	} else if v := n.Lookup("level_cap", "province_max"); v != nil {
		b.MaxLevel = atoi(v.Value)
	}
	b.Modifiers = append(b.Modifiers, modifier.FromBlock(n.Child("state_modifiers"))...)
	b.Modifiers = append(b.Modifiers, modifier.FromBlock(n.Lookup("country_modifiers", "modifiers"))...)
	return b
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// buildIndex walks files in key order; a later file redefines a name.
func (b *Buildings) buildIndex() buildingIndex {
	byName := make(map[string]Building)
	for file := range b.Cache.All() {
		for _, bld := range file {
			byName[bld.Name] = bld
		}
	}
	list := make([]Building, 0, len(byName))
	for _, bld := range byName {
		list = append(list, bld)
	}
	slices.SortFunc(list, func(x, y Building) int { return strings.Compare(x.Name, y.Name) })

	idx := buildingIndex{list: list, byName: make(map[string]int, len(list))}
	for i, bld := range list {
		idx.byName[bld.Name] = i
	}
	return idx
}

// All returns every building across files, sorted by name. The slice is
// shared and must not be modified.
func (b *Buildings) All() []Building {
	return b.index.get().list
}

// Get returns the effective definition of a building.
func (b *Buildings) Get(name string) (Building, bool) {
	idx := b.index.get()
	i, ok := idx.byName[name]
	if !ok {
		return Building{}, false
	}
	return idx.list[i], true
}
