package resources

import (
	"context"
	"slices"
	"strings"

	"github.com/albertocavalcante/modlens/internal/modifier"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// Ideology cache identity.
const (
	IdeologiesKind = "ideologies"
	IdeologiesRoot = "common/ideologies"
)

// Ideology is one entry of an ideologies block.
type Ideology struct {
	Name string

	// Types are the sub-ideology names in file order.
	Types []string

	// Modifiers is the union of the modifiers and faction_modifiers
	// blocks. The rules block is not a modifier and is left out.
	Modifiers []modifier.Modifier
}

// Ideologies caches ideology definitions per file.
type Ideologies struct {
	*rescache.Cache[[]Ideology, *pdxscript.Node]

	index *view[ideologyIndex]
}

type ideologyIndex struct {
	list   []Ideology
	byName map[string]int
	byType map[string]int
}

// NewIdeologies loads common/ideologies.
func NewIdeologies(ctx context.Context, r *overlay.Resolver, opts Options) (*Ideologies, error) {
	c, err := newCache(ctx, r, projector[[]Ideology](projectIdeologies), opts.cache(IdeologiesKind, IdeologiesRoot))
	if err != nil {
		return nil, err
	}
	i := &Ideologies{Cache: c}
	i.index = newView(i.buildIndex)
	c.Subscribe(func(string) { i.index.invalidate() })
	return i, nil
}

func projectIdeologies(_ string, root *pdxscript.Node) ([]Ideology, bool) {
	var out []Ideology
	for _, block := range root.ChildrenNamed("ideologies") {
		for _, n := range block.Blocks() {
			if n.Key == "" {
				continue
			}
			ideo := Ideology{Name: n.Key}
			for _, t := range n.Child("types").Blocks() {
				ideo.Types = append(ideo.Types, t.Key)
			}
			ideo.Modifiers = append(ideo.Modifiers, modifier.FromBlock(n.Child("modifiers"))...)
			ideo.Modifiers = append(ideo.Modifiers, modifier.FromBlock(n.Child("faction_modifiers"))...)
			out = append(out, ideo)
		}
	}
	return out, len(out) > 0
}

func (i *Ideologies) buildIndex() ideologyIndex {
	byName := make(map[string]Ideology)
	for file := range i.Cache.All() {
		for _, ideo := range file {
			byName[ideo.Name] = ideo
		}
	}
	list := make([]Ideology, 0, len(byName))
	for _, ideo := range byName {
		list = append(list, ideo)
	}
	slices.SortFunc(list, func(x, y Ideology) int { return strings.Compare(x.Name, y.Name) })

	idx := ideologyIndex{
		list:   list,
		byName: make(map[string]int, len(list)),
		byType: make(map[string]int),
	}
	for n, ideo := range list {
		idx.byName[ideo.Name] = n
		for _, t := range ideo.Types {
			idx.byType[t] = n
		}
	}
	return idx
}

// All returns every ideology sorted by name. The slice is shared and must
// not be modified.
func (i *Ideologies) All() []Ideology {
	return i.index.get().list
}

// Get returns an ideology by name.
func (i *Ideologies) Get(name string) (Ideology, bool) {
	idx := i.index.get()
	n, ok := idx.byName[name]
	if !ok {
		return Ideology{}, false
	}
	return idx.list[n], true
}

// ForType returns the ideology that declares a sub-ideology.
func (i *Ideologies) ForType(typeName string) (Ideology, bool) {
	idx := i.index.get()
	n, ok := idx.byType[typeName]
	if !ok {
		return Ideology{}, false
	}
	return idx.list[n], true
}
