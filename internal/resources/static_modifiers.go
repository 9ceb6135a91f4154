package resources

import (
	"context"

	"github.com/albertocavalcante/modlens/internal/modifier"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/pkg/pdxscript"
	"github.com/albertocavalcante/modlens/pkg/util"
)

// Static modifier cache identity.
const (
	StaticModifiersKind = "static_modifiers"
	StaticModifiersRoot = "common/modifiers"
)

// StaticModifiers caches named modifier blocks per file.
type StaticModifiers struct {
	*rescache.Cache[map[string][]modifier.Modifier, *pdxscript.Node]

	index *view[map[string][]modifier.Modifier]
}

// NewStaticModifiers loads common/modifiers.
func NewStaticModifiers(ctx context.Context, r *overlay.Resolver, opts Options) (*StaticModifiers, error) {
	c, err := newCache(ctx, r, projector[map[string][]modifier.Modifier](projectStaticModifiers),
		opts.cache(StaticModifiersKind, StaticModifiersRoot))
	if err != nil {
		return nil, err
	}
	s := &StaticModifiers{Cache: c}
	s.index = newView(s.buildIndex)
	c.Subscribe(func(string) { s.index.invalidate() })
	return s, nil
}

func projectStaticModifiers(_ string, root *pdxscript.Node) (map[string][]modifier.Modifier, bool) {
	out := make(map[string][]modifier.Modifier)
	for _, n := range root.Blocks() {
		if n.Key == "" {
			continue
		}
		out[n.Key] = modifier.FromBlock(n)
	}
	return out, len(out) > 0
}

func (s *StaticModifiers) buildIndex() map[string][]modifier.Modifier {
	idx := make(map[string][]modifier.Modifier)
	for file := range s.Cache.All() {
		for name, mods := range file {
			idx[name] = mods
		}
	}
	return idx
}

// Get returns the modifiers of a static modifier. When several files
// define the name, the last file in path order wins.
func (s *StaticModifiers) Get(name string) ([]modifier.Modifier, bool) {
	mods, ok := s.index.get()[name]
	return mods, ok
}

// Names returns every defined name, sorted.
func (s *StaticModifiers) Names() []string {
	return util.SortedKeys(s.index.get())
}
