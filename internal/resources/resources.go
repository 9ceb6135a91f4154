// Package resources defines the concrete game-data caches built on rescache:
// buildings, static modifiers and ideologies. Each cache exposes lazily
// derived views that are rebuilt on the first read after a change.
package resources

import (
	"context"
	"sync"

	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/internal/watch"
	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// Resource is the kind-independent surface of a loaded cache.
type Resource interface {
	Kind() string
	Root() string
	Len() int
	Keys() []string
	Attach(n *watch.Notifier) error
	ModDir() string
	AttachMod() (bool, error)
	Resync() (*rescache.ChangeSet, error)
	Subscribe(fn func(path string)) (unsubscribe func())
}

// Options are shared by every resource constructor.
type Options struct {
	Load        rescache.LoadMode
	Concurrency int
	Ignore      []string
}

func (o Options) cache(kind, root string) rescache.Options {
	return rescache.Options{
		Kind:        kind,
		Root:        root,
		Pattern:     "*.txt",
		Load:        o.Load,
		Concurrency: o.Concurrency,
		Ignore:      o.Ignore,
	}
}

// projector adapts a projection function into a rescache.Strategy over
// parsed script files.
type projector[C any] func(path string, root *pdxscript.Node) (C, bool)

func (projector[C]) Parse(path string, src []byte) (*pdxscript.Node, error) {
	return pdxscript.Parse(path, src)
}

func (f projector[C]) Project(path string, root *pdxscript.Node) (C, bool) {
	return f(path, root)
}

func newCache[C any](ctx context.Context, r *overlay.Resolver, f projector[C], opts rescache.Options) (*rescache.Cache[C, *pdxscript.Node], error) {
	return rescache.New[C, *pdxscript.Node](ctx, r, f, opts)
}

// view memoizes a value derived from a cache. A build racing with an
// invalidation is returned to its caller but not memoized.
type view[T any] struct {
	build func() T

	mu    sync.Mutex
	gen   uint64
	valid bool
	value T
}

func newView[T any](build func() T) *view[T] {
	return &view[T]{build: build}
}

func (v *view[T]) get() T {
	v.mu.Lock()
	if v.valid {
		value := v.value
		v.mu.Unlock()
		return value
	}
	gen := v.gen
	v.mu.Unlock()

	value := v.build()

	v.mu.Lock()
	if v.gen == gen {
		v.value, v.valid = value, true
	}
	v.mu.Unlock()
	return value
}

func (v *view[T]) invalidate() {
	v.mu.Lock()
	v.gen++
	v.valid = false
	var zero T
	v.value = zero
	v.mu.Unlock()
}
