// Package registry provides a resource factory registry for dynamic cache loading.
// It allows modlens to build only the resource caches enabled in configuration.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/resources"
	"github.com/albertocavalcante/modlens/pkg/config"
)

// ResourceFactory builds and loads one resource cache.
type ResourceFactory func(ctx context.Context, r *overlay.Resolver, opts resources.Options) (resources.Resource, error)

var (
	mu sync.RWMutex

	// factories maps resource kinds to their factory functions.
	factories = map[string]ResourceFactory{
		resources.StaticModifiersKind: func(ctx context.Context, r *overlay.Resolver, opts resources.Options) (resources.Resource, error) {
			return resources.NewStaticModifiers(ctx, r, opts)
		},
		resources.BuildingsKind: func(ctx context.Context, r *overlay.Resolver, opts resources.Options) (resources.Resource, error) {
			return resources.NewBuildings(ctx, r, opts)
		},
		resources.IdeologiesKind: func(ctx context.Context, r *overlay.Resolver, opts resources.Options) (resources.Resource, error) {
			return resources.NewIdeologies(ctx, r, opts)
		},
	}

	// kindOrder defines the order in which caches are loaded.
	// Static modifiers come first since other kinds reference them by name.
	kindOrder = []string{
		resources.StaticModifiersKind,
		resources.BuildingsKind,
		resources.IdeologiesKind,
	}
)

// LoadResources builds the caches enabled in cfg, in load order. The first
// failure aborts the load.
func LoadResources(ctx context.Context, cfg *config.Config, r *overlay.Resolver, opts resources.Options) ([]resources.Resource, error) {
	return LoadResourcesByName(ctx, cfg.EnabledResources(AvailableKinds()), r, opts)
}

// LoadResourcesByName builds specific caches in the given order. Unknown
// kinds are an error.
func LoadResourcesByName(ctx context.Context, kinds []string, r *overlay.Resolver, opts resources.Options) ([]resources.Resource, error) {
	var out []resources.Resource
	for _, kind := range kinds {
		mu.RLock()
		factory, ok := factories[kind]
		mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("unknown resource kind %q", kind)
		}
		res, err := factory(ctx, r, opts)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// AvailableKinds returns the registered kinds in load order. Kinds
// registered at runtime follow the built-in ones, sorted.
func AvailableKinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for _, kind := range kindOrder {
		if _, ok := factories[kind]; ok {
			names = append(names, kind)
		}
	}
	var extra []string
	for kind := range factories {
		if !slices.Contains(kindOrder, kind) {
			extra = append(extra, kind)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// IsKindAvailable checks if a resource factory is registered.
func IsKindAvailable(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[kind]
	return ok
}

// RegisterKind registers a resource factory.
// This allows external packages to add new resource kinds.
func RegisterKind(kind string, factory ResourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}
