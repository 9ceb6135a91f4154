// Package overlay resolves the effective file for a relative path across two
// trees: the base game tree and an optional override (mod) tree.
//
// The mod tree wins for any file present in both. A directory listed with
// replace_path in the mod's descriptor.mod is taken from the mod tree only.
// Relative paths are compared case-insensitively and use forward slashes.
package overlay

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/albertocavalcante/modlens/internal/fileset"
	"github.com/albertocavalcante/modlens/internal/log"
)

// ErrNotFound is returned when a relative path exists in neither tree.
var ErrNotFound = errors.New("overlay: file not found")

// Tree identifies which side of the overlay a path belongs to.
type Tree int

const (
	TreeNone Tree = iota
	TreeBase
	TreeMod
)

func (t Tree) String() string {
	switch t {
	case TreeBase:
		return "base"
	case TreeMod:
		return "mod"
	default:
		return "none"
	}
}

// Resolver computes effective files. It is safe for concurrent use.
type Resolver struct {
	baseRoot string
	modRoot  string
	ignores  []string

	mu   sync.RWMutex
	desc *Descriptor
}

// NewResolver creates a resolver and loads the mod descriptor. modRoot may be
// empty or point at a directory that does not exist yet. A malformed
// descriptor is logged and treated as empty.
func NewResolver(baseRoot, modRoot string, ignores ...string) (*Resolver, error) {
	if baseRoot == "" {
		return nil, errors.New("overlay: base root is required")
	}
	base, err := filepath.Abs(baseRoot)
	if err != nil {
		return nil, fmt.Errorf("overlay: resolve base root: %w", err)
	}
	var mod string
	if modRoot != "" {
		if mod, err = filepath.Abs(modRoot); err != nil {
			return nil, fmt.Errorf("overlay: resolve mod root: %w", err)
		}
	}

	r := &Resolver{baseRoot: base, modRoot: mod, ignores: ignores}
	if _, err := r.ReloadDescriptor(); err != nil {
		log.Component("overlay").Warnw("ignoring malformed descriptor", "path", filepath.Join(mod, DescriptorFile), "error", err)
	}
	return r, nil
}

// BaseRoot returns the absolute base tree root.
func (r *Resolver) BaseRoot() string { return r.baseRoot }

// ModRoot returns the absolute mod tree root, or "" when none is configured.
func (r *Resolver) ModRoot() string { return r.modRoot }

// HasMod reports whether the mod tree currently exists on disk.
func (r *Resolver) HasMod() bool {
	return r.modRoot != "" && isDir(r.modRoot)
}

// Descriptor returns the current descriptor.
func (r *Resolver) Descriptor() *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.desc
}

// ReloadDescriptor re-reads descriptor.mod and reports whether it changed.
// On error the descriptor becomes empty.
func (r *Resolver) ReloadDescriptor() (bool, error) {
	desc, err := LoadDescriptor(r.modRoot)

	r.mu.Lock()
	changed := !desc.Equal(r.desc)
	r.desc = desc
	r.mu.Unlock()

	if err == nil {
		log.Component("overlay").Infow("descriptor loaded",
			"name", desc.Name,
			"replaced", desc.ReplacedPaths(),
		)
	}
	return changed, err
}

// Replaced reports whether rel or one of its ancestors is a replaced path.
func (r *Resolver) Replaced(rel string) bool {
	desc := r.Descriptor()
	for p := normalizeRel(rel); p != "" && p != "."; p = path.Dir(p) {
		if desc.Replaces(p) {
			return true
		}
	}
	return false
}

// BasePath returns the absolute base tree path for rel.
func (r *Resolver) BasePath(rel string) string {
	return filepath.Join(r.baseRoot, filepath.FromSlash(rel))
}

// ModPath returns the absolute mod tree path for rel, or "" without a mod.
func (r *Resolver) ModPath(rel string) string {
	if r.modRoot == "" {
		return ""
	}
	return filepath.Join(r.modRoot, filepath.FromSlash(rel))
}

// Locate classifies an absolute path and returns its slash-separated path
// relative to the tree it belongs to.
func (r *Resolver) Locate(abs string) (string, Tree) {
	abs = filepath.Clean(abs)
	// Check the longer root first in case one tree nests inside the other.
	roots := []struct {
		root string
		tree Tree
	}{{r.baseRoot, TreeBase}, {r.modRoot, TreeMod}}
	if len(r.modRoot) > len(r.baseRoot) {
		roots[0], roots[1] = roots[1], roots[0]
	}
	for _, c := range roots {
		if c.root == "" {
			continue
		}
		if rel, ok := within(c.root, abs); ok {
			return rel, c.tree
		}
	}
	return "", TreeNone
}

// Counterpart returns the same relative path in the other tree.
func (r *Resolver) Counterpart(abs string) (string, Tree) {
	rel, tree := r.Locate(abs)
	switch tree {
	case TreeMod:
		return r.BasePath(rel), TreeBase
	case TreeBase:
		if r.modRoot == "" {
			return "", TreeNone
		}
		return r.ModPath(rel), TreeMod
	default:
		return "", TreeNone
	}
}

// Shadowed reports whether abs is a base tree path hidden by the mod tree,
// either by a mod file at the same relative path or by a replaced directory.
func (r *Resolver) Shadowed(abs string) bool {
	rel, tree := r.Locate(abs)
	if tree != TreeBase || !r.HasMod() {
		return false
	}
	if r.Replaced(path.Dir(rel)) {
		return true
	}
	_, ok := lookupFile(r.modRoot, rel)
	return ok
}

// BaseFile returns the base tree file for rel, matching the file name
// case-insensitively.
func (r *Resolver) BaseFile(rel string) (string, bool) {
	return lookupFile(r.baseRoot, rel)
}

// EffectiveFileForPath prefers the mod tree, falls back to the base tree and
// returns ErrNotFound when rel exists in neither.
func (r *Resolver) EffectiveFileForPath(rel string) (string, error) {
	if p, ok := lookupFile(r.modRoot, rel); ok {
		return p, nil
	}
	if p, ok := lookupFile(r.baseRoot, rel); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
}

// EffectiveFilesForDirectory returns the effective files under rel that
// match pattern, sorted by relative path.
func (r *Resolver) EffectiveFilesForDirectory(rel, pattern string, recurse bool) ([]string, error) {
	m, err := fileset.NewMatcher(pattern, r.ignores...)
	if err != nil {
		return nil, err
	}
	return r.EffectiveFiles(rel, m, recurse)
}

// EffectiveFiles is EffectiveFilesForDirectory with a prepared matcher.
//
// Without a mod tree only base files are returned. When rel is replaced only
// mod files are returned. Otherwise the two sets are merged by path relative
// to rel, with mod files hiding same-named base files. Without recursion
// that key is the file name; with recursion a mod file hides only the base
// file at the same relative path, matching Shadowed.
func (r *Resolver) EffectiveFiles(rel string, m *fileset.Matcher, recurse bool) ([]string, error) {
	rel = filepath.ToSlash(rel)

	var mod map[string]string
	if r.HasMod() {
		var err error
		if mod, err = scanDir(r.ModPath(rel), m, recurse); err != nil {
			return nil, fmt.Errorf("overlay: scan mod %s: %w", rel, err)
		}
		if r.Replaced(rel) {
			return sortedValues(mod), nil
		}
	}

	base, err := scanDir(r.BasePath(rel), m, recurse)
	if err != nil {
		return nil, fmt.Errorf("overlay: scan base %s: %w", rel, err)
	}

	merged := base
	for key := range merged {
		// Base files inside a replaced subdirectory are hidden.
		if mod != nil && r.Replaced(path.Join(rel, path.Dir(key))) {
			delete(merged, key)
		}
	}
	for key, p := range mod {
		merged[key] = p
	}
	return sortedValues(merged), nil
}

func sortedValues(files map[string]string) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = files[k]
	}
	return out
}

// within returns abs relative to root when abs is root or below it.
func within(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
