// Package rescache keeps parsed game files in memory and in step with disk.
//
// A Cache maps absolute file paths to immutable content produced by a
// Strategy. It loads the effective file set of one overlay root at
// construction and then applies add, remove, reload and rename deltas as
// the change notifier delivers them. Readers may query from any goroutine
// while mutations run; mutations are serialized.
//
// At most one entry exists per relative path: a mod file replaces the entry
// of its base counterpart, and removing the mod file restores the base one.
package rescache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/modlens/internal/fileset"
	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/watch"
)

// ErrBaseMissing is returned when the cache root does not exist in the base
// tree. The base tree is expected to be complete, so this is fatal.
var ErrBaseMissing = errors.New("rescache: root missing from base tree")

// Strategy turns file bytes into cached content.
type Strategy[C, P any] interface {
	// Parse parses a file. A returned error skips the file with a warning.
	Parse(path string, src []byte) (P, error)

	// Project extracts the cached content. ok=false means the file holds
	// nothing this cache indexes and is omitted.
	Project(path string, parsed P) (content C, ok bool)
}

// LoadMode selects how the initial file set is parsed.
type LoadMode int

const (
	LoadParallel LoadMode = iota
	LoadSequential
)

// Options configures a Cache.
type Options struct {
	// Kind names the cache in logs.
	Kind string

	// Root is a slash-separated path relative to both trees. It may name a
	// directory or a single file.
	Root string

	// Pattern selects files under a directory root, e.g. "*.txt".
	Pattern string

	// Recurse includes subdirectories of a directory root.
	Recurse bool

	Load LoadMode

	// Concurrency limits parallel parsing. Zero means GOMAXPROCS.
	Concurrency int

	// Ignore are extra doublestar globs relative to Root.
	Ignore []string
}

type entry[C any] struct {
	content C
	sum     uint64
	rel     string // lower-cased path relative to the tree root
}

// Cache is a live, overlay-aware map from file path to parsed content.
type Cache[C, P any] struct {
	opts     Options
	resolver *overlay.Resolver
	strategy Strategy[C, P]
	matcher  *fileset.Matcher
	fileRoot bool
	log      *zap.SugaredLogger

	// mu guards the maps below. It is never held while parsing.
	mu      sync.RWMutex
	entries map[string]entry[C]
	byRel   map[string]string // rel -> key of the entry currently visible
	skipped map[string]uint64 // files that produced no content -> fingerprint

	// mutate serializes every mutation path.
	mutate sync.Mutex

	obsMu     sync.Mutex
	observers map[int]func(path string)
	nextObs   int

	// attachMu guards the notifier and whether the mod directory is watched.
	attachMu    sync.Mutex
	notifier    *watch.Notifier
	modAttached bool
}

// New builds a cache and loads its initial file set. It returns
// ErrBaseMissing when Root does not exist in the base tree.
func New[C, P any](ctx context.Context, r *overlay.Resolver, s Strategy[C, P], opts Options) (*Cache[C, P], error) {
	opts.Root = strings.Trim(filepath.ToSlash(opts.Root), "/")
	if opts.Kind == "" {
		opts.Kind = opts.Root
	}

	c := &Cache[C, P]{
		opts:      opts,
		resolver:  r,
		strategy:  s,
		log:       log.Component("rescache").With("kind", opts.Kind),
		entries:   make(map[string]entry[C]),
		byRel:     make(map[string]string),
		skipped:   make(map[string]uint64),
		observers: make(map[int]func(string)),
	}

	basePath := r.BasePath(opts.Root)
	info, err := os.Stat(basePath)
	switch {
	case err == nil:
		c.fileRoot = !info.IsDir()
	case errors.Is(err, os.ErrNotExist):
		// A single-file root may live only in the mod tree, but its
		// directory must exist in the base tree.
		if !isDir(filepath.Dir(basePath)) || !isFile(r.ModPath(opts.Root)) {
			return nil, fmt.Errorf("%w: %s", ErrBaseMissing, basePath)
		}
		c.fileRoot = true
	default:
		return nil, fmt.Errorf("rescache: stat %s: %w", basePath, err)
	}

	pattern := opts.Pattern
	if c.fileRoot {
		pattern = ""
	}
	if c.matcher, err = fileset.NewMatcher(pattern, opts.Ignore...); err != nil {
		return nil, err
	}

	files, err := c.effectiveFiles()
	if err != nil {
		return nil, err
	}
	if err := c.loadAll(ctx, files); err != nil {
		return nil, err
	}

	c.log.Infow("cache loaded", "root", opts.Root, "files", len(files), "entries", c.Len())
	return c, nil
}

// Kind returns the cache name.
func (c *Cache[C, P]) Kind() string { return c.opts.Kind }

// Root returns the relative root.
func (c *Cache[C, P]) Root() string { return c.opts.Root }

// effectiveFiles resolves the files the cache should hold right now.
func (c *Cache[C, P]) effectiveFiles() ([]string, error) {
	if c.fileRoot {
		p, err := c.resolver.EffectiveFileForPath(c.opts.Root)
		if errors.Is(err, overlay.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []string{p}, nil
	}
	return c.resolver.EffectiveFiles(c.opts.Root, c.matcher, c.opts.Recurse)
}

// loadAll parses the initial file set. Nothing is visible to callers until
// every file has been processed.
func (c *Cache[C, P]) loadAll(ctx context.Context, files []string) error {
	if c.opts.Load == LoadSequential {
		for _, p := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.loadFile(p)
		}
		return nil
	}

	limit := c.opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, p := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.loadFile(p)
			return nil
		})
	}
	return g.Wait()
}

// parse reads and parses one file. ok=false means no content.
func (c *Cache[C, P]) parse(p string) (content C, sum uint64, ok bool, err error) {
	src, err := os.ReadFile(p)
	if err != nil {
		return content, 0, false, err
	}
	sum = Fingerprint(src)

	parsed, err := c.strategy.Parse(p, src)
	if err != nil {
		c.log.Warnw("failed to parse file", "path", p, "fingerprint", FingerprintHex(sum), "error", err)
		return content, sum, false, nil
	}
	content, ok = c.strategy.Project(p, parsed)
	return content, sum, ok, nil
}

// loadFile parses p and stores the result. It reports whether an entry was
// inserted.
func (c *Cache[C, P]) loadFile(p string) bool {
	content, sum, ok, err := c.parse(p)
	if err != nil {
		c.log.Warnw("failed to read file", "path", p, "error", err)
		return false
	}
	c.apply(p, content, sum, ok)
	return ok
}

// apply installs the parse result for p. The entry of p's counterpart in
// the other tree (same relative path) is removed. With ok=false p has no
// content and only the removals apply. It reports whether the visible
// entry set changed.
func (c *Cache[C, P]) apply(p string, content C, sum uint64, ok bool) bool {
	rel := c.relKey(p)

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	if old, exists := c.byRel[rel]; exists && old != p {
		delete(c.entries, old)
		delete(c.byRel, rel)
		changed = true
	}
	if _, exists := c.entries[p]; exists {
		delete(c.entries, p)
		delete(c.byRel, rel)
		changed = true
	}
	if !ok {
		c.skipped[p] = sum
		return changed
	}
	c.entries[p] = entry[C]{content: content, sum: sum, rel: rel}
	c.byRel[rel] = p
	delete(c.skipped, p)
	return true
}

// drop removes the entry for p and reports whether one existed.
func (c *Cache[C, P]) drop(p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.skipped, p)
	e, ok := c.entries[p]
	if !ok {
		return false
	}
	delete(c.entries, p)
	if c.byRel[e.rel] == p {
		delete(c.byRel, e.rel)
	}
	return true
}

// dropUnder removes p and every entry below it. It returns the removed keys.
func (c *Cache[C, P]) dropUnder(p string) []string {
	prefix := p + string(filepath.Separator)

	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	for key, e := range c.entries {
		if key != p && !strings.HasPrefix(key, prefix) {
			continue
		}
		delete(c.entries, key)
		if c.byRel[e.rel] == key {
			delete(c.byRel, e.rel)
		}
		removed = append(removed, key)
	}
	for key := range c.skipped {
		if key == p || strings.HasPrefix(key, prefix) {
			delete(c.skipped, key)
		}
	}
	slices.Sort(removed)
	return removed
}

func (c *Cache[C, P]) relKey(p string) string {
	rel, _ := c.resolver.Locate(p)
	return strings.ToLower(rel)
}

// inScope reports whether p is a file this cache tracks in either tree.
func (c *Cache[C, P]) inScope(p string) bool {
	rel, tree := c.resolver.Locate(p)
	if tree == overlay.TreeNone {
		return false
	}
	rel = strings.ToLower(rel)
	root := strings.ToLower(c.opts.Root)

	if c.fileRoot {
		return rel == root
	}
	sub := rel
	if root != "" {
		if !strings.HasPrefix(rel, root+"/") {
			return false
		}
		sub = rel[len(root)+1:]
	}
	if !c.opts.Recurse && path.Dir(sub) != "." {
		return false
	}
	return c.matcher.Match(sub)
}

// TryGet returns the content cached for an absolute path.
func (c *Cache[C, P]) TryGet(key string) (C, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.content, ok
}

// Len returns the number of entries.
func (c *Cache[C, P]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached paths in sorted order.
func (c *Cache[C, P]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Entries iterates over a snapshot of path/content pairs in key order.
func (c *Cache[C, P]) Entries() iter.Seq2[string, C] {
	c.mu.RLock()
	snapshot := make(map[string]C, len(c.entries))
	for k, e := range c.entries {
		snapshot[k] = e.content
	}
	c.mu.RUnlock()

	return func(yield func(string, C) bool) {
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !yield(k, snapshot[k]) {
				return
			}
		}
	}
}

// All iterates over a snapshot of the cached content in key order.
func (c *Cache[C, P]) All() iter.Seq[C] {
	entries := c.Entries()
	return func(yield func(C) bool) {
		for _, content := range entries {
			if !yield(content) {
				return
			}
		}
	}
}

// Subscribe registers fn to run once per visible mutation, with the path
// that triggered it. The returned function unregisters it.
func (c *Cache[C, P]) Subscribe(fn func(path string)) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Cache[C, P]) fire(p string) {
	c.obsMu.Lock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(string), len(ids))
	for i, id := range ids {
		fns[i] = c.observers[id]
	}
	c.obsMu.Unlock()

	c.log.Debugw("resource changed", "path", p)
	for _, fn := range fns {
		fn(p)
	}
}

// watchTarget returns the directory, pattern and recursion to watch in each
// tree.
func (c *Cache[C, P]) watchTarget() (dir, pattern string, recurse bool) {
	if c.fileRoot {
		return path.Dir(c.opts.Root), path.Base(c.opts.Root), false
	}
	return c.opts.Root, c.opts.Pattern, c.opts.Recurse
}

// Attach watches the cache root in both trees and routes the notifier's
// deliveries to the mutation entry points. A missing mod directory is
// skipped; AttachMod watches it once it exists.
func (c *Cache[C, P]) Attach(n *watch.Notifier) error {
	dir, pattern, recurse := c.watchTarget()
	if err := n.Watch(c.resolver.BasePath(dir), pattern, recurse); err != nil {
		return fmt.Errorf("rescache %s: %w", c.opts.Kind, err)
	}

	c.attachMu.Lock()
	c.notifier = n
	c.attachMu.Unlock()
	if _, err := c.AttachMod(); err != nil {
		return err
	}
	n.Subscribe(c)
	return nil
}

// ModDir returns the absolute mod tree directory the cache watches, or ""
// without a configured mod tree.
func (c *Cache[C, P]) ModDir() string {
	dir, _, _ := c.watchTarget()
	return c.resolver.ModPath(dir)
}

// ModAttached reports whether the mod directory is being watched.
func (c *Cache[C, P]) ModAttached() bool {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()
	return c.modAttached
}

// AttachMod adds the mod directory to the attached notifier if it exists
// and is not watched yet. It reports whether a watch was added. Callers
// should Resync afterwards to pick up files written before the watch.
func (c *Cache[C, P]) AttachMod() (bool, error) {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()

	modDir := c.ModDir()
	if c.notifier == nil || c.modAttached || modDir == "" || !isDir(modDir) {
		return false, nil
	}
	_, pattern, recurse := c.watchTarget()
	if err := c.notifier.Watch(modDir, pattern, recurse); err != nil {
		return false, fmt.Errorf("rescache %s: %w", c.opts.Kind, err)
	}
	c.modAttached = true
	c.log.Debugw("watching mod directory", "dir", modDir)
	return true, nil
}

// HandleEvent dispatches a notifier delivery.
func (c *Cache[C, P]) HandleEvent(ev watch.Event) {
	switch ev.Kind {
	case watch.Created:
		c.OnAdded(ev.Path)
	case watch.Changed:
		c.OnReloaded(ev.Path)
	case watch.Deleted:
		c.OnRemoved(ev.Path)
	case watch.Renamed:
		c.OnRenamed(ev.OldPath, ev.Path)
	case watch.Overflow:
		if _, err := c.Resync(); err != nil {
			c.log.Warnw("resync failed", "error", err)
		}
	}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
