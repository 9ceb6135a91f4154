package rescache

import (
	"strings"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/internal/overlay"
)

// OnAdded handles a created file. A mod file hides the entry of its base
// counterpart. Base files hidden by the mod tree are ignored.
func (c *Cache[C, P]) OnAdded(p string) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if !isFile(p) || !c.inScope(p) || c.resolver.Shadowed(p) {
		return
	}
	if c.reparse(p) {
		c.fire(p)
	}
}

// OnReloaded handles a changed file: the entry is replaced by a fresh parse.
// Identical bytes are a no-op. Directories are ignored.
func (c *Cache[C, P]) OnReloaded(p string) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if isDir(p) || !c.inScope(p) || c.resolver.Shadowed(p) {
		return
	}
	if c.unchanged(p) {
		log.Trace("reload skipped, content unchanged", "kind", c.opts.Kind, "path", p)
		return
	}

	content, sum, ok, err := c.parse(p)
	if err != nil {
		// Vanished or unreadable; a Deleted event may follow.
		c.log.Debugw("reload could not read file", "path", p, "error", err)
		if c.drop(p) {
			c.fire(p)
		}
		return
	}
	c.apply(p, content, sum, ok)
	c.fire(p)
}

// OnRemoved handles a deleted file or directory. Every entry at or below p
// is removed. Base files that a removed mod file was hiding become visible
// again.
func (c *Cache[C, P]) OnRemoved(p string) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	removed := c.dropUnder(p)
	restored := false

	if rel, tree := c.resolver.Locate(p); tree == overlay.TreeMod {
		if c.inScope(p) {
			restored = c.restoreBase(rel)
		} else {
			restored = c.restoreBelow(rel)
		}
	}

	if len(removed) > 0 || restored {
		c.fire(p)
	}
}

// OnRenamed moves the entry for oldPath to newPath without re-parsing.
// A rename out of scope removes the entry; a rename into scope of a file
// with no entry parses it. Directories are ignored.
func (c *Cache[C, P]) OnRenamed(oldPath, newPath string) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if isDir(newPath) {
		return
	}

	c.mu.RLock()
	e, had := c.entries[oldPath]
	c.mu.RUnlock()

	visible := c.inScope(newPath) && !c.resolver.Shadowed(newPath)
	changed := false

	if had {
		c.drop(oldPath)
		changed = true
		if visible {
			c.apply(newPath, e.content, e.sum, true)
		}
	} else {
		c.drop(oldPath)
		if visible && isFile(newPath) {
			changed = c.reparse(newPath)
		}
	}

	if rel, tree := c.resolver.Locate(oldPath); tree == overlay.TreeMod && c.restoreBase(rel) {
		changed = true
	}
	if changed {
		c.fire(newPath)
	}
}

// reparse parses p and installs the result. It reports whether the visible
// entry set changed.
func (c *Cache[C, P]) reparse(p string) bool {
	if c.unchanged(p) {
		return false
	}
	content, sum, ok, err := c.parse(p)
	if err != nil {
		c.log.Warnw("failed to read file", "path", p, "error", err)
		return false
	}
	return c.apply(p, content, sum, ok)
}

// unchanged reports whether p's bytes match what the cache last saw.
func (c *Cache[C, P]) unchanged(p string) bool {
	c.mu.RLock()
	e, ok := c.entries[p]
	sum := e.sum
	if !ok {
		sum, ok = c.skipped[p]
	}
	c.mu.RUnlock()
	if !ok {
		return false
	}
	cur, err := FingerprintFile(p)
	return err == nil && cur == sum
}

// restoreBase re-inserts the base file for rel if it is now visible.
func (c *Cache[C, P]) restoreBase(rel string) bool {
	bp, ok := c.resolver.BaseFile(rel)
	if !ok || !c.inScope(bp) || c.resolver.Shadowed(bp) {
		return false
	}
	c.mu.RLock()
	_, exists := c.entries[bp]
	c.mu.RUnlock()
	if exists {
		return false
	}
	if !c.reparse(bp) {
		return false
	}
	c.log.Debugw("restored base file", "path", bp)
	return true
}

// restoreBelow restores every base file under the removed mod directory rel.
func (c *Cache[C, P]) restoreBelow(rel string) bool {
	files, err := c.effectiveFiles()
	if err != nil {
		c.log.Warnw("failed to list files", "error", err)
		return false
	}
	restored := false
	for _, f := range files {
		frel, tree := c.resolver.Locate(f)
		if tree != overlay.TreeBase || !isBelow(frel, rel) {
			continue
		}
		if c.restoreBase(frel) {
			restored = true
		}
	}
	return restored
}

// Resync reconciles the cache with disk and returns what it changed. It is
// used after lost events, after delivery is re-enabled, and when the
// descriptor changes which files are effective.
func (c *Cache[C, P]) Resync() (*ChangeSet, error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	files, err := c.effectiveFiles()
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(files))
	for _, f := range files {
		want[f] = struct{}{}
	}

	c.mu.RLock()
	known := make(map[string]uint64, len(c.entries)+len(c.skipped))
	var stale []string
	for k, e := range c.entries {
		known[k] = e.sum
		if _, ok := want[k]; !ok {
			stale = append(stale, k)
		}
	}
	for k, sum := range c.skipped {
		known[k] = sum
	}
	c.mu.RUnlock()

	cs := NewChangeSet()
	cs.Deleted = append(cs.Deleted, stale...)
	for _, f := range files {
		sum, ok := known[f]
		if !ok {
			cs.Added = append(cs.Added, f)
			continue
		}
		if cur, err := FingerprintFile(f); err != nil || cur != sum {
			cs.Modified = append(cs.Modified, f)
		}
	}
	cs.sort()

	var changed []string
	for _, p := range cs.Deleted {
		if c.drop(p) {
			changed = append(changed, p)
		}
	}
	c.mu.Lock()
	for k := range c.skipped {
		if _, ok := want[k]; !ok {
			delete(c.skipped, k)
		}
	}
	c.mu.Unlock()

	for _, p := range append(cs.Added, cs.Modified...) {
		content, sum, ok, err := c.parse(p)
		if err != nil {
			c.log.Warnw("failed to read file", "path", p, "error", err)
			if c.drop(p) {
				changed = append(changed, p)
			}
			continue
		}
		if c.apply(p, content, sum, ok) {
			changed = append(changed, p)
		}
	}

	if !cs.IsEmpty() {
		c.log.Debugw("resync applied",
			"added", len(cs.Added),
			"modified", len(cs.Modified),
			"deleted", len(cs.Deleted),
		)
	}
	for _, p := range changed {
		c.fire(p)
	}
	return cs, nil
}

// isBelow reports whether rel is dir or lies under it, case-insensitively.
func isBelow(rel, dir string) bool {
	rel, dir = strings.ToLower(rel), strings.ToLower(dir)
	if dir == "" || rel == dir {
		return true
	}
	return strings.HasPrefix(rel, dir+"/")
}
