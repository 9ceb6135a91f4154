package resources

import (
	"slices"
	"sync"

	"github.com/cockroachdb/apd/v3"

	"github.com/albertocavalcante/modlens/internal/modifier"
)

// Composite keeps the merged totals of a selection of static modifiers in
// step with the cache. When the cache changes, only selections whose
// definition changed are removed from and re-added to the merger.
type Composite struct {
	src         *StaticModifiers
	unsubscribe func()

	mu       sync.Mutex
	merger   *modifier.Merger
	selected []string
	applied  map[string][]modifier.Modifier
	onChange []func()
}

// NewComposite merges the named static modifiers and subscribes to src.
// Close releases the subscription.
func NewComposite(src *StaticModifiers, names ...string) *Composite {
	c := &Composite{
		src:     src,
		merger:  modifier.NewMerger(),
		applied: make(map[string][]modifier.Modifier),
	}
	c.unsubscribe = src.Subscribe(func(string) { c.refresh() })
	c.Select(names...)
	return c
}

// Select adds names to the selection. Names already selected are ignored.
func (c *Composite) Select(names ...string) {
	c.mu.Lock()
	for _, name := range names {
		if slices.Contains(c.selected, name) {
			continue
		}
		c.selected = append(c.selected, name)
		if mods, ok := c.src.Get(name); ok {
			c.merger.AddAll(mods)
			c.applied[name] = mods
		}
	}
	c.mu.Unlock()
}

// Deselect removes names from the selection.
func (c *Composite) Deselect(names ...string) {
	c.mu.Lock()
	for _, name := range names {
		i := slices.Index(c.selected, name)
		if i < 0 {
			continue
		}
		c.selected = slices.Delete(c.selected, i, i+1)
		c.merger.RemoveAll(c.applied[name])
		delete(c.applied, name)
	}
	c.mu.Unlock()
}

// OnChange registers fn to run after a cache change altered the totals.
func (c *Composite) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Composite) refresh() {
	c.mu.Lock()
	changed := false
	for _, name := range c.selected {
		mods, ok := c.src.Get(name)
		old, had := c.applied[name]
		if ok == had && modifier.EqualAll(old, mods) {
			continue
		}
		changed = true
		c.merger.RemoveAll(old)
		delete(c.applied, name)
		if ok {
			c.merger.AddAll(mods)
			c.applied[name] = mods
		}
	}
	fns := slices.Clone(c.onChange)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn()
	}
}

// Selected returns the selection in insertion order.
func (c *Composite) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.selected)
}

// Missing returns selected names the cache does not define.
func (c *Composite) Missing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, name := range c.selected {
		if _, ok := c.applied[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Merged returns a snapshot of the merged totals.
func (c *Composite) Merged() []modifier.Modifier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Collect(c.merger.Merged())
}

// Value returns the merged total for a flat key.
func (c *Composite) Value(key string) (apd.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merger.Value(key)
}

// Close stops following the cache.
func (c *Composite) Close() {
	c.unsubscribe()
}
