package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/albertocavalcante/modlens/internal/fileset"
	"github.com/albertocavalcante/modlens/internal/log"
)

const (
	// DefaultInterval is the consolidation period.
	DefaultInterval = 700 * time.Millisecond

	// DefaultMaxPending bounds the pending list. Reaching it discards the
	// list and delivers a single Overflow event instead.
	DefaultMaxPending = 4096

	// renameWindow is how long a RENAME waits for its paired CREATE.
	renameWindow = 100 * time.Millisecond
)

// ErrClosed is returned by operations on a closed notifier.
var ErrClosed = errors.New("watch: notifier closed")

// Config configures a Notifier.
type Config struct {
	// Interval between consolidation passes. Zero means DefaultInterval.
	Interval time.Duration

	// MaxPending bounds the pending list. Zero means DefaultMaxPending.
	MaxPending int

	// Ignore are extra doublestar globs, relative to each watch root.
	Ignore []string

	// Probe reports whether a file is no longer being written. Nil means an
	// exclusive open (flock on unix, share mode 0 on windows).
	Probe func(path string) bool

	// Name tags log lines, usually the owning cache kind.
	Name string

	// Dirs reports directories created directly inside a non-recursive
	// root as Created events when their name matches the pattern.
	Dirs bool
}

// root is one watched directory.
type root struct {
	dir     string
	matcher *fileset.Matcher
	recurse bool
}

// Notifier turns raw filesystem events into stabilized deliveries.
// Handlers are invoked serially, never while the pending lock is held.
type Notifier struct {
	cfg Config
	log *zap.SugaredLogger
	fsw *fsnotify.Watcher

	mu         sync.Mutex
	pending    []pendingEvent
	overflow   bool
	enabled    bool
	handlers   []Handler
	roots      []root
	renameFrom *Event

	running atomic.Bool // a consolidation pass is in progress
	started atomic.Bool
	closed  atomic.Bool
	ticks   sync.WaitGroup
}

// New creates an enabled notifier with no watch roots.
func New(cfg Config) (*Notifier, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.Probe == nil {
		cfg.Probe = exclusiveOpen
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := log.Component("watch")
	if cfg.Name != "" {
		logger = logger.With("notifier", cfg.Name)
	}

	return &Notifier{
		cfg:     cfg,
		log:     logger,
		fsw:     fsw,
		enabled: true,
	}, nil
}

// Subscribe registers a handler. Handlers run in registration order.
func (n *Notifier) Subscribe(h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, h)
}

// Watch begins monitoring dir for files matching pattern. With recurse,
// subdirectories (including ones created later) are watched too.
func (n *Notifier) Watch(dir, pattern string, recurse bool) error {
	if n.closed.Load() {
		return ErrClosed
	}
	m, err := fileset.NewMatcher(pattern, n.cfg.Ignore...)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", abs)
	}

	n.mu.Lock()
	n.roots = append(n.roots, root{dir: abs, matcher: m, recurse: recurse})
	// Longest root first so nested roots win.
	slices.SortFunc(n.roots, func(a, b root) int { return len(b.dir) - len(a.dir) })
	n.mu.Unlock()

	if !recurse {
		return n.addDir(abs)
	}
	return n.addRecursive(abs)
}

// Roots returns the watched directories.
func (n *Notifier) Roots() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.roots))
	for i, r := range n.roots {
		out[i] = r.dir
	}
	return out
}

// SetEnabled starts or stops delivery. Disabling discards everything
// pending. Re-enabling schedules an Overflow so handlers rescan whatever
// changed while disabled.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.enabled == enabled {
		return
	}
	n.enabled = enabled
	n.pending = nil
	n.renameFrom = nil
	n.overflow = enabled
	n.log.Debugw("delivery toggled", "enabled", enabled)
}

// Enabled reports whether delivery is on.
func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// Push appends an event to the pending list. It is not delivered before
// surviving one full consolidation pass.
func (n *Notifier) Push(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushLocked(ev)
}

func (n *Notifier) pushLocked(ev Event) {
	if !n.enabled || n.overflow {
		return
	}
	if len(n.pending) >= n.cfg.MaxPending {
		n.log.Warnw("pending list full, discarding events", "max", n.cfg.MaxPending)
		n.pending = nil
		n.overflow = true
		return
	}
	n.pending = append(n.pending, pendingEvent{Event: ev})
}

// markOverflow discards pending events and schedules an Overflow delivery.
func (n *Notifier) markOverflow() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.enabled {
		return
	}
	n.pending = nil
	n.renameFrom = nil
	n.overflow = true
}

// PendingCount returns the number of events waiting for delivery.
func (n *Notifier) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// Tick runs one consolidation pass and delivers ready events. A call that
// finds another pass running is skipped and returns false.
func (n *Notifier) Tick() bool {
	if !n.running.CompareAndSwap(false, true) {
		log.Trace("consolidation skipped, previous pass still running", "notifier", n.cfg.Name)
		return false
	}
	defer n.running.Store(false)

	ready := n.consolidate(time.Now())
	for _, ev := range ready {
		n.deliver(ev)
	}
	return true
}

// consolidate is one pass over the pending list. It returns the events to
// deliver, in discovery order.
func (n *Notifier) consolidate(now time.Time) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.enabled {
		return nil
	}
	if n.overflow {
		n.overflow = false
		return []Event{{Kind: Overflow, Time: now}}
	}
	if n.renameFrom != nil && now.Sub(n.renameFrom.Time) >= renameWindow {
		// Moved out of every watched tree.
		ev := *n.renameFrom
		n.renameFrom = nil
		ev.Kind = Deleted
		n.pending = append(n.pending, pendingEvent{Event: ev})
	}
	if len(n.pending) == 0 {
		return nil
	}

	var ready []Event
	removed := make([]bool, len(n.pending))

	for i := range n.pending {
		pe := &n.pending[i]
		if removed[i] || !pe.stabilized {
			continue
		}
		for j := i + 1; j < len(n.pending); j++ {
			if !removed[j] && pe.duplicates(n.pending[j].Event) {
				removed[j] = true
			}
		}
		// A deferred event keeps its slot but later events for the same
		// path are not held behind it, so a Deleted may be delivered before
		// an older Created or Changed. The deferred event is always last
		// and its file exists, so handlers still converge on the disk state.
		if pe.needsProbe() && isRegularFile(pe.Path) && !n.cfg.Probe(pe.Path) {
			log.Trace("file still being written, deferring", "path", pe.Path)
			continue
		}
		ready = append(ready, pe.Event)
		removed[i] = true
	}

	kept := n.pending[:0]
	for i, pe := range n.pending {
		if removed[i] {
			continue
		}
		pe.stabilized = true
		kept = append(kept, pe)
	}
	clear(n.pending[len(kept):])
	n.pending = kept

	return ready
}

func (n *Notifier) deliver(ev Event) {
	n.mu.Lock()
	handlers := slices.Clone(n.handlers)
	n.mu.Unlock()

	n.log.Debugw("delivering event", "kind", ev.Kind, "path", ev.Path, "old_path", ev.OldPath)
	for _, h := range handlers {
		h.HandleEvent(ev)
	}
}

// Run consolidates every Interval and feeds fsnotify events into the
// pending list until ctx is cancelled. It returns nil on cancellation and
// an error when the watcher breaks irrecoverably. Run closes the notifier
// on exit and may be called once.
func (n *Notifier) Run(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	if n.closed.Load() {
		return ErrClosed
	}

	ticker := time.NewTicker(n.cfg.Interval)
	defer func() {
		ticker.Stop()
		n.ticks.Wait()
		if err := n.Close(); err != nil {
			n.log.Warnw("close watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			// Each pass runs on its own goroutine so a slow handler never
			// delays intake; Tick drops passes that would overlap.
			n.ticks.Add(1)
			go func() {
				defer n.ticks.Done()
				n.Tick()
			}()

		case ev, ok := <-n.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			n.handleFsEvent(ev)

		case err, ok := <-n.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				n.log.Warnw("kernel event queue overflowed", "error", err)
				n.markOverflow()
				continue
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			n.log.Warnw("fsnotify error", "error", err)
		}
	}
}

// Close releases the underlying watcher. It is safe to call more than once.
func (n *Notifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	return n.fsw.Close()
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
