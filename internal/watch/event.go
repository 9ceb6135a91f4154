// Package watch delivers stabilized, deduplicated filesystem changes.
//
// Raw fsnotify events are appended to a pending list and never delivered
// directly. A periodic consolidation pass promotes events to stabilized,
// drops later duplicates of stabilized events, defers files still being
// written, and delivers what is ready to the registered handlers.
package watch

import (
	"path/filepath"
	"time"
)

// Kind is the kind of change.
type Kind int

const (
	Created Kind = iota + 1
	Changed
	Deleted
	Renamed
	// Overflow means events were lost; handlers should rescan.
	Overflow
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Event is a filesystem change.
type Event struct {
	Kind    Kind
	Path    string
	OldPath string // Renamed only
	Time    time.Time
}

// Name returns the base name of the event path.
func (e Event) Name() string {
	return filepath.Base(e.Path)
}

// duplicates reports whether later is absorbed by e when e is earlier in
// the pending list. A Created absorbs a later Changed for the same path.
// A Changed followed by a Deleted is NOT collapsed.
func (e Event) duplicates(later Event) bool {
	if e.Path != later.Path {
		return false
	}
	if e.Kind == Created && later.Kind == Changed {
		return true
	}
	if e.Kind != later.Kind || e.Name() != later.Name() {
		return false
	}
	if e.Kind == Renamed {
		return e.OldPath == later.OldPath
	}
	return true
}

// needsProbe reports whether delivery waits for the writer to finish.
func (e Event) needsProbe() bool {
	return e.Kind == Created || e.Kind == Changed
}

// Handler receives delivered events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// pendingEvent is an event waiting for consolidation.
type pendingEvent struct {
	Event
	stabilized bool
}
