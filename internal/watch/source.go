package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/modlens/internal/fileset"
)

// addDir adds a single directory to the fsnotify watcher.
func (n *Notifier) addDir(dir string) error {
	if err := n.fsw.Add(dir); err != nil {
		if isFatalFsnotifyError(err) {
			return fmt.Errorf("watch limit reached for %s: %w\n%s", dir, err, watchLimitHint)
		}
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// addRecursive adds a directory and all non-ignored subdirectories.
func (n *Notifier) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories may vanish or be unreadable mid-walk; skip them.
			if os.IsPermission(err) || os.IsNotExist(err) {
				n.log.Debugw("skipping directory", "path", path, "error", err)
				return nil
			}
			n.log.Warnw("walk error", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && fileset.IsIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := n.addDir(path); err != nil {
			if isFatalFsnotifyError(err) {
				return err
			}
			n.log.Debugw("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// rootFor returns the watch root containing path. Caller must hold n.mu.
func (n *Notifier) rootFor(path string) (root, string, bool) {
	for _, r := range n.roots {
		rel, err := filepath.Rel(r.dir, path)
		if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
			continue
		}
		if !r.recurse && filepath.Dir(rel) != "." {
			continue
		}
		return r, rel, true
	}
	return root{}, "", false
}

// handleFsEvent translates one fsnotify event into pending events.
//
// fsnotify reports a rename as RENAME(old) followed by CREATE(new). The two
// are paired into one Renamed event; a RENAME with no CREATE inside
// renameWindow becomes Deleted during consolidation.
func (n *Notifier) handleFsEvent(ev fsnotify.Event) {
	now := time.Now()
	path := filepath.Clean(ev.Name)

	n.mu.Lock()
	r, rel, ok := n.rootFor(path)
	if !ok {
		n.mu.Unlock()
		return
	}
	ignored := rel != "." && r.matcher.Ignored(rel)

	// Any event other than the paired CREATE settles an outstanding rename.
	// A rename onto an ignored name (editor backups) is a delete.
	from := n.renameFrom
	n.renameFrom = nil
	if from != nil && (ignored || !ev.Has(fsnotify.Create)) {
		n.pushLocked(Event{Kind: Deleted, Path: from.Path, Time: from.Time})
		from = nil
	}
	if ignored {
		n.mu.Unlock()
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		isDir := err == nil && info.IsDir()

		if isDir {
			if from != nil {
				n.pushLocked(Event{Kind: Deleted, Path: from.Path, Time: from.Time})
			}
			if !r.recurse && n.cfg.Dirs && r.matcher.Match(rel) {
				n.pushLocked(Event{Kind: Created, Path: path, Time: now})
			}
			n.mu.Unlock()
			if r.recurse {
				n.addCreatedDir(r, path, now)
			}
			return
		}
		if from != nil {
			n.pushLocked(Event{Kind: Renamed, Path: path, OldPath: from.Path, Time: now})
			break
		}
		if r.matcher.Match(rel) {
			n.pushLocked(Event{Kind: Created, Path: path, Time: now})
		}

	case ev.Has(fsnotify.Write):
		if r.matcher.Match(rel) {
			n.pushLocked(Event{Kind: Changed, Path: path, Time: now})
		}

	case ev.Has(fsnotify.Remove):
		n.pushLocked(Event{Kind: Deleted, Path: path, Time: now})

	case ev.Has(fsnotify.Rename):
		n.renameFrom = &Event{Kind: Renamed, Path: path, Time: now}
	}
	n.mu.Unlock()
}

// addCreatedDir watches a directory created (or moved in) after startup and
// reports the tracked files already inside it.
func (n *Notifier) addCreatedDir(r root, dir string, now time.Time) {
	if err := n.addRecursive(dir); err != nil {
		n.log.Warnw("failed to watch new directory", "path", dir, "error", err)
	}

	var created []Event
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fileset.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, err := filepath.Rel(r.dir, path); err == nil && r.matcher.Match(rel) {
			created = append(created, Event{Kind: Created, Path: path, Time: now})
		}
		return nil
	})

	n.mu.Lock()
	for _, ev := range created {
		n.pushLocked(ev)
	}
	n.mu.Unlock()
}
