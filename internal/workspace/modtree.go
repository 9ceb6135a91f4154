package workspace

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/modlens/internal/watch"
)

// waiter watches dir once it exists.
type waiter struct {
	dir    string
	attach func() error
}

func (s *Service) onTreeEvent(ev watch.Event) {
	if ev.Kind != watch.Created && ev.Kind != watch.Overflow {
		return
	}
	attached, err := s.catchUp()
	if err != nil {
		s.log.Warnw("failed to follow mod tree", "error", err)
	}
	if !attached {
		return
	}
	if err := s.resync("mod directory appeared"); err != nil {
		s.log.Warnw("resync failed", "error", err)
	}
}

// catchUp attaches every waiting directory that exists now and watches the
// nearest existing ancestor of the rest. It repeats until no waiting
// directory appeared meanwhile, so a directory created while an ancestor
// was being armed is not missed. It reports whether anything was attached.
// A waiter whose attach fails is dropped.
func (s *Service) catchUp() (bool, error) {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()

	attached := false
	var errs []error
	for {
		var remaining []waiter
		for _, w := range s.waiting {
			if !isDir(w.dir) {
				remaining = append(remaining, w)
				continue
			}
			if err := w.attach(); err != nil {
				errs = append(errs, err)
				continue
			}
			s.log.Infow("mod directory appeared", "dir", w.dir)
			attached = true
		}
		s.waiting = remaining

		for _, w := range s.waiting {
			anc := nearestDir(w.dir)
			if anc == "" || s.armed[anc] {
				continue
			}
			if err := s.tree.Watch(anc, "*", false); err != nil {
				errs = append(errs, err)
				continue
			}
			s.armed[anc] = true
			s.log.Debugw("waiting for mod directory", "dir", w.dir, "watching", anc)
		}

		if !s.anyWaitingExists() {
			return attached, errors.Join(errs...)
		}
	}
}

func (s *Service) anyWaitingExists() bool {
	for _, w := range s.waiting {
		if isDir(w.dir) {
			return true
		}
	}
	return false
}

// Waiting returns the mod directories not yet watched because they do not
// exist.
func (s *Service) Waiting() []string {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	out := make([]string, len(s.waiting))
	for i, w := range s.waiting {
		out[i] = w.dir
	}
	return out
}

// nearestDir returns the closest existing ancestor of dir, or "" if none.
func nearestDir(dir string) string {
	for d := filepath.Dir(dir); ; d = filepath.Dir(d) {
		if isDir(d) {
			return d
		}
		if filepath.Dir(d) == d {
			return ""
		}
	}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
