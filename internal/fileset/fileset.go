// Package fileset decides which files and directories modlens tracks.
//
// # Single Source of Truth
//
// Both the directory scanner (initial cache load, resync) and the change
// notifier (event intake) filter paths through a Matcher, so a file is
// visible to a cache at startup if and only if its events reach the cache
// later.
//
// Patterns are doublestar globs, matched case-insensitively against slash
// separated paths. A pattern without a '/' matches the file name only.
package fileset

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoredDirs contains directory names skipped during scanning and watching.
var IgnoredDirs = []string{
	".git",
	".svn",
	".hg",
	".idea",
	".vscode",
	".modlens",
}

// DefaultIgnores are globs for editor swap files, OS metadata and partial
// downloads that generate high-frequency noise.
var DefaultIgnores = []string{
	"**/*.swp",
	"**/*.swo",
	"**/*.swx",
	"**/*~",
	"**/*.tmp",
	"**/#*#",
	"**/.#*",
	"**/4913", // vim write test file
	"**/.DS_Store",
	"**/Thumbs.db",
}

// Matcher selects files by a pattern and rejects ignored paths.
type Matcher struct {
	pattern string
	ignores []string
}

// NewMatcher validates pattern and extra ignore globs. An empty pattern
// matches every file.
func NewMatcher(pattern string, ignores ...string) (*Matcher, error) {
	all := make([]string, 0, len(DefaultIgnores)+len(ignores))
	all = append(all, DefaultIgnores...)
	all = append(all, ignores...)

	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("fileset: invalid pattern %q", pattern)
	}
	for i, pat := range all {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("fileset: invalid ignore pattern %q", pat)
		}
		all[i] = strings.ToLower(pat)
	}

	return &Matcher{pattern: strings.ToLower(pattern), ignores: all}, nil
}

// MustMatcher is NewMatcher for patterns known to be valid.
func MustMatcher(pattern string, ignores ...string) *Matcher {
	m, err := NewMatcher(pattern, ignores...)
	if err != nil {
		panic(err)
	}
	return m
}

// Pattern returns the file pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether rel, a path relative to the scanned root, is a
// tracked file.
func (m *Matcher) Match(rel string) bool {
	normalized := strings.ToLower(filepath.ToSlash(rel))
	if m.Ignored(normalized) {
		return false
	}
	if m.pattern == "" {
		return true
	}

	target := normalized
	if !strings.Contains(m.pattern, "/") {
		target = path.Base(normalized)
	}
	ok, err := doublestar.Match(m.pattern, target)
	return err == nil && ok
}

// Ignored reports whether rel matches an ignore glob or sits under an
// ignored directory.
func (m *Matcher) Ignored(rel string) bool {
	normalized := strings.ToLower(filepath.ToSlash(rel))
	for _, part := range strings.Split(normalized, "/") {
		if IsIgnoredDir(part) {
			return true
		}
	}
	for _, pat := range m.ignores {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// IsIgnoredDir reports whether a directory with this name is skipped.
func IsIgnoredDir(name string) bool {
	for _, dir := range IgnoredDirs {
		if strings.EqualFold(name, dir) {
			return true
		}
	}
	return false
}
