package overlay

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/modlens/internal/fileset"
)

// scanDir lists tracked files under dir. Keys are lower-cased slash paths
// relative to dir; values are absolute paths. A missing dir yields no files.
func scanDir(dir string, m *fileset.Matcher, recurse bool) (map[string]string, error) {
	files := make(map[string]string)

	if !recurse {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return files, nil
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !m.Match(e.Name()) {
				continue
			}
			files[strings.ToLower(e.Name())] = filepath.Join(dir, e.Name())
		}
		return files, nil
	}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if d.IsDir() {
			if p != dir && fileset.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if !m.Match(rel) {
			return nil
		}
		files[strings.ToLower(filepath.ToSlash(rel))] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// lookupFile finds rel under root, matching the final path element
// case-insensitively when no exact match exists.
func lookupFile(root, rel string) (string, bool) {
	if root == "" {
		return "", false
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	if isFile(full) {
		return full, true
	}
	dir, name := filepath.Split(full)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
