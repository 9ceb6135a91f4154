package overlay

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeFile creates a file and any missing parent directories.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTrees(t *testing.T) (base, mod string) {
	t.Helper()
	dir := t.TempDir()
	base = filepath.Join(dir, "game")
	mod = filepath.Join(dir, "mod")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatal(err)
	}
	return base, mod
}

func TestParseDescriptor(t *testing.T) {
	src := `
name = "Road to 56"
version = "1.0"
replace_path = "common/ideologies"
replace_path = "history\states"
replace_path = "/Common/Names/"
tags = { "Alternative History" }
`
	d, err := ParseDescriptor("descriptor.mod", []byte(src))
	if err != nil {
		t.Fatalf("ParseDescriptor() error = %v", err)
	}
	if d.Name != "Road to 56" {
		t.Errorf("Name = %q, want %q", d.Name, "Road to 56")
	}
	want := []string{"common/ideologies", "common/names", "history/states"}
	if diff := cmp.Diff(want, d.ReplacedPaths()); diff != "" {
		t.Errorf("ReplacedPaths() mismatch (-want +got):\n%s", diff)
	}
	if !d.Replaces("COMMON/Ideologies") {
		t.Error("Replaces() should be case-insensitive")
	}
	if !d.Replaces(`history\states\`) {
		t.Error("Replaces() should normalize separators")
	}
	if d.Replaces("common") {
		t.Error("Replaces(common) = true, want false")
	}
}

func TestLoadDescriptorMissing(t *testing.T) {
	d, err := LoadDescriptor(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDescriptor() error = %v", err)
	}
	if d.Name != "" || len(d.ReplacedPaths()) != 0 {
		t.Errorf("missing descriptor should be empty, got %+v", d)
	}
}

func TestLoadDescriptorMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DescriptorFile, "name = {")
	d, err := LoadDescriptor(dir)
	if err == nil {
		t.Fatal("LoadDescriptor() error = nil, want parse error")
	}
	if d == nil || len(d.ReplacedPaths()) != 0 {
		t.Errorf("malformed descriptor should fall back to empty, got %+v", d)
	}
}

func TestEffectiveFileForPath(t *testing.T) {
	base, mod := newTrees(t)
	basePath := writeFile(t, base, "common/x.txt", "a = 1")
	writeFile(t, base, "common/only_base.txt", "a = 1")
	modPath := writeFile(t, mod, "common/x.txt", "a = 2")
	onlyMod := writeFile(t, mod, "common/only_mod.txt", "a = 3")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	tests := []struct {
		rel  string
		want string
	}{
		{"common/x.txt", modPath},
		{"common/only_base.txt", filepath.Join(base, "common", "only_base.txt")},
		{"common/only_mod.txt", onlyMod},
	}
	for _, tt := range tests {
		got, err := r.EffectiveFileForPath(tt.rel)
		if err != nil {
			t.Errorf("EffectiveFileForPath(%q) error = %v", tt.rel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EffectiveFileForPath(%q) = %q, want %q", tt.rel, got, tt.want)
		}
	}

	if _, err := r.EffectiveFileForPath("common/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("EffectiveFileForPath(missing) error = %v, want ErrNotFound", err)
	}

	// Deleting the override falls back to base.
	if err := os.Remove(modPath); err != nil {
		t.Fatal(err)
	}
	got, err := r.EffectiveFileForPath("common/x.txt")
	if err != nil || got != basePath {
		t.Errorf("after delete EffectiveFileForPath = %q, %v; want %q", got, err, basePath)
	}
}

func TestEffectiveFilesForDirectory(t *testing.T) {
	base, mod := newTrees(t)
	writeFile(t, base, "common/buildings/00_buildings.txt", "")
	writeFile(t, base, "common/buildings/01_extra.txt", "")
	writeFile(t, base, "common/buildings/readme.md", "")
	writeFile(t, mod, "common/buildings/00_BUILDINGS.txt", "")
	writeFile(t, mod, "common/buildings/02_mod.txt", "")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := r.EffectiveFilesForDirectory("common/buildings", "*.txt", false)
	if err != nil {
		t.Fatalf("EffectiveFilesForDirectory() error = %v", err)
	}
	want := []string{
		filepath.Join(mod, "common", "buildings", "00_BUILDINGS.txt"),
		filepath.Join(base, "common", "buildings", "01_extra.txt"),
		filepath.Join(mod, "common", "buildings", "02_mod.txt"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EffectiveFilesForDirectory() mismatch (-want +got):\n%s", diff)
	}
}

// Recursive listings merge by path relative to the queried directory, the
// same key Shadowed uses, so a mod file only hides the base file at its own
// relative path.
func TestEffectiveFilesRecursiveKeysByRelativePath(t *testing.T) {
	base, mod := newTrees(t)
	baseA := writeFile(t, base, "common/x/a/foo.txt", "")
	baseB := writeFile(t, base, "common/x/b/foo.txt", "")
	modB := writeFile(t, mod, "common/x/b/FOO.txt", "")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := r.EffectiveFilesForDirectory("common/x", "*.txt", true)
	if err != nil {
		t.Fatalf("EffectiveFilesForDirectory() error = %v", err)
	}
	if diff := cmp.Diff([]string{baseA, modB}, got); diff != "" {
		t.Errorf("EffectiveFilesForDirectory() mismatch (-want +got):\n%s", diff)
	}

	if r.Shadowed(baseA) {
		t.Errorf("Shadowed(%s) = true, want false", baseA)
	}
	if !r.Shadowed(baseB) {
		t.Errorf("Shadowed(%s) = false, want true", baseB)
	}
}

func TestEffectiveFilesWithoutMod(t *testing.T) {
	base, mod := newTrees(t) // mod dir never created
	writeFile(t, base, "common/ideologies/a.txt", "")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if r.HasMod() {
		t.Error("HasMod() = true, want false")
	}
	got, err := r.EffectiveFilesForDirectory("common/ideologies", "*.txt", false)
	if err != nil {
		t.Fatalf("EffectiveFilesForDirectory() error = %v", err)
	}
	if diff := cmp.Diff([]string{filepath.Join(base, "common", "ideologies", "a.txt")}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFullDirectoryReplacement(t *testing.T) {
	base, mod := newTrees(t)
	writeFile(t, base, "common/ideologies/fascism.txt", "")
	writeFile(t, base, "common/ideologies/communism.txt", "")
	modFile := writeFile(t, mod, "common/ideologies/monarchism.txt", "")
	writeFile(t, mod, DescriptorFile, `name = "x"`+"\n"+`replace_path = "common/ideologies"`)

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := r.EffectiveFilesForDirectory("common/ideologies", "*.txt", false)
	if err != nil {
		t.Fatalf("EffectiveFilesForDirectory() error = %v", err)
	}
	if diff := cmp.Diff([]string{modFile}, got); diff != "" {
		t.Errorf("replaced dir mismatch (-want +got):\n%s", diff)
	}

	// A recursive query from a parent drops base files in the replaced subdir.
	writeFile(t, base, "common/other.txt", "")
	got, err = r.EffectiveFilesForDirectory("common", "*.txt", true)
	if err != nil {
		t.Fatalf("EffectiveFilesForDirectory() error = %v", err)
	}
	want := []string{modFile, filepath.Join(base, "common", "other.txt")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recursive mismatch (-want +got):\n%s", diff)
	}

	if !r.Shadowed(filepath.Join(base, "common", "ideologies", "fascism.txt")) {
		t.Error("base file in replaced dir should be shadowed")
	}
}

func TestReloadDescriptor(t *testing.T) {
	base, mod := newTrees(t)
	writeFile(t, mod, DescriptorFile, `name = "x"`)

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if r.Replaced("common/ideologies") {
		t.Fatal("Replaced() = true before descriptor change")
	}

	writeFile(t, mod, DescriptorFile, `name = "x"`+"\n"+`replace_path = "common/ideologies"`)
	changed, err := r.ReloadDescriptor()
	if err != nil {
		t.Fatalf("ReloadDescriptor() error = %v", err)
	}
	if !changed {
		t.Error("ReloadDescriptor() changed = false, want true")
	}
	if !r.Replaced("common/ideologies/sub") {
		t.Error("Replaced() should cover descendants of a replaced path")
	}

	changed, err = r.ReloadDescriptor()
	if err != nil || changed {
		t.Errorf("second ReloadDescriptor() = %v, %v; want false, nil", changed, err)
	}
}

func TestLocateAndCounterpart(t *testing.T) {
	base, mod := newTrees(t)
	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	rel, tree := r.Locate(filepath.Join(mod, "common", "a.txt"))
	if rel != "common/a.txt" || tree != TreeMod {
		t.Errorf("Locate(mod) = %q, %v", rel, tree)
	}
	rel, tree = r.Locate(filepath.Join(base, "common", "a.txt"))
	if rel != "common/a.txt" || tree != TreeBase {
		t.Errorf("Locate(base) = %q, %v", rel, tree)
	}
	if _, tree := r.Locate(filepath.Join(filepath.Dir(base), "elsewhere", "a.txt")); tree != TreeNone {
		t.Errorf("Locate(outside) tree = %v, want none", tree)
	}

	cp, tree := r.Counterpart(filepath.Join(mod, "common", "a.txt"))
	if cp != filepath.Join(base, "common", "a.txt") || tree != TreeBase {
		t.Errorf("Counterpart(mod) = %q, %v", cp, tree)
	}
}

func TestShadowed(t *testing.T) {
	base, mod := newTrees(t)
	baseFile := writeFile(t, base, "common/x.txt", "")
	baseOnly := writeFile(t, base, "common/y.txt", "")
	modFile := writeFile(t, mod, "common/x.txt", "")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if !r.Shadowed(baseFile) {
		t.Error("Shadowed(base x) = false, want true")
	}
	if r.Shadowed(baseOnly) {
		t.Error("Shadowed(base y) = true, want false")
	}
	if r.Shadowed(modFile) {
		t.Error("mod files are never shadowed")
	}
}

func TestNewResolverRequiresBase(t *testing.T) {
	if _, err := NewResolver("", "mod"); err == nil {
		t.Error("NewResolver(\"\") error = nil, want error")
	}
}

func TestLookupIgnoresFileNameCase(t *testing.T) {
	base, mod := newTrees(t)
	baseFile := writeFile(t, base, "common/buildings/00_buildings.txt", "")
	writeFile(t, mod, "common/buildings/00_BUILDINGS.txt", "")

	r, err := NewResolver(base, mod)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if !r.Shadowed(baseFile) {
		t.Error("base file should be shadowed by a differently cased mod file")
	}
	got, ok := r.BaseFile("common/buildings/00_BUILDINGS.txt")
	if !ok || got != baseFile {
		t.Errorf("BaseFile() = %q, %v; want %q", got, ok, baseFile)
	}
}
