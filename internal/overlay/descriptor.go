package overlay

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/modlens/pkg/pdxscript"
)

// DescriptorFile is the override descriptor at the root of a mod tree.
const DescriptorFile = "descriptor.mod"

// Descriptor is the parsed override descriptor.
type Descriptor struct {
	Name     string
	replaced map[string]struct{}
}

// EmptyDescriptor returns a descriptor with no name and no replaced paths.
func EmptyDescriptor() *Descriptor {
	return &Descriptor{replaced: map[string]struct{}{}}
}

// LoadDescriptor reads descriptor.mod from modRoot. A missing file yields
// an empty descriptor and no error.
func LoadDescriptor(modRoot string) (*Descriptor, error) {
	if modRoot == "" {
		return EmptyDescriptor(), nil
	}
	src, err := os.ReadFile(filepath.Join(modRoot, DescriptorFile))
	if errors.Is(err, fs.ErrNotExist) {
		return EmptyDescriptor(), nil
	}
	if err != nil {
		return EmptyDescriptor(), err
	}
	return ParseDescriptor(filepath.Join(modRoot, DescriptorFile), src)
}

// ParseDescriptor parses descriptor source. Unknown keys are ignored.
func ParseDescriptor(name string, src []byte) (*Descriptor, error) {
	root, err := pdxscript.Parse(name, src)
	if err != nil {
		return EmptyDescriptor(), err
	}

	d := EmptyDescriptor()
	if n := root.Child("name"); n != nil && n.IsLeaf() {
		d.Name = n.Value
	}
	for _, n := range root.ChildrenNamed("replace_path") {
		if !n.IsLeaf() {
			continue
		}
		if key := normalizeRel(n.Value); key != "" {
			d.replaced[key] = struct{}{}
		}
	}
	return d, nil
}

// Replaces reports whether rel is listed as a replaced path.
func (d *Descriptor) Replaces(rel string) bool {
	if d == nil {
		return false
	}
	_, ok := d.replaced[normalizeRel(rel)]
	return ok
}

// ReplacedPaths returns the replaced paths in sorted, normalized form.
func (d *Descriptor) ReplacedPaths() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.replaced))
	for p := range d.replaced {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether two descriptors declare the same name and paths.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Name == other.Name && slices.Equal(d.ReplacedPaths(), other.ReplacedPaths())
}

// normalizeRel canonicalizes a relative path: forward slashes, no leading or
// trailing separators, lower case.
func normalizeRel(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return ""
	}
	return strings.ToLower(filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel))))
}
