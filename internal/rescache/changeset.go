package rescache

import (
	"slices"
)

// ChangeSet is the difference between the cached entries and the files on
// disk, as computed by Resync.
type ChangeSet struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

// NewChangeSet creates an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:    []string{},
		Modified: []string{},
		Deleted:  []string{},
	}
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	if cs == nil {
		return true
	}
	return len(cs.Added) == 0 && len(cs.Modified) == 0 && len(cs.Deleted) == 0
}

// TotalChanges returns the total number of changed files.
func (cs *ChangeSet) TotalChanges() int {
	if cs == nil {
		return 0
	}
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// sort sorts all slices for deterministic output.
func (cs *ChangeSet) sort() {
	if cs == nil {
		return
	}
	slices.Sort(cs.Added)
	slices.Sort(cs.Modified)
	slices.Sort(cs.Deleted)
}
