package buffer

// DanglingList holds descriptors detached from a channel because the
// channel's owning module (or node) is gone but at least one borrower
// still holds the bytes. Entries are removed as their last borrower calls
// Release and the refcount reaches zero.
type DanglingList struct {
	entries []*Descriptor
}

// Add appends a descriptor to the dangling list.
func (l *DanglingList) Add(d *Descriptor) {
	l.entries = append(l.entries, d)
}

// Remove drops d from the dangling list, if present.
func (l *DanglingList) Remove(d *Descriptor) {
	for i, e := range l.entries {
		if e == d {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// Len reports how many descriptors are currently dangling.
func (l *DanglingList) Len() int { return len(l.entries) }

// Snapshot returns a shallow copy of the current dangling entries, safe to
// range over after releasing the registry lock.
func (l *DanglingList) Snapshot() []*Descriptor {
	out := make([]*Descriptor, len(l.entries))
	copy(out, l.entries)
	return out
}
