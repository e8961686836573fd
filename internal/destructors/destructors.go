// Package destructors implements the opt-in per-arena destructor registry
// the arena's design notes describe as a policy choice: arenas don't call
// destructors by default (that is the arena-user's responsibility, and
// typically moot for POD/bulk-scoped data), but a caller that wants typed
// objects destroyed on Reset/Release can register one explicitly via
// ConstructTracked.
package destructors

// Entry is one registered (pointer, destructor) pair.
type Entry struct {
	Ptr     any
	Destroy func(any)
}

// Registry is a slice-backed, append-only list of destructor entries for a
// single arena epoch (between construction/Reset and the next
// Reset/Release). Drain runs entries in LIFO order, mirroring typical
// stack-unwind destruction order, then clears the registry.
type Registry struct {
	entries []Entry
}

// Register appends a destructor entry.
func (r *Registry) Register(ptr any, destroy func(any)) {
	r.entries = append(r.entries, Entry{Ptr: ptr, Destroy: destroy})
}

// Drain invokes every registered destructor in LIFO order and clears the
// registry.
func (r *Registry) Drain() {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		e.Destroy(e.Ptr)
	}
	r.entries = r.entries[:0]
}

// Len reports the number of pending entries, useful for tests asserting
// drain behavior.
func (r *Registry) Len() int {
	return len(r.entries)
}
