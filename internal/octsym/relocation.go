package octsym

// relocEntry is one (key, cached-symbol) slot.
type relocEntry struct {
	key      string
	resolved *Symbol
	assigned bool
}

// RelocationTable is a fixed-length array of entries bound to a function,
// each lazily resolving a bytecode-embedded key against a symbol store
// (spec.md §4.4).
type RelocationTable struct {
	storage *Store
	entries []relocEntry
}

// NewRelocationTable allocates a table of count entries bound to storage.
func NewRelocationTable(storage *Store, count int) *RelocationTable {
	return &RelocationTable{
		storage: storage,
		entries: make([]relocEntry, count),
	}
}

// Len returns the number of entries.
func (r *RelocationTable) Len() int { return len(r.entries) }

// AssignIDX installs key at idx if the slot is empty and resolve, if true,
// immediately looks up and caches the symbol. Returns false if idx is out
// of bounds or the slot is already assigned.
func (r *RelocationTable) AssignIDX(idx int, key string, resolve bool) bool {
	if idx < 0 || idx >= len(r.entries) {
		return false
	}
	if r.entries[idx].assigned {
		return false
	}
	e := relocEntry{key: key, assigned: true}
	if resolve {
		e.resolved = r.storage.Lookup(key)
	}
	r.entries[idx] = e
	return true
}

// RetrieveIDX returns the cached symbol if one was already resolved;
// otherwise it looks the key up against storage. Per spec.md's
// deliberately-not-mirrored Open Question, a miss is NOT cached, so a later
// call can still resolve the symbol once it exists (late binding).
func (r *RelocationTable) RetrieveIDX(idx int) *Symbol {
	if idx < 0 || idx >= len(r.entries) {
		return nil
	}
	e := &r.entries[idx]
	if !e.assigned {
		return nil
	}
	if e.resolved != nil {
		return e.resolved
	}
	sym := r.storage.Lookup(e.key)
	if sym != nil {
		e.resolved = sym
	}
	return sym
}

// RetrieveIDXKey returns the key string stored at idx.
func (r *RelocationTable) RetrieveIDXKey(idx int) string {
	if idx < 0 || idx >= len(r.entries) {
		return ""
	}
	return r.entries[idx].key
}

// Free releases the entry array. Keys are borrowed strings and are not
// released here (spec.md §4.4) — in Go there is nothing further to do
// beyond dropping the reference, but the method is kept so callers mirror
// the original's explicit lifecycle.
func (r *RelocationTable) Free() {
	r.entries = nil
}
