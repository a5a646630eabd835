// Copyright © 2026 The nanolisp authors

package lisp

// SymbolTable interns textual names into SymbolIDs. It holds two
// tiers: a read-only tier pre-populated at init from the reserved names plus
// anything frozen into the constant heap (names baked into an image), and a
// mutable runtime tier grown by intern. Lookup by name or by id is linear
// over both tiers: a small, cache-line friendly table rather than a hash
// map, appropriate on a host where a hash map's extra indirection costs
// more than scanning a few dozen entries.
type SymbolTable struct {
	constNames []symEntry // read-only tier, append-only
	names      []symEntry // mutable runtime tier
	nextID     SymbolID
}

type symEntry struct {
	id   SymbolID
	name string
}

// NewSymbolTable returns a table with the reserved names pre-populated.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{nextID: ReservedSymbolCeiling}
	st.constNames = make([]symEntry, 0, len(reservedNames))
	for id, name := range reservedNames {
		st.constNames = append(st.constNames, symEntry{SymbolID(id), name})
	}
	return st
}

// Intern returns the id for name, allocating a fresh one in the mutable
// tier if name has never been seen. Interning is idempotent: repeated calls
// with the same name return the same id.
func (st *SymbolTable) Intern(name string) SymbolID {
	if id, ok := st.lookupByName(name); ok {
		return id
	}
	if st.nextID >= FundamentalCeiling && st.nextID < ExtensionCeiling {
		// The extension band is handed out by AddExtension via InternConst;
		// runtime interning jumps over it so the two can never collide.
		st.nextID = ExtensionCeiling
	}
	id := st.nextID
	st.nextID++
	st.names = append(st.names, symEntry{id, name})
	return id
}

// InternConst interns name into the read-only tier at a caller-chosen id,
// used when restoring an image's frozen symbol names.
// It is idempotent for a name already present at the same id and is a
// programming error (panic) for a name present at a different id.
func (st *SymbolTable) InternConst(name string, id SymbolID) {
	for _, e := range st.constNames {
		if e.name == name {
			if e.id != id {
				panic("nanolisp: const symbol table id mismatch for " + name)
			}
			return
		}
	}
	st.constNames = append(st.constNames, symEntry{id, name})
	if id >= st.nextID {
		st.nextID = id + 1
	}
}

func (st *SymbolTable) lookupByName(name string) (SymbolID, bool) {
	for _, e := range st.constNames {
		if e.name == name {
			return e.id, true
		}
	}
	for _, e := range st.names {
		if e.name == name {
			return e.id, true
		}
	}
	return 0, false
}

// LookupName returns the textual name for id, or "" if id was never
// interned.
func (st *SymbolTable) LookupName(id SymbolID) string {
	for _, e := range st.constNames {
		if e.id == id {
			return e.name
		}
	}
	for _, e := range st.names {
		if e.id == id {
			return e.name
		}
	}
	return ""
}

// Iterate invokes f for every interned (id, name) pair, constant tier
// first, in intern order.
func (st *SymbolTable) Iterate(f func(id SymbolID, name string)) {
	for _, e := range st.constNames {
		f(e.id, e.name)
	}
	for _, e := range st.names {
		f(e.id, e.name)
	}
}

// NumRuntimeSymbols reports the size of the mutable tier, for diagnostics
// and tests.
func (st *SymbolTable) NumRuntimeSymbols() int { return len(st.names) }
