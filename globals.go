package wisp

// deletedGlobalKey marks a deleted slot in the globals table. Distinct
// from the atom pool's gravestone: this sentinel lives in key-identity
// space, not atom-value space, and is compared only by pointer.
var deletedGlobalKey = &Obj{Kind: ObjAtom}

type globalEntry struct {
	key   *Obj
	value Value
}

// Globals is the top-level binding table: atom identity to Value, open
// addressing, 75% load factor (spec.md §4.3). Unlike the atom pool it
// holds strong references — a global keeps both its key atom and its
// value alive for the GC (spec.md §3 "Roots").
type Globals struct {
	exp     uint
	count   int
	entries []globalEntry
}

// NewGlobals returns an empty globals table.
func NewGlobals() *Globals {
	g := &Globals{exp: 1}
	g.entries = make([]globalEntry, g.capacity())
	return g
}

func (g *Globals) capacity() int { return 1 << g.exp }

// Count returns the number of occupied slots, live bindings plus
// tombstones.
func (g *Globals) Count() int { return g.count }

// findEntry returns the index key currently occupies, or — if key is
// absent — the first reusable slot (a tombstone if one was passed over,
// otherwise the first never-used slot) on its probe sequence.
func (g *Globals) findEntry(key *Obj) uint64 {
	hash := key.Atom().Hash()
	idx := hash
	tombstone := uint64(1<<64 - 1)
	haveTombstone := false

	for {
		idx = htLookup(hash, g.exp, idx)
		e := &g.entries[idx]

		switch {
		case e.key == nil:
			if haveTombstone {
				return tombstone
			}
			return idx
		case e.key == deletedGlobalKey:
			if !haveTombstone {
				tombstone = idx
				haveTombstone = true
			}
		case e.key == key:
			return idx
		}
	}
}

// Set binds key to v, overwriting any existing binding. Reports whether
// key was previously unbound (spec.md §4.3 define-vs-redefine semantics
// are a compiler-level concern; Set itself just upserts).
func (g *Globals) Set(key *Obj, v Value) bool {
	if g.count+1 > g.capacity()*3/4 {
		g.grow()
	}

	idx := g.findEntry(key)
	e := &g.entries[idx]
	isNew := e.key != key

	// A reused tombstone is already counted.
	if e.key == nil {
		g.count++
	}

	e.key = key
	e.value = v
	return isNew
}

// Get looks up key, reporting whether a binding exists.
func (g *Globals) Get(key *Obj) (Value, bool) {
	if g.count == 0 {
		return Nil, false
	}

	idx := g.findEntry(key)
	e := &g.entries[idx]
	if e.key != key {
		return Nil, false
	}

	return e.value, true
}

// Delete removes key's binding, leaving a tombstone so later probes for
// other keys still traverse past this slot correctly.
func (g *Globals) Delete(key *Obj) bool {
	if g.count == 0 {
		return false
	}

	idx := g.findEntry(key)
	e := &g.entries[idx]
	if e.key != key {
		return false
	}

	e.key = deletedGlobalKey
	e.value = Nil
	return true
}

func (g *Globals) grow() {
	old := g.entries
	g.exp++
	g.entries = make([]globalEntry, g.capacity())
	g.count = 0

	for _, e := range old {
		if e.key == nil || e.key == deletedGlobalKey {
			continue
		}
		g.insertFresh(e.key, e.value)
	}
}

func (g *Globals) insertFresh(key *Obj, v Value) {
	hash := key.Atom().Hash()
	idx := hash
	for {
		idx = htLookup(hash, g.exp, idx)
		if g.entries[idx].key == nil {
			g.entries[idx] = globalEntry{key: key, value: v}
			g.count++
			return
		}
	}
}

// markRoots marks every live key atom and bound value, per spec.md §3
// "Roots": the globals table is scanned in full on every collection.
func (g *Globals) markRoots(h *Heap) {
	for _, e := range g.entries {
		if e.key == nil || e.key == deletedGlobalKey {
			continue
		}
		h.markObj(e.key)
		h.markValue(e.value)
	}
}
