package wisp

import "bytes"

// atomHashSeed and atomHashMul are the FNV-1a-64 parameters fixed by
// spec.md §4.2.
const (
	atomHashSeed uint64 = 0x3243F6A8885A308D
	atomHashMul  uint64 = 0x0F0F0F0F0F0F0F0F
)

func hashAtomBytes(b []byte) uint64 {
	h := atomHashSeed
	for _, c := range b {
		h ^= uint64(c)
		h *= atomHashMul
	}
	h ^= h >> 32
	return h
}

// gravestone is the single statically-allocated sentinel marking a
// deleted atom-pool slot (spec.md §4.2). It is never registered with the
// heap's allocation list — the pool holds atoms only weakly, and the
// gravestone isn't an atom that was ever live.
var gravestone = &Obj{Kind: ObjAtom, marked: true, data: &Atom{bytes: []byte("<deleted>")}}

// AtomPool is the weak-reference interning set for atoms (spec.md §4.2,
// GLOSSARY "Atom"). Capacity is always a power of two; resizing happens
// at 50% load, distinct from the globals table's 75%-load strong map
// (spec.md §9 design notes: "must not be unified naïvely").
type AtomPool struct {
	heap  *Heap
	exp   uint
	count int
	table []*Obj
}

// NewAtomPool creates an empty pool backed by heap.
func NewAtomPool(heap *Heap) *AtomPool {
	p := &AtomPool{heap: heap, exp: 1}
	p.table = make([]*Obj, p.capacity())
	return p
}

func (p *AtomPool) capacity() int { return 1 << p.exp }

// Count returns the number of occupied slots (live atoms plus
// gravestones), matching the teacher-grounded original's bookkeeping —
// see spec.md §8 testable property 5.
func (p *AtomPool) Count() int { return p.count }

func htLookup(hash uint64, exp uint, idx uint64) uint64 {
	mask := (uint64(1) << exp) - 1
	step := (hash >> (64 - exp)) | 1
	return (idx + step) & mask
}

// Intern returns the canonical Atom Value for bytes, allocating a new
// Atom only the first time this exact byte sequence is seen (spec.md
// §4.2, §8 testable property 3 "Interning identity").
func (p *AtomPool) Intern(b []byte) Value {
	if p.count+1 >= p.capacity()/2 {
		p.grow()
	}

	hash := hashAtomBytes(b)
	idx := hash
	firstGravestone := -1

	for {
		idx = htLookup(hash, p.exp, idx)
		entry := p.table[idx]

		switch {
		case entry == nil:
			owned := make([]byte, len(b))
			copy(owned, b)
			obj := p.heap.NewAtom(owned, hash)

			if firstGravestone != -1 {
				p.table[firstGravestone] = obj
			} else {
				p.table[idx] = obj
				p.count++
			}

			return ObjVal(obj)

		case entry == gravestone:
			if firstGravestone == -1 {
				firstGravestone = int(idx)
			}

		default:
			a := entry.Atom()
			if a.hash == hash && bytes.Equal(a.bytes, b) {
				return ObjVal(entry)
			}
		}
	}
}

// grow doubles the table's exponent and rehashes every live (non-deleted)
// atom into it, dropping gravestones — a fresh table has no deleted
// slots to carry forward.
func (p *AtomPool) grow() {
	old := p.table
	p.exp++
	p.table = make([]*Obj, p.capacity())
	p.count = 0

	for _, entry := range old {
		if entry == nil || entry == gravestone {
			continue
		}
		p.insertFresh(entry)
	}
}

func (p *AtomPool) insertFresh(obj *Obj) {
	hash := obj.Atom().hash
	idx := hash
	for {
		idx = htLookup(hash, p.exp, idx)
		if p.table[idx] == nil {
			p.table[idx] = obj
			p.count++
			return
		}
	}
}

// sweepWeak is invoked by the heap between trace and sweep (spec.md
// §4.1 step 3): any atom whose mark bit the trace phase left false has
// its pool entry replaced by the gravestone. The atom object itself is
// freed later, by the heap's ordinary object-list sweep.
func (p *AtomPool) sweepWeak() {
	for i, entry := range p.table {
		if entry == nil || entry == gravestone {
			continue
		}
		if !entry.marked {
			p.table[i] = gravestone
		}
	}
}
