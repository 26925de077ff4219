package wisp

// ObjKind discriminates the five heap object variants of spec.md §3.
type ObjKind int

const (
	ObjAtom ObjKind = iota
	ObjClosure
	ObjLambda
	ObjUpvalue
	ObjPair
)

func (k ObjKind) String() string {
	switch k {
	case ObjAtom:
		return "atom"
	case ObjClosure:
		return "closure"
	case ObjLambda:
		return "lambda"
	case ObjUpvalue:
		return "upvalue"
	case ObjPair:
		return "pair"
	default:
		return "unknown"
	}
}

// Obj is the common header every heap object carries: a kind tag, the GC
// mark bit, and the intrusive forward link threading every live object
// into the heap's single allocation list (spec.md §3 "Heap Object
// header"). data holds the kind-specific payload and is one of *Atom,
// *Closure, *Lambda, *Upvalue or *Pair, matching Kind.
type Obj struct {
	Kind   ObjKind
	marked bool
	next   *Obj
	data   any
}

func (o *Obj) Atom() *Atom       { return o.data.(*Atom) }
func (o *Obj) Pair() *Pair       { return o.data.(*Pair) }
func (o *Obj) Lambda() *Lambda   { return o.data.(*Lambda) }
func (o *Obj) Closure() *Closure { return o.data.(*Closure) }
func (o *Obj) Upvalue() *Upvalue { return o.data.(*Upvalue) }

// Atom is an interned, immutable byte string used as identifier and
// quoted symbol (spec.md §3, GLOSSARY). hash is cached at intern time so
// both the atom pool and the globals table can reuse it without
// rehashing, per SPEC_FULL.md §3.
type Atom struct {
	bytes []byte
	hash  uint64
}

func (a *Atom) text() string { return string(a.bytes) }

// Len returns the byte length of the atom's text.
func (a *Atom) Len() int { return len(a.bytes) }

// Hash returns the atom's cached FNV-1a-64 hash.
func (a *Atom) Hash() uint64 { return a.hash }

// Pair is the sole list-construction primitive: a cons cell with a car
// and a cdr, each an arbitrary Value.
type Pair struct {
	Car Value
	Cdr Value
}

// Lambda is an immutable, compiled function body: arity, upvalue count,
// whether the last parameter collects a variadic tail, and the bytecode
// chunk that implements it.
type Lambda struct {
	Arity        int
	UpvalueCount int
	HasParamList bool
	Chunk        *Chunk
}

// Closure pairs a Lambda with the upvalues it closes over. Invariant
// (spec.md §3): len(Upvalues) == Lambda.UpvalueCount, and every entry is
// non-nil before the closure is ever executed. Lambda and each entry of
// Upvalues are *Obj references so the GC can trace them uniformly.
type Closure struct {
	Lambda   *Obj
	Upvalues []*Obj
}

// Upvalue mediates access to a captured local. While open, Location
// points into the live region of the VM value stack; close() retargets
// Location to the upvalue's own Closed field. Next threads the
// stack-address-ordered open-upvalue list (spec.md §4.6.4); it is nil at
// the tail of the list.
type Upvalue struct {
	Location *Value
	Closed   Value
	Next     *Obj

	// slot is the stack index Location pointed into while open; it keeps
	// the open-upvalue list ordered by stack address even after Location
	// itself has been retargeted by close() (spec.md §4.6.4).
	slot int
}

func (u *Upvalue) isOpen() bool { return u.Location != &u.Closed }

func (u *Upvalue) close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}
