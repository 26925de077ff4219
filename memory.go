package wisp

// defaultNextGC is the initial byte threshold before the first collection
// may run; picked small so exercising the GC in tests doesn't require
// allocating megabytes of cons cells first.
const defaultNextGC = 1 << 10

// gcGrowthFactor is the multiplier applied to bytesAllocated to compute
// the next collection threshold (spec.md §4.1 step 5).
const gcGrowthFactor = 2

// Heap is the memory manager: it owns every live Obj via an intrusive
// singly-linked allocation list, tracks how many bytes are "allocated" by
// the interpreter's own accounting, and runs a mark-and-sweep collection
// whenever that count crosses next_gc. Grounded on spec.md §4.1 and
// original_source/src/memory.c.
type Heap struct {
	objects        *Obj
	bytesAllocated int
	nextGC         int
	stressGC       bool

	gray []*Obj

	pool     *AtomPool
	globals  *Globals
	vm       *VM
	compiler *Compiler
}

// NewHeap creates an empty heap. stressGC, when true, forces a collection
// on every allocation — the "build-time debug flag" of spec.md §4.1.
func NewHeap(stressGC bool) *Heap {
	return &Heap{
		nextGC:   defaultNextGC,
		stressGC: stressGC,
	}
}

// Wiring setters: the heap needs to reach every GC root source, but those
// sources (atom pool, globals, VM, compiler) all themselves allocate
// through the heap, so construction order can't be a simple dependency
// chain. The interpreter wires each piece in after constructing it (see
// interpret.go), mirroring the single shared *wisp_state threaded through
// every component in original_source/src/state.h.

func (h *Heap) SetPool(p *AtomPool)     { h.pool = p }
func (h *Heap) SetGlobals(g *Globals)   { h.globals = g }
func (h *Heap) SetVM(vm *VM)            { h.vm = vm }
func (h *Heap) SetCompiler(c *Compiler) { h.compiler = c }
func (h *Heap) BytesAllocated() int     { return h.bytesAllocated }
func (h *Heap) NextGC() int             { return h.nextGC }

// register accounts for obj's size and links it into the allocation list.
// The stress/threshold check runs *before* obj is linked in, mirroring
// clox's reallocate()-before-allocateObject() ordering: a collection
// triggered here traces only the roots and objects that existed before
// this call, so obj itself is never on the object list to be swept by its
// own allocating collection. Whatever obj's fields reference (e.g. a
// Pair's car/cdr) must already be reachable through some other root at
// this point; callers are responsible for keeping those operands rooted
// (on the VM stack, say) until the allocation that will own them returns
// (spec.md §5 re-entrancy discipline).
func (h *Heap) register(obj *Obj, size int) {
	if h.stressGC || h.bytesAllocated+size > h.nextGC {
		h.Collect()
	}

	obj.next = h.objects
	h.objects = obj
	h.bytesAllocated += size
}

func (h *Heap) newObj(kind ObjKind, data any, size int) *Obj {
	obj := &Obj{Kind: kind, data: data}
	h.register(obj, size)
	return obj
}

// NewAtom allocates an Atom object. Only the atom pool should call this —
// everyone else reaches atoms through Intern.
func (h *Heap) NewAtom(bytes []byte, hash uint64) *Obj {
	a := &Atom{bytes: bytes, hash: hash}
	return h.newObj(ObjAtom, a, 32+len(bytes))
}

// NewPair allocates a cons cell (OP_CONS, quoted-list expansion, variadic
// argument collection — spec.md §3 Pair lifecycle).
func (h *Heap) NewPair(car, cdr Value) Value {
	p := &Pair{Car: car, Cdr: cdr}
	return ObjVal(h.newObj(ObjPair, p, 48))
}

// NewLambda allocates an (initially empty) Lambda for the compiler to
// fill in as it compiles a function body.
func (h *Heap) NewLambda() *Obj {
	l := &Lambda{Chunk: NewChunk()}
	return h.newObj(ObjLambda, l, 64)
}

// NewClosure allocates a Closure with upvalue_count nil slots, to be
// filled in by OP_CLOSURE as each descriptor is read (spec.md §4.6.5).
func (h *Heap) NewClosure(lambda *Obj) Value {
	lam := lambda.Lambda()
	c := &Closure{Lambda: lambda, Upvalues: make([]*Obj, lam.UpvalueCount)}
	return ObjVal(h.newObj(ObjClosure, c, 32+8*lam.UpvalueCount))
}

// NewUpvalue allocates an open upvalue pointing at the given stack slot.
func (h *Heap) NewUpvalue(location *Value) *Obj {
	u := &Upvalue{Location: location}
	return h.newObj(ObjUpvalue, u, 40)
}

// --- Mark-and-sweep collection (spec.md §4.1 algorithm) ---

// Collect runs one full mark-and-sweep pass: mark roots, trace to
// fixpoint, sweep the atom pool's weak references, sweep the object
// list, then grow the threshold.
func (h *Heap) Collect() {
	h.markRoots()
	h.trace()

	if h.pool != nil {
		h.pool.sweepWeak()
	}

	h.sweepObjects()

	h.nextGC = h.bytesAllocated * gcGrowthFactor
	if h.nextGC < defaultNextGC {
		h.nextGC = defaultNextGC
	}
}

// markValue marks v if it references a heap object.
func (h *Heap) markValue(v Value) {
	if v.IsObj() {
		h.markObj(v.obj)
	}
}

// markObj marks obj gray (pushed onto the worklist) unless already
// marked, per the tri-colour abstraction of spec.md §4.1 step 1.
func (h *Heap) markObj(obj *Obj) {
	if obj == nil || obj.marked {
		return
	}
	obj.marked = true
	h.gray = append(h.gray, obj)
}

// markRoots marks every root enumerated in spec.md §3 "Roots".
func (h *Heap) markRoots() {
	if h.vm != nil {
		h.vm.markRoots(h)
	}

	if h.globals != nil {
		h.globals.markRoots(h)
	}

	if h.compiler != nil {
		h.compiler.markRoots(h)
	}
}

// trace pops the gray worklist, blackening each object by marking its
// outgoing references according to its kind (spec.md §4.1 step 2).
func (h *Heap) trace() {
	for len(h.gray) > 0 {
		obj := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(obj)
	}
}

func (h *Heap) blacken(obj *Obj) {
	switch obj.Kind {
	case ObjAtom:
		// No outgoing references: immutable bytes only.
	case ObjPair:
		p := obj.Pair()
		h.markValue(p.Car)
		h.markValue(p.Cdr)
	case ObjLambda:
		l := obj.Lambda()
		for _, c := range l.Chunk.Constants {
			h.markValue(c)
		}
	case ObjClosure:
		c := obj.Closure()
		h.markObj(c.Lambda)
		for _, uv := range c.Upvalues {
			h.markObj(uv)
		}
	case ObjUpvalue:
		u := obj.Upvalue()
		h.markValue(*u.Location)
		h.markValue(u.Closed)
	}
}

// sweepObjects walks the intrusive object list, freeing every object
// whose mark bit is still false and clearing the bit on every survivor
// (spec.md §4.1 step 4).
func (h *Heap) sweepObjects() {
	var prev *Obj
	obj := h.objects

	for obj != nil {
		if obj.marked {
			obj.marked = false
			prev = obj
			obj = obj.next
			continue
		}

		unreached := obj
		obj = obj.next

		if prev == nil {
			h.objects = obj
		} else {
			prev.next = obj
		}

		h.free(unreached)
	}
}

// free releases the interpreter-level accounting for obj. Kind-specific
// owned arrays (Atom bytes, Closure upvalue array, Lambda chunk) have no
// separate release step in Go — they become unreachable Go values and
// the host runtime's own GC reclaims them — but bytesAllocated is
// decremented exactly as original_source/src/memory.c's FREE_ARRAY does.
func (h *Heap) free(obj *Obj) {
	size := 0
	switch obj.Kind {
	case ObjAtom:
		size = 32 + obj.Atom().Len()
	case ObjPair:
		size = 48
	case ObjLambda:
		size = 64
	case ObjClosure:
		size = 32 + 8*len(obj.Closure().Upvalues)
	case ObjUpvalue:
		size = 40
	}
	h.bytesAllocated -= size
	obj.data = nil
}
