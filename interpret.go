package wisp

// OutcomeKind discriminates the result of an Interpret call (spec.md §7
// "a discriminated outcome of Ok / ParseError / RuntimeError").
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeParseError
	OutcomeRuntimeError
)

// Outcome is the result of interpreting one source unit (a REPL line or
// an entire file). Exactly one of Result, ParseErrors or RuntimeErr is
// meaningful, per Kind.
type Outcome struct {
	Kind        OutcomeKind
	Result      Value
	ParseErrors []*ParseError
	RuntimeErr  *RuntimeError
}

// Interpreter owns the full runtime: heap, atom pool, globals and VM,
// wired together post-construction (memory.go's Set* methods) because
// each piece allocates through the heap that needs to trace it back.
// Grounded on the teacher's api.go, whose Compile/Match pair is the
// two-call public surface the CLI composes; wisp collapses that into a
// single Interpret call because compile and run are never independently
// useful here (spec.md §7: "never thrown across the compiler/VM boundary
// via exceptions").
type Interpreter struct {
	Heap    *Heap
	Pool    *AtomPool
	Globals *Globals
	VM      *VM
}

// NewInterpreter constructs a ready-to-use runtime. stressGC forces a
// collection on every allocation; trace enables VM instruction tracing
// to stderr (both build-time-only knobs, spec.md §4.1/§4.6).
func NewInterpreter(stressGC, trace bool) *Interpreter {
	heap := NewHeap(stressGC)

	pool := NewAtomPool(heap)
	heap.SetPool(pool)

	globals := NewGlobals()
	heap.SetGlobals(globals)

	vm := NewVM(heap, pool, globals, VMConfig{Trace: trace})

	return &Interpreter{Heap: heap, Pool: pool, Globals: globals, VM: vm}
}

// Interpret compiles and runs one source unit. Globals persist across
// calls on the same Interpreter (REPL semantics); the VM's value stack
// and call frames do not.
func (in *Interpreter) Interpret(source string) Outcome {
	lambdaObj, hadError, errs := Compile(source, in.Heap, in.Pool)
	if hadError {
		return Outcome{Kind: OutcomeParseError, ParseErrors: errs}
	}

	in.VM.resetStack()

	// Push the bare lambda first so it is a reachable root while
	// NewClosure allocates, then swap it for the closure — mirrors
	// original_source/src/vm.c's interpret().
	in.VM.push(ObjVal(lambdaObj))
	closureVal := in.Heap.NewClosure(lambdaObj)
	in.VM.pop()
	in.VM.push(closureVal)

	if _, rerr := in.VM.call(closureVal.Obj(), 0); rerr != nil {
		return Outcome{Kind: OutcomeRuntimeError, RuntimeErr: rerr}
	}

	result, rerr := in.VM.Run()
	if rerr != nil {
		return Outcome{Kind: OutcomeRuntimeError, RuntimeErr: rerr}
	}

	return Outcome{Kind: OutcomeOK, Result: result}
}
