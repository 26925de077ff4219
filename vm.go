package wisp

import (
	"fmt"
	"os"
	"strings"
)

// framesMax bounds the call-frame stack (spec.md §4.6); stackMax is
// derived from it the same way original_source/src/vm.c derives
// STACK_MAX from FRAMES_MAX * UINT8_COUNT.
const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// callFrame is one active invocation record: the executing closure, the
// next-instruction cursor into its chunk, and the base slot this frame
// claims in the shared value stack (spec.md §4.6, GLOSSARY "Frame").
type callFrame struct {
	closure *Obj
	ip      int
	slots   int
}

// VM is the stack machine that executes compiled chunks. Grounded on
// original_source/src/vm.c, which already implements OP_CONSTANT,
// OP_NIL, OP_CONS, OP_CAR, OP_CDR, OP_GET_LOCAL, OP_GET_UPVALUE and the
// call-frame push in call(), and stubs everything else (OP_CALL,
// OP_DOT_CALL, OP_CLOSURE, OP_RETURN, OP_DEFINE_GLOBAL, OP_GET_GLOBAL) —
// completed here per spec.md §4.6.1-§4.6.6.
type VM struct {
	heap    *Heap
	pool    *AtomPool
	globals *Globals

	frames     [framesMax]callFrame
	frameCount int

	stack    [stackMax]Value
	stackTop int

	openUpvalues *Obj // head of the stack-address-ordered open-upvalue list; nil at tail.

	config VMConfig
}

// VMConfig carries build-time-only knobs; Trace enables per-instruction
// disassembly to stderr and is never exposed as a CLI flag (SPEC_FULL.md
// §4.6 disassembler supplement).
type VMConfig struct {
	Trace bool
}

// NewVM returns a freshly reset VM wired to heap/pool/globals.
func NewVM(heap *Heap, pool *AtomPool, globals *Globals, config VMConfig) *VM {
	vm := &VM{heap: heap, pool: pool, globals: globals, config: config}
	vm.resetStack()
	heap.SetVM(vm)
	return vm
}

func (vm *VM) resetStack() {
	vm.frameCount = 0
	vm.stackTop = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) frame() *callFrame { return &vm.frames[vm.frameCount-1] }

// runtimeError builds a RuntimeError carrying one frame per active call,
// innermost first, then resets the stack (original_source/src/vm.c's
// runtime_error, spec.md §4.6.3/§7).
func (vm *VM) runtimeError(format string, args ...any) *RuntimeError {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}

	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		lambda := f.closure.Closure().Lambda.Lambda()
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(lambda.Chunk.Lines) {
			line = lambda.Chunk.Lines[f.ip-1]
		}
		err.Frames = append(err.Frames, RuntimeFrame{Line: line})
	}

	vm.resetStack()
	return err
}

// --- call protocol (spec.md §4.6.1) ---

func (vm *VM) callValue(callee Value, argCount int) (int, *RuntimeError) {
	if !callee.IsClosure() {
		return argCount, vm.runtimeError("Can only call functions")
	}
	return vm.call(callee.Obj(), argCount)
}

func (vm *VM) call(closureObj *Obj, argCount int) (int, *RuntimeError) {
	closure := closureObj.Closure()
	lambda := closure.Lambda.Lambda()

	if lambda.HasParamList {
		if argCount < lambda.Arity-1 {
			return argCount, vm.runtimeError(
				"Expected %d arguments but got %d", lambda.Arity-1, argCount)
		}

		extra := argCount - (lambda.Arity - 1)
		base := vm.stackTop - extra

		// Fold the trailing extra arguments into a list, keeping the
		// accumulator and every not-yet-consumed argument on the stack
		// (indices below stackTop) for as long as NewPair still needs
		// them, so a collection mid-fold can't free them.
		vm.push(Nil)
		for i := 0; i < extra; i++ {
			v := vm.stack[vm.stackTop-2-i]
			acc := vm.stack[vm.stackTop-1]
			vm.stack[vm.stackTop-1] = vm.heap.NewPair(v, acc)
		}
		rest := vm.stack[vm.stackTop-1]

		vm.stackTop = base
		vm.push(rest)
		argCount = lambda.Arity
	} else if argCount != lambda.Arity {
		return argCount, vm.runtimeError(
			"Expected %d arguments but got %d", lambda.Arity, argCount)
	}

	if vm.frameCount == framesMax {
		return argCount, vm.runtimeError("Stack overflow")
	}

	vm.frames[vm.frameCount] = callFrame{
		closure: closureObj,
		ip:      0,
		slots:   vm.stackTop - argCount - 1,
	}
	vm.frameCount++

	return argCount, nil
}

// spreadArgs pops the trailing list argument of an OP_DOT_CALL and
// pushes its elements, returning the updated argument count (spec.md
// §4.6.2).
func (vm *VM) spreadArgs(argCount int) (int, *RuntimeError) {
	tail := vm.pop()

	if !tail.IsNil() && !tail.IsPair() {
		return argCount, vm.runtimeError("A lambda must be applied to a cons pair")
	}

	for tail.IsPair() {
		p := tail.AsPair()
		vm.push(p.Car)
		argCount++
		tail = p.Cdr
	}

	if !tail.IsNil() {
		return argCount, vm.runtimeError("Attempt to apply a lambda to a non-list pair")
	}

	return argCount, nil
}

// --- upvalues (spec.md §4.6.4) ---

func (vm *VM) captureUpvalue(slot int) *Obj {
	var prev *Obj
	cur := vm.openUpvalues

	for cur != nil && cur.Upvalue().slot > slot {
		prev = cur
		cur = cur.Upvalue().Next
	}

	if cur != nil && cur.Upvalue().slot == slot {
		return cur
	}

	created := vm.heap.NewUpvalue(&vm.stack[slot])
	created.Upvalue().slot = slot
	created.Upvalue().Next = cur

	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Upvalue().Next = created
	}

	return created
}

func (vm *VM) closeUpvalues(boundary int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Upvalue().slot >= boundary {
		u := vm.openUpvalues.Upvalue()
		u.close()
		vm.openUpvalues = u.Next
	}
}

// --- dispatch loop (spec.md §4.6.6) ---

// Run executes the root closure (already pushed on the stack by Interpret)
// until it returns or a runtime error occurs.
func (vm *VM) Run() (Value, *RuntimeError) {
	for {
		f := vm.frame()
		chunk := f.closure.Closure().Lambda.Lambda().Chunk

		if vm.config.Trace {
			var b strings.Builder
			chunk.disassembleInstruction(&b, f.ip)
			fmt.Fprint(os.Stderr, b.String())
		}

		op := Opcode(chunk.Code[f.ip])
		f.ip++

		switch op {
		case OpConstant:
			idx := chunk.Code[f.ip]
			f.ip++
			vm.push(chunk.Constants[idx])

		case OpNil:
			vm.push(Nil)

		case OpDefineGlobal:
			idx := chunk.Code[f.ip]
			f.ip++
			key := chunk.Constants[idx].Obj()
			vm.globals.Set(key, vm.pop())

		case OpGetGlobal:
			idx := chunk.Code[f.ip]
			f.ip++
			key := chunk.Constants[idx].Obj()
			v, ok := vm.globals.Get(key)
			if !ok {
				return Nil, vm.runtimeError("Undefined variable '%s'", key.Atom().text())
			}
			vm.push(v)

		case OpGetLocal:
			slot := chunk.Code[f.ip]
			f.ip++
			vm.push(vm.stack[f.slots+int(slot)])

		case OpGetUpvalue:
			idx := chunk.Code[f.ip]
			f.ip++
			uv := f.closure.Closure().Upvalues[idx].Upvalue()
			vm.push(*uv.Location)

		case OpClosure:
			idx := chunk.Code[f.ip]
			f.ip++
			lambdaObj := chunk.Constants[idx].Obj()
			lambda := lambdaObj.Lambda()

			closureVal := vm.heap.NewClosure(lambdaObj)
			vm.push(closureVal)
			closure := closureVal.AsClosure()

			for i := 0; i < lambda.UpvalueCount; i++ {
				isLocal := chunk.Code[f.ip]
				index := chunk.Code[f.ip+1]
				f.ip += 2

				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(f.slots + int(index))
				} else {
					closure.Upvalues[i] = f.closure.Closure().Upvalues[index]
				}
			}

		case OpCall:
			n := int(chunk.Code[f.ip])
			f.ip++
			callee := vm.peek(n)
			if _, rerr := vm.callValue(callee, n); rerr != nil {
				return Nil, rerr
			}

		case OpDotCall:
			n := int(chunk.Code[f.ip])
			f.ip++
			n, rerr := vm.spreadArgs(n)
			if rerr != nil {
				return Nil, rerr
			}
			callee := vm.peek(n)
			if _, rerr := vm.callValue(callee, n); rerr != nil {
				return Nil, rerr
			}

		case OpCons:
			// Peek rather than pop: a and b must still be within
			// stackTop, and hence rooted, while NewPair allocates.
			b := vm.peek(0)
			a := vm.peek(1)
			pair := vm.heap.NewPair(a, b)
			vm.pop()
			vm.pop()
			vm.push(pair)

		case OpCar:
			if !vm.peek(0).IsPair() {
				return Nil, vm.runtimeError("Operand must be a cons pair")
			}
			vm.push(vm.pop().AsPair().Car)

		case OpCdr:
			if !vm.peek(0).IsPair() {
				return Nil, vm.runtimeError("Operand must be a cons pair")
			}
			vm.push(vm.pop().AsPair().Cdr)

		case OpReturn:
			// A script made only of top-level defines leaves nothing
			// above its root closure and returns Nil.
			result := Nil
			if vm.stackTop > f.slots+1 {
				result = vm.pop()
			}
			vm.closeUpvalues(f.slots)
			vm.frameCount--

			if vm.frameCount == 0 {
				// Drop the root closure together with any values earlier
				// top-level expressions left behind.
				vm.stackTop = f.slots
				return result, nil
			}

			vm.stackTop = f.slots
			vm.push(result)
		}
	}
}

// markRoots marks every VM-owned GC root (spec.md §3 "Roots"): every
// live value stack slot, every active frame's closure, and every open
// upvalue.
func (vm *VM) markRoots(h *Heap) {
	for i := 0; i < vm.stackTop; i++ {
		h.markValue(vm.stack[i])
	}

	for i := 0; i < vm.frameCount; i++ {
		h.markObj(vm.frames[i].closure)
	}

	for u := vm.openUpvalues; u != nil; u = u.Upvalue().Next {
		h.markObj(u)
	}
}
