package wisp

import (
	"fmt"
	"strings"
)

// Opcode is a single bytecode instruction tag (spec.md §4.4 instruction
// set table).
type Opcode byte

const (
	OpConstant Opcode = iota
	OpNil
	OpDefineGlobal
	OpGetGlobal
	OpGetLocal
	OpGetUpvalue
	OpClosure
	OpCall
	OpDotCall
	OpCons
	OpCar
	OpCdr
	OpReturn
)

var opcodeNames = map[Opcode]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpGetLocal:     "OP_GET_LOCAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpClosure:      "OP_CLOSURE",
	OpCall:         "OP_CALL",
	OpDotCall:      "OP_DOT_CALL",
	OpCons:         "OP_CONS",
	OpCar:          "OP_CAR",
	OpCdr:          "OP_CDR",
	OpReturn:       "OP_RETURN",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}

// maxConstants is the hard cap on a chunk's constant pool: a constant
// index in the bytecode stream is a single unsigned byte (spec.md §4.4).
const maxConstants = 256

// Chunk owns the three parallel arrays bound to a Lambda: the bytecode
// itself, a per-byte source line table, and the constant pool (spec.md
// §4.4). Grounded on original_source/src/chunk.c and chunk.h.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// NewChunk returns an empty chunk ready for writing.
func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends one raw byte (an opcode or an operand byte) tagged with
// its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index, or
// an error if the pool is already full (spec.md §4.4, §7 CompileLimitError).
func (c *Chunk) AddConstant(v Value) (byte, error) {
	if len(c.Constants) >= maxConstants {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	c.Constants = append(c.Constants, v)
	return byte(len(c.Constants) - 1), nil
}

// Disassemble renders the chunk as one line per instruction, resolving
// constant-pool operands, in the ambient-debugging style of
// original_source/src/debug.c. VMConfig.Trace prints each executed
// instruction with the same per-instruction formatter; no CLI flag turns
// either on.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)

	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(&b, offset)
	}

	return b.String()
}

func (c *Chunk) disassembleInstruction(b *strings.Builder, offset int) int {
	fmt.Fprintf(b, "%04d %4d ", offset, c.Lines[offset])
	op := Opcode(c.Code[offset])

	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpClosure:
		return c.constantInstruction(b, op, offset)
	case OpGetLocal, OpGetUpvalue, OpCall, OpDotCall:
		return c.byteInstruction(b, op, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1
	}
}

func (c *Chunk) constantInstruction(b *strings.Builder, op Opcode, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(b, "%-18s %4d '%s'\n", op, idx, c.Constants[idx].String())
	next := offset + 2

	if op == OpClosure && int(idx) < len(c.Constants) && c.Constants[idx].IsLambda() {
		lambda := c.Constants[idx].AsLambda()
		for i := 0; i < lambda.UpvalueCount; i++ {
			isLocal := c.Code[next]
			index := c.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(b, "%04d      |                     %s %d\n", next, kind, index)
			next += 2
		}
	}

	return next
}

func (c *Chunk) byteInstruction(b *strings.Builder, op Opcode, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-18s %4d\n", op, slot)
	return offset + 2
}
