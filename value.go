package wisp

import (
	"strconv"
	"strings"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNil Kind = iota
	KindNum
	KindObj
)

// Value is the tagged union every wisp expression evaluates to: the empty
// list sentinel, an IEEE-754 double, or a reference to a heap object.
type Value struct {
	kind Kind
	num  float64
	obj  *Obj
}

// Nil is the empty-list sentinel value.
var Nil = Value{kind: KindNil}

// NumVal wraps a float64 into a Value.
func NumVal(n float64) Value {
	return Value{kind: KindNum, num: n}
}

// ObjVal wraps a heap object reference into a Value.
func ObjVal(o *Obj) Value {
	return Value{kind: KindObj, obj: o}
}

func (v Value) IsNil() bool { return v.kind == KindNil }
func (v Value) IsNum() bool { return v.kind == KindNum }
func (v Value) IsObj() bool { return v.kind == KindObj }

// Num panics if the value is not KindNum; callers must check IsNum first.
func (v Value) Num() float64 {
	if v.kind != KindNum {
		panic("wisp: Value.Num on non-number")
	}
	return v.num
}

// Obj panics if the value is not KindObj; callers must check IsObj first.
func (v Value) Obj() *Obj {
	if v.kind != KindObj {
		panic("wisp: Value.Obj on non-object")
	}
	return v.obj
}

func (v Value) IsAtom() bool    { return v.kind == KindObj && v.obj.Kind == ObjAtom }
func (v Value) IsPair() bool    { return v.kind == KindObj && v.obj.Kind == ObjPair }
func (v Value) IsClosure() bool { return v.kind == KindObj && v.obj.Kind == ObjClosure }
func (v Value) IsLambda() bool  { return v.kind == KindObj && v.obj.Kind == ObjLambda }

func (v Value) AsAtom() *Atom       { return v.obj.data.(*Atom) }
func (v Value) AsPair() *Pair       { return v.obj.data.(*Pair) }
func (v Value) AsClosure() *Closure { return v.obj.data.(*Closure) }
func (v Value) AsLambda() *Lambda   { return v.obj.data.(*Lambda) }
func (v Value) AsUpvalue() *Upvalue { return v.obj.data.(*Upvalue) }

// Equal implements the equality rule of spec.md §3: equal by variant, then
// by payload; Obj values compare by identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindNum:
		return a.num == b.num
	case KindObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders a value the way the REPL prints results. Lambda, Closure
// and Upvalue only ever appear in debug contexts (spec.md §9 open question
// 4) and always print as the fixed strings below.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "()"
	case KindNum:
		return formatNum(v.num)
	case KindObj:
		switch v.obj.Kind {
		case ObjAtom:
			return v.AsAtom().text()
		case ObjPair:
			return pairString(v.AsPair())
		case ObjLambda:
			return "lambda"
		case ObjClosure:
			return "closure"
		case ObjUpvalue:
			return "upvalue"
		}
	}
	return "<invalid>"
}

func formatNum(n float64) string {
	s := strconv.FormatFloat(n, 'g', -1, 64)
	return s
}

// pairString renders a cons chain as "(a b c)" when the tail is a proper
// list, or "(a b . c)" when it is dotted — matching spec.md §8's
// round-trip property that '(a . b) prints identical to (cons 'a 'b).
func pairString(p *Pair) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(p.Car.String())

	cur := p.Cdr
	for {
		if cur.IsNil() {
			break
		}
		if cur.IsPair() {
			b.WriteByte(' ')
			b.WriteString(cur.AsPair().Car.String())
			cur = cur.AsPair().Cdr
			continue
		}
		b.WriteString(" . ")
		b.WriteString(cur.String())
		break
	}

	b.WriteByte(')')
	return b.String()
}
