package wisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpvalue_OpenThenClose(t *testing.T) {
	slot := NumVal(99)
	u := &Upvalue{Location: &slot}

	assert.True(t, u.isOpen())
	assert.True(t, Equal(*u.Location, NumVal(99)))

	slot = NumVal(100)
	assert.True(t, Equal(*u.Location, NumVal(100)), "while open, Location must track live stack writes")

	u.close()

	assert.False(t, u.isOpen())
	assert.True(t, Equal(*u.Location, NumVal(100)), "close() must snapshot the value at close time")

	slot = NumVal(101)
	assert.True(t, Equal(*u.Location, NumVal(100)), "after close, Location must no longer track the stack slot")
}

func TestObj_AccessorsMatchKind(t *testing.T) {
	heap := NewHeap(false)

	atomObj := heap.NewAtom([]byte("sym"), 42)
	assert.Equal(t, ObjAtom, atomObj.Kind)
	assert.Equal(t, "sym", atomObj.Atom().text())

	pairVal := heap.NewPair(NumVal(1), NumVal(2))
	assert.Equal(t, ObjPair, pairVal.Obj().Kind)
	assert.Equal(t, float64(1), pairVal.Obj().Pair().Car.Num())

	lambdaObj := heap.NewLambda()
	assert.Equal(t, ObjLambda, lambdaObj.Kind)
	assert.NotNil(t, lambdaObj.Lambda().Chunk)

	closureVal := heap.NewClosure(lambdaObj)
	assert.Equal(t, ObjClosure, closureVal.Obj().Kind)
	assert.Len(t, closureVal.Obj().Closure().Upvalues, 0)
}

func TestObjKind_String(t *testing.T) {
	tests := []struct {
		kind     ObjKind
		expected string
	}{
		{ObjAtom, "atom"},
		{ObjClosure, "closure"},
		{ObjLambda, "lambda"},
		{ObjUpvalue, "upvalue"},
		{ObjPair, "pair"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.kind.String())
	}
}
