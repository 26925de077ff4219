package wisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_Equal(t *testing.T) {
	heap := NewHeap(false)
	a := heap.NewAtom([]byte("x"), 1)
	b := heap.NewAtom([]byte("x"), 1)

	tests := []struct {
		name     string
		a, b     Value
		expected bool
	}{
		{"nil equals nil", Nil, Nil, true},
		{"same number", NumVal(1), NumVal(1), true},
		{"different number", NumVal(1), NumVal(2), false},
		{"nil vs number", Nil, NumVal(0), false},
		{"same obj identity", ObjVal(a), ObjVal(a), true},
		{"distinct objs, same payload", ObjVal(a), ObjVal(b), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Equal(tt.a, tt.b))
		})
	}
}

func TestValue_String(t *testing.T) {
	heap := NewHeap(false)

	assert.Equal(t, "()", Nil.String())
	assert.Equal(t, "42", NumVal(42).String())
	assert.Equal(t, "1.5", NumVal(1.5).String())

	a, b := NumVal(1), NumVal(2)
	pair := heap.NewPair(a, b)
	assert.Equal(t, "(1 . 2)", pair.String())

	proper := heap.NewPair(NumVal(1), heap.NewPair(NumVal(2), Nil))
	assert.Equal(t, "(1 2)", proper.String())
}

func TestValue_QuoteRoundTrip(t *testing.T) {
	heap := NewHeap(false)
	x, y := NumVal(10), NumVal(20)
	pair := heap.NewPair(x, y)

	assert.True(t, pair.IsPair())
	assert.True(t, Equal(pair.AsPair().Car, x))
	assert.True(t, Equal(pair.AsPair().Cdr, y))
}
