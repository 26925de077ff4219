package wisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobals_SetGetDelete(t *testing.T) {
	heap := NewHeap(false)
	pool := NewAtomPool(heap)
	heap.SetPool(pool)
	globals := NewGlobals()

	x := pool.Intern([]byte("x")).Obj()
	y := pool.Intern([]byte("y")).Obj()

	isNew := globals.Set(x, NumVal(1))
	assert.True(t, isNew)

	v, ok := globals.Get(x)
	require.True(t, ok)
	assert.Equal(t, float64(1), v.Num())

	_, ok = globals.Get(y)
	assert.False(t, ok, "unbound key must report absent")

	isNew = globals.Set(x, NumVal(2))
	assert.False(t, isNew, "redefining an existing key is not a fresh insert")
	v, _ = globals.Get(x)
	assert.Equal(t, float64(2), v.Num())

	assert.True(t, globals.Delete(x))
	_, ok = globals.Get(x)
	assert.False(t, ok, "deleted binding must no longer be found")
	assert.False(t, globals.Delete(x), "deleting twice reports no binding the second time")
}

func TestGlobals_GrowsPastLoadFactor(t *testing.T) {
	heap := NewHeap(false)
	pool := NewAtomPool(heap)
	heap.SetPool(pool)
	globals := NewGlobals()

	keys := make([]*Obj, 0, 100)
	for i := 0; i < 100; i++ {
		k := pool.Intern([]byte{byte(i), byte(i >> 8)}).Obj()
		keys = append(keys, k)
		globals.Set(k, NumVal(float64(i)))
	}

	for i, k := range keys {
		v, ok := globals.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.Num())
	}
}

func TestGlobals_TombstoneKeepsProbeChainIntact(t *testing.T) {
	heap := NewHeap(false)
	pool := NewAtomPool(heap)
	heap.SetPool(pool)
	globals := NewGlobals()

	a := pool.Intern([]byte("a")).Obj()
	b := pool.Intern([]byte("b")).Obj()

	globals.Set(a, NumVal(1))
	globals.Set(b, NumVal(2))
	globals.Delete(a)

	v, ok := globals.Get(b)
	require.True(t, ok, "deleting an earlier probe-chain entry must not strand later entries")
	assert.Equal(t, float64(2), v.Num())
}
