// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
	"github.com/nanolisp/nanolisp/runtimetest"
)

func newTestHeap(t *testing.T, nCells int) *lisp.Heap {
	t.Helper()
	aux := lisp.NewAuxMem(4096)
	return lisp.NewHeap(nCells, aux)
}

func TestConsCarCdr(t *testing.T) {
	h := newTestHeap(t, 64)
	pair, err := h.Cons(lisp.SmallInt(1), lisp.SmallInt(2))
	require.NoError(t, err)
	assert.True(t, pair.IsPointer())
	assert.Equal(t, lisp.SmallInt(1), h.Car(pair))
	assert.Equal(t, lisp.SmallInt(2), h.Cdr(pair))
	assert.Equal(t, lisp.KindCons, h.TypeOf(pair))
}

func TestSetCarSetCdrMutateInPlace(t *testing.T) {
	h := newTestHeap(t, 64)
	pair, err := h.Cons(lisp.SmallInt(1), lisp.SmallInt(2))
	require.NoError(t, err)
	h.SetCar(pair, lisp.SmallInt(9))
	h.SetCdr(pair, lisp.SmallInt(10))
	assert.Equal(t, lisp.SmallInt(9), h.Car(pair))
	assert.Equal(t, lisp.SmallInt(10), h.Cdr(pair))
}

func TestConsExhaustionReturnsError(t *testing.T) {
	h := newTestHeap(t, 2)
	_, err1 := h.Cons(lisp.SmallInt(1), lisp.SmallInt(1))
	require.NoError(t, err1)
	_, err2 := h.Cons(lisp.SmallInt(1), lisp.SmallInt(1))
	require.NoError(t, err2)
	v, err3 := h.Cons(lisp.SmallInt(1), lisp.SmallInt(1))
	assert.Error(t, err3, "the arena should be exhausted after filling every cell")
	assert.Equal(t, lisp.SymOutOfMemory, v.SymbolIDOf(), "an exhausted Cons must return the out-of-memory symbol")
}

func TestBoxedNumericRoundTrips(t *testing.T) {
	h := newTestHeap(t, 64)

	i32, err := h.BoxInt32(-7)
	require.NoError(t, err)
	v, ok := h.UnboxInt32(i32)
	require.True(t, ok)
	assert.Equal(t, int32(-7), v)
	assert.Equal(t, lisp.KindBoxedInt32, h.TypeOf(i32))

	f64, err := h.BoxFloat64(3.5)
	require.NoError(t, err)
	fv, ok := h.UnboxFloat64(f64)
	require.True(t, ok)
	assert.InDelta(t, 3.5, fv, 0)
	assert.Equal(t, lisp.KindBoxedFloat64, h.TypeOf(f64))
}

func TestArrayAllocateAndBytes(t *testing.T) {
	h := newTestHeap(t, 64)
	arr, err := h.AllocateArray(8, 1)
	require.NoError(t, err)
	assert.Equal(t, lisp.KindArray, h.TypeOf(arr))

	ok := h.SetArrayBytes(arr, []byte("abcd1234"))
	require.True(t, ok)
	got, ok := h.ArrayBytes(arr)
	require.True(t, ok)
	assert.Equal(t, []byte("abcd1234"), got)
}

func TestArithmeticPromotion(t *testing.T) {
	rt := runtimetest.MustRuntime(t, lisp.WithHeapCells(256), lisp.WithAuxWords(256))
	ctx := rt.Scheduler.Spawn(lisp.SymWord(lisp.SymNil), rt.GlobalEnv)

	plus := runtimetest.Sym(t, rt, "+")
	f64, err := rt.Heap.BoxFloat64(2.5)
	require.NoError(t, err)
	expr := runtimetest.L(t, rt, plus, runtimetest.I(1), f64)

	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	f, ok := rt.GoFloat64(result)
	require.True(t, ok, "mixing an int and a float must promote the result to float")
	assert.InDelta(t, 3.5, f, 0.0001)

	expr2 := runtimetest.L(t, rt, plus, runtimetest.I(1), runtimetest.I(2))
	result2, err := rt.EvalSync(ctx, expr2)
	require.NoError(t, err)
	assert.True(t, result2.IsSmallInt())
	assert.Equal(t, int64(3), result2.SmallIntValue())
}
