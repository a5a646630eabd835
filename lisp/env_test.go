// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
)

func TestEnvExtendAndLookup(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")

	env, err := h.EnvExtend(x, lisp.SmallInt(5), lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	v, ok := h.EnvLookup(x, env)
	require.True(t, ok)
	assert.Equal(t, lisp.SmallInt(5), v)
}

func TestEnvLookupShadowing(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")

	env, err := h.EnvExtend(x, lisp.SmallInt(1), lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	env, err = h.EnvExtend(x, lisp.SmallInt(2), env)
	require.NoError(t, err)

	v, ok := h.EnvLookup(x, env)
	require.True(t, ok)
	assert.Equal(t, lisp.SmallInt(2), v, "the most recently extended binding must shadow the earlier one")
}

func TestEnvModifyRebindsInPlace(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")

	env, err := h.EnvExtend(x, lisp.SmallInt(1), lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	ok := h.EnvModify(env, x, lisp.SmallInt(99))
	assert.True(t, ok)
	v, _ := h.EnvLookup(x, env)
	assert.Equal(t, lisp.SmallInt(99), v)
}

func TestEnvModifyReportsFalseWhenAbsent(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")
	assert.False(t, h.EnvModify(lisp.SymWord(lisp.SymNil), x, lisp.SmallInt(1)))
}

func TestGlobalSetPrependsThenUpdates(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")
	global := lisp.SymWord(lisp.SymNil)

	require.NoError(t, h.GlobalSet(&global, x, lisp.SmallInt(1)))
	v, ok := h.EnvLookup(x, global)
	require.True(t, ok)
	assert.Equal(t, lisp.SmallInt(1), v)

	require.NoError(t, h.GlobalSet(&global, x, lisp.SmallInt(2)))
	v, ok = h.EnvLookup(x, global)
	require.True(t, ok)
	assert.Equal(t, lisp.SmallInt(2), v, "a second GlobalSet of the same key must update in place, not shadow")
}

func TestBuildParamsFixedArity(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	a := st.Intern("a")
	b := st.Intern("b")

	params := mustConsList(t, h, lisp.SymWord(a), lisp.SymWord(b))
	args := mustConsList(t, h, lisp.SmallInt(1), lisp.SmallInt(2))

	env, ok, err := h.BuildParams(params, args, lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	require.True(t, ok)
	va, _ := h.EnvLookup(a, env)
	vb, _ := h.EnvLookup(b, env)
	assert.Equal(t, lisp.SmallInt(1), va)
	assert.Equal(t, lisp.SmallInt(2), vb)
}

func TestBuildParamsArityMismatch(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	a := st.Intern("a")
	b := st.Intern("b")

	params := mustConsList(t, h, lisp.SymWord(a), lisp.SymWord(b))
	args := mustConsList(t, h, lisp.SmallInt(1))

	_, ok, err := h.BuildParams(params, args, lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	assert.False(t, ok, "too few arguments must report arity failure rather than binding a partial env")
}

func TestBuildParamsRestArg(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	a := st.Intern("a")
	rest := st.Intern("rest")

	params, err := h.Cons(lisp.SymWord(a), lisp.SymWord(rest))
	require.NoError(t, err)
	args := mustConsList(t, h, lisp.SmallInt(1), lisp.SmallInt(2), lisp.SmallInt(3))

	env, ok, err := h.BuildParams(params, args, lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	require.True(t, ok)
	va, _ := h.EnvLookup(a, env)
	assert.Equal(t, lisp.SmallInt(1), va)
	vrest, _ := h.EnvLookup(rest, env)
	assert.Equal(t, lisp.SmallInt(2), h.Car(vrest))
	assert.Equal(t, lisp.SmallInt(3), h.Car(h.Cdr(vrest)))
}

func TestShallowCopyEnvIsIndependentChainSharedPairs(t *testing.T) {
	h := newTestHeap(t, 64)
	st := lisp.NewSymbolTable()
	x := st.Intern("x")

	env, err := h.EnvExtend(x, lisp.SmallInt(1), lisp.SymWord(lisp.SymNil))
	require.NoError(t, err)
	copyEnv, err := h.ShallowCopyEnv(env)
	require.NoError(t, err)

	// Mutating the pair through the original chain must be visible via the
	// copy (pairs are shared), but extending the original chain further
	// must not appear in the copy (the outer chain cells are not shared).
	h.EnvModify(env, x, lisp.SmallInt(2))
	v, _ := h.EnvLookup(x, copyEnv)
	assert.Equal(t, lisp.SmallInt(2), v)

	y := st.Intern("y")
	_, err = h.EnvExtend(y, lisp.SmallInt(3), env)
	require.NoError(t, err)
	_, ok := h.EnvLookup(y, copyEnv)
	assert.False(t, ok, "extending the original chain must not retroactively appear in a shallow copy")
}

func mustConsList(t *testing.T, h *lisp.Heap, elems ...lisp.Word) lisp.Word {
	t.Helper()
	list := lisp.SymWord(lisp.SymNil)
	for i := len(elems) - 1; i >= 0; i-- {
		w, err := h.Cons(elems[i], list)
		require.NoError(t, err)
		list = w
	}
	return list
}
