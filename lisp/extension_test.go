// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
)

func TestAddExtensionAndInvoke(t *testing.T) {
	rt, err := lisp.NewRuntime(lisp.WithHeapCells(256), lisp.WithAuxWords(256))
	require.NoError(t, err)

	ok := rt.AddExtension("double", func(rt *lisp.Runtime, args []lisp.Word) lisp.Word {
		return lisp.SmallInt(args[0].SmallIntValue() * 2)
	})
	require.True(t, ok)

	ctx := rt.Scheduler.Spawn(lisp.SymWord(lisp.SymNil), rt.GlobalEnv)
	fn := lisp.SymWord(rt.Symtab.Intern("double"))
	expr := testList(t, rt, fn, lisp.SmallInt(21))
	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.SmallIntValue())
}

func TestExtensionCapacityExhausted(t *testing.T) {
	rt, err := lisp.NewRuntime(lisp.WithHeapCells(256), lisp.WithAuxWords(256), lisp.WithExtensionCapacity(1))
	require.NoError(t, err)

	noop := func(rt *lisp.Runtime, args []lisp.Word) lisp.Word { return lisp.SymWord(lisp.SymNil) }
	assert.True(t, rt.AddExtension("first", noop))
	assert.False(t, rt.AddExtension("second", noop), "a registry at capacity must reject further registrations")
}

func TestInvokeOfUnregisteredExtensionPanics(t *testing.T) {
	st := lisp.NewSymbolTable()
	reg := lisp.NewExtensionRegistry(4, st)
	assert.Panics(t, func() { reg.Invoke(nil, lisp.FundamentalCeiling, nil) })
}
