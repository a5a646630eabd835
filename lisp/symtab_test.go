// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nanolisp/nanolisp/lisp"
)

func TestInternIsIdempotent(t *testing.T) {
	st := lisp.NewSymbolTable()
	id1 := st.Intern("frobnicate")
	id2 := st.Intern("frobnicate")
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, st.NumRuntimeSymbols())
}

func TestInternAssignsDistinctIDs(t *testing.T) {
	st := lisp.NewSymbolTable()
	a := st.Intern("a")
	b := st.Intern("b")
	assert.NotEqual(t, a, b)
}

func TestReservedNamesPrepopulated(t *testing.T) {
	st := lisp.NewSymbolTable()
	id, ok := st.Intern("quote"), true
	assert.True(t, ok)
	assert.Equal(t, lisp.SymQuote, id)
	assert.Equal(t, 0, st.NumRuntimeSymbols(), "interning an already-reserved name must not grow the mutable tier")
}

func TestLookupNameRoundTrips(t *testing.T) {
	st := lisp.NewSymbolTable()
	id := st.Intern("round-trip-me")
	assert.Equal(t, "round-trip-me", st.LookupName(id))
	assert.Equal(t, "nil", st.LookupName(lisp.SymNil))
}

func TestInternConstIdempotentAtSameID(t *testing.T) {
	st := lisp.NewSymbolTable()
	st.InternConst("frozen", 1000)
	assert.NotPanics(t, func() { st.InternConst("frozen", 1000) })
	assert.Equal(t, "frozen", st.LookupName(1000))
}

func TestInternConstPanicsOnIDMismatch(t *testing.T) {
	st := lisp.NewSymbolTable()
	st.InternConst("frozen", 1000)
	assert.Panics(t, func() { st.InternConst("frozen", 1001) })
}

func TestIterateVisitsConstTierBeforeRuntimeTier(t *testing.T) {
	baseline := lisp.NewSymbolTable()
	var reservedCount int
	baseline.Iterate(func(id lisp.SymbolID, name string) { reservedCount++ })

	st := lisp.NewSymbolTable()
	st.Intern("late-comer")
	var firstRuntimeIndex = -1
	var i int
	st.Iterate(func(id lisp.SymbolID, name string) {
		if name == "late-comer" && firstRuntimeIndex == -1 {
			firstRuntimeIndex = i
		}
		i++
	})
	assert.Equal(t, reservedCount, firstRuntimeIndex, "every reserved name must be visited before the first runtime-interned one")
}
