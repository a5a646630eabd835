// Copyright © 2026 The nanolisp authors

// Package runtimetest provides shared helpers for lisp package tests:
// building a ready-to-use *lisp.Runtime, and constructing expressions as
// Words directly instead of through a text reader (this core deliberately
// ships without one; the textual parser is an external collaborator).
package runtimetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
)

// MustRuntime builds a runtime sized for tests (small heap, small aux
// memory) and fails the test immediately on error.
func MustRuntime(t *testing.T, opts ...lisp.Config) *lisp.Runtime {
	t.Helper()
	base := []lisp.Config{
		lisp.WithHeapCells(4096),
		lisp.WithAuxWords(4096),
		lisp.WithQuantum(1000),
	}
	rt, err := lisp.NewRuntime(append(base, opts...)...)
	require.NoError(t, err)
	return rt
}

// Sym interns name against rt's symbol table and returns it as a Word.
func Sym(t *testing.T, rt *lisp.Runtime, name string) lisp.Word {
	t.Helper()
	return lisp.SymWord(rt.Symtab.Intern(name))
}

// I returns a small-integer Word, shorthand for lisp.SmallInt.
func I(n int64) lisp.Word { return lisp.SmallInt(n) }

// L conses elems into a proper list terminated by nil, the literal-list
// builder used throughout tests to write expressions without a parser.
func L(t *testing.T, rt *lisp.Runtime, elems ...lisp.Word) lisp.Word {
	t.Helper()
	list := lisp.SymWord(lisp.SymNil)
	for i := len(elems) - 1; i >= 0; i-- {
		w, err := rt.Heap.Cons(elems[i], list)
		require.NoError(t, err)
		list = w
	}
	return list
}
