// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
)

func TestConstHeapAppendAndAt(t *testing.T) {
	c := lisp.NewConstHeap(4, nil)
	ix, err := c.Append(lisp.SmallInt(1))
	require.NoError(t, err)
	assert.Equal(t, 0, ix)
	assert.Equal(t, lisp.SmallInt(1), c.At(ix))
	assert.Equal(t, 1, c.Tip())
}

func TestConstHeapIdempotentRewrite(t *testing.T) {
	c := lisp.NewConstHeap(4, nil)
	_, err := c.Append(lisp.SmallInt(7))
	require.NoError(t, err)
	assert.NoError(t, c.Write(0, lisp.SmallInt(7)), "re-writing the same value at an already-committed index must succeed")
}

func TestConstHeapConflictingRewriteFails(t *testing.T) {
	c := lisp.NewConstHeap(4, nil)
	_, err := c.Append(lisp.SmallInt(7))
	require.NoError(t, err)
	err = c.Write(0, lisp.SmallInt(8))
	var conflict *lisp.ErrConstConflict
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, 0, conflict.Index)
}

func TestConstHeapOutOfOrderWriteFails(t *testing.T) {
	c := lisp.NewConstHeap(4, nil)
	err := c.Write(1, lisp.SmallInt(1))
	assert.Error(t, err)
}

func TestConstHeapExhaustionFails(t *testing.T) {
	c := lisp.NewConstHeap(1, nil)
	_, err := c.Append(lisp.SmallInt(1))
	require.NoError(t, err)
	_, err = c.Append(lisp.SmallInt(2))
	assert.ErrorIs(t, err, lisp.ErrHeapExhausted)
}

func TestConstHeapWriteFnInvokedOnCommit(t *testing.T) {
	var seen []int
	c := lisp.NewConstHeap(4, func(ix int, w lisp.Word) error {
		seen = append(seen, ix)
		return nil
	})
	_, err := c.Append(lisp.SmallInt(1))
	require.NoError(t, err)
	_, err = c.Append(lisp.SmallInt(2))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, seen)
}
