// Copyright © 2026 The nanolisp authors

package lisp

import "fmt"

// ConstHeap is an append-only region used for compile-time
// literals and, via WriteFn, for an external image writer mirroring the
// embedding API's const_heap_init. Unlike the cons arena, constant cells
// and words are never collected; ConstWrite tolerates idempotent
// overwrites but rejects conflicting ones.
type ConstHeap struct {
	words    []Word
	tip      int
	writeFn  func(ix int, w Word) error
	capacity int
}

// NewConstHeap creates a constant heap of the given capacity (in words).
// writeFn, if non-nil, is invoked for every committed write, mirroring the
// host-provided write_fn of the embedding API's const_heap_init; it
// lets an embedder mirror the constant heap into a persisted image as it
// grows.
func NewConstHeap(capacity int, writeFn func(ix int, w Word) error) *ConstHeap {
	return &ConstHeap{words: make([]Word, capacity), writeFn: writeFn, capacity: capacity}
}

// ErrConstConflict is returned by Write when ix already holds a different
// value than the one being written.
type ErrConstConflict struct{ Index int }

func (e *ErrConstConflict) Error() string {
	return fmt.Sprintf("nanolisp: constant heap write conflict at index %d", e.Index)
}

// Write appends or idempotently re-confirms a word at index ix. Writes must
// be contiguous from the current tip, except idempotent re-writes of an
// already-committed index: a write is idempotent for an equal payload and
// fails for a conflicting payload at the same index.
func (c *ConstHeap) Write(ix int, w Word) error {
	if ix < c.tip {
		if c.words[ix] != w {
			return &ErrConstConflict{Index: ix}
		}
		if c.writeFn != nil {
			return c.writeFn(ix, w)
		}
		return nil
	}
	if ix != c.tip {
		return fmt.Errorf("nanolisp: constant heap write out of order: got %d want %d", ix, c.tip)
	}
	if c.tip >= c.capacity {
		return ErrHeapExhausted
	}
	c.words[ix] = w
	c.tip++
	if c.writeFn != nil {
		return c.writeFn(ix, w)
	}
	return nil
}

// Append writes w at the current tip and returns its index.
func (c *ConstHeap) Append(w Word) (int, error) {
	ix := c.tip
	if err := c.Write(ix, w); err != nil {
		return 0, err
	}
	return ix, nil
}

// Tip returns the current append position (count of committed words).
func (c *ConstHeap) Tip() int { return c.tip }

// At reads a previously committed word.
func (c *ConstHeap) At(ix int) Word { return c.words[ix] }
