// Copyright © 2026 The nanolisp authors

package lisp

import (
	"errors"
	"fmt"
	"io"
)

// This file is the Go shape of the host-facing embedding API. The
// textual parser is an external collaborator deliberately left out of this
// core: where the API takes a character channel and hands back parsed
// expressions, this package accepts a ParseFunc the host supplies (backed
// by whatever reader/lexer it owns) rather than shipping a reader of its
// own.

// CharChannel is the lazy, polymorphic character source an external parser
// consumes. nanolisp does not implement a parser against it; the type
// exists so a host's parser and this package can agree on one interface.
type CharChannel interface {
	More() bool
	Get() (rune, error)
	Peek(n int) (rune, error)
	Drop(n int)
	Put(r rune)
}

// ParseFunc reads one complete top-level form from ch and returns its
// tagged-value encoding on rt's heap. io.EOF (or any sentinel the host
// chooses) signals there is no further form.
type ParseFunc func(rt *Runtime, ch CharChannel) (Word, error)

// EvalState mirrors the embedding API's get_eval_state.
type EvalState int

const (
	EvalStateNone EvalState = iota
	EvalStateRunning
	EvalStatePaused
	EvalStateDead
	EvalStateKill
)

// AddExtension registers a host-provided operation under name, returning
// false if the registry is full.
func (rt *Runtime) AddExtension(name string, handler ExtensionHandler) bool {
	return rt.Extensions.AddExtension(name, handler)
}

// EvalInitEvents sizes the scheduler's event queue.
// It must be called before any context blocks on an event.
func (rt *Runtime) EvalInitEvents(capacity int) bool {
	if rt.Scheduler == nil {
		return false
	}
	rt.Scheduler.events = newEventQueue(capacity)
	return true
}

// ConstHeapInit installs the constant heap region, optionally mirroring
// every committed write through writeFn.
func (rt *Runtime) ConstHeapInit(capacity int, writeFn func(ix int, w Word) error) bool {
	rt.ConstHeap = NewConstHeap(capacity, writeFn)
	return true
}

// LoadAndEvalProgramIncremental parses top-level forms from ch one at a
// time with parse, evaluating each in turn on ctx with EvalSync, and
// invokes done with the last result once ch is exhausted or a form fails.
func (rt *Runtime) LoadAndEvalProgramIncremental(ctx *Context, ch CharChannel, parse ParseFunc, done func(ContextResult)) {
	last := SymWord(SymNil)
	var err error
	for ch.More() {
		var expr Word
		expr, err = parse(rt, ch)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Trailing whitespace or comments: the channel had
				// characters left but no further form.
				err = nil
			}
			break
		}
		last, err = rt.EvalSync(ctx, expr)
		if err != nil {
			break
		}
	}
	if done != nil {
		done(ContextResult{Value: last, Err: err})
	}
}

// PauseEvalWithGC requests that the scheduler suspend after its current
// quantum and runs a GC cycle immediately, without waiting for the
// suspension.
// msHint is advisory and unused on hosts without a real timer: it is a
// hint, not a guarantee.
func (rt *Runtime) PauseEvalWithGC(msHint int) {
	rt.Scheduler.paused = true
	_ = rt.CollectGarbage()
}

// ContinueEval resumes a scheduler paused by PauseEvalWithGC.
func (rt *Runtime) ContinueEval() { rt.Scheduler.paused = false }

// KillEval stops the scheduler entirely, killing every live context.
func (rt *Runtime) KillEval() {
	rt.Scheduler.killed = true
	for _, c := range rt.Scheduler.all() {
		rt.Scheduler.Kill(c.ID)
	}
}

// GetEvalState reports the scheduler's current coarse state.
func (rt *Runtime) GetEvalState() EvalState {
	switch {
	case rt.Scheduler.killed:
		return EvalStateDead
	case rt.Scheduler.paused:
		return EvalStatePaused
	case len(rt.Scheduler.all()) == 0:
		return EvalStateNone
	default:
		return EvalStateRunning
	}
}

// SendMessage enqueues v into the mailbox of the context identified by
// cid, waking it if it was blocked on receive. It is the one cross-thread entry point besides the event queue
// and the kill/pause flags; callers embedding the scheduler on its own
// goroutine must serialize access to it themselves.
func (rt *Runtime) SendMessage(cid ContextID, v Word) bool {
	return rt.Scheduler.Send(cid, v)
}

// RunningIterator invokes f for every context currently in the ready or
// running state, passing a and b through unchanged.
// The scheduler is not advanced while iterating.
func (rt *Runtime) RunningIterator(f func(*Context, interface{}, interface{}), a, b interface{}) {
	for _, c := range rt.Scheduler.all() {
		if c.State == StateReady || c.State == StateRunning {
			f(c, a, b)
		}
	}
}

// BlockedIterator invokes f for every context blocked on receive, blocked
// on an event, or sleeping.
func (rt *Runtime) BlockedIterator(f func(*Context, interface{}, interface{}), a, b interface{}) {
	for _, c := range rt.Scheduler.all() {
		switch c.State {
		case StateBlockedRecv, StateBlockedEvent, StateSleeping:
			f(c, a, b)
		}
	}
}

// ---- Go-value conversion helpers ----

// True interprets w by the evaluator's own truthiness rule.
func (rt *Runtime) True(w Word) bool { return rt.Truthy(w) }

// Not negates True.
func (rt *Runtime) Not(w Word) bool { return !rt.Truthy(w) }

// GoString returns the Go string an array-typed string value holds.
func (rt *Runtime) GoString(w Word) (string, bool) {
	b, ok := rt.Heap.ArrayBytes(w)
	if !ok {
		return "", false
	}
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1] // strings carry a trailing NUL
	}
	return string(b), true
}

// GoInt widens any numeric value to an int.
func (rt *Runtime) GoInt(w Word) (int, bool) {
	f, ok := rt.Heap.AsFloat64(w)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// GoFloat64 widens any numeric value to a float64.
func (rt *Runtime) GoFloat64(w Word) (float64, bool) {
	return rt.Heap.AsFloat64(w)
}

// SymbolName returns the interned name of a symbol value.
func (rt *Runtime) SymbolName(w Word) (string, bool) {
	if !w.IsSymbol() {
		return "", false
	}
	return rt.Symtab.LookupName(w.SymbolIDOf()), true
}

// GoSlice flattens a proper list into a Go slice of Words.
func (rt *Runtime) GoSlice(w Word) ([]Word, bool) {
	if rt.Heap.TypeOf(w) != KindCons && rt.Heap.TypeOf(w) != KindNil {
		return nil, false
	}
	var out []Word
	cur := w
	for rt.Heap.TypeOf(cur) == KindCons {
		out = append(out, rt.Heap.Car(cur))
		cur = rt.Heap.Cdr(cur)
	}
	return out, true
}

// ListOf builds a proper list from elems, allocating cells on rt's heap.
func (rt *Runtime) ListOf(elems ...Word) (Word, error) {
	out := SymWord(SymNil)
	var err error
	for i := len(elems) - 1; i >= 0; i-- {
		out, err = rt.Heap.Cons(elems[i], out)
		if err != nil {
			return OutOfMemorySymbol(), err
		}
	}
	return out, nil
}

func (rt *Runtime) newString(s string) (Word, error) {
	data := append([]byte(s), 0)
	v, err := rt.Heap.AllocateArray(len(data), 1)
	if err != nil {
		return v, err
	}
	if !rt.Heap.SetArrayBytes(v, data) {
		return v, fmt.Errorf("nanolisp: failed to write string payload")
	}
	return v, nil
}

// NewString allocates a NUL-terminated byte array value from s.
func (rt *Runtime) NewString(s string) (Word, error) { return rt.newString(s) }
