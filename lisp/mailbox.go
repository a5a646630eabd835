// Copyright © 2026 The nanolisp authors

package lisp

// Mailbox is the bounded FIFO of tagged values attached to every
// context. It only tracks ordering and capacity; pattern matching against a
// receive clause is performed by the evaluator (tryMatchMailbox, special.go) using
// the same BuildParams machinery a function call uses to bind arguments,
// since a receive pattern is, structurally, a parameter list.
type Mailbox struct {
	queue    []Word
	capacity int
}

// NewMailbox creates a mailbox with the given bounded capacity.
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{capacity: capacity}
}

// Enqueue appends v to the tail of the mailbox. It reports false (and
// leaves the mailbox unchanged) on overflow; overflow never
// blocks the sender.
func (m *Mailbox) Enqueue(v Word) bool {
	if len(m.queue) >= m.capacity {
		return false
	}
	m.queue = append(m.queue, v)
	return true
}

// PeekAt returns the i-th oldest message without removing it.
func (m *Mailbox) PeekAt(i int) (Word, bool) {
	if i < 0 || i >= len(m.queue) {
		return SymWord(SymNil), false
	}
	return m.queue[i], true
}

// RemoveAt consumes the i-th oldest message, preserving the relative order
// of the remainder (FIFO ordering per sender-receiver pair still holds
// because messages from one sender are never reordered relative to each
// other by removing an unrelated message ahead of them).
func (m *Mailbox) RemoveAt(i int) {
	if i < 0 || i >= len(m.queue) {
		return
	}
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
}

// Len reports the number of queued messages.
func (m *Mailbox) Len() int { return len(m.queue) }

// Roots returns every queued message, for GC marking.
func (m *Mailbox) Roots() []Word {
	out := make([]Word, len(m.queue))
	copy(out, m.queue)
	return out
}
