// Copyright © 2026 The nanolisp authors

package lisp

import "container/heap"

// ContextID uniquely identifies a context for the lifetime of the process.
type ContextID uint64

// State is one of the context lifecycle states.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlockedRecv
	StateBlockedEvent
	StateSleeping
	StateDone
	StateKilled
)

// Context is one independent evaluator: its own registers, continuation
// stack, and mailbox. It is created by Scheduler.Spawn and removed
// from every queue once its State becomes StateDone or StateKilled.
type Context struct {
	ID ContextID

	CurrExp Word
	CurrEnv Word
	R       Word
	K       *ContStack

	// ApplyCont is the apply-continuation flag: when set, the
	// next reduction pops a frame from K and resumes with R instead of
	// dispatching CurrExp.
	ApplyCont bool

	Mailbox *Mailbox

	State    State
	WakeTime int64 // microseconds, compared against Runtime.TimestampUS

	// recvPatterns/recvBodies hold an in-progress receive's clauses while
	// the context is StateBlockedRecv; they are nil otherwise.
	recvPatterns []Word
	recvBodies   []Word
	recvEnv      Word

	eventTag Word

	gcAttempts int
	err        error
}

// eventQueue is the scheduler's host/extension-facing event surface:
// hosts and extensions push (tag, payload) pairs that wake contexts
// blocked on a matching tag.
type eventQueue struct {
	items    []eventItem
	capacity int
}

type eventItem struct {
	tag     Word
	payload Word
}

func newEventQueue(capacity int) *eventQueue {
	return &eventQueue{capacity: capacity}
}

func (q *eventQueue) push(tag, payload Word) bool {
	if q == nil || len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, eventItem{tag, payload})
	return true
}

func (q *eventQueue) take(tag Word) (Word, bool) {
	for i, it := range q.items {
		if it.tag == tag {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return it.payload, true
		}
	}
	return SymWord(SymNil), false
}

// idleBackoffUS is how long Run idles per pass when every live context is
// blocked on a send or event only the host can deliver.
const idleBackoffUS = 1000

// sleepItem is one entry of the scheduler's sleeping-queue min-heap,
// ordered by wake time -- the same container/heap-backed priority queue
// idiom a cooperative Go scheduler elsewhere in this lineage uses for
// timer wheels.
type sleepItem struct {
	wakeAt int64
	id     ContextID
}

type sleepHeap []sleepItem

func (h sleepHeap) Len() int            { return len(h) }
func (h sleepHeap) Less(i, j int) bool  { return h[i].wakeAt < h[j].wakeAt }
func (h sleepHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sleepHeap) Push(x interface{}) { *h = append(*h, x.(sleepItem)) }
func (h *sleepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler multiplexes contexts cooperatively: one ready queue,
// one blocked-on-event set, and a sleeping min-heap ordered by wake time.
// Exactly one context runs at a time; RunOnce advances the whole system by
// one scheduling decision.
type Scheduler struct {
	rt *Runtime

	contexts map[ContextID]*Context
	nextID   ContextID

	ready       []ContextID
	blockedRecv map[ContextID]bool
	blockedEvt  map[ContextID]bool
	sleeping    sleepHeap

	quantum         int
	mailboxCapacity int
	stackInit       int
	stackGrowable   bool

	events *eventQueue
	paused bool
	killed bool
}

// NewScheduler constructs an empty scheduler bound to rt.
func NewScheduler(rt *Runtime, quantum, mailboxCapacity, stackInit int, stackGrowable bool, eventCapacity int) *Scheduler {
	return &Scheduler{
		rt:              rt,
		contexts:        make(map[ContextID]*Context),
		blockedRecv:     make(map[ContextID]bool),
		blockedEvt:      make(map[ContextID]bool),
		quantum:         quantum,
		mailboxCapacity: mailboxCapacity,
		stackInit:       stackInit,
		stackGrowable:   stackGrowable,
		events:          newEventQueue(eventCapacity),
	}
}

// Spawn creates a new context evaluating program in env and enqueues it as
// ready.
func (s *Scheduler) Spawn(program, env Word) *Context {
	s.nextID++
	c := &Context{
		ID:      s.nextID,
		CurrExp: program,
		CurrEnv: env,
		R:       SymWord(SymNil),
		K:       NewContStack(s.stackInit, s.stackGrowable),
		Mailbox: NewMailbox(s.mailboxCapacity),
		State:   StateReady,
	}
	_ = c.K.PushFrame(OpDone)
	s.contexts[c.ID] = c
	s.ready = append(s.ready, c.ID)
	s.rt.Logger.Debugf("sched: spawn ctx=%d", c.ID)
	return c
}

// Get returns the context for cid, or nil.
func (s *Scheduler) Get(cid ContextID) *Context { return s.contexts[cid] }

// all returns every live context, for iteration and GC rooting.
func (s *Scheduler) all() []*Context {
	out := make([]*Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		out = append(out, c)
	}
	return out
}

func (s *Scheduler) allRoots() []Word {
	var roots []Word
	for _, c := range s.contexts {
		roots = append(roots, c.CurrExp, c.CurrEnv, c.R)
		roots = append(roots, c.K.Roots()...)
		roots = append(roots, c.Mailbox.Roots()...)
		roots = append(roots, c.recvPatterns...)
		roots = append(roots, c.recvBodies...)
	}
	return roots
}

func (s *Scheduler) enqueueReady(id ContextID) {
	s.contexts[id].State = StateReady
	s.ready = append(s.ready, id)
}

// Send enqueues v on cid's mailbox, waking it if
// blocked on receive. It reports false on mailbox overflow without
// blocking the sender.
func (s *Scheduler) Send(cid ContextID, v Word) bool {
	c := s.contexts[cid]
	if c == nil {
		return false
	}
	if !c.Mailbox.Enqueue(v) {
		return false
	}
	if c.State == StateBlockedRecv {
		delete(s.blockedRecv, cid)
		s.enqueueReady(cid)
	}
	return true
}

// PushEvent hands an event to the scheduler. A context already blocked on
// the tag consumes it directly and wakes; otherwise the event queues until
// an event-wait asks for it. It reports false on queue overflow.
func (s *Scheduler) PushEvent(tag, payload Word) bool {
	for cid := range s.blockedEvt {
		c := s.contexts[cid]
		if c.eventTag == tag {
			delete(s.blockedEvt, cid)
			c.R = payload
			s.enqueueReady(cid)
			return true
		}
	}
	return s.events.push(tag, payload)
}

// takeEvent consumes the oldest queued event carrying tag, if any.
func (s *Scheduler) takeEvent(tag Word) (Word, bool) {
	return s.events.take(tag)
}

// Kill transitions cid to StateKilled; its stack and queue membership are
// dropped at its next scheduling opportunity. A blocked or sleeping target
// is re-queued as ready so that opportunity actually arrives.
func (s *Scheduler) Kill(cid ContextID) {
	c := s.contexts[cid]
	if c == nil {
		return
	}
	wasBlocked := c.State == StateBlockedRecv || c.State == StateBlockedEvent || c.State == StateSleeping
	c.State = StateKilled
	if wasBlocked {
		delete(s.blockedRecv, cid)
		delete(s.blockedEvt, cid)
		s.ready = append(s.ready, cid)
	}
}

func (s *Scheduler) removeContext(c *Context) {
	c.K.Clear()
	delete(s.contexts, c.ID)
	delete(s.blockedRecv, c.ID)
	delete(s.blockedEvt, c.ID)
	if s.rt.OnContextDone != nil {
		s.rt.OnContextDone(c, ContextResult{Value: c.R, Err: c.err})
	}
}

// wakeSleepers moves every context whose wake time has elapsed into ready.
func (s *Scheduler) wakeSleepers(now int64) {
	for len(s.sleeping) > 0 && s.sleeping[0].wakeAt <= now {
		item := heap.Pop(&s.sleeping).(sleepItem)
		c := s.contexts[item.id]
		if c == nil || c.State != StateSleeping {
			continue
		}
		s.enqueueReady(item.id)
	}
}

// RunOnce advances the scheduler by one context's worth of work: it wakes
// due sleepers, picks the ready head, runs it for up to Quantum
// reductions, and re-queues or retires it based on the outcome. It reports false when there is nothing left to do (ready and
// blocked both empty).
func (s *Scheduler) RunOnce() bool {
	now := s.rt.TimestampUS()
	s.wakeSleepers(now)
	if len(s.ready) == 0 {
		if len(s.sleeping) > 0 {
			// Nothing runnable but a sleeper is due later: idle until its
			// wake time instead of spinning.
			if delta := s.sleeping[0].wakeAt - now; delta > 0 {
				s.rt.USleep(delta)
			}
			s.wakeSleepers(s.rt.TimestampUS())
		} else if len(s.blockedRecv)+len(s.blockedEvt) > 0 {
			// Only blocked contexts remain; a send or event from the host
			// is the sole thing that can make progress.
			s.rt.USleep(idleBackoffUS)
		}
		return len(s.contexts) > 0
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	c := s.contexts[id]
	if c == nil {
		return true
	}
	if c.State == StateKilled {
		s.removeContext(c)
		return true
	}
	c.State = StateRunning
	_, span := s.rt.Tracer.Start(s.rt.ctx, "sched.quantum")
	outcome := RunContext(s.rt, c, s.quantum)
	span.End()
	if c.State == StateKilled {
		// Killed mid-quantum: the dispatch loop bailed at its safepoint.
		s.removeContext(c)
		return true
	}
	switch outcome {
	case OutcomeContinue:
		s.enqueueReady(id)
	case OutcomeDone:
		c.State = StateDone
		s.removeContext(c)
	case OutcomeFault:
		c.State = StateDone
		s.removeContext(c)
	case OutcomeYield:
		s.enqueueReady(id)
	case OutcomeSleep:
		c.State = StateSleeping
		heap.Push(&s.sleeping, sleepItem{wakeAt: c.WakeTime, id: id})
	case OutcomeRecv:
		c.State = StateBlockedRecv
		s.blockedRecv[id] = true
	case OutcomeBlockEvent:
		c.State = StateBlockedEvent
		s.blockedEvt[id] = true
	}
	return true
}

// Run drives RunOnce until the scheduler has no ready or blocked work left
// or has been killed.
func (s *Scheduler) Run() {
	for !s.killed {
		if s.paused {
			return
		}
		if !s.RunOnce() {
			return
		}
	}
}
