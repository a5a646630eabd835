// Copyright © 2026 The nanolisp authors

package lisp

import "errors"

// StepOutcome is what RunContext reports when it stops running a context,
// either because its quantum expired or because it hit one of the
// suspension points (yield, sleep, receive, event wait, kill).
type StepOutcome uint8

const (
	OutcomeContinue   StepOutcome = iota // quantum expired, context stays ready
	OutcomeDone                          // reached DONE; c.R/c.err hold the result
	OutcomeFault                         // unrecoverable fault; c.R/c.err hold it
	OutcomeYield                         // executed (yield)
	OutcomeSleep                         // executed (sleep n); c.WakeTime is set
	OutcomeRecv                          // blocked on (recv ...)
	OutcomeBlockEvent                    // blocked waiting for an event tag
)

// errNeedGC is the internal sentinel a reduction step returns when an
// allocation it needs failed; RunContext runs a GC cycle and retries the
// same step, per the allocation-failure retry protocol.
var errNeedGC = errors.New("nanolisp: retry after gc")

// errInternal flags a continuation-stack state that should be unreachable
// from any well-formed program (an unknown opcode at the top of K). Unlike
// the five stable error conditions, this is not a value a program can
// observe or recover from, so it surfaces as a Go-level fault.
var errInternal = errors.New("nanolisp: corrupt continuation frame")

// raise arms apply-continuation with one of the five reserved error
// conditions. Recoverable conditions -- unbound symbols, malformed
// special forms, arity mismatches, calls of non-callable values -- flow
// through c.R exactly like any other value instead of aborting the
// context. The Go-level faults are mark-stack overflow, continuation-stack
// overflow, out-of-memory after exhausted GC retries, a corrupt
// continuation frame (errInternal), and, under StrictErrorTruthiness, an
// eval-error reaching the test position of `if`.
func raise(c *Context, sym SymbolID) {
	c.R = SymWord(sym)
	c.ApplyCont = true
}

// RunContext runs c's dispatch loop for up to quantum reductions. Every
// iteration begins at the safepoint: GC runs synchronously inline (it
// never suspends) and the safepoint is the only place preemption,
// cancellation, and collection are observed.
func RunContext(rt *Runtime, c *Context, quantum int) StepOutcome {
	for iter := 0; iter < quantum; iter++ {
		if c.State == StateKilled {
			return OutcomeContinue
		}
		if rt.GCLowWater > 0 {
			// Early collection with hysteresis: once a cycle fails to lift
			// the heap back above the mark, the trigger disarms until it
			// recovers, leaving allocation failures as the only driver.
			if free := rt.Heap.HeapNumFree(); free >= rt.GCLowWater {
				rt.gcLowWaterArmed = true
			} else if rt.gcLowWaterArmed {
				rt.gcLowWaterArmed = false
				if gcErr := rt.CollectGarbage(); gcErr != nil {
					c.err = gcErr
					return OutcomeFault
				}
			}
		}
		var err error
		var susp StepOutcome
		var done bool

		if c.ApplyCont {
			done, susp, err = rt.stepApplyContinuation(c)
		} else {
			susp, err = rt.stepDispatch(c)
		}

		if err == errNeedGC {
			if c.gcAttempts >= 2 {
				c.R = SymWord(SymOutOfMemory)
				c.err = &ErrorVal{Condition: SymOutOfMemory, FunName: "eval"}
				return OutcomeFault
			}
			if gcErr := rt.CollectGarbage(); gcErr != nil {
				c.err = gcErr
				return OutcomeFault
			}
			c.gcAttempts++
			continue
		}
		c.gcAttempts = 0

		if err == ErrStackOverflow {
			c.R = SymWord(SymOutOfMemory)
			c.err = &ErrorVal{Condition: SymOutOfMemory, FunName: "continuation-stack"}
			return OutcomeFault
		}
		if err != nil {
			c.err = err
			return OutcomeFault
		}
		if done {
			return OutcomeDone
		}
		if susp != OutcomeContinue {
			return susp
		}
	}
	return OutcomeContinue
}

// stepDispatch classifies curr_exp and either self-evaluates it, looks it
// up, handles a special form, or begins a function application.
func (rt *Runtime) stepDispatch(c *Context) (StepOutcome, error) {
	h := rt.Heap
	exp := c.CurrExp

	if exp.IsSymbol() {
		id := exp.SymbolIDOf()
		if id < ReservedSymbolCeiling && id != SymNil && id != SymT {
			// A bare reference to a special-form keyword with no
			// argument list is an eval-error, matching "unbound symbol".
			raise(c, SymEvalError)
			return OutcomeContinue, nil
		}
		if v, ok := h.EnvLookup(id, c.CurrEnv); ok {
			c.R = v
			c.ApplyCont = true
			return OutcomeContinue, nil
		}
		if v, ok := h.EnvLookup(id, rt.GlobalEnv); ok {
			c.R = v
			c.ApplyCont = true
			return OutcomeContinue, nil
		}
		if id == SymNil || id == SymT || rt.IsFundamental(id) || rt.Extensions.IsExtension(id) {
			c.R = exp
			c.ApplyCont = true
			return OutcomeContinue, nil
		}
		if rt.DynamicLoader != nil {
			if v, ok := rt.DynamicLoader(rt, rt.Symtab.LookupName(id)); ok {
				c.R = v
				c.ApplyCont = true
				return OutcomeContinue, nil
			}
		}
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}

	if !exp.IsPointer() {
		// immediate: small int/uint/char -- self-evaluating.
		c.R = exp
		c.ApplyCont = true
		return OutcomeContinue, nil
	}

	switch h.TypeOf(exp) {
	case KindCons:
		head := h.Car(exp)
		if head.IsSymbol() {
			if sf, ok := specialForms[head.SymbolIDOf()]; ok {
				return sf(rt, c, h.Cdr(exp))
			}
		}
		return rt.beginApplication(c, exp)
	default:
		// boxed numeric, array, closure-shaped value appearing directly:
		// self-evaluating.
		c.R = exp
		c.ApplyCont = true
		return OutcomeContinue, nil
	}
}

// beginApplication implements the dispatch table's "anything else" rule:
// push FUNCTION(head), then start evaluating the argument list.
func (rt *Runtime) beginApplication(c *Context, exp Word) (StepOutcome, error) {
	h := rt.Heap
	head := h.Car(exp)
	args := h.Cdr(exp)
	if h.TypeOf(args) == KindNil {
		if err := c.K.PushFrame(OpFunction, head, c.CurrEnv); err != nil {
			return 0, err
		}
		c.R = SymWord(SymNil)
		c.ApplyCont = true
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpFunction, head, c.CurrEnv); err != nil {
		return 0, err
	}
	if err := c.K.PushFrame(OpArgList, c.CurrEnv, SymWord(SymNil), h.Cdr(args)); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(args)
	return OutcomeContinue, nil
}

// stepApplyContinuation pops one frame from K and resumes with c.R,
// dispatching on the frame opcode.
func (rt *Runtime) stepApplyContinuation(c *Context) (done bool, susp StepOutcome, err error) {
	h := rt.Heap
	op, ops := c.K.PopFrame()
	c.ApplyCont = false

	switch op {
	case OpDone:
		return true, OutcomeContinue, nil

	case OpSetGlobalEnv:
		key := ops[0]
		if !key.IsSymbol() {
			raise(c, SymEvalError)
			return false, OutcomeContinue, nil
		}
		if gerr := h.GlobalSet(&rt.GlobalEnv, key.SymbolIDOf(), c.R); gerr != nil {
			_ = c.K.PushFrame(OpSetGlobalEnv, key)
			c.ApplyCont = true
			return false, 0, errNeedGC
		}
		c.R = SymWord(SymT)
		c.ApplyCont = true
		return false, OutcomeContinue, nil

	case OpPrognRest:
		rest := ops[0]
		if h.TypeOf(rest) != KindCons {
			c.ApplyCont = true
			return false, OutcomeContinue, nil
		}
		if perr := c.K.PushFrame(OpPrognRest, h.Cdr(rest)); perr != nil {
			return false, 0, perr
		}
		c.CurrExp = h.Car(rest)
		return false, OutcomeContinue, nil

	case OpIf:
		then, els := ops[0], ops[1]
		if rt.StrictErrorTruthiness && c.R.IsSymbol() && c.R.SymbolIDOf() == SymEvalError {
			c.err = &ErrorVal{Condition: SymEvalError, FunName: "if"}
			return false, 0, c.err
		}
		if rt.Truthy(c.R) {
			c.CurrExp = then
		} else {
			c.CurrExp = els
		}
		return false, OutcomeContinue, nil

	case OpArgList:
		env, acc, rest := ops[0], ops[1], ops[2]
		newAcc, cerr := h.Cons(c.R, acc)
		if cerr != nil {
			_ = c.K.PushFrame(OpArgList, env, acc, rest)
			c.ApplyCont = true
			return false, 0, errNeedGC
		}
		if h.TypeOf(rest) != KindCons {
			c.R = newAcc
			c.ApplyCont = true
			return false, OutcomeContinue, nil
		}
		if perr := c.K.PushFrame(OpArgList, env, newAcc, h.Cdr(rest)); perr != nil {
			return false, 0, perr
		}
		c.CurrExp = h.Car(rest)
		c.CurrEnv = env
		return false, OutcomeContinue, nil

	case OpFunction:
		head, env := ops[0], ops[1]
		argsRev := c.R // reversed evaluated argument list from ARG_LIST
		args, aerr := reverseList(h, argsRev)
		if aerr != nil {
			_ = c.K.PushFrame(OpFunction, head, env)
			c.ApplyCont = true
			return false, 0, errNeedGC
		}
		if head.IsSymbol() {
			id := head.SymbolIDOf()
			if rt.IsFundamental(id) || rt.Extensions.IsExtension(id) {
				// A fundamental or extension head applies immediately;
				// there is no head value left to evaluate.
				return rt.applyFunction(c, head, args)
			}
		}
		if perr := c.K.PushFrame(OpFunctionApp, args); perr != nil {
			return false, 0, perr
		}
		c.CurrExp = head
		c.CurrEnv = env
		return false, OutcomeContinue, nil

	case OpFunctionApp:
		args := ops[0]
		return rt.applyFunction(c, c.R, args)

	case OpBindToKeyRest:
		rest, env, key, body := ops[0], ops[1], ops[2], ops[3]
		if !key.IsSymbol() {
			raise(c, SymEvalError)
			return false, OutcomeContinue, nil
		}
		h.EnvModify(env, key.SymbolIDOf(), c.R)
		if h.TypeOf(rest) == KindCons {
			nextBinding := h.Car(rest)
			nextKey := h.Car(nextBinding)
			nextVal := h.Car(h.Cdr(nextBinding))
			if perr := c.K.PushFrame(OpBindToKeyRest, h.Cdr(rest), env, nextKey, body); perr != nil {
				return false, 0, perr
			}
			c.CurrExp = nextVal
			c.CurrEnv = env
			return false, OutcomeContinue, nil
		}
		c.CurrExp = body
		c.CurrEnv = env
		return false, OutcomeContinue, nil

	case OpCondRest:
		body, restClauses := ops[0], ops[1]
		if rt.Truthy(c.R) {
			c.CurrExp = body
			return false, OutcomeContinue, nil
		}
		susp, cerr := rt.condDispatch(c, restClauses)
		return false, susp, cerr

	case OpYield:
		// Resumption after a (yield) suspension: it evaluates to nil and
		// execution falls through to whatever frame lies beneath it.
		c.R = SymWord(SymNil)
		c.ApplyCont = true
		return false, OutcomeContinue, nil

	case OpSleep:
		us, ok := rt.GoInt(c.R)
		if !ok {
			raise(c, SymTypeError)
			return false, OutcomeContinue, nil
		}
		c.WakeTime = rt.TimestampUS() + int64(us)
		c.R = SymWord(SymNil)
		c.ApplyCont = true
		return false, OutcomeSleep, nil

	case OpRead:
		c.ApplyCont = true
		return false, OutcomeContinue, nil

	case OpEventWait:
		tag := c.R
		if payload, ok := rt.Scheduler.takeEvent(tag); ok {
			c.R = payload
			c.ApplyCont = true
			return false, OutcomeContinue, nil
		}
		c.eventTag = tag
		c.ApplyCont = true
		return false, OutcomeBlockEvent, nil

	case OpRecv:
		if matched, env, body := rt.tryMatchMailbox(c, c.recvEnv, c.recvPatterns, c.recvBodies); matched {
			c.recvPatterns, c.recvBodies = nil, nil
			c.CurrExp = body
			c.CurrEnv = env
			return false, OutcomeContinue, nil
		}
		if perr := c.K.PushFrame(OpRecv); perr != nil {
			return false, 0, perr
		}
		c.ApplyCont = true
		return false, OutcomeRecv, nil

	default:
		return false, 0, errInternal
	}
}

// applyFunction dispatches on the kind of fn: closure, fundamental, or
// extension. args is the fully-evaluated argument list in forward order.
func (rt *Runtime) applyFunction(c *Context, fn, args Word) (done bool, susp StepOutcome, err error) {
	h := rt.Heap

	if fn.IsSymbol() {
		id := fn.SymbolIDOf()
		if rt.IsFundamental(id) {
			argv, lerr := listToSlice(h, args)
			if lerr != nil {
				return false, 0, lerr
			}
			c.R = rt.invokeFundamental(id, argv)
			c.ApplyCont = true
			return false, OutcomeContinue, nil
		}
		if rt.Extensions.IsExtension(id) {
			argv, lerr := listToSlice(h, args)
			if lerr != nil {
				return false, 0, lerr
			}
			c.R = rt.Extensions.Invoke(rt, id, argv)
			c.ApplyCont = true
			return false, OutcomeContinue, nil
		}
		raise(c, SymEvalError)
		return false, OutcomeContinue, nil
	}

	if h.TypeOf(fn) == KindClosure {
		params := h.Car(h.Cdr(fn))
		body := h.Car(h.Cdr(h.Cdr(fn)))
		closureEnv := h.Car(h.Cdr(h.Cdr(h.Cdr(fn))))
		localEnv, arityOK, berr := h.BuildParams(params, args, closureEnv)
		if berr != nil {
			_ = c.K.PushFrame(OpFunctionApp, args)
			c.R = fn
			c.ApplyCont = true
			return false, 0, errNeedGC
		}
		if !arityOK {
			raise(c, SymEvalError)
			return false, OutcomeContinue, nil
		}
		// Tail call: curr_exp/curr_env are replaced without pushing a
		// continuation frame.
		c.CurrExp = body
		c.CurrEnv = localEnv
		return false, OutcomeContinue, nil
	}

	raise(c, SymEvalError)
	return false, OutcomeContinue, nil
}

func reverseList(h *Heap, lst Word) (Word, error) {
	out := SymWord(SymNil)
	cur := lst
	var err error
	for h.TypeOf(cur) == KindCons {
		out, err = h.Cons(h.Car(cur), out)
		if err != nil {
			return SymWord(SymNil), err
		}
		cur = h.Cdr(cur)
	}
	return out, nil
}

func listToSlice(h *Heap, lst Word) ([]Word, error) {
	var out []Word
	cur := lst
	for h.TypeOf(cur) == KindCons {
		out = append(out, h.Car(cur))
		cur = h.Cdr(cur)
	}
	return out, nil
}

// EvalSync runs ctx's program to completion (DONE, fault, or a blocking
// suspension it cannot resolve synchronously) by repeatedly calling
// RunContext with the runtime's configured quantum. It is the synchronous
// convenience entry point LoadAndEvalProgramIncremental and tests use;
// embedders driving multiple concurrently-scheduled contexts should use
// Runtime.Scheduler directly instead. When expr completes or faults,
// ctx.CurrEnv is restored to its value on entry, so local bindings made
// while evaluating expr do not leak into the next EvalSync on ctx.
func (rt *Runtime) EvalSync(ctx *Context, expr Word) (Word, error) {
	env := ctx.CurrEnv
	ctx.CurrExp = expr
	ctx.ApplyCont = false
	ctx.K.Clear()
	_ = ctx.K.PushFrame(OpDone)
	for {
		outcome := RunContext(rt, ctx, rt.Quantum)
		switch outcome {
		case OutcomeDone:
			ctx.CurrEnv = env
			return ctx.R, nil
		case OutcomeFault:
			ctx.CurrEnv = env
			return ctx.R, ctx.err
		case OutcomeContinue, OutcomeYield:
			continue
		case OutcomeSleep:
			if delta := ctx.WakeTime - rt.TimestampUS(); delta > 0 {
				rt.USleep(delta)
			}
			continue
		default:
			return ctx.R, &ErrorVal{Condition: SymEvalError, Message: "cannot block synchronously"}
		}
	}
}
