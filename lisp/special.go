// Copyright © 2026 The nanolisp authors

package lisp

// specialForm is one dispatch-loop reduction step for a special form: given
// the form's argument list (the cdr of the whole form), it arms c.R/c.K/
// c.CurrExp/c.CurrEnv for its form and reports how the loop should
// proceed.
type specialForm func(rt *Runtime, c *Context, rest Word) (StepOutcome, error)

// specialForms maps each reserved keyword to its reduction step. Looked up
// by stepDispatch before falling back to ordinary application.
var specialForms = map[SymbolID]specialForm{
	SymQuote:     doQuote,
	SymDefine:    doDefine,
	SymLambda:    doLambda,
	SymLet:       doLet,
	SymLetrec:    doLetrec,
	SymIf:        doIf,
	SymProgn:     doProgn,
	SymCond:      doCond,
	SymYield:     doYield,
	SymSleep:     doSleep,
	SymRecv:      doRecv,
	SymEventWait: doEventWait,
}

// doQuote implements (quote x): x is returned unevaluated.
func doQuote(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	c.R = h.Car(rest)
	c.ApplyCont = true
	return OutcomeContinue, nil
}

// doDefine implements (define key value-expr): push SET_GLOBAL_ENV(key),
// then evaluate value-expr.
func doDefine(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	key := h.Car(rest)
	valRest := h.Cdr(rest)
	if h.TypeOf(valRest) != KindCons || !key.IsSymbol() {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpSetGlobalEnv, key); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(valRest)
	return OutcomeContinue, nil
}

// doIf implements (if test then [else]); else defaults to nil.
func doIf(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	test := h.Car(rest)
	rest2 := h.Cdr(rest)
	if h.TypeOf(rest2) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	thenExp := h.Car(rest2)
	elseExp := SymWord(SymNil)
	if rest3 := h.Cdr(rest2); h.TypeOf(rest3) == KindCons {
		elseExp = h.Car(rest3)
	}
	if err := c.K.PushFrame(OpIf, thenExp, elseExp); err != nil {
		return 0, err
	}
	c.CurrExp = test
	return OutcomeContinue, nil
}

// doProgn implements (progn e1 e2 ... en): each form is evaluated in order
// for effect, the last form's value is the result.
func doProgn(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		c.R = SymWord(SymNil)
		c.ApplyCont = true
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpPrognRest, h.Cdr(rest)); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(rest)
	return OutcomeContinue, nil
}

// prognOf collapses a body form list into one expression: the lone form
// itself when there is only one, otherwise a (progn . forms) node.
func prognOf(h *Heap, bodyForms Word) (Word, error) {
	if h.TypeOf(h.Cdr(bodyForms)) != KindCons {
		return h.Car(bodyForms), nil
	}
	return h.Cons(SymWord(SymProgn), bodyForms)
}

// buildClosure allocates the (closure params body env) cell chain
// applyFunction expects.
func buildClosure(h *Heap, params, body, env Word) (Word, error) {
	tail, err := h.Cons(env, SymWord(SymNil))
	if err != nil {
		return Word(0), err
	}
	tail, err = h.Cons(body, tail)
	if err != nil {
		return Word(0), err
	}
	tail, err = h.Cons(params, tail)
	if err != nil {
		return Word(0), err
	}
	return h.Cons(SymWord(SymClosure), tail)
}

// doLambda implements (lambda params body1 body2 ... bodyn): it captures a
// shallow copy of the defining environment (ShallowCopyEnv): bindings
// later prepended to the defining chain are not seen by the closure, while
// in-place updates of the shared (key . value) pairs, such as letrec's
// EnvModify, are.
func doLambda(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	params := h.Car(rest)
	bodyForms := h.Cdr(rest)
	if h.TypeOf(bodyForms) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	body, err := prognOf(h, bodyForms)
	if err != nil {
		return 0, errNeedGC
	}
	envCopy, err := h.ShallowCopyEnv(c.CurrEnv)
	if err != nil {
		return 0, errNeedGC
	}
	closure, err := buildClosure(h, params, body, envCopy)
	if err != nil {
		return 0, errNeedGC
	}
	c.R = closure
	c.ApplyCont = true
	return OutcomeContinue, nil
}

// bindForm implements both let and letrec: every key is pre-bound to
// nil in a fresh environment frame before any value expression is
// evaluated, so a lambda captured by an earlier binding already sees every
// later sibling name in scope -- letrec's defining property, harmlessly
// also true of plain let since its bodies never look at bindings during
// their own evaluation.
func bindForm(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	bindings := h.Car(rest)
	bodyForms := h.Cdr(rest)
	if h.TypeOf(bodyForms) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	body, err := prognOf(h, bodyForms)
	if err != nil {
		return 0, errNeedGC
	}

	env := c.CurrEnv
	cur := bindings
	for h.TypeOf(cur) == KindCons {
		binding := h.Car(cur)
		if h.TypeOf(binding) != KindCons || !h.Car(binding).IsSymbol() {
			raise(c, SymEvalError)
			return OutcomeContinue, nil
		}
		key := h.Car(binding)
		var eerr error
		env, eerr = h.EnvExtend(key.SymbolIDOf(), SymWord(SymNil), env)
		if eerr != nil {
			return 0, errNeedGC
		}
		cur = h.Cdr(cur)
	}

	if h.TypeOf(bindings) != KindCons {
		c.CurrExp = body
		c.CurrEnv = env
		return OutcomeContinue, nil
	}

	firstBinding := h.Car(bindings)
	firstKey := h.Car(firstBinding)
	firstValRest := h.Cdr(firstBinding)
	if h.TypeOf(firstValRest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpBindToKeyRest, h.Cdr(bindings), env, firstKey, body); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(firstValRest)
	c.CurrEnv = env
	return OutcomeContinue, nil
}

func doLet(rt *Runtime, c *Context, rest Word) (StepOutcome, error)    { return bindForm(rt, c, rest) }
func doLetrec(rt *Runtime, c *Context, rest Word) (StepOutcome, error) { return bindForm(rt, c, rest) }

// doCond implements the supplemented cond form: each clause is
// (test body1 body2 ... bodyn); the first clause whose test is truthy has
// its body evaluated as the result, mirroring if's truthiness rule.
// A clause's body may not be omitted.
func doCond(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	return rt.condDispatch(c, rest)
}

// condDispatch evaluates the next clause's test and arms a continuation
// that either runs that clause's body or advances to the next one.
func (rt *Runtime) condDispatch(c *Context, clauses Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(clauses) != KindCons {
		c.R = SymWord(SymNil)
		c.ApplyCont = true
		return OutcomeContinue, nil
	}
	clause := h.Car(clauses)
	if h.TypeOf(clause) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	test := h.Car(clause)
	bodyForms := h.Cdr(clause)
	if h.TypeOf(bodyForms) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	body, err := prognOf(h, bodyForms)
	if err != nil {
		return 0, errNeedGC
	}
	if perr := c.K.PushFrame(OpCondRest, body, h.Cdr(clauses)); perr != nil {
		return 0, perr
	}
	c.CurrExp = test
	return OutcomeContinue, nil
}

// doYield implements (yield): it unconditionally gives up the remainder of
// the context's quantum, resuming with nil once the scheduler
// picks the context back up.
func doYield(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	if err := c.K.PushFrame(OpYield); err != nil {
		return 0, err
	}
	c.ApplyCont = true
	return OutcomeYield, nil
}

// doSleep implements (sleep microseconds): it evaluates the duration
// expression, then suspends the context until Runtime.TimestampUS reaches
// that deadline.
func doSleep(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpSleep); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(rest)
	return OutcomeContinue, nil
}

// doRecv implements (recv (pattern1 body1...) (pattern2 body2...) ...). A
// clause's pattern is structurally a parameter list bound
// against a one-element list wrapping the received message, so a pattern of
// (m) binds m to the whole message; a pattern of two or more required
// parameters, such as (a b), matches no message. The first clause whose pattern accepts the oldest
// matching mailbox entry runs; if no queued message matches any clause, the
// context blocks until Send delivers one.
func doRecv(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	var patterns, bodies []Word
	cur := rest
	for h.TypeOf(cur) == KindCons {
		clause := h.Car(cur)
		if h.TypeOf(clause) != KindCons {
			raise(c, SymEvalError)
			return OutcomeContinue, nil
		}
		pattern := h.Car(clause)
		bodyForms := h.Cdr(clause)
		if h.TypeOf(bodyForms) != KindCons {
			raise(c, SymEvalError)
			return OutcomeContinue, nil
		}
		body, err := prognOf(h, bodyForms)
		if err != nil {
			return 0, errNeedGC
		}
		patterns = append(patterns, pattern)
		bodies = append(bodies, body)
		cur = h.Cdr(cur)
	}
	if len(patterns) == 0 {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	if matched, env, body := rt.tryMatchMailbox(c, c.CurrEnv, patterns, bodies); matched {
		c.CurrExp = body
		c.CurrEnv = env
		return OutcomeContinue, nil
	}
	c.recvPatterns = patterns
	c.recvBodies = bodies
	c.recvEnv = c.CurrEnv
	if err := c.K.PushFrame(OpRecv); err != nil {
		return 0, err
	}
	c.ApplyCont = true
	return OutcomeRecv, nil
}

// doEventWait implements (event-wait tag): the tag expression is evaluated,
// then the context consumes the oldest queued event carrying that tag, or
// blocks until the host pushes one. The event's payload is the result.
func doEventWait(rt *Runtime, c *Context, rest Word) (StepOutcome, error) {
	h := rt.Heap
	if h.TypeOf(rest) != KindCons {
		raise(c, SymEvalError)
		return OutcomeContinue, nil
	}
	if err := c.K.PushFrame(OpEventWait); err != nil {
		return 0, err
	}
	c.CurrExp = h.Car(rest)
	return OutcomeContinue, nil
}

// tryMatchMailbox scans c's mailbox oldest-first, trying every clause
// pattern against each message in turn, and removes and returns the first
// match. A message that matches no clause is left queued, so an unrelated
// message ahead of it in arrival order does not get skipped permanently.
func (rt *Runtime) tryMatchMailbox(c *Context, baseEnv Word, patterns, bodies []Word) (matched bool, env, body Word) {
	h := rt.Heap
	for i := 0; i < c.Mailbox.Len(); i++ {
		msg, ok := c.Mailbox.PeekAt(i)
		if !ok {
			continue
		}
		wrapped, werr := h.Cons(msg, SymWord(SymNil))
		if werr != nil {
			continue
		}
		for ci, pattern := range patterns {
			boundEnv, arityOK, berr := h.BuildParams(pattern, wrapped, baseEnv)
			if berr != nil {
				continue
			}
			if arityOK {
				c.Mailbox.RemoveAt(i)
				return true, boundEnv, bodies[ci]
			}
		}
	}
	return false, SymWord(SymNil), SymWord(SymNil)
}
