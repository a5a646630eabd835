// Copyright © 2026 The nanolisp authors

package lisp

// Environments are association lists of (key . value)
// cons cells. A local environment is just a Word -- the head of a chain of
// pair cells -- and "extending" an environment means prepending a new pair
// cell, never mutating the chain a caller may still be holding a reference
// to. The global environment is the one exception: it is a single
// process-wide chain that define/global_set mutate and replace in place:
// `SET_GLOBAL_ENV` mutates `global_env` directly rather than threading a
// new one through registers.

// EnvLookup walks the cdr chain of env looking for a pair whose key matches.
// First match wins, shadowing any later binding of the same symbol.
// ok is false if no binding was found.
func (h *Heap) EnvLookup(key SymbolID, env Word) (Word, bool) {
	cur := env
	keyW := SymWord(key)
	for h.TypeOf(cur) == KindCons {
		pair := h.Car(cur)
		if h.TypeOf(pair) == KindCons && h.Car(pair) == keyW {
			return h.Cdr(pair), true
		}
		cur = h.Cdr(cur)
	}
	return SymWord(SymNil), false
}

// EnvExtend prepends a new (key . val) pair onto env and returns the new
// environment head. On allocation failure it returns env unchanged and the
// error, so the caller can request a GC and retry the whole reduction step.
func (h *Heap) EnvExtend(key SymbolID, val, env Word) (Word, error) {
	pair, err := h.Cons(SymWord(key), val)
	if err != nil {
		return env, err
	}
	return h.Cons(pair, env)
}

// EnvModify implements letrec-style rebinding: it mutates the value half of
// the first matching pair found walking env's whole chain, including the
// frames env was extended from, and reports whether a binding was found.
func (h *Heap) EnvModify(env Word, key SymbolID, val Word) bool {
	cur := env
	keyW := SymWord(key)
	for h.TypeOf(cur) == KindCons {
		pair := h.Car(cur)
		if h.TypeOf(pair) == KindCons && h.Car(pair) == keyW {
			h.SetCdr(pair, val)
			return true
		}
		cur = h.Cdr(cur)
	}
	return false
}

// GlobalSet replaces the value of key in *global if present, otherwise
// prepends a fresh pair, mutating *global in place. On allocation failure
// *global is left unchanged and an error is returned.
func (h *Heap) GlobalSet(global *Word, key SymbolID, val Word) error {
	if h.EnvModify(*global, key, val) {
		return nil
	}
	next, err := h.EnvExtend(key, val, *global)
	if err != nil {
		return err
	}
	*global = next
	return nil
}

// BuildParams binds formal parameter symbols to evaluated argument values,
// extending base. It supports a plain fixed-arity parameter list (a proper
// list of symbols) and an optional trailing rest-argument symbol; an arity
// mismatch is reported by returning (nilWord, false, nil) so the caller can
// raise eval-error. Binding is atomic:
// if any cons allocation fails partway through, the half-built chain is
// simply discarded (env is never installed into a register) and the
// caller may GC and retry from scratch.
func (h *Heap) BuildParams(params, args, base Word) (env Word, arityOK bool, err error) {
	env = base
	p, a := params, args
	for h.TypeOf(p) == KindCons {
		if h.TypeOf(a) != KindCons {
			return SymWord(SymNil), false, nil
		}
		sym := h.Car(p)
		if sym.IsSymbol() {
			env, err = h.EnvExtend(sym.SymbolIDOf(), h.Car(a), env)
			if err != nil {
				return SymWord(SymNil), true, err
			}
		}
		p = h.Cdr(p)
		a = h.Cdr(a)
	}
	if h.TypeOf(p) == KindNil {
		if h.TypeOf(a) == KindCons {
			return SymWord(SymNil), false, nil // too many arguments
		}
		return env, true, nil
	}
	// A trailing symbol (rest-arg convention) binds the remainder list.
	if p.IsSymbol() {
		env, err = h.EnvExtend(p.SymbolIDOf(), a, env)
		if err != nil {
			return SymWord(SymNil), true, err
		}
		return env, true, nil
	}
	return SymWord(SymNil), false, nil
}

// ShallowCopyEnv copies the top-level chain of env into a new chain of
// freshly allocated pair-cons cells but reuses the existing (key . value)
// pair cells themselves, the shallow copy lambda needs when capturing its
// defining environment. This lets a closure's captured environment
// keep seeing later mutations of the *pairs* it shares (e.g. a later
// `set` of an outer local) while remaining unaffected if the defining
// scope later extends its own chain with more bindings.
func (h *Heap) ShallowCopyEnv(env Word) (Word, error) {
	var pairs []Word
	cur := env
	for h.TypeOf(cur) == KindCons {
		pairs = append(pairs, h.Car(cur))
		cur = h.Cdr(cur)
	}
	out := SymWord(SymNil)
	var err error
	for i := len(pairs) - 1; i >= 0; i-- {
		out, err = h.Cons(pairs[i], out)
		if err != nil {
			return SymWord(SymNil), err
		}
	}
	return out, nil
}
