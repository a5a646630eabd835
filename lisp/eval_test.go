// Copyright © 2026 The nanolisp authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanolisp/nanolisp/lisp"
)

func newTestRuntime(t *testing.T, opts ...lisp.Config) (*lisp.Runtime, *lisp.Context) {
	t.Helper()
	base := []lisp.Config{lisp.WithHeapCells(4096), lisp.WithAuxWords(4096)}
	rt, err := lisp.NewRuntime(append(base, opts...)...)
	require.NoError(t, err)
	ctx := rt.Scheduler.Spawn(lisp.SymWord(lisp.SymNil), rt.GlobalEnv)
	return rt, ctx
}

func testList(t *testing.T, rt *lisp.Runtime, elems ...lisp.Word) lisp.Word {
	t.Helper()
	list := lisp.SymWord(lisp.SymNil)
	for i := len(elems) - 1; i >= 0; i-- {
		w, err := rt.Heap.Cons(elems[i], list)
		require.NoError(t, err)
		list = w
	}
	return list
}

func TestEvalQuoteReturnsUnevaluated(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	sym := lisp.SymWord(rt.Symtab.Intern("foo"))
	expr := testList(t, rt, lisp.SymWord(lisp.SymQuote), sym)

	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, sym, result)
}

func TestEvalIfTruthyBranches(t *testing.T) {
	rt, ctx := newTestRuntime(t)

	truthy := testList(t, rt,
		lisp.SymWord(lisp.SymIf), lisp.SymWord(lisp.SymT),
		lisp.SmallInt(1), lisp.SmallInt(2))
	result, err := rt.EvalSync(ctx, truthy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SmallIntValue())

	falsy := testList(t, rt,
		lisp.SymWord(lisp.SymIf), lisp.SymWord(lisp.SymNil),
		lisp.SmallInt(1), lisp.SmallInt(2))
	result2, err := rt.EvalSync(ctx, falsy)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result2.SmallIntValue())
}

func TestEvalIfElseDefaultsToNil(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	expr := testList(t, rt, lisp.SymWord(lisp.SymIf), lisp.SymWord(lisp.SymNil), lisp.SmallInt(1))
	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.True(t, result.IsSymbol())
	assert.Equal(t, lisp.SymNil, result.SymbolIDOf())
}

func TestEvalErrorIsFalseByDefaultInIf(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	// The test clause is (quote eval-error), so the if test evaluates to
	// the eval-error symbol itself.
	unbound := lisp.SymWord(rt.Symtab.Intern("undefined-name"))
	test := testList(t, rt, lisp.SymWord(lisp.SymQuote), lisp.SymWord(lisp.SymEvalError))
	expr := testList(t, rt, lisp.SymWord(lisp.SymIf), test, lisp.SmallInt(1), lisp.SmallInt(2))
	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.SmallIntValue(), "eval-error in test position is false by default")
	_ = unbound
}

func TestStrictErrorTruthinessPropagatesError(t *testing.T) {
	rt, ctx := newTestRuntime(t, lisp.WithStrictErrorTruthiness())
	test := testList(t, rt, lisp.SymWord(lisp.SymQuote), lisp.SymWord(lisp.SymEvalError))
	expr := testList(t, rt, lisp.SymWord(lisp.SymIf), test, lisp.SmallInt(1), lisp.SmallInt(2))
	_, err := rt.EvalSync(ctx, expr)
	require.Error(t, err, "strict mode must propagate eval-error through if instead of treating it as false")
}

func TestEvalLetShadowsGlobal(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	x := lisp.SymWord(rt.Symtab.Intern("x"))

	define := testList(t, rt, lisp.SymWord(lisp.SymDefine), x, lisp.SmallInt(100))
	_, err := rt.EvalSync(ctx, define)
	require.NoError(t, err)

	binding := testList(t, rt, x, lisp.SmallInt(1))
	bindings := testList(t, rt, binding)
	letExpr := testList(t, rt, lisp.SymWord(lisp.SymLet), bindings, x)
	result, err := rt.EvalSync(ctx, letExpr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.SmallIntValue(), "let binding must shadow the global of the same name")

	global, err := rt.EvalSync(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, int64(100), global.SmallIntValue(), "the global must be unaffected by the let body")
}

func TestEvalLetrecSeesSiblingBindings(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	isEven := lisp.SymWord(rt.Symtab.Intern("is-even"))
	isOdd := lisp.SymWord(rt.Symtab.Intern("is-odd"))
	n := lisp.SymWord(rt.Symtab.Intern("n"))

	// (lambda (n) (if (= n 0) t (is-odd (- n 1))))
	isEvenBody := testList(t, rt,
		lisp.SymWord(lisp.SymIf),
		testList(t, rt, lisp.SymWord(rt.Symtab.Intern("=")), n, lisp.SmallInt(0)),
		lisp.SymWord(lisp.SymT),
		testList(t, rt, isOdd, testList(t, rt, lisp.SymWord(rt.Symtab.Intern("-")), n, lisp.SmallInt(1))),
	)
	isEvenLambda := testList(t, rt, lisp.SymWord(lisp.SymLambda), testList(t, rt, n), isEvenBody)

	// (lambda (n) (if (= n 0) nil (is-even (- n 1))))
	isOddBody := testList(t, rt,
		lisp.SymWord(lisp.SymIf),
		testList(t, rt, lisp.SymWord(rt.Symtab.Intern("=")), n, lisp.SmallInt(0)),
		lisp.SymWord(lisp.SymNil),
		testList(t, rt, isEven, testList(t, rt, lisp.SymWord(rt.Symtab.Intern("-")), n, lisp.SmallInt(1))),
	)
	isOddLambda := testList(t, rt, lisp.SymWord(lisp.SymLambda), testList(t, rt, n), isOddBody)

	bindings := testList(t, rt,
		testList(t, rt, isEven, isEvenLambda),
		testList(t, rt, isOdd, isOddLambda),
	)
	call := testList(t, rt, isEven, lisp.SmallInt(10))
	letrecExpr := testList(t, rt, lisp.SymWord(lisp.SymLetrec), bindings, call)

	result, err := rt.EvalSync(ctx, letrecExpr)
	require.NoError(t, err)
	assert.True(t, result.IsSymbol())
	assert.Equal(t, lisp.SymT, result.SymbolIDOf(), "is-even must be visible from within is-odd's own closure")
}

func TestTailCallDoesNotGrowContinuationStack(t *testing.T) {
	rt, ctx := newTestRuntime(t, lisp.WithContStackPolicy(64, false))
	loop := lisp.SymWord(rt.Symtab.Intern("count-down"))
	n := lisp.SymWord(rt.Symtab.Intern("n"))

	// (lambda (n) (if (= n 0) 'done (count-down (- n 1))))
	body := testList(t, rt,
		lisp.SymWord(lisp.SymIf),
		testList(t, rt, lisp.SymWord(rt.Symtab.Intern("=")), n, lisp.SmallInt(0)),
		testList(t, rt, lisp.SymWord(lisp.SymQuote), lisp.SymWord(lisp.SymDone)),
		testList(t, rt, loop, testList(t, rt, lisp.SymWord(rt.Symtab.Intern("-")), n, lisp.SmallInt(1))),
	)
	lambda := testList(t, rt, lisp.SymWord(lisp.SymLambda), testList(t, rt, n), body)

	define := testList(t, rt, lisp.SymWord(lisp.SymDefine), loop, lambda)
	_, err := rt.EvalSync(ctx, define)
	require.NoError(t, err)

	call := testList(t, rt, loop, lisp.SmallInt(10000))
	result, err := rt.EvalSync(ctx, call)
	require.NoError(t, err, "a self tail call must not overflow a 64-word continuation stack across 10000 iterations")
	assert.Equal(t, lisp.SymDone, result.SymbolIDOf())
}

func TestEvalCondFirstTruthyClauseWins(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	expr := testList(t, rt, lisp.SymWord(lisp.SymCond),
		testList(t, rt, lisp.SymWord(lisp.SymNil), lisp.SmallInt(1)),
		testList(t, rt, lisp.SymWord(lisp.SymT), lisp.SmallInt(2)),
		testList(t, rt, lisp.SymWord(lisp.SymT), lisp.SmallInt(3)),
	)
	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.SmallIntValue())
}

func TestEvalCondNoClauseMatchesYieldsNil(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	expr := testList(t, rt, lisp.SymWord(lisp.SymCond),
		testList(t, rt, lisp.SymWord(lisp.SymNil), lisp.SmallInt(1)),
	)
	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, lisp.SymNil, result.SymbolIDOf())
}

func TestEvalDirectLambdaApplication(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	x := lisp.SymWord(rt.Symtab.Intern("x"))

	// ((lambda (x) (* x x)) 7)
	times := lisp.SymWord(rt.Symtab.Intern("*"))
	body := testList(t, rt, times, x, x)
	lambda := testList(t, rt, lisp.SymWord(lisp.SymLambda), testList(t, rt, x), body)
	call := testList(t, rt, lambda, lisp.SmallInt(7))

	result, err := rt.EvalSync(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, int64(49), result.SmallIntValue(), "a lambda form in head position must be evaluated before application")
}

func TestEvalClosureArityMismatchIsEvalError(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	x := lisp.SymWord(rt.Symtab.Intern("x"))
	f := lisp.SymWord(rt.Symtab.Intern("f"))

	lambda := testList(t, rt, lisp.SymWord(lisp.SymLambda), testList(t, rt, x), x)
	define := testList(t, rt, lisp.SymWord(lisp.SymDefine), f, lambda)
	_, err := rt.EvalSync(ctx, define)
	require.NoError(t, err)

	call := testList(t, rt, f, lisp.SmallInt(1), lisp.SmallInt(2))
	result, err := rt.EvalSync(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, lisp.SymEvalError, result.SymbolIDOf())
}

func TestEvalCallOfNonCallableIsEvalError(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	// (1 2): a small integer in head position is not callable.
	call := testList(t, rt, lisp.SmallInt(1), lisp.SmallInt(2))
	result, err := rt.EvalSync(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, lisp.SymEvalError, result.SymbolIDOf())
}

func TestEvalPrognOrderAndResult(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	a := lisp.SymWord(rt.Symtab.Intern("a"))

	// (progn (define a 1) (+ a 1))
	defineA := testList(t, rt, lisp.SymWord(lisp.SymDefine), a, lisp.SmallInt(1))
	plus := lisp.SymWord(rt.Symtab.Intern("+"))
	sum := testList(t, rt, plus, a, lisp.SmallInt(1))
	expr := testList(t, rt, lisp.SymWord(lisp.SymProgn), defineA, sum)

	result, err := rt.EvalSync(ctx, expr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.SmallIntValue())

	// (progn) is nil
	empty := testList(t, rt, lisp.SymWord(lisp.SymProgn))
	result2, err := rt.EvalSync(ctx, empty)
	require.NoError(t, err)
	assert.Equal(t, lisp.SymNil, result2.SymbolIDOf())
}

func TestDynamicLoaderResolvesUnboundSymbol(t *testing.T) {
	rt, ctx := newTestRuntime(t)
	rt.DynamicLoader = func(rt *lisp.Runtime, name string) (lisp.Word, bool) {
		if name == "loaded-later" {
			return lisp.SmallInt(123), true
		}
		return 0, false
	}

	v, err := rt.EvalSync(ctx, lisp.SymWord(rt.Symtab.Intern("loaded-later")))
	require.NoError(t, err)
	assert.Equal(t, int64(123), v.SmallIntValue())

	missing, err := rt.EvalSync(ctx, lisp.SymWord(rt.Symtab.Intern("still-missing")))
	require.NoError(t, err)
	assert.Equal(t, lisp.SymEvalError, missing.SymbolIDOf())
}
