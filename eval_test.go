package l0

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalSrc(t *testing.T, src string) (*Value, *Env, *Evaluator) {
	t.Helper()
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, src)
	require.NoError(t, err)
	items, ok := ListToSlice(forms)
	require.True(t, ok)
	var result *Value
	for _, form := range items {
		result, err = ev.Eval(form, env)
		require.NoError(t, err)
	}
	return result, env, ev
}

func TestEval_Literals(t *testing.T) {
	v, _, _ := evalSrc(t, "42")
	assert.Equal(t, "42", v.String())
}

func TestEval_IfTruthyBoundaries(t *testing.T) {
	v, _, _ := evalSrc(t, "(if #f 1)")
	assert.True(t, v.IsNil())

	v, _, _ = evalSrc(t, "(if 0 1 2)")
	assert.Equal(t, "1", v.String(), "0 is truthy")
}

func TestEval_AndOr(t *testing.T) {
	v, _, _ := evalSrc(t, "(and)")
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, "(or)")
	assert.Equal(t, "#f", v.String())

	v, _, _ = evalSrc(t, "(and 1 2 3)")
	assert.Equal(t, "3", v.String())

	v, _, _ = evalSrc(t, "(and 1 #f 3)")
	assert.Equal(t, "#f", v.String())

	v, _, _ = evalSrc(t, "(or #f #f 5)")
	assert.Equal(t, "5", v.String())
}

func TestEval_Cond(t *testing.T) {
	v, _, _ := evalSrc(t, `(cond (#f 1) (#f 2) (else 3))`)
	assert.Equal(t, "3", v.String())

	v, _, _ = evalSrc(t, `(cond (#f 1))`)
	assert.True(t, v.IsNil())

	v, _, _ = evalSrc(t, `(cond (42))`)
	assert.Equal(t, "42", v.String(), "a clause with no body yields its test value")
}

func TestEval_Let(t *testing.T) {
	v, _, _ := evalSrc(t, `(let ((x 1) (y 2)) (+ x y))`)
	assert.Equal(t, "3", v.String())
}

func TestEval_LetBindsSimultaneouslyNotSequentially(t *testing.T) {
	// `let` (not let*): the bindings see the outer scope's `x`, not each
	// other's.
	v, _, err := func() (*Value, *Env, error) {
		arena := NewArena(0)
		ev := NewEvaluator(arena)
		env, err := NewGlobalEnv(ev)
		if err != nil {
			return nil, nil, err
		}
		forms, err := Parse(arena, `(let ((x 1)) (let ((x 2) (y x)) y))`)
		if err != nil {
			return nil, nil, err
		}
		items, _ := ListToSlice(forms)
		v, err := ev.Eval(items[0], env)
		return v, env, err
	}()
	require.NoError(t, err)
	assert.Equal(t, "1", v.String(), "y sees the outer x = 1, not the sibling binding x = 2")
}

func TestEval_DefineBasicAndFunctionShorthand(t *testing.T) {
	v, _, _ := evalSrc(t, `(define x 10) x`)
	assert.Equal(t, "10", v.String())

	v, _, _ = evalSrc(t, `(define (square n) (* n n)) (square 6)`)
	assert.Equal(t, "36", v.String())
}

func TestEval_SetMutatesExistingBinding(t *testing.T) {
	v, _, _ := evalSrc(t, `(define x 1) (set! x 2) x`)
	assert.Equal(t, "2", v.String())
}

func TestEval_SetUnboundIsError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, `(set! nope 1)`)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.Error(t, err)
}

func TestEval_LambdaAndApply(t *testing.T) {
	v, _, _ := evalSrc(t, `((lambda (a b) (+ a b)) 3 4)`)
	assert.Equal(t, "7", v.String())
}

func TestEval_ClosureCapturesEnvironmentByReference(t *testing.T) {
	// Pinned per DESIGN.md's open-question resolution: redefining a global
	// after a closure is created mutates the same frame, so the closure
	// observes the new value on its next lookup.
	v, _, _ := evalSrc(t, `
		(define x 1)
		(define (get-x) x)
		(define before (get-x))
		(define x 2)
		(list before (get-x))
	`)
	assert.Equal(t, "(1 2)", v.String())
}

func TestEval_TailPositionsDoNotOverflowAtDepthBeyondEvalCap(t *testing.T) {
	// A long chain of self-calls made from `if`/`begin` tail positions must
	// not exhaust the depth cap, since they trampoline rather than recurse;
	// this count comfortably exceeds maxEvalDepth.
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)

	src := `(define (count-down n) (if (= n 0) 'done (begin (set! n (- n 1)) (count-down n))))`
	forms, err := Parse(arena, src)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.NoError(t, err)

	callForms, err := Parse(arena, `(count-down 5000)`)
	require.NoError(t, err)
	callItems, _ := ListToSlice(callForms)
	v, err := ev.Eval(callItems[0], env)
	require.NoError(t, err)
	assert.Equal(t, "done", v.String())
}

func TestEval_UnboundVariableIsRuntimeError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, "nonexistent")
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.Error(t, err)
	d, ok := AsDiagnostic(err)
	require.True(t, ok)
	assert.Equal(t, KindRuntime, d.Kind)
}

func TestEval_ApplyingNonFunctionIsError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, "(1 2 3)")
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.Error(t, err)
}

func TestEval_EvalParseRoundTripOnPrintableFragment(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)

	original := arena.List(arena.NewInteger(1), arena.NewInteger(2), arena.NewBoolean(true))
	quoted := arena.Cons(arena.Cons(mustSymbol(t, arena, "quote"), arena.Cons(original, Nil)), Nil)
	quotedForm, ok := ListToSlice(quoted)
	require.True(t, ok)

	reparsed, err := Parse(arena, quotedForm[0].String())
	require.NoError(t, err)
	reparsedItems, _ := ListToSlice(reparsed)

	evaluatedOriginal, err := ev.Eval(quotedForm[0], env)
	require.NoError(t, err)
	evaluatedReparsed, err := ev.Eval(reparsedItems[0], env)
	require.NoError(t, err)

	assert.Equal(t, evaluatedOriginal.String(), evaluatedReparsed.String())
}

func TestEval_DeterministicOnPureExpression(t *testing.T) {
	a := evalOnce(t, "(+ 1 (* 2 3))")
	b := evalOnce(t, "(+ 1 (* 2 3))")
	assert.Equal(t, a, b)
}

func evalOnce(t *testing.T, src string) string {
	t.Helper()
	v, _, _ := evalSrc(t, src)
	return v.String()
}
