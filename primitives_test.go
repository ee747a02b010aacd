package l0

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitives_ListOps(t *testing.T) {
	v, _, _ := evalSrc(t, `(cons 1 2)`)
	assert.Equal(t, "(1 . 2)", v.String())

	v, _, _ = evalSrc(t, `(car (list 1 2 3))`)
	assert.Equal(t, "1", v.String())

	v, _, _ = evalSrc(t, `(cdr (list 1 2 3))`)
	assert.Equal(t, "(2 3)", v.String())

	v, _, _ = evalSrc(t, `(pair? (cons 1 2))`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(null? (list))`)
	assert.Equal(t, "#t", v.String())
}

func TestPrimitives_AppendPreservesLengthInvariant(t *testing.T) {
	// length(append(xs, '())) == length(xs)
	v, _, _ := evalSrc(t, `(append (list 1 2 3) (list))`)
	items, ok := ListToSlice(v)
	require.True(t, ok)
	assert.Len(t, items, 3)
}

func TestPrimitives_AppendChainsMultipleLists(t *testing.T) {
	v, _, _ := evalSrc(t, `(append (list 1 2) (list 3 4) (list 5))`)
	assert.Equal(t, "(1 2 3 4 5)", v.String())
}

func TestPrimitives_ArithmeticIntegerStaysIntegerUntilFloatSeen(t *testing.T) {
	v, _, _ := evalSrc(t, `(+ 1 2 3)`)
	assert.Equal(t, "6", v.String())

	v, _, _ = evalSrc(t, `(+ 1 2.0 3)`)
	assert.Equal(t, "6.0", v.String())
	assert.True(t, v.IsFloat())

	v, _, _ = evalSrc(t, `(* 2 3 4)`)
	assert.Equal(t, "24", v.String())

	v, _, _ = evalSrc(t, `(- 10 1 2)`)
	assert.Equal(t, "7", v.String())

	v, _, _ = evalSrc(t, `(- 5)`)
	assert.Equal(t, "-5", v.String())
}

func TestPrimitives_DivideAlwaysReturnsFloat(t *testing.T) {
	v, _, _ := evalSrc(t, `(/ 4 2)`)
	assert.True(t, v.IsFloat())
	assert.Equal(t, "2.0", v.String())
}

func TestPrimitives_DivideByZeroIsError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, `(/ 1 0)`)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.Error(t, err)
}

func TestPrimitives_ComparisonsWithFewerThanTwoArgsAreTriviallyTrue(t *testing.T) {
	v, _, _ := evalSrc(t, `(= 5)`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(<)`)
	assert.Equal(t, "#t", v.String())
}

func TestPrimitives_NumEqualIsFalseForNonNumericOperand(t *testing.T) {
	v, _, _ := evalSrc(t, `(= 1 "one")`)
	assert.Equal(t, "#f", v.String())
}

func TestPrimitives_ChainedComparisons(t *testing.T) {
	v, _, _ := evalSrc(t, `(< 1 2 3)`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(< 1 3 2)`)
	assert.Equal(t, "#f", v.String())

	v, _, _ = evalSrc(t, `(> 3 2 1)`)
	assert.Equal(t, "#t", v.String())
}

func TestPrimitives_TypePredicates(t *testing.T) {
	v, _, _ := evalSrc(t, `(integer? 5)`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(integer? 5.0)`)
	assert.Equal(t, "#f", v.String())

	v, _, _ = evalSrc(t, `(string? "hi")`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(closure? (lambda (x) x))`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(not #f)`)
	assert.Equal(t, "#t", v.String())

	v, _, _ = evalSrc(t, `(not 0)`)
	assert.Equal(t, "#f", v.String(), "0 is truthy, so (not 0) is #f")
}

func TestPrimitives_Strings(t *testing.T) {
	v, _, _ := evalSrc(t, `(string-append "foo" "bar")`)
	assert.Equal(t, `"foobar"`, v.String())

	v, _, _ = evalSrc(t, `(string-length "hello")`)
	assert.Equal(t, "5", v.String())

	v, _, _ = evalSrc(t, `(string-ref "hello" 1)`)
	assert.Equal(t, `"e"`, v.String())

	v, _, _ = evalSrc(t, `(substring "hello world" 0 5)`)
	assert.Equal(t, `"hello"`, v.String())

	v, _, _ = evalSrc(t, `(string->symbol "foo")`)
	assert.Equal(t, "foo", v.String())

	v, _, _ = evalSrc(t, `(symbol->string 'foo)`)
	assert.Equal(t, `"foo"`, v.String())

	v, _, _ = evalSrc(t, `(number->string 42)`)
	assert.Equal(t, `"42"`, v.String())
}

func TestPrimitives_ReadWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)

	src := `(write-file "` + path + `" "hello there")`
	forms, err := Parse(arena, src)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	ok, err := ev.Eval(items[0], env)
	require.NoError(t, err)
	assert.Equal(t, "#t", ok.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(content))

	readSrc := `(read-file "` + path + `")`
	readForms, err := Parse(arena, readSrc)
	require.NoError(t, err)
	readItems, _ := ListToSlice(readForms)
	v, err := ev.Eval(readItems[0], env)
	require.NoError(t, err)
	assert.Equal(t, `"hello there"`, v.String())
}

func TestPrimitives_ReadFileMissingReturnsFalse(t *testing.T) {
	v, _, _ := evalSrc(t, `(read-file "/nonexistent/path/does-not-exist")`)
	assert.Equal(t, "#f", v.String())
}

func TestPrimitives_CommandLineArgsReflectsSetCommandLineArgs(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	ev.SetCommandLineArgs([]string{"a", "b"})
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, `(command-line-args)`)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	v, err := ev.Eval(items[0], env)
	require.NoError(t, err)
	assert.Equal(t, `("a" "b")`, v.String())
}

func TestPrimitives_ParseStringExposesReader(t *testing.T) {
	v, _, _ := evalSrc(t, `(parse-string "(+ 1 2)")`)
	items, ok := ListToSlice(v)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "(+ 1 2)", items[0].String())
}

func TestPrimitives_ParseStringFailureReturnsFalseAndRecordsError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, `(parse-string "(unterminated")`)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	v, err := ev.Eval(items[0], env)
	require.NoError(t, err)
	assert.Equal(t, "#f", v.String())
	assert.NotNil(t, ev.lastErr)
}

func TestPrimitives_EvalAndApply(t *testing.T) {
	v, _, _ := evalSrc(t, `(eval (list '+ 1 2) (list))`)
	assert.Equal(t, "3", v.String())

	v, _, _ = evalSrc(t, `(apply + (list 1 2 3))`)
	assert.Equal(t, "6", v.String())
}

func TestPrimitives_IsMacroQAndGetMacroTransformer(t *testing.T) {
	arena, ev, env := macroSetup(t)
	evalAll(t, arena, ev, env, `(defmacro double (x) (list '* 2 x))`)

	v := evalAll(t, arena, ev, env, `(is-macro? 'double)`)
	assert.Equal(t, "#t", v.String())

	v = evalAll(t, arena, ev, env, `(is-macro? 'not-a-macro)`)
	assert.Equal(t, "#f", v.String())

	transformer := evalAll(t, arena, ev, env, `(get-macro-transformer 'double)`)
	assert.True(t, transformer.IsClosure())
}

func TestPrimitives_RefAndDeref(t *testing.T) {
	v, _, _ := evalSrc(t, `(deref (ref 42))`)
	assert.Equal(t, "42", v.String())
}

func TestPrimitives_DerefNonReferenceIsError(t *testing.T) {
	arena := NewArena(0)
	ev := NewEvaluator(arena)
	env, err := NewGlobalEnv(ev)
	require.NoError(t, err)
	forms, err := Parse(arena, `(deref 5)`)
	require.NoError(t, err)
	items, _ := ListToSlice(forms)
	_, err = ev.Eval(items[0], env)
	require.Error(t, err)
}

func TestPrimitives_GetLastErrorDefaultsBeforeAnyError(t *testing.T) {
	v, _, _ := evalSrc(t, `(get-last-error-message)`)
	assert.Equal(t, "#f", v.String())

	v, _, _ = evalSrc(t, `(get-last-error-line)`)
	assert.Equal(t, "0", v.String())
}

func TestPrimitives_CodegenProgramExposesEmitter(t *testing.T) {
	v, _, _ := evalSrc(t, `(codegen-program (parse-string "(+ 1 2)"))`)
	require.True(t, v.IsString())
	assert.Contains(t, v.Text(), "l0_prim_add")
}
