package l0

import (
	"fmt"
	"os"
	"strconv"
)

// NewGlobalEnv builds the root environment every top-level program runs in:
// an empty frame over which *macro-table* and the closed primitive table
// are installed, grounded on
// original_source/cheng_c/src/l0_primitives.c's l0_register_primitives.
func NewGlobalEnv(ev *Evaluator) (*Env, error) {
	env := NewRootEnv(ev.arena)
	if err := InitMacroTable(env, ev.arena); err != nil {
		return nil, err
	}
	if err := registerPrimitives(ev, env); err != nil {
		return nil, err
	}
	return env, nil
}

func registerPrimitives(ev *Evaluator, env *Env) error {
	table := []struct {
		name string
		fn   PrimitiveFunc
	}{
		// List operations
		{"cons", primCons},
		{"car", primCar},
		{"cdr", primCdr},
		{"list", primList},
		{"pair?", primPairQ},
		{"null?", primNullQ},
		{"append", primAppend},

		// Arithmetic
		{"+", primAdd},
		{"-", primSubtract},
		{"*", primMultiply},
		{"/", primDivide},

		// Comparison
		{"=", primNumEqual},
		{"<", primLessThan},
		{">", primGreaterThan},

		// Type predicates
		{"integer?", primTypeQ(KindInteger)},
		{"boolean?", primTypeQ(KindBoolean)},
		{"symbol?", primTypeQ(KindSymbol)},
		{"string?", primTypeQ(KindString)},
		{"float?", primTypeQ(KindFloat)},
		{"closure?", primTypeQ(KindClosure)},
		{"not", primNot},

		// Strings
		{"string-append", primStringAppend},
		{"string->symbol", primStringToSymbol},
		{"symbol->string", primSymbolToString},
		{"string-length", primStringLength},
		{"string-ref", primStringRef},
		{"substring", primSubstring},
		{"number->string", primNumberToString},

		// I/O
		{"print", primPrint},
		{"read-file", primReadFile},
		{"write-file", primWriteFile},
		{"command-line-args", ev.primCommandLineArgs},

		// Compiler-pipeline primitives — the interpreter exposes its own
		// parser and emitter to L0 programs.
		{"parse-string", ev.primParseString},
		{"codegen-program", ev.primCodegenProgram},

		// Error reporting
		{"get-last-error-message", ev.primGetLastErrorMessage},
		{"get-last-error-line", ev.primGetLastErrorLine},
		{"get-last-error-col", ev.primGetLastErrorCol},

		// Evaluation
		{"eval", ev.primEval},
		{"apply", ev.primApply},
		{"eval-in-compiler-env", ev.primEval}, // same global env as eval in this single-environment model

		// Macro introspection
		{"is-macro?", ev.primIsMacroQ},
		{"get-macro-transformer", ev.primGetMacroTransformer},

		// Reference cell
		{"ref", primRef},
		{"deref", primDeref},
	}

	for _, entry := range table {
		sym, err := ev.arena.NewSymbol(entry.name)
		if err != nil {
			return err
		}
		if err := env.Define(sym, ev.arena.NewPrimitive(entry.name, entry.fn)); err != nil {
			return err
		}
	}
	return nil
}

// --- argument helpers, grounded on l0_primitives.c's get_arg/check_arg_count ---

func argN(name string, args *Value, n int) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("%s: argument list is not a proper list", name)
	}
	if n >= len(items) {
		return nil, RuntimeError("%s: expected at least %d arguments, got %d", name, n+1, len(items))
	}
	return items[n], nil
}

func exactArgs(name string, args *Value, n int) ([]*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("%s: argument list is not a proper list", name)
	}
	if len(items) != n {
		return nil, RuntimeError("%s: expected exactly %d arguments, got %d", name, n, len(items))
	}
	return items, nil
}

func numericAsFloat(name string, v *Value) (float64, error) {
	switch {
	case v.IsInteger():
		return float64(v.Int()), nil
	case v.IsFloat():
		return v.Float(), nil
	default:
		return 0, RuntimeError("%s: argument must be a number (integer or float), got %s", name, v.Kind())
	}
}

// --- list operations ---

func primCons(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, err := exactArgs("cons", args, 2)
	if err != nil {
		return nil, err
	}
	return ar.Cons(items[0], items[1]), nil
}

func primCar(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("car", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsPair() {
		return nil, RuntimeError("car: argument must be a pair, got %s", v.Kind())
	}
	return v.Car(), nil
}

func primCdr(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("cdr", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsPair() {
		return nil, RuntimeError("cdr: argument must be a pair, got %s", v.Kind())
	}
	return v.Cdr(), nil
}

func primList(args *Value, env *Env, ar *Arena) (*Value, error) {
	return args, nil
}

func primPairQ(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("pair?", args, 0)
	if err != nil {
		return nil, err
	}
	return ar.NewBoolean(v.IsPair()), nil
}

func primNullQ(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("null?", args, 0)
	if err != nil {
		return nil, err
	}
	return ar.NewBoolean(v.IsNil()), nil
}

// primAppend implements (append list ...): every argument but the last must
// be a proper list; the last argument is used as-is as the final tail,
// matching l0_primitives.c's prim_append.
func primAppend(args *Value, env *Env, ar *Arena) (*Value, error) {
	lists, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("append: argument list is not a proper list")
	}
	if len(lists) == 0 {
		return Nil, nil
	}
	var all []*Value
	for _, l := range lists[:len(lists)-1] {
		items, ok := ListToSlice(l)
		if !ok {
			return nil, RuntimeError("append: every argument but the last must be a proper list")
		}
		all = append(all, items...)
	}
	result := lists[len(lists)-1]
	for i := len(all) - 1; i >= 0; i-- {
		result = ar.Cons(all[i], result)
	}
	return result, nil
}

// --- arithmetic, ported from prim_add/prim_subtract/prim_multiply/prim_divide:
// integer arithmetic stays integer until a float operand is seen, at which
// point the running total is promoted and stays float for the rest of the
// call. ---

func primAdd(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("+: argument list is not a proper list")
	}
	var intSum int64
	var floatSum float64
	hasFloat := false
	for _, v := range items {
		switch {
		case v.IsFloat():
			if !hasFloat {
				floatSum = float64(intSum)
				hasFloat = true
			}
			floatSum += v.Float()
		case v.IsInteger():
			if hasFloat {
				floatSum += float64(v.Int())
			} else {
				intSum += v.Int()
			}
		default:
			return nil, RuntimeError("+: arguments must be numbers (integer or float)")
		}
	}
	if hasFloat {
		return ar.NewFloat(floatSum), nil
	}
	return ar.NewInteger(intSum), nil
}

func primSubtract(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("-: argument list is not a proper list")
	}
	if len(items) == 0 {
		return nil, RuntimeError("-: requires at least one argument")
	}
	hasFloat := items[0].IsFloat()
	firstVal, err := numericAsFloat("-", items[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		if hasFloat {
			return ar.NewFloat(-firstVal), nil
		}
		return ar.NewInteger(-int64(firstVal)), nil
	}

	floatResult := firstVal
	intResult := int64(firstVal)
	for _, v := range items[1:] {
		argVal, err := numericAsFloat("-", v)
		if err != nil {
			return nil, err
		}
		if v.IsFloat() && !hasFloat {
			floatResult = float64(intResult)
			hasFloat = true
		}
		if hasFloat {
			floatResult -= argVal
		} else {
			intResult -= int64(argVal)
		}
	}
	if hasFloat {
		return ar.NewFloat(floatResult), nil
	}
	return ar.NewInteger(intResult), nil
}

func primMultiply(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("*: argument list is not a proper list")
	}
	var intProduct int64 = 1
	floatProduct := 1.0
	hasFloat := false
	for _, v := range items {
		switch {
		case v.IsFloat():
			if !hasFloat {
				floatProduct = float64(intProduct)
				hasFloat = true
			}
			floatProduct *= v.Float()
		case v.IsInteger():
			if hasFloat {
				floatProduct *= float64(v.Int())
			} else {
				intProduct *= v.Int()
			}
		default:
			return nil, RuntimeError("*: arguments must be numbers (integer or float)")
		}
	}
	if hasFloat {
		return ar.NewFloat(floatProduct), nil
	}
	return ar.NewInteger(intProduct), nil
}

// primDivide always returns a float, matching prim_divide.
func primDivide(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("/: argument list is not a proper list")
	}
	if len(items) == 0 {
		return nil, RuntimeError("/: requires at least one argument")
	}
	first, err := numericAsFloat("/", items[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		if first == 0 {
			return nil, RuntimeError("/: division by zero (1/0)")
		}
		return ar.NewFloat(1.0 / first), nil
	}
	result := first
	for _, v := range items[1:] {
		argVal, err := numericAsFloat("/", v)
		if err != nil {
			return nil, err
		}
		if argVal == 0 {
			return nil, RuntimeError("/: division by zero")
		}
		result /= argVal
	}
	return ar.NewFloat(result), nil
}

// --- comparisons ---

// primNumEqual implements (= a b ...): numeric equality between every
// argument, matching prim_equal; a non-numeric operand makes the whole
// comparison false rather than an error, per the reference.
func primNumEqual(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("=: argument list is not a proper list")
	}
	if len(items) < 2 {
		return ar.NewBoolean(true), nil
	}
	first, err := numericAsFloat("=", items[0])
	firstIsNum := err == nil
	for _, v := range items[1:] {
		next, nerr := numericAsFloat("=", v)
		if !firstIsNum || nerr != nil {
			return ar.NewBoolean(false), nil
		}
		if first != next {
			return ar.NewBoolean(false), nil
		}
	}
	return ar.NewBoolean(true), nil
}

func primLessThan(args *Value, env *Env, ar *Arena) (*Value, error) {
	return chainCompare("<", args, ar, func(a, b float64) bool { return a < b })
}

func primGreaterThan(args *Value, env *Env, ar *Arena) (*Value, error) {
	return chainCompare(">", args, ar, func(a, b float64) bool { return a > b })
}

func chainCompare(name string, args *Value, ar *Arena, ok func(a, b float64) bool) (*Value, error) {
	items, isList := ListToSlice(args)
	if !isList {
		return nil, RuntimeError("%s: argument list is not a proper list", name)
	}
	if len(items) < 2 {
		return ar.NewBoolean(true), nil
	}
	prev, err := numericAsFloat(name, items[0])
	if err != nil {
		return nil, err
	}
	for _, v := range items[1:] {
		cur, err := numericAsFloat(name, v)
		if err != nil {
			return nil, err
		}
		if !ok(prev, cur) {
			return ar.NewBoolean(false), nil
		}
		prev = cur
	}
	return ar.NewBoolean(true), nil
}

// --- type predicates / not ---

func primTypeQ(kind Kind) PrimitiveFunc {
	return func(args *Value, env *Env, ar *Arena) (*Value, error) {
		v, err := argN(kind.String()+"?", args, 0)
		if err != nil {
			return nil, err
		}
		return ar.NewBoolean(v.Kind() == kind), nil
	}
}

func primNot(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("not", args, 0)
	if err != nil {
		return nil, err
	}
	return ar.NewBoolean(!IsTruthy(v)), nil
}

// --- strings ---

func primStringAppend(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("string-append: argument list is not a proper list")
	}
	var b []byte
	for _, v := range items {
		if !v.IsString() {
			return nil, RuntimeError("string-append: all arguments must be strings")
		}
		b = append(b, v.Text()...)
	}
	s, err := ar.NewString(string(b))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func primStringToSymbol(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("string->symbol", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsString() {
		return nil, RuntimeError("string->symbol: argument must be a string")
	}
	return ar.NewSymbol(v.Text())
}

func primSymbolToString(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("symbol->string", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsSymbol() {
		return nil, RuntimeError("symbol->string: argument must be a symbol")
	}
	return ar.NewString(v.Text())
}

func primStringLength(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("string-length", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsString() {
		return nil, RuntimeError("string-length: argument must be a string")
	}
	return ar.NewInteger(int64(len(v.Text()))), nil
}

func primStringRef(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, err := exactArgs("string-ref", args, 2)
	if err != nil {
		return nil, err
	}
	s, idx := items[0], items[1]
	if !s.IsString() || !idx.IsInteger() {
		return nil, RuntimeError("string-ref: expected (string-ref string integer)")
	}
	i := idx.Int()
	if i < 0 || i >= int64(len(s.Text())) {
		return nil, RuntimeError("string-ref: index %d out of range", i)
	}
	return ar.NewString(string(s.Text()[i]))
}

func primSubstring(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, err := exactArgs("substring", args, 3)
	if err != nil {
		return nil, err
	}
	s, startV, endV := items[0], items[1], items[2]
	if !s.IsString() || !startV.IsInteger() || !endV.IsInteger() {
		return nil, RuntimeError("substring: expected (substring string start end)")
	}
	text := s.Text()
	start, end := startV.Int(), endV.Int()
	if start < 0 || end > int64(len(text)) || start > end {
		return nil, RuntimeError("substring: range [%d,%d) out of bounds for length %d", start, end, len(text))
	}
	return ar.NewString(text[start:end])
}

func primNumberToString(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("number->string", args, 0)
	if err != nil {
		return nil, err
	}
	switch {
	case v.IsInteger():
		return ar.NewString(strconv.FormatInt(v.Int(), 10))
	case v.IsFloat():
		return ar.NewString(v.String())
	default:
		return nil, RuntimeError("number->string: argument must be a number")
	}
}

// --- I/O ---

// primPrint writes every argument's print-form to stdout, space-separated
// and newline-terminated, matching prim_print; it returns #t.
func primPrint(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, ok := ListToSlice(args)
	if !ok {
		return nil, RuntimeError("print: argument list is not a proper list")
	}
	for i, v := range items {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(v.String())
	}
	fmt.Println()
	return ar.NewBoolean(true), nil
}

// primReadFile returns the file's contents as a string, or #f if it cannot
// be read, matching prim_read_file's "string or #f on error" contract.
func primReadFile(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("read-file", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsString() {
		return nil, RuntimeError("read-file: argument must be a string path")
	}
	content, readErr := os.ReadFile(v.Text())
	if readErr != nil {
		return ar.NewBoolean(false), nil
	}
	return ar.NewString(string(content))
}

// primWriteFile writes content to path, returning #t on success or #f on
// failure, matching prim_write_file.
func primWriteFile(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, err := exactArgs("write-file", args, 2)
	if err != nil {
		return nil, err
	}
	path, content := items[0], items[1]
	if !path.IsString() || !content.IsString() {
		return nil, RuntimeError("write-file: expected (write-file path-string content-string)")
	}
	if werr := os.WriteFile(path.Text(), []byte(content.Text()), 0o644); werr != nil {
		return ar.NewBoolean(false), nil
	}
	return ar.NewBoolean(true), nil
}

// primCommandLineArgs returns the list of strings set via
// Evaluator.SetCommandLineArgs, matching prim_command_line_args' exposure of
// the process argv captured by main at startup.
func (ev *Evaluator) primCommandLineArgs(args *Value, env *Env, ar *Arena) (*Value, error) {
	vals := make([]*Value, len(ev.cliArgs))
	for i, a := range ev.cliArgs {
		s, err := ar.NewString(a)
		if err != nil {
			return nil, err
		}
		vals[i] = s
	}
	return ar.List(vals...), nil
}

// SetCommandLineArgs makes args visible to L0 programs via
// (command-line-args).
func (ev *Evaluator) SetCommandLineArgs(args []string) { ev.cliArgs = args }

// primParseString exposes the reader to L0 programs: (parse-string src)
// returns the proper list of top-level forms, or #f if parsing fails —
// matching prim_parse_string's boolean-sentinel error convention (the
// detailed diagnostic is retrievable via get-last-error-*).
func (ev *Evaluator) primParseString(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("parse-string", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsString() {
		return nil, RuntimeError("parse-string: argument must be a string")
	}
	result, perr := Parse(ar, v.Text())
	if perr != nil {
		ev.recordError(perr)
		return ar.NewBoolean(false), nil
	}
	return result, nil
}

// primCodegenProgram exposes the emitter: (codegen-program forms) returns
// the generated C source as a string, or #f on failure, matching
// prim_codegen_program.
func (ev *Evaluator) primCodegenProgram(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("codegen-program", args, 0)
	if err != nil {
		return nil, err
	}
	src, cerr := EmitC(ar, v)
	if cerr != nil {
		ev.recordError(cerr)
		return ar.NewBoolean(false), nil
	}
	return ar.NewString(src)
}

// --- error reporting ---

// recordError remembers err as the evaluator's "last error", served by the
// get-last-error-* primitives — a per-Evaluator field rather than the
// reference's process-global slot.
func (ev *Evaluator) recordError(err error) {
	if d, ok := AsDiagnostic(err); ok {
		ev.lastErr = d
	} else {
		ev.lastErr = &Diagnostic{Phase: PhaseEval, Kind: KindRuntime, Message: err.Error()}
	}
}

func (ev *Evaluator) primGetLastErrorMessage(args *Value, env *Env, ar *Arena) (*Value, error) {
	if ev.lastErr == nil {
		return ar.NewBoolean(false), nil
	}
	return ar.NewString(ev.lastErr.Message)
}

func (ev *Evaluator) primGetLastErrorLine(args *Value, env *Env, ar *Arena) (*Value, error) {
	if ev.lastErr == nil {
		return ar.NewInteger(0), nil
	}
	return ar.NewInteger(int64(ev.lastErr.Line)), nil
}

func (ev *Evaluator) primGetLastErrorCol(args *Value, env *Env, ar *Arena) (*Value, error) {
	if ev.lastErr == nil {
		return ar.NewInteger(0), nil
	}
	return ar.NewInteger(int64(ev.lastErr.Column)), nil
}

// --- evaluation primitives ---

func (ev *Evaluator) primEval(args *Value, env *Env, ar *Arena) (*Value, error) {
	expr, err := argN("eval", args, 0)
	if err != nil {
		return nil, err
	}
	result, eerr := ev.Eval(expr, env)
	if eerr != nil {
		ev.recordError(eerr)
		return nil, eerr
	}
	return result, nil
}

func (ev *Evaluator) primApply(args *Value, env *Env, ar *Arena) (*Value, error) {
	items, err := exactArgs("apply", args, 2)
	if err != nil {
		return nil, err
	}
	fn, argList := items[0], items[1]
	if !fn.IsClosure() && !fn.IsPrimitive() {
		return nil, RuntimeError("apply: first argument must be a function (closure or primitive)")
	}
	if !argList.IsList() {
		return nil, RuntimeError("apply: second argument must be a list")
	}
	result, aerr := ev.Apply(fn, argList, env)
	if aerr != nil {
		ev.recordError(aerr)
		return nil, aerr
	}
	return result, nil
}

// --- macro introspection ---

func (ev *Evaluator) primIsMacroQ(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("is-macro?", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsSymbol() {
		return ar.NewBoolean(false), nil
	}
	_, ok, lerr := lookupMacro(env, ar, v.Text())
	if lerr != nil {
		return nil, lerr
	}
	return ar.NewBoolean(ok), nil
}

func (ev *Evaluator) primGetMacroTransformer(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("get-macro-transformer", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsSymbol() {
		return ar.NewBoolean(false), nil
	}
	transformer, ok, lerr := lookupMacro(env, ar, v.Text())
	if lerr != nil {
		return nil, lerr
	}
	if !ok {
		return ar.NewBoolean(false), nil
	}
	return transformer, nil
}

// --- reference cells ---

// primRef allocates a new first-class reference to its (already-evaluated)
// argument. original_source declares L0_TYPE_REF/l0_make_ref/l0_is_ref in
// l0_types.h but never registers a `ref` primitive in l0_primitives.c —
// only `deref` reads a reference back out. This completes the pairing the
// original left half-done.
func primRef(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("ref", args, 0)
	if err != nil {
		return nil, err
	}
	return ar.NewReference(v), nil
}

func primDeref(args *Value, env *Env, ar *Arena) (*Value, error) {
	v, err := argN("deref", args, 0)
	if err != nil {
		return nil, err
	}
	if !v.IsReference() {
		return nil, RuntimeError("deref: argument must be a reference")
	}
	return v.Referred(), nil
}
