package l0

// maxEvalDepth is NewEvaluator's default bound on ordinary (non-tail)
// recursion through eval/apply, standing in for the reference interpreter's
// unchecked C call stack: a depth limit rather than risking unbounded host
// stack growth. NewEvaluatorFromConfig overrides it per Evaluator via
// "eval.max_depth".
const maxEvalDepth = 1000

// Evaluator holds the arena every special form and primitive allocates
// results from. Besides its depth caps it carries only the last recorded
// error (for get-last-error-*) and the command-line arguments (for
// command-line-args) — *macro-table* and every variable binding live in the
// Env chain, not here.
type Evaluator struct {
	arena         *Arena
	lastErr       *Diagnostic
	cliArgs       []string
	maxDepth      int // eval/apply recursion cap, see maxEvalDepth
	maxMacroDepth int // Macroexpand recursion cap, see maxMacroExpandDepth
}

// NewEvaluator creates an Evaluator allocating into arena, with the default
// recursion caps.
func NewEvaluator(arena *Arena) *Evaluator {
	return &Evaluator{arena: arena, maxDepth: maxEvalDepth, maxMacroDepth: maxMacroExpandDepth}
}

// NewEvaluatorFromConfig creates an Evaluator whose eval/apply and
// Macroexpand recursion caps come from cfg's "eval.max_depth" and
// "macro.max_expand_depth" settings, rather than this module's defaults —
// the hook test harnesses use to assert depth-exceeded behavior cheaply.
func NewEvaluatorFromConfig(arena *Arena, cfg *Config) *Evaluator {
	return &Evaluator{
		arena:         arena,
		maxDepth:      cfg.GetInt("eval.max_depth"),
		maxMacroDepth: cfg.GetInt("macro.max_expand_depth"),
	}
}

// Arena returns the evaluator's backing arena.
func (ev *Evaluator) Arena() *Arena { return ev.arena }

// Eval evaluates expr in env.
func (ev *Evaluator) Eval(expr *Value, env *Env) (*Value, error) {
	return ev.eval(expr, env, 0)
}

// eval is the trampolined core: special forms in tail position (the body of
// if/cond/and/or/begin/let, and a closure's last body expression when the
// closure is called from eval's own combination path) mutate expr/env and
// `continue` rather than recursing, so a long chain of tail positions —
// including self-calls of a closure in tail position — costs one Go stack
// frame total and does not count against maxDepth; an endless chain of
// such tail calls therefore runs without reaching the cap. Subexpressions
// in non-tail position (operator, arguments, an if test, earlier begin
// forms) recurse with depth+1, and closures invoked through Apply (the
// apply primitive, macro transformers) recurse through apply, both bounded
// by depth/maxDepth.
func (ev *Evaluator) eval(expr *Value, env *Env, depth int) (*Value, error) {
	if depth > ev.maxDepth {
		return nil, RuntimeError("evaluation depth exceeded (%d)", ev.maxDepth)
	}
	for {
		switch {
		case expr.IsNil(), expr.IsBoolean(), expr.IsInteger(), expr.IsFloat(), expr.IsString():
			return expr, nil

		case expr.IsSymbol():
			val, ok, err := env.Lookup(expr)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, RuntimeError("unbound variable: %s", expr.Text())
			}
			return val, nil

		case expr.IsPair():
			op := expr.Car()
			args := expr.Cdr()

			if op.IsSymbol() {
				switch op.Text() {
				case "quote":
					return requireUnary(args, "quote")

				case "quasiquote":
					form, err := requireUnary(args, "quasiquote")
					if err != nil {
						return nil, err
					}
					return ExpandQuasiquote(ev, form, env, 1)

				case "unquote", "unquote-splicing":
					return nil, RuntimeError("%s is not valid outside quasiquote", op.Text())

				case "if":
					items, ok := ListToSlice(args)
					if !ok || len(items) < 2 || len(items) > 3 {
						return nil, RuntimeError("if requires (if test then [else])")
					}
					test, err := ev.eval(items[0], env, depth+1)
					if err != nil {
						return nil, err
					}
					if IsTruthy(test) {
						expr = items[1]
						continue
					}
					if len(items) == 3 {
						expr = items[2]
						continue
					}
					return Nil, nil

				case "cond":
					clauses, ok := ListToSlice(args)
					if !ok {
						return nil, RuntimeError("cond requires a proper list of clauses")
					}
					next, done, result, err := ev.evalCondClauses(clauses, env, depth)
					if err != nil {
						return nil, err
					}
					if done {
						return result, nil
					}
					expr = next
					continue

				case "and":
					items, ok := ListToSlice(args)
					if !ok {
						return nil, RuntimeError("and requires a proper list")
					}
					if len(items) == 0 {
						return ev.arena.NewBoolean(true), nil
					}
					for _, sub := range items[:len(items)-1] {
						v, err := ev.eval(sub, env, depth+1)
						if err != nil {
							return nil, err
						}
						if !IsTruthy(v) {
							return v, nil
						}
					}
					expr = items[len(items)-1]
					continue

				case "or":
					items, ok := ListToSlice(args)
					if !ok {
						return nil, RuntimeError("or requires a proper list")
					}
					if len(items) == 0 {
						return ev.arena.NewBoolean(false), nil
					}
					for _, sub := range items[:len(items)-1] {
						v, err := ev.eval(sub, env, depth+1)
						if err != nil {
							return nil, err
						}
						if IsTruthy(v) {
							return v, nil
						}
					}
					expr = items[len(items)-1]
					continue

				case "begin":
					items, ok := ListToSlice(args)
					if !ok {
						return nil, RuntimeError("begin requires a proper list")
					}
					if len(items) == 0 {
						return Nil, nil
					}
					for _, sub := range items[:len(items)-1] {
						if _, err := ev.eval(sub, env, depth+1); err != nil {
							return nil, err
						}
					}
					expr = items[len(items)-1]
					continue

				case "let":
					nextExpr, nextEnv, err := ev.prepareLet(args, env, depth)
					if err != nil {
						return nil, err
					}
					expr, env = nextExpr, nextEnv
					continue

				case "lambda":
					return ev.evalLambda(args, env)

				case "define":
					return ev.evalDefine(args, env, depth)

				case "set!":
					return ev.evalSet(args, env, depth)

				case "defmacro":
					return ev.evalDefmacro(args, env, depth)
				}

				if transformer, ok, err := lookupMacro(env, ev.arena, op.Text()); err != nil {
					return nil, err
				} else if ok {
					expanded, err := ev.Apply(transformer, args, env)
					if err != nil {
						return nil, err
					}
					expr = expanded
					continue
				}
			}

			fn, err := ev.eval(op, env, depth+1)
			if err != nil {
				return nil, err
			}
			argItems, ok := ListToSlice(args)
			if !ok {
				return nil, RuntimeError("combination arguments must be a proper list")
			}
			evaluated := make([]*Value, len(argItems))
			for i, a := range argItems {
				v, err := ev.eval(a, env, depth+1)
				if err != nil {
					return nil, err
				}
				evaluated[i] = v
			}
			evaluatedList := ev.arena.List(evaluated...)

			if fn.IsClosure() {
				nextExpr, nextEnv, err := ev.prepareApply(fn, evaluatedList)
				if err != nil {
					return nil, err
				}
				expr, env = nextExpr, nextEnv
				continue
			}
			return ev.Apply(fn, evaluatedList, env)

		default:
			return nil, RuntimeError("cannot evaluate value of kind %s", expr.Kind())
		}
	}
}

// requireUnary validates args is (x) and returns x, for quote/quasiquote.
func requireUnary(args *Value, form string) (*Value, error) {
	if !args.IsPair() || !args.Cdr().IsNil() {
		return nil, RuntimeError("%s requires exactly one argument", form)
	}
	return args.Car(), nil
}

// evalCondClauses evaluates cond clauses until one's test is truthy: an
// `else` clause (the symbol else as the test) always matches; a clause
// with no body returns its test value; otherwise the last body expression
// is handed back as the next tail position.
func (ev *Evaluator) evalCondClauses(clauses []*Value, env *Env, depth int) (next *Value, done bool, result *Value, err error) {
	for _, clause := range clauses {
		parts, ok := ListToSlice(clause)
		if !ok || len(parts) == 0 {
			return nil, true, nil, RuntimeError("cond clause must be a non-empty list")
		}
		test := parts[0]
		isElse := test.IsSymbol() && test.Text() == "else"

		var testVal *Value
		if isElse {
			testVal = ev.arena.NewBoolean(true)
		} else {
			testVal, err = ev.eval(test, env, depth+1)
			if err != nil {
				return nil, true, nil, err
			}
		}
		if !IsTruthy(testVal) {
			continue
		}
		body := parts[1:]
		if len(body) == 0 {
			return nil, true, testVal, nil
		}
		for _, sub := range body[:len(body)-1] {
			if _, err := ev.eval(sub, env, depth+1); err != nil {
				return nil, true, nil, err
			}
		}
		return body[len(body)-1], false, nil, nil
	}
	return nil, true, Nil, nil
}

// prepareLet desugars (let ((name expr) ...) body...) into the tail
// position (body-as-begin, extended-env): simultaneous binding into one
// fresh frame (not let*'s incremental-frame semantics, and not letrec's
// forward visibility).
func (ev *Evaluator) prepareLet(args *Value, env *Env, depth int) (*Value, *Env, error) {
	parts, ok := ListToSlice(args)
	if !ok || len(parts) < 1 {
		return nil, nil, RuntimeError("let requires (let (bindings...) body...)")
	}
	bindings, ok := ListToSlice(parts[0])
	if !ok {
		return nil, nil, RuntimeError("let bindings must be a proper list")
	}
	body := parts[1:]
	if len(body) == 0 {
		return nil, nil, RuntimeError("let requires at least one body expression")
	}

	inner := env.Extend()
	for _, b := range bindings {
		bp, ok := ListToSlice(b)
		if !ok || len(bp) != 2 || !bp[0].IsSymbol() {
			return nil, nil, RuntimeError("let binding must be (symbol expr)")
		}
		val, err := ev.eval(bp[1], env, depth+1)
		if err != nil {
			return nil, nil, err
		}
		if err := inner.Define(bp[0], val); err != nil {
			return nil, nil, err
		}
	}

	for _, sub := range body[:len(body)-1] {
		if _, err := ev.eval(sub, inner, depth+1); err != nil {
			return nil, nil, err
		}
	}
	return body[len(body)-1], inner, nil
}

// evalLambda builds a closure over env; params must be a proper list of
// symbols.
func (ev *Evaluator) evalLambda(args *Value, env *Env) (*Value, error) {
	parts, ok := ListToSlice(args)
	if !ok || len(parts) < 2 {
		return nil, RuntimeError("lambda requires (lambda (params...) body...)")
	}
	params := parts[0]
	if err := requireSymbolList(params); err != nil {
		return nil, err
	}
	body := ev.arena.List(parts[1:]...)
	return ev.arena.NewClosure(params, body, env), nil
}

func requireSymbolList(params *Value) error {
	items, ok := ListToSlice(params)
	if !ok {
		return RuntimeError("parameter list must be a proper list")
	}
	for _, p := range items {
		if !p.IsSymbol() {
			return RuntimeError("parameter must be a symbol")
		}
	}
	return nil
}

// evalDefine implements both (define symbol value-expr) and the function
// shorthand (define (name params...) body...), desugaring the latter into a
// lambda bound to name, per original_source/cheng_c/src/l0_eval.c's
// SF_DEFINE. define always returns an unspecified value, rendered as Nil.
func (ev *Evaluator) evalDefine(args *Value, env *Env, depth int) (*Value, error) {
	parts, ok := ListToSlice(args)
	if !ok || len(parts) < 2 {
		return nil, RuntimeError("define requires at least (define target value-or-body...)")
	}
	target := parts[0]

	if target.IsSymbol() {
		if len(parts) != 2 {
			return nil, RuntimeError("basic define requires exactly two arguments: (define symbol value-expr)")
		}
		val, err := ev.eval(parts[1], env, depth+1)
		if err != nil {
			return nil, err
		}
		if err := env.Define(target, val); err != nil {
			return nil, err
		}
		return Nil, nil
	}

	if target.IsPair() {
		nameSym := target.Car()
		if !nameSym.IsSymbol() {
			return nil, RuntimeError("function name in definition shorthand must be a symbol")
		}
		params := target.Cdr()
		if err := requireSymbolList(params); err != nil {
			return nil, err
		}
		body := ev.arena.List(parts[1:]...)
		closure := ev.arena.NewClosure(params, body, env)
		if err := env.Define(nameSym, closure); err != nil {
			return nil, err
		}
		return Nil, nil
	}

	return nil, RuntimeError("first argument to define must be a symbol or a list for function definition")
}

// evalSet implements (set! symbol value-expr): rebind an existing binding,
// erroring if symbol is unbound anywhere in the chain.
func (ev *Evaluator) evalSet(args *Value, env *Env, depth int) (*Value, error) {
	parts, ok := ListToSlice(args)
	if !ok || len(parts) != 2 {
		return nil, RuntimeError("set! requires exactly two arguments: (set! symbol value-expr)")
	}
	if !parts[0].IsSymbol() {
		return nil, RuntimeError("set! target must be a symbol")
	}
	val, err := ev.eval(parts[1], env, depth+1)
	if err != nil {
		return nil, err
	}
	if err := env.Set(parts[0], val); err != nil {
		return nil, err
	}
	return Nil, nil
}

// evalDefmacro implements (defmacro name (params...) body...), building a
// transformer closure and prepending it to *macro-table*.
func (ev *Evaluator) evalDefmacro(args *Value, env *Env, depth int) (*Value, error) {
	parts, ok := ListToSlice(args)
	if !ok || len(parts) < 2 {
		return nil, RuntimeError("defmacro requires (defmacro name (params...) body...)")
	}
	name := parts[0]
	if !name.IsSymbol() {
		return nil, RuntimeError("defmacro name must be a symbol")
	}
	params := parts[1]
	if err := requireSymbolList(params); err != nil {
		return nil, err
	}
	body := ev.arena.List(parts[2:]...)
	transformer := ev.arena.NewClosure(params, body, env)
	if err := defineMacro(env, ev.arena, name.Text(), transformer); err != nil {
		return nil, err
	}
	return Nil, nil
}

// Apply invokes fn with already-evaluated args (a proper list), per
// original_source/cheng_c/src/l0_eval.c's apply: a Primitive is called
// directly; a Closure extends its captured environment, binds params 1:1 to
// args (arity-checked), and evaluates its body as an implicit begin; any
// other kind is a runtime error ("attempted to apply non-function value").
// Macro transformers are also Closures and go through here (called on
// unevaluated argument forms by the macro-expansion call sites instead of
// eval's combination path).
func (ev *Evaluator) Apply(fn, args *Value, env *Env) (*Value, error) {
	return ev.apply(fn, args, env, 0)
}

func (ev *Evaluator) apply(fn, args *Value, env *Env, depth int) (*Value, error) {
	if depth > ev.maxDepth {
		return nil, RuntimeError("evaluation depth exceeded (%d)", ev.maxDepth)
	}
	switch {
	case fn.IsPrimitive():
		return fn.Call(args, env, ev.arena)
	case fn.IsClosure():
		bodyExpr, callEnv, err := ev.prepareApply(fn, args)
		if err != nil {
			return nil, err
		}
		return ev.eval(bodyExpr, callEnv, depth+1)
	default:
		return nil, RuntimeError("attempted to apply non-function value (kind %s)", fn.Kind())
	}
}

// prepareApply extends fn's captured environment with args bound to fn's
// params, and returns the closure body's final expression as a tail
// position, having already evaluated every earlier body expression — shared
// by eval's direct-combination fast path and apply's general path so a
// closure call made from a tail position costs no extra Go stack frame.
func (ev *Evaluator) prepareApply(fn, args *Value) (*Value, *Env, error) {
	callEnv := fn.ClosureEnv().Extend()
	p, a := fn.Params(), args
	for !p.IsNil() {
		if a.IsNil() {
			return nil, nil, RuntimeError("too few arguments applying closure")
		}
		if !p.IsPair() || !a.IsPair() {
			return nil, nil, RuntimeError("malformed argument binding")
		}
		if err := callEnv.Define(p.Car(), a.Car()); err != nil {
			return nil, nil, err
		}
		p, a = p.Cdr(), a.Cdr()
	}
	if !a.IsNil() {
		return nil, nil, RuntimeError("too many arguments applying closure")
	}

	body, ok := ListToSlice(fn.Body())
	if !ok || len(body) == 0 {
		return nil, nil, RuntimeError("closure body is empty")
	}
	for _, sub := range body[:len(body)-1] {
		if _, err := ev.eval(sub, callEnv, 0); err != nil {
			return nil, nil, err
		}
	}
	return body[len(body)-1], callEnv, nil
}
