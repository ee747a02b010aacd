package l0

// macroTableName is the well-known global binding "*macro-table*", whose
// value is a proper list of (name . transformer) Pairs. It is kept as a
// regular environment entry — not a separate Go side table — so defmacro's
// set! and the evaluator's own lookups never fork macro state.
const macroTableName = "*macro-table*"

// InitMacroTable defines *macro-table* as the empty list in env's frame.
// Called once, on the root environment, by NewGlobalEnv.
func InitMacroTable(env *Env, arena *Arena) error {
	sym, err := arena.NewSymbol(macroTableName)
	if err != nil {
		return err
	}
	return env.Define(sym, Nil)
}

// lookupMacro reports whether name is bound in *macro-table*, and its
// transformer closure if so.
func lookupMacro(env *Env, arena *Arena, name string) (transformer *Value, ok bool, err error) {
	sym, err := arena.NewSymbol(macroTableName)
	if err != nil {
		return nil, false, err
	}
	table, found, err := env.Lookup(sym)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	for cur := table; cur.IsPair(); cur = cur.cdr {
		entry := cur.car
		if entry.IsPair() && entry.car.IsSymbol() && entry.car.Text() == name {
			return entry.cdr, true, nil
		}
	}
	return nil, false, nil
}

// defineMacro prepends (name . transformer) to *macro-table*'s value and
// writes it back with Set, matching defmacro's semantics: prepend
// (name . closure) to the current value of *macro-table* via set!.
func defineMacro(env *Env, arena *Arena, name string, transformer *Value) error {
	sym, err := arena.NewSymbol(macroTableName)
	if err != nil {
		return err
	}
	table, found, err := env.Lookup(sym)
	if err != nil {
		return err
	}
	if !found {
		table = Nil
	}
	nameSym, err := arena.NewSymbol(name)
	if err != nil {
		return err
	}
	entry := arena.Cons(nameSym, transformer)
	return env.Set(sym, arena.Cons(entry, table))
}

// maxMacroExpandDepth is NewEvaluator's default bound on Macroexpand's
// recursion, catching runaway expansions. NewEvaluatorFromConfig overrides
// it per Evaluator via "macro.max_expand_depth".
const maxMacroExpandDepth = 500

// Macroexpand walks expr, expanding every pair whose car names a bound
// macro, and recursively expanding the transformer's output. It does not
// descend into (quote x); it descends into every other subform, including
// quasiquote templates (whose unquotes are evaluated later, not during
// this pass).
func Macroexpand(ev *Evaluator, expr *Value, env *Env) (*Value, error) {
	return macroexpandDepth(ev, expr, env, 0)
}

func macroexpandDepth(ev *Evaluator, expr *Value, env *Env, depth int) (*Value, error) {
	if depth > ev.maxMacroDepth {
		return nil, RuntimeError("macro expansion depth exceeded (%d)", ev.maxMacroDepth)
	}
	if !expr.IsPair() {
		return expr, nil
	}
	op := expr.Car()
	if op.IsSymbol() && op.Text() == "quote" {
		return expr, nil
	}
	if op.IsSymbol() {
		transformer, ok, err := lookupMacro(env, ev.arena, op.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			expanded, err := ev.Apply(transformer, expr.Cdr(), env)
			if err != nil {
				return nil, err
			}
			return macroexpandDepth(ev, expanded, env, depth+1)
		}
	}
	car, err := macroexpandDepth(ev, expr.Car(), env, depth+1)
	if err != nil {
		return nil, err
	}
	cdr, err := macroexpandSeq(ev, expr.Cdr(), env, depth+1)
	if err != nil {
		return nil, err
	}
	return ev.arena.Cons(car, cdr), nil
}

// macroexpandSeq expands every element of a list tail, preserving structure
// even when the tail is not itself a proper list.
func macroexpandSeq(ev *Evaluator, v *Value, env *Env, depth int) (*Value, error) {
	if !v.IsPair() {
		return v, nil
	}
	car, err := macroexpandDepth(ev, v.Car(), env, depth)
	if err != nil {
		return nil, err
	}
	cdr, err := macroexpandSeq(ev, v.Cdr(), env, depth)
	if err != nil {
		return nil, err
	}
	return ev.arena.Cons(car, cdr), nil
}
