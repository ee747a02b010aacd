package l0

// Env is a lexically-scoped frame chain, modeled on
// original_source/cheng_c/src/l0_env.c: a frame (an association list of
// (Symbol . Value) Pairs) plus an outer pointer, terminating at a root frame
// whose outer is nil.
type Env struct {
	frame *Value // association list, proper list of (Symbol . Value) pairs
	outer *Env
	arena *Arena
}

// NewRootEnv creates the outermost environment for arena, with an empty
// frame and no outer.
func NewRootEnv(arena *Arena) *Env {
	return &Env{frame: Nil, arena: arena}
}

// Extend creates a fresh inner frame chained to e, for a closure call or a
// `let` body.
func (e *Env) Extend() *Env {
	return &Env{frame: Nil, outer: e, arena: e.arena}
}

// Arena returns the arena this environment (and its frame Pairs) allocate
// into.
func (e *Env) Arena() *Arena { return e.arena }

// Lookup walks the frame chain, current frame first, returning the bound
// value. ok is false if sym is unbound anywhere in the chain; err is set
// only if a frame's association list is found to be cyclic.
func (e *Env) Lookup(sym *Value) (value *Value, ok bool, err error) {
	for env := e; env != nil; env = env.outer {
		binding, found, cerr := env.findInFrame(sym)
		if cerr != nil {
			return nil, false, cerr
		}
		if found {
			return binding.cdr, true, nil
		}
	}
	return nil, false, nil
}

// findInFrame scans only this frame's association list (not outer frames),
// defending against a cyclic list with a tortoise/hare walk, returning the
// (Symbol . Value) Pair itself so callers can mutate its cdr in place.
func (e *Env) findInFrame(sym *Value) (binding *Value, found bool, err error) {
	slow, fast := e.frame, e.frame
	steps := 0
	for !fast.IsNil() {
		if !fast.IsPair() {
			return nil, false, nil
		}
		pair := fast.car
		if pair.car.text == sym.text {
			return pair, true, nil
		}
		fast = fast.cdr
		steps++
		if steps%2 == 0 {
			slow = slow.cdr
			if fast == slow {
				// Cyclic association list: report a runtime error rather
				// than looping forever.
				return nil, false, RuntimeError("environment frame is cyclic")
			}
		}
	}
	return nil, false, nil
}

// Define binds sym to value in the current frame only. If sym is already
// bound in this frame, its existing Pair's cdr is mutated in place — so a
// closure that captured this frame's environment by reference observes the
// new value on its next lookup. Otherwise a new (sym . value) Pair is
// prepended.
func (e *Env) Define(sym, value *Value) error {
	binding, found, err := e.findInFrame(sym)
	if err != nil {
		return err
	}
	if found {
		binding.cdr = value
		return nil
	}
	pair := e.arena.Cons(sym, value)
	e.frame = e.arena.Cons(pair, e.frame)
	return nil
}

// Set walks the chain outward from e, updating the nearest binding of sym.
// It reports an error if sym is unbound anywhere in the chain.
func (e *Env) Set(sym, value *Value) error {
	for env := e; env != nil; env = env.outer {
		binding, found, err := env.findInFrame(sym)
		if err != nil {
			return err
		}
		if found {
			binding.cdr = value
			return nil
		}
	}
	return RuntimeError("unbound variable: %s", sym.text)
}
