package l0

// ExpandQuasiquote implements recursive, depth-tracked quasiquote
// expansion, starting at depth 1. Unlike
// original_source/cheng_c/src/l0_eval.c, which raises a runtime error for
// unquote-splicing rather than implementing it, this expands splices in
// full.
func ExpandQuasiquote(ev *Evaluator, template *Value, env *Env, depth int) (*Value, error) {
	if !template.IsPair() {
		return template, nil
	}

	if form, ok := matchUnary(template, "unquote"); ok {
		if depth == 1 {
			return ev.Eval(form, env)
		}
		expanded, err := ExpandQuasiquote(ev, form, env, depth-1)
		if err != nil {
			return nil, err
		}
		return wrapUnary(ev.arena, "unquote", expanded)
	}

	if form, ok := matchUnary(template, "quasiquote"); ok {
		expanded, err := ExpandQuasiquote(ev, form, env, depth+1)
		if err != nil {
			return nil, err
		}
		return wrapUnary(ev.arena, "quasiquote", expanded)
	}

	// unquote-splicing is only meaningful as the head of a list cell: it
	// splices its evaluated elements into the surrounding list, prepending
	// them to the cdr's expansion.
	if spliceArg, ok := matchUnary(template.Car(), "unquote-splicing"); ok {
		restExpanded, err := ExpandQuasiquote(ev, template.Cdr(), env, depth)
		if err != nil {
			return nil, err
		}
		if depth == 1 {
			spliced, err := ev.Eval(spliceArg, env)
			if err != nil {
				return nil, err
			}
			items, ok := ListToSlice(spliced)
			if !ok {
				return nil, RuntimeError("unquote-splicing requires a proper list, got %s", spliced.String())
			}
			result := restExpanded
			for i := len(items) - 1; i >= 0; i-- {
				result = ev.arena.Cons(items[i], result)
			}
			return result, nil
		}
		argExpanded, err := ExpandQuasiquote(ev, spliceArg, env, depth-1)
		if err != nil {
			return nil, err
		}
		splicedForm, err := wrapUnary(ev.arena, "unquote-splicing", argExpanded)
		if err != nil {
			return nil, err
		}
		return ev.arena.Cons(splicedForm, restExpanded), nil
	}

	car, err := ExpandQuasiquote(ev, template.Car(), env, depth)
	if err != nil {
		return nil, err
	}
	cdr, err := ExpandQuasiquote(ev, template.Cdr(), env, depth)
	if err != nil {
		return nil, err
	}
	return ev.arena.Cons(car, cdr), nil
}

// matchUnary reports whether v is a proper two-element list (name x),
// returning x.
func matchUnary(v *Value, name string) (*Value, bool) {
	if !v.IsPair() || !v.Car().IsSymbol() || v.Car().Text() != name {
		return nil, false
	}
	rest := v.Cdr()
	if !rest.IsPair() || !rest.Cdr().IsNil() {
		return nil, false
	}
	return rest.Car(), true
}

func wrapUnary(arena *Arena, name string, x *Value) (*Value, error) {
	sym, err := arena.NewSymbol(name)
	if err != nil {
		return nil, err
	}
	return arena.List(sym, x), nil
}
