package l0

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags an L0 Value's variant, mirroring the L0_ValueType enum in
// original_source/cheng_c/include/l0_types.h.
type Kind int

const (
	KindNil Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindSymbol
	KindString
	KindPair
	KindPrimitive
	KindClosure
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	case KindString:
		return "string"
	case KindPair:
		return "pair"
	case KindPrimitive:
		return "primitive"
	case KindClosure:
		return "closure"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// PrimitiveFunc is the signature every host primitive implements: it
// receives the (already evaluated) argument list as a proper list, the
// calling environment, and the arena to allocate its result from.
type PrimitiveFunc func(args *Value, env *Env, ar *Arena) (*Value, error)

// Value is the tagged sum: exactly one of the fields below is meaningful,
// selected by Kind. Values are immutable after construction except for the
// car/cdr fields of a Pair, mutated in place by Env.Define/Env.Set and for
// Pair cells built directly by cons.
type Value struct {
	kind       Kind
	arena      *Arena
	generation uint64

	boolean bool
	integer int64
	double  float64
	text    string // symbol name or string content

	car, cdr *Value // pair

	primName string
	prim     PrimitiveFunc

	params     *Value // closure parameter list
	body       *Value // closure body, a proper list of expressions
	closureEnv *Env

	ref *Value // reference payload
}

// Nil is the unique, process-wide empty-list singleton, referentially
// unique. It needs no arena allocation.
var Nil = &Value{kind: KindNil}

// Kind reports v's variant.
func (v *Value) Kind() Kind { return v.kind }

func (v *Value) IsNil() bool       { return v == Nil || v.kind == KindNil }
func (v *Value) IsBoolean() bool   { return v.kind == KindBoolean }
func (v *Value) IsInteger() bool   { return v.kind == KindInteger }
func (v *Value) IsFloat() bool     { return v.kind == KindFloat }
func (v *Value) IsSymbol() bool    { return v.kind == KindSymbol }
func (v *Value) IsString() bool    { return v.kind == KindString }
func (v *Value) IsPair() bool      { return v.kind == KindPair }
func (v *Value) IsPrimitive() bool { return v.kind == KindPrimitive }
func (v *Value) IsClosure() bool   { return v.kind == KindClosure }
func (v *Value) IsReference() bool { return v.kind == KindReference }

// IsAtom reports whether v is anything other than a pair or Nil.
func (v *Value) IsAtom() bool { return v.kind != KindPair && !v.IsNil() }

// IsList reports whether v is a proper list: Nil, or a Pair whose cdr is a
// proper list. Cycle-defended the same way Env.Lookup is.
func (v *Value) IsList() bool {
	slow, fast := v, v
	for {
		if fast.IsNil() {
			return true
		}
		if !fast.IsPair() {
			return false
		}
		fast = fast.cdr
		if fast.IsNil() {
			return true
		}
		if !fast.IsPair() {
			return false
		}
		fast = fast.cdr
		slow = slow.cdr
		if fast == slow {
			return false
		}
	}
}

// Bool returns the boolean payload; callers must check IsBoolean first.
func (v *Value) Bool() bool { return v.boolean }

// Int returns the integer payload; callers must check IsInteger first.
func (v *Value) Int() int64 { return v.integer }

// Float returns the float payload; callers must check IsFloat first.
func (v *Value) Float() float64 { return v.double }

// Text returns the symbol name or string content; callers must check
// IsSymbol/IsString first.
func (v *Value) Text() string { return v.text }

// Car returns the pair's first element; callers must check IsPair first.
func (v *Value) Car() *Value { return v.car }

// Cdr returns the pair's rest; callers must check IsPair first.
func (v *Value) Cdr() *Value { return v.cdr }

// SetCar/SetCdr mutate a pair's fields in place — the only mutation the
// value model allows after construction, the same one Env performs (on the
// fields directly) when it rebinds a symbol.
func (v *Value) SetCar(x *Value) { v.car = x }
func (v *Value) SetCdr(x *Value) { v.cdr = x }

// Params, Body, ClosureEnv expose a closure's fields.
func (v *Value) Params() *Value   { return v.params }
func (v *Value) Body() *Value     { return v.body }
func (v *Value) ClosureEnv() *Env { return v.closureEnv }

// PrimitiveName returns a primitive's display name, if any.
func (v *Value) PrimitiveName() string { return v.primName }

// Call invokes a primitive's host function; callers must check IsPrimitive
// first.
func (v *Value) Call(args *Value, env *Env, ar *Arena) (*Value, error) {
	return v.prim(args, env, ar)
}

// Referred returns the value a Reference points to; callers must check
// IsReference first.
func (v *Value) Referred() *Value { return v.ref }

// IsTruthy reports the truthiness of v: everything is truthy except
// Boolean(false). This is the one place in the whole core where the Lisp
// contract diverges most sharply from ordinary Go intuition — 0, "" and Nil
// are all truthy.
func IsTruthy(v *Value) bool {
	return !(v.kind == KindBoolean && !v.boolean)
}

// --- Constructors. Each allocates one value from the given arena. ---

func (a *Arena) NewBoolean(b bool) *Value {
	v := a.newValue(KindBoolean)
	v.boolean = b
	return v
}

func (a *Arena) NewInteger(i int64) *Value {
	v := a.newValue(KindInteger)
	v.integer = i
	return v
}

func (a *Arena) NewFloat(f float64) *Value {
	v := a.newValue(KindFloat)
	v.double = f
	return v
}

func (a *Arena) NewSymbol(name string) (*Value, error) {
	text, err := a.StrDup(name)
	if err != nil {
		return nil, err
	}
	v := a.newValue(KindSymbol)
	v.text = text
	return v, nil
}

func (a *Arena) NewString(content string) (*Value, error) {
	text, err := a.StrDup(content)
	if err != nil {
		return nil, err
	}
	v := a.newValue(KindString)
	v.text = text
	return v, nil
}

// Cons allocates a new pair. It cannot fail and has no error return: pairs
// carry no backing byte storage, so a SetMaxBytes ceiling does not limit
// them.
func (a *Arena) Cons(car, cdr *Value) *Value {
	v := a.newValue(KindPair)
	v.car = car
	v.cdr = cdr
	return v
}

func (a *Arena) NewPrimitive(name string, fn PrimitiveFunc) *Value {
	v := a.newValue(KindPrimitive)
	v.primName = name
	v.prim = fn
	return v
}

func (a *Arena) NewClosure(params, body *Value, env *Env) *Value {
	v := a.newValue(KindClosure)
	v.params = params
	v.body = body
	v.closureEnv = env
	return v
}

func (a *Arena) NewReference(referred *Value) *Value {
	v := a.newValue(KindReference)
	v.ref = referred
	return v
}

// List builds a proper list from items, allocated right-to-left so later
// cons cells don't need to be patched.
func (a *Arena) List(items ...*Value) *Value {
	result := Nil
	for i := len(items) - 1; i >= 0; i-- {
		result = a.Cons(items[i], result)
	}
	return result
}

// ListToSlice flattens a proper list into a slice. ok is false if v is not
// a proper list.
func ListToSlice(v *Value) (items []*Value, ok bool) {
	for {
		if v.IsNil() {
			return items, true
		}
		if !v.IsPair() {
			return items, false
		}
		items = append(items, v.car)
		v = v.cdr
	}
}

// ListLength returns len(items) for a proper list, or -1 if v isn't one.
func ListLength(v *Value) int {
	items, ok := ListToSlice(v)
	if !ok {
		return -1
	}
	return len(items)
}

// String renders v the way the `print` primitive does: strings quoted with
// escapes, atoms in reader syntax, lists parenthesized. This is also the
// print-form a parse/eval round trip is expected to agree on.
func (v *Value) String() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

func (v *Value) writeTo(b *strings.Builder) {
	switch v.kind {
	case KindNil:
		b.WriteString("()")
	case KindBoolean:
		if v.boolean {
			b.WriteString("#t")
		} else {
			b.WriteString("#f")
		}
	case KindInteger:
		b.WriteString(strconv.FormatInt(v.integer, 10))
	case KindFloat:
		b.WriteString(formatFloat(v.double))
	case KindSymbol:
		b.WriteString(v.text)
	case KindString:
		b.WriteString(strconv.Quote(v.text))
	case KindPair:
		b.WriteByte('(')
		cur := v
		first := true
		for {
			if !first {
				b.WriteByte(' ')
			}
			first = false
			cur.car.writeTo(b)
			switch {
			case cur.cdr.IsNil():
				b.WriteByte(')')
				return
			case cur.cdr.IsPair():
				cur = cur.cdr
			default:
				// Not a proper list (reached via direct cons, not the
				// reader — the reader never produces this shape). Render
				// the final cdr as a trailing atom.
				b.WriteString(" . ")
				cur.cdr.writeTo(b)
				b.WriteByte(')')
				return
			}
		}
	case KindPrimitive:
		name := v.primName
		if name == "" {
			name = "anonymous"
		}
		fmt.Fprintf(b, "#<primitive:%s>", name)
	case KindClosure:
		b.WriteString("#<closure>")
	case KindReference:
		b.WriteString("#<ref>")
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
