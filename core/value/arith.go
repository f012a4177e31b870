package value

// family describes the width/signedness of an integer Kind. U32/V32 and
// U64/V64 differ only in their preferred wire encoding (fixed vs varint);
// I32/Z32 and I64/Z64 likewise — at the Value level they arithmetic
// identically within a family.
type family struct {
	bits   int
	signed bool
}

func familyOf(k Kind) (family, bool) {
	switch k {
	case KindU32, KindV32:
		return family{32, false}, true
	case KindI32, KindZ32:
		return family{32, true}, true
	case KindU64, KindV64:
		return family{64, false}, true
	case KindI64, KindZ64:
		return family{64, true}, true
	default:
		return family{}, false
	}
}

// canonicalKind returns the arithmetic result tag for a family: U32/I32/U64/I64,
// dropping the V/Z wire-encoding distinction since an arithmetic result has
// no wire-encoding preference of its own.
func canonicalKind(f family) Kind {
	switch {
	case f.bits == 32 && !f.signed:
		return KindU32
	case f.bits == 32 && f.signed:
		return KindI32
	case f.bits == 64 && !f.signed:
		return KindU64
	default:
		return KindI64
	}
}

// widen returns the result kind of combining a and b: same family keeps
// that family's canonical kind, differing families widen to the wider bit
// width, and differing signedness at equal width promotes to signed.
func widen(a, b Kind) (Kind, bool) {
	fa, ok := familyOf(a)
	if !ok {
		return KindInvalid, false
	}
	fb, ok := familyOf(b)
	if !ok {
		return KindInvalid, false
	}
	bits := fa.bits
	if fb.bits > bits {
		bits = fb.bits
	}
	signed := fa.signed || fb.signed
	return canonicalKind(family{bits, signed}), true
}

func intOf(v Value) (int64, bool) { return v.AsInt() }

// Add implements the `sum` fold for a single pair. Error short-circuits;
// mismatched non-numeric kinds produce an arity/type Error rather than a
// panic.
func Add(a, b Value) Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	if a.kind.isFloat() || b.kind.isFloat() {
		fa, oka := a.AsFloat()
		fb, okb := b.AsFloat()
		if !oka || !okb {
			return Errf("sum: incompatible types %s + %s", a.kind, b.kind)
		}
		return floatResultKind(a.kind, b.kind, fa+fb)
	}
	rk, ok := widen(a.kind, b.kind)
	if !ok {
		return Errf("sum: incompatible types %s + %s", a.kind, b.kind)
	}
	ia, _ := intOf(a)
	ib, _ := intOf(b)
	return wrapInt(rk, ia+ib)
}

// Mul implements the `product` fold for a single pair.
func Mul(a, b Value) Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	if a.kind.isFloat() || b.kind.isFloat() {
		fa, oka := a.AsFloat()
		fb, okb := b.AsFloat()
		if !oka || !okb {
			return Errf("product: incompatible types %s * %s", a.kind, b.kind)
		}
		return floatResultKind(a.kind, b.kind, fa*fb)
	}
	rk, ok := widen(a.kind, b.kind)
	if !ok {
		return Errf("product: incompatible types %s * %s", a.kind, b.kind)
	}
	ia, _ := intOf(a)
	ib, _ := intOf(b)
	return wrapInt(rk, ia*ib)
}

// Div implements `divide`. Division by zero is an Error, not a NaN.
func Div(a, b Value) Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	if a.kind.isFloat() || b.kind.isFloat() {
		fa, oka := a.AsFloat()
		fb, okb := b.AsFloat()
		if !oka || !okb {
			return Errf("divide: incompatible types %s / %s", a.kind, b.kind)
		}
		if fb == 0 {
			return Err("divide by zero")
		}
		return floatResultKind(a.kind, b.kind, fa/fb)
	}
	rk, ok := widen(a.kind, b.kind)
	if !ok {
		return Errf("divide: incompatible types %s / %s", a.kind, b.kind)
	}
	ia, _ := intOf(a)
	ib, _ := intOf(b)
	if ib == 0 {
		return Err("divide by zero")
	}
	return wrapInt(rk, ia/ib)
}

func floatResultKind(a, b Kind, f float64) Value {
	if a == KindF64 || b == KindF64 {
		return F64(f)
	}
	return F32(float32(f))
}

// wrapInt applies same-kind checked wrapping to a widened int64 result.
func wrapInt(k Kind, v int64) Value {
	switch k {
	case KindU32:
		return U32(uint32(v))
	case KindI32:
		return I32(int32(v))
	case KindU64:
		return U64(uint64(v))
	default:
		return I64(v)
	}
}

// numericallyComparable reports whether a and b are a same-family mixed
// integer pair (U32/V32, I32/Z32, U64/V64, I64/Z64 — adjacent wire-encoding
// variants of the same width/signedness) or the same float kind (F32/F32,
// F64/F64). Cross-family integer pairs (U32 vs U64) and any int-vs-float
// pair are not comparable: they compare unequal, matching the original
// comparison table's fallthrough to False for everything it doesn't name.
func numericallyComparable(a, b Kind) bool {
	if fa, ok := familyOf(a); ok {
		fb, ok := familyOf(b)
		return ok && fa == fb
	}
	return a.isFloat() && b.isFloat() && a == b
}

// Equal is a total equality over Values: same category compares by payload
// (after integer/float widening within a same-family/same-kind numeric
// pair); cross-category pairs (e.g. String vs Bool, or cross-family/
// int-vs-float numeric pairs) are unequal, never an error.
func Equal(a, b Value) bool {
	switch {
	case numericallyComparable(a.kind, b.kind) && a.kind.isInt():
		ia, _ := a.AsInt()
		ib, _ := b.AsInt()
		return ia == ib
	case numericallyComparable(a.kind, b.kind) && a.kind.isFloat():
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return fa == fb
	case a.kind == KindBool && b.kind == KindBool:
		return a.bool_ == b.bool_
	case a.kind == KindString && b.kind == KindString:
		return a.str == b.str
	case a.kind == KindBytes && b.kind == KindBytes:
		return string(a.byts) == string(b.byts)
	case a.kind == KindNull && b.kind == KindNull:
		return true
	case a.kind == KindOk && b.kind == KindOk:
		return true
	case a.kind == KindError && b.kind == KindError:
		return a.str == b.str
	default:
		return false
	}
}

// Less is a total order over comparable pairs, used by `min`/`max`. Pairs
// that are not comparable (cross-kind, cross-family integers, int-vs-float,
// neither numeric) report ok=false; callers (min/max folds) skip such
// operands rather than erroring.
func Less(a, b Value) (less bool, ok bool) {
	switch {
	case numericallyComparable(a.kind, b.kind) && (a.kind.isInt() || a.kind.isFloat()):
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return fa < fb, true
	case a.kind == KindString && b.kind == KindString:
		return a.str < b.str, true
	case a.kind == KindBytes && b.kind == KindBytes:
		return string(a.byts) < string(b.byts), true
	case a.kind == KindBool && b.kind == KindBool:
		return !a.bool_ && b.bool_, true
	default:
		return false, false
	}
}

// Cmp implements the `cmp` function's typed comparison table: op selects
// eq/lt/gt/lte/gte. (Null, Null) is True for every op; any other mixed-tag
// pair is False, never Error
func Cmp(op string, a, b Value) Value {
	if a.kind == KindNull && b.kind == KindNull {
		switch op {
		case "eq", "lt", "gt", "lte", "gte":
			return Bool(true)
		default:
			return Errf("cmp: unknown operator %q", op)
		}
	}
	switch op {
	case "eq":
		return Bool(Equal(a, b))
	case "lt":
		lt, ok := Less(a, b)
		return Bool(ok && lt)
	case "gt":
		lt, ok := Less(b, a)
		return Bool(ok && lt)
	case "lte":
		if Equal(a, b) {
			return Bool(true)
		}
		lt, ok := Less(a, b)
		return Bool(ok && lt)
	case "gte":
		if Equal(a, b) {
			return Bool(true)
		}
		lt, ok := Less(b, a)
		return Bool(ok && lt)
	default:
		return Errf("cmp: unknown operator %q", op)
	}
}
