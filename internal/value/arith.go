package value

import "math"

// errored returns the first errored operand, if any; an errored Value
// must flow through arithmetic untouched rather than decaying to its
// zero payload.
func errored(a, b Value) (Value, bool) {
	if a.IsErrored() {
		return a, true
	}
	if b.IsErrored() {
		return b, true
	}
	return Value{}, false
}

// Add implements the `+` math operator across numeric and string Values.
// Integer overflow produces an errored Value rather than wrapping.
func Add(a, b Value) Value {
	a, b = a.Evaluate(), b.Evaluate()
	if e, ok := errored(a, b); ok {
		return e
	}
	if a.kind == KindString || b.kind == KindString {
		as, aok := a.AsString()
		bs, bok := b.AsString()
		if aok && bok {
			return String(as + bs)
		}
	}
	if a.kind == KindInt && b.kind == KindInt {
		sum := a.intVal + b.intVal
		if (sum > a.intVal) != (b.intVal > 0) {
			return errKind(KindInt, "integer overflow in %d + %d", a.intVal, b.intVal)
		}
		return Int(sum)
	}
	ad, aok := a.AsDouble()
	bd, bok := b.AsDouble()
	if aok && bok {
		return Double(ad + bd)
	}
	return errKind(KindDouble, "cannot add %s and %s", a.kind, b.kind)
}

func Sub(a, b Value) Value {
	a, b = a.Evaluate(), b.Evaluate()
	if e, ok := errored(a, b); ok {
		return e
	}
	if a.kind == KindInt && b.kind == KindInt {
		diff := a.intVal - b.intVal
		if (diff < a.intVal) != (b.intVal > 0) {
			return errKind(KindInt, "integer overflow in %d - %d", a.intVal, b.intVal)
		}
		return Int(diff)
	}
	ad, aok := a.AsDouble()
	bd, bok := b.AsDouble()
	if aok && bok {
		return Double(ad - bd)
	}
	return errKind(KindDouble, "cannot subtract %s and %s", a.kind, b.kind)
}

func Mul(a, b Value) Value {
	a, b = a.Evaluate(), b.Evaluate()
	if e, ok := errored(a, b); ok {
		return e
	}
	if a.kind == KindInt && b.kind == KindInt {
		if a.intVal == 0 || b.intVal == 0 {
			return Int(0)
		}
		// MinInt64 * -1 wraps back to MinInt64, so the division check
		// below would pass; reject it explicitly.
		if (a.intVal == math.MinInt64 && b.intVal == -1) || (b.intVal == math.MinInt64 && a.intVal == -1) {
			return errKind(KindInt, "integer overflow in %d * %d", a.intVal, b.intVal)
		}
		prod := a.intVal * b.intVal
		if prod/b.intVal != a.intVal {
			return errKind(KindInt, "integer overflow in %d * %d", a.intVal, b.intVal)
		}
		return Int(prod)
	}
	ad, aok := a.AsDouble()
	bd, bok := b.AsDouble()
	if aok && bok {
		return Double(ad * bd)
	}
	return errKind(KindDouble, "cannot multiply %s and %s", a.kind, b.kind)
}

func Div(a, b Value) Value {
	a, b = a.Evaluate(), b.Evaluate()
	if e, ok := errored(a, b); ok {
		return e
	}
	if a.kind == KindInt && b.kind == KindInt {
		if b.intVal == 0 {
			return errKind(KindInt, "integer division by zero")
		}
		return Int(a.intVal / b.intVal)
	}
	ad, aok := a.AsDouble()
	bd, bok := b.AsDouble()
	if aok && bok {
		if bd == 0 {
			return Double(math.Inf(int(math.Copysign(1, ad))))
		}
		return Double(ad / bd)
	}
	return errKind(KindDouble, "cannot divide %s and %s", a.kind, b.kind)
}

func Mod(a, b Value) Value {
	a, b = a.Evaluate(), b.Evaluate()
	if e, ok := errored(a, b); ok {
		return e
	}
	if a.kind == KindInt && b.kind == KindInt {
		if b.intVal == 0 {
			return errKind(KindInt, "integer modulo by zero")
		}
		return Int(a.intVal % b.intVal)
	}
	ad, aok := a.AsDouble()
	bd, bok := b.AsDouble()
	if aok && bok {
		return Double(math.Mod(ad, bd))
	}
	return errKind(KindDouble, "cannot modulo %s and %s", a.kind, b.kind)
}

// Negate implements unary `-` for int and double Values. Parser-level
// prefix negation does not call it: ast.NegatePrefix rewrites `-x` as
// `x * -1`.
func Negate(a Value) Value {
	a = a.Evaluate()
	switch a.kind {
	case KindInt:
		return Int(-a.intVal)
	case KindDouble:
		return Double(-a.doubleVal)
	default:
		return errKind(KindDouble, "cannot negate %s", a.kind)
	}
}
