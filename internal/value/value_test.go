package value

import "testing"

func TestCastIdentity(t *testing.T) {
	vals := []Value{Bool(true), Int(7), Double(1.5), String("hi")}
	for _, v := range vals {
		out, ok := v.Cast(v.Kind())
		if !ok || !out.Equals(v) {
			t.Fatalf("identity cast failed for %v", v.Kind())
		}
	}
}

func TestNumericStringRoundTrip(t *testing.T) {
	v := Int(42)
	s, ok := v.Coerce(KindString)
	if !ok {
		t.Fatal("expected int->string coercion")
	}
	back, ok := s.Coerce(KindInt)
	if !ok || back.intVal != 42 {
		t.Fatalf("round trip failed: %+v", back)
	}
}

func TestDoubleToIntRounding(t *testing.T) {
	cases := map[float64]int64{2.5: 3, -2.5: -3, 2.4: 2, -2.4: -2}
	for in, want := range cases {
		out, ok := Double(in).Coerce(KindInt)
		if !ok || out.intVal != want {
			t.Fatalf("round(%v) = %v, want %v", in, out.intVal, want)
		}
	}
}

func TestIntOverflow(t *testing.T) {
	huge := Int(1 << 62)
	sum := Add(huge, huge)
	if !sum.IsErrored() {
		t.Fatal("expected overflow to error")
	}
}

func TestDivisionByZero(t *testing.T) {
	out := Div(Int(1), Int(0))
	if !out.IsErrored() {
		t.Fatal("expected division by zero to error")
	}
}

func TestVariantEvaluatedOnce(t *testing.T) {
	calls := 0
	v := Variant(func() Value {
		calls++
		return Int(5)
	})
	v.Evaluate()
	v.Evaluate()
	if calls != 1 {
		t.Fatalf("variant evaluated %d times, want 1", calls)
	}
}

func TestEqualityStringFallback(t *testing.T) {
	a := Variant(func() Value { return Int(3) })
	b := String("3")
	if !a.Equals(b) {
		t.Fatal("expected invariant string fallback equality")
	}
}

func TestCollectionAlwaysTruthy(t *testing.T) {
	arr := Array(nil)
	b, ok := arr.AsBool()
	if !ok || !b {
		t.Fatal("expected present collection to coerce to true")
	}
}
