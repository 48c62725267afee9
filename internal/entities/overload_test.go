package entities

import (
	"testing"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/value"
)

func strLit(s string) ast.Parameter {
	return ast.Parameter{Kind: ast.ParamValue, Value: value.String(s)}
}

func TestConfusableSameShape(t *testing.T) {
	a := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}
	b := CallSignature{Labels: []string{""}, Types: []value.Kind{AnyKind}, HasDefault: []bool{false}}
	if !Confusable(a, b) {
		t.Fatal("expected a concrete type and Any to be confusable")
	}
}

func TestConfusableDistinctTypesNotConfusable(t *testing.T) {
	a := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}
	b := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindInt}, HasDefault: []bool{false}}
	if Confusable(a, b) {
		t.Fatal("distinct concrete types should not be confusable")
	}
}

func TestConfusablePrefixWithDefaults(t *testing.T) {
	a := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}
	b := CallSignature{
		Labels: []string{"", "sep"},
		Types: []value.Kind{value.KindString, value.KindString},
		HasDefault: []bool{false, true},
		Default: []value.Value{{}, value.String("")},
	}
	if !Confusable(a, b) {
		t.Fatal("a one-arg signature should be confusable with a prefix-compatible two-arg signature whose tail defaults")
	}
}

func TestConfusablePrefixWithoutDefaultNotConfusable(t *testing.T) {
	a := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}
	b := CallSignature{
		Labels: []string{"", "sep"},
		Types: []value.Kind{value.KindString, value.KindString},
		HasDefault: []bool{false, false},
	}
	if Confusable(a, b) {
		t.Fatal("a required trailing parameter should make the signatures distinguishable")
	}
}

func TestResolveOverloadSingleMatch(t *testing.T) {
	r := New()
	if err := r.RegisterFunction(fixedArgFn{name: "only", kind: value.KindString}); err != nil {
		t.Fatalf("register: %v", err)
	}
	tup := ast.NewTuple()
	tup.Append(strLit("hi"))
	fn, res, err := r.ValidateFunction("only", tup)
	if err != nil {
		t.Fatalf("ValidateFunction: %v", err)
	}
	if res.Dynamic || fn == nil {
		t.Fatalf("expected single frozen match, got %+v", res)
	}
}

func TestResolveOverloadAmbiguousStaysDynamic(t *testing.T) {
	r := New()
	if err := r.RegisterFunction(fixedArgFn{name: "dyn", kind: value.KindString}); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := r.RegisterFunction(fixedArgFn{name: "dyn", kind: value.KindInt}); err != nil {
		t.Fatalf("register 2: %v", err)
	}
	// an untypable argument (a bare Parameter with no BaseType) matches
	// both overloads, so resolution must defer rather than pick one.
	tup := ast.NewTuple()
	tup.Append(ast.Parameter{Kind: ast.ParamVariable})
	_, res, err := r.ValidateFunction("dyn", tup)
	if err != nil {
		t.Fatalf("ValidateFunction: %v", err)
	}
	if !res.Dynamic {
		t.Fatal("expected ambiguous overload to be left dynamic")
	}
}

func TestResolveOverloadNoMatchIsError(t *testing.T) {
	r := New()
	if err := r.RegisterFunction(fixedArgFn{name: "strict", kind: value.KindString}); err != nil {
		t.Fatalf("register: %v", err)
	}
	tup := ast.NewTuple()
	tup.Append(ast.Parameter{Kind: ast.ParamValue, Value: value.Int(1)})
	_, _, err := r.ValidateFunction("strict", tup)
	if err == nil {
		t.Fatal("expected zero-match call to be a parse error citing candidates")
	}
}

func TestValidateTupleCallBackfillsDefault(t *testing.T) {
	sig := CallSignature{
		Labels: []string{"", "sep"},
		Types: []value.Kind{value.KindString, value.KindString},
		HasDefault: []bool{false, true},
		Default: []value.Value{{}, value.String(",")},
	}
	tup := ast.NewTuple()
	tup.Append(strLit("x"))
	out, err := ValidateTupleCall(tup, sig)
	if err != nil {
		t.Fatalf("ValidateTupleCall: %v", err)
	}
	if len(out.Elements) != 2 {
		t.Fatalf("expected 2 filled elements, got %d", len(out.Elements))
	}
	sepVal, ok := out.Elements[1].Value.AsString()
	if !ok || sepVal != "," {
		t.Fatalf("expected default-filled separator, got %+v", out.Elements[1])
	}
}

func TestValidateTupleCallMissingRequiredIsError(t *testing.T) {
	sig := CallSignature{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}
	tup := ast.NewTuple()
	if _, err := ValidateTupleCall(tup, sig); err == nil {
		t.Fatal("expected missing required argument to be an error")
	}
}
