package variable

import "testing"

func TestParseDottedPath(t *testing.T) {
	v := Parse("a.b.c", 0)
	if got := v.Parts(); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected parts: %v", got)
	}
	if v.Ancestor() != "a" {
		t.Fatalf("Ancestor() = %q, want a", v.Ancestor())
	}
	if v.LastPart() != "c" {
		t.Fatalf("LastPart() = %q, want c", v.LastPart())
	}
	if !v.IsPathed() || v.IsAtomic() {
		t.Fatal("a.b.c should be pathed, not atomic")
	}
}

func TestAtomicVariable(t *testing.T) {
	v := Parse("x", 0)
	if !v.IsAtomic() || v.IsPathed() {
		t.Fatal("single part should be atomic, not pathed")
	}
	if v.Parent().String() != "" {
		t.Fatalf("Parent() of an atomic variable should be empty, got %q", v.Parent().String())
	}
}

func TestParentDropsLastPart(t *testing.T) {
	v := Parse("a.b.c", 0)
	if got := v.Parent().String(); got != "a.b" {
		t.Fatalf("Parent() = %q, want a.b", got)
	}
}

func TestFlags(t *testing.T) {
	v := Parse("a", Coalesced)
	if !v.HasFlag(Coalesced) {
		t.Fatal("expected Coalesced flag set")
	}
	if v.HasFlag(Contextualized) {
		t.Fatal("did not expect Contextualized flag")
	}
	v2 := v.WithFlag(DefineNamespace)
	if !v2.HasFlag(Coalesced) || !v2.HasFlag(DefineNamespace) {
		t.Fatal("WithFlag should be additive, not replace existing flags")
	}
}

func TestValidPart(t *testing.T) {
	cases := map[string]bool{
		"abc": true,
		"_abc": true,
		"a1": true,
		"1a": false,
		"": false,
		"a-b": false,
		"in": false, // reserved keyword
		"var": false,
	}
	for in, want := range cases {
		if got := ValidPart(in); got != want {
			t.Errorf("ValidPart(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsKeyword(t *testing.T) {
	for _, kw := range []string{"in", "true", "false", "self", "nil", "yes", "no", "_", "template", "var", "let"} {
		if !IsKeyword(kw) {
			t.Errorf("expected %q to be a reserved keyword", kw)
		}
	}
	if IsKeyword("notakeyword") {
		t.Fatal("unexpected reserved keyword")
	}
}
