package lexer

import (
	"testing"

	"github.com/tauleaf/tau/internal/token"
)

func typesOf(toks []token.Token) []token.Type {
	out := make([]token.Type, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Type)
	}
	return out
}

func TestRawSpan(t *testing.T) {
	toks, err := Tokenize("t", "Todo: done")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Type != token.Raw || toks[0].Lexeme != "Todo: done" {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestAnonymousExpressionTag(t *testing.T) {
	toks, err := Tokenize("t", "Todo: #(todo.title)")
	if err != nil {
		t.Fatal(err)
	}
	var sawAnonTag, sawDot bool
	for i, tok := range toks {
		if tok.Type == token.TagName && tok.Lexeme == "" {
			sawAnonTag = true
		}
		if tok.Type == token.Operator && tok.Lexeme == "." {
			sawDot = true
		}
		_ = i
	}
	if !sawAnonTag || !sawDot {
		t.Fatalf("expected anonymous tag + dot operator, got %+v", toks)
	}
}

func TestEscapedTagDecaysToRaw(t *testing.T) {
	toks, err := Tokenize("t", `price is \#5`)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 || toks[0].Type != token.Raw || toks[0].Lexeme != "price is #5" {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestBlockTagWithParams(t *testing.T) {
	toks, err := Tokenize("t", "#if(a > 1):yes#endif")
	if err != nil {
		t.Fatal(err)
	}
	want := []token.Type{
		token.TagMark, token.TagName, token.ParamsOpen,
		token.VariablePart, token.Operator, token.Int, token.ParamsClose,
		token.BlockMark, token.Raw, token.TagMark, token.TagName, token.EOF,
	}
	got := typesOf(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokenize("t", `#greet("hi)`)
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestDecayingTagMark(t *testing.T) {
	toks, err := Tokenize("t", "cost: #5")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Type != token.Raw || toks[0].Lexeme != "cost: " {
		t.Fatalf("unexpected prefix: %+v", toks[0])
	}
	if toks[1].Type != token.Raw || toks[1].Lexeme != "#" {
		t.Fatalf("expected tag mark to decay into raw, got %+v", toks[1])
	}
}
