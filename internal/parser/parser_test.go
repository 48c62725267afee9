package parser

import (
	"testing"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/entities"
)

func newReg(t *testing.T) *entities.Registry {
	t.Helper()
	reg := entities.New()
	if err := entities.RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	reg.Start()
	return reg
}

func TestParseAnonymousExpression(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "Todo: #(todo.title)", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %+v", len(root), root)
	}
	if root[0].Kind != ast.SyntaxRaw || string(root[0].RawBytes) != "Todo: " {
		t.Fatalf("unexpected raw node: %+v", root[0])
	}
	if root[1].Kind != ast.SyntaxPassthrough || !root[1].Print {
		t.Fatalf("unexpected passthrough node: %+v", root[1])
	}
}

func TestParseIfElseChain(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#if(a):yes#elseif(b):maybe#else:no#endif", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 3 {
		t.Fatalf("expected 3 chained block nodes, got %d: %+v", len(root), root)
	}
	names := []string{root[0].BlockName, root[1].BlockName, root[2].BlockName}
	want := []string{"if", "elseif", "else"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("chain mismatch: got %v want %v", names, want)
		}
	}
}

func TestParseIfMissingEndIsError(t *testing.T) {
	reg := newReg(t)
	_, err := Parse(reg, "#if(a):yes", "t")
	if err == nil {
		t.Fatal("expected parse error for missing #endif")
	}
}

func TestParseUnknownBlockChainIsError(t *testing.T) {
	reg := newReg(t)
	// #elseif with no preceding #if is a chain without its antecedent.
	_, err := Parse(reg, "#elseif(a):no#endelseif", "t")
	if err == nil {
		t.Fatal("expected error: elseif requires an if antecedent")
	}
}

func TestParseForLoop(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#for(item in items):#(item)#endfor", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 1 || root[0].Kind != ast.SyntaxBlock || root[0].BlockName != "for" {
		t.Fatalf("expected single for block, got %+v", root)
	}
	if !root[0].HasScope() {
		t.Fatal("for block should own a body scope")
	}
}

func TestParseDefineAtomicAndEvaluate(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, `#define(greeting = "hi")#evaluate(greeting)`, "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 2 {
		t.Fatalf("expected define+evaluate nodes, got %+v", root)
	}
	if root[0].Kind != ast.SyntaxMeta || root[0].Meta != ast.MetaDefine || root[0].DefineID != "greeting" {
		t.Fatalf("unexpected define node: %+v", root[0])
	}
	if root[0].DefineExpr == nil {
		t.Fatal("atomic define should carry DefineExpr")
	}
	if root[1].Kind != ast.SyntaxMeta || root[1].Meta != ast.MetaEvaluate || root[1].EvaluateID != "greeting" {
		t.Fatalf("unexpected evaluate node: %+v", root[1])
	}
}

func TestParseDefineScopedBody(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#define(block):hi there#enddefine", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if root[0].DefineExpr != nil {
		t.Fatal("scoped define must not carry DefineExpr")
	}
	if root[0].DefineScope == ast.NoScope {
		t.Fatal("scoped define must record a table index")
	}
}

func TestParseEvaluateWithDefault(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, `#evaluate(missing ?? "fallback")`, "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if root[0].EvaluateDef == nil {
		t.Fatal("expected EvaluateDef to be set from `?? default`")
	}
}

func TestParseInlineTemplateDefault(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, `#inline("partial.tau")`, "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if root[0].Meta != ast.MetaInline || root[0].InlineAs != ast.InlineAsTemplate || root[0].InlineName != "partial.tau" {
		t.Fatalf("unexpected inline node: %+v", root[0])
	}
}

func TestParseInlineAsRaw(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, `#inline("data.txt", as: raw)`, "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if root[0].InlineAs != ast.InlineAsRaw {
		t.Fatalf("expected InlineAsRaw, got %+v", root[0])
	}
}

func TestParseTernary(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#(a ? 1 : 2)", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	expr := root[0].Expr
	if expr.Kind != ast.ParamExpression || expr.Expr.Form != ast.FormTernary {
		t.Fatalf("expected ternary expression, got %+v", expr)
	}
}

func TestParseVarDeclBareForm(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#var x = 1", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 1 {
		t.Fatalf("expected 1 node, got %d: %+v", len(root), root)
	}
	expr := root[0].Expr
	if expr.Kind != ast.ParamExpression || expr.Expr.Form != ast.FormAssignment {
		t.Fatalf("expected assignment expression, got %+v", expr)
	}
	lhs := expr.Expr.Parts[0]
	if lhs.Kind != ast.ParamVariable || lhs.Variable.LastPart() != "x" {
		t.Fatalf("expected lhs variable x, got %+v", lhs)
	}
}

func TestParseLetDeclBareForm(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#let z = 3", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	expr := root[0].Expr
	if expr.Kind != ast.ParamExpression || expr.Expr.Form != ast.FormAssignment {
		t.Fatalf("expected assignment expression, got %+v", expr)
	}
	lhs := expr.Expr.Parts[0]
	if lhs.Kind != ast.ParamVariable || lhs.Variable.LastPart() != "z" {
		t.Fatalf("expected lhs variable z, got %+v", lhs)
	}
}

func TestParseVarDeclParenForm(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#var(y = 2)", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	expr := root[0].Expr
	if expr.Kind != ast.ParamExpression || expr.Expr.Form != ast.FormAssignment {
		t.Fatalf("expected assignment expression, got %+v", expr)
	}
	lhs := expr.Expr.Parts[0]
	if lhs.Kind != ast.ParamVariable || lhs.Variable.LastPart() != "y" {
		t.Fatalf("expected lhs variable y, got %+v", lhs)
	}
}

func TestParseVarDeclBareFormFollowedByTag(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#var x = 1#(x)", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	if len(root) != 2 {
		t.Fatalf("expected 2 nodes (decl + passthrough), got %d: %+v", len(root), root)
	}
	if root[1].Expr.Kind != ast.ParamVariable || root[1].Expr.Variable.LastPart() != "x" {
		t.Fatalf("expected trailing passthrough of x, got %+v", root[1].Expr)
	}
}

func TestParseUnknownFunctionIsParseError(t *testing.T) {
	reg := newReg(t)
	_, err := Parse(reg, "#(nosuchfunction(1))", "t")
	if err == nil {
		t.Fatal("expected parse error for unregistered function")
	}
}

func TestParseArithmeticPrecedence(t *testing.T) {
	reg := newReg(t)
	doc, err := Parse(reg, "#(1 + 2 * 3)", "t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := doc.Tables[doc.Root()]
	expr := root[0].Expr.Expr
	// top-level operator must be '+' (lowest precedence binds last)
	if expr.Operator.Symbol != "+" {
		t.Fatalf("expected top-level '+' from precedence climbing, got %+v", expr)
	}
}
