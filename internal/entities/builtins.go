package entities

import (
	"fmt"
	"strings"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/value"
)

// RegisterBuiltins installs the minimal built-in entity set a rendering
// engine needs: the if/elseif/else and for control blocks, a handful of
// functions/methods, the text/html raw-block handlers, and the fixed
// meta-block names so collisions with them are caught at registration.
func RegisterBuiltins(r *Registry) error {
	for _, f := range []Function{countFn{}, lenFn{}, joinFn{}} {
		if err := r.RegisterFunction(f); err != nil {
			return err
		}
	}
	for _, m := range []Method{uppercasedMethod{}, appendMethod{}} {
		if err := r.RegisterMethod(m); err != nil {
			return err
		}
	}
	for _, b := range []BlockFactory{ifFactory{}, elseifFactory{}, elseFactory{}, forFactory{}} {
		if err := r.RegisterBlock(b); err != nil {
			return err
		}
	}
	for _, rb := range []RawBlockFactory{textRawFactory{}, htmlRawFactory{}} {
		if err := r.RegisterRawBlock(rb); err != nil {
			return err
		}
	}
	metas := []MetaBlockEntry{
		{Name: "define", Kind: MetaBlockDefine},
		{Name: "evaluate", Kind: MetaBlockEvaluate},
		{Name: "inline", Kind: MetaBlockInline},
		{Name: "raw", Kind: MetaBlockRaw},
	}
	for _, m := range metas {
		if err := r.RegisterMeta(m); err != nil {
			return err
		}
	}
	return nil
}

// --- functions ---

type countFn struct{}

func (countFn) Name() string { return "count" }
func (countFn) Unsafe() bool { return false }
func (countFn) Signatures() []CallSignature {
	return []CallSignature{{Labels: []string{""}, Types: []value.Kind{AnyKind}, HasDefault: []bool{false}}}
}
func (countFn) Call(sig int, args ast.CallValues, ctx CallContext) (value.Value, error) {
	v, _ := args.Get("", 0)
	if items, ok := v.AsArray(); ok {
		return value.Int(int64(len(items))), nil
	}
	if order, _, ok := v.AsDictionary(); ok {
		return value.Int(int64(len(order))), nil
	}
	return value.Errored(value.KindInt, fmt.Errorf("count: argument is not a collection")), nil
}

type lenFn struct{}

func (lenFn) Name() string { return "len" }
func (lenFn) Unsafe() bool { return false }
func (lenFn) Signatures() []CallSignature {
	return []CallSignature{{Labels: []string{""}, Types: []value.Kind{value.KindString}, HasDefault: []bool{false}}}
}
func (lenFn) Call(sig int, args ast.CallValues, ctx CallContext) (value.Value, error) {
	v, _ := args.Get("", 0)
	s, _ := v.AsString()
	return value.Int(int64(len(s))), nil
}

type joinFn struct{}

func (joinFn) Name() string { return "join" }
func (joinFn) Unsafe() bool { return false }
func (joinFn) Signatures() []CallSignature {
	return []CallSignature{{
		Labels: []string{"", "separator"},
		Types: []value.Kind{AnyKind, value.KindString},
		HasDefault: []bool{false, true},
		Default: []value.Value{{}, value.String("")},
	}}
}
func (joinFn) Call(sig int, args ast.CallValues, ctx CallContext) (value.Value, error) {
	v, _ := args.Get("", 0)
	sep, _ := args.Get("separator", 1)
	sepStr, _ := sep.AsString()
	items, ok := v.AsArray()
	if !ok {
		return value.Errored(value.KindString, fmt.Errorf("join: argument is not an array")), nil
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i], _ = it.AsString()
	}
	return value.String(strings.Join(parts, sepStr)), nil
}

// --- methods ---

type uppercasedMethod struct{}

func (uppercasedMethod) Name() string { return "uppercased" }
func (uppercasedMethod) Mutating() bool { return false }
func (uppercasedMethod) Signatures() []CallSignature {
	return []CallSignature{{}}
}
func (uppercasedMethod) Call(sig int, operand value.Value, args ast.CallValues, ctx CallContext) (*value.Value, value.Value, error) {
	s, ok := operand.AsString()
	if !ok {
		return nil, value.Errored(value.KindString, fmt.Errorf("uppercased: operand is not string-like")), nil
	}
	return nil, value.String(strings.ToUpper(s)), nil
}

type appendMethod struct{}

func (appendMethod) Name() string { return "append" }
func (appendMethod) Mutating() bool { return true }
func (appendMethod) Signatures() []CallSignature {
	return []CallSignature{{Labels: []string{""}, Types: []value.Kind{AnyKind}, HasDefault: []bool{false}}}
}
func (appendMethod) Call(sig int, operand value.Value, args ast.CallValues, ctx CallContext) (*value.Value, value.Value, error) {
	items, ok := operand.AsArray()
	if !ok {
		return nil, value.Errored(value.KindArray, fmt.Errorf("append: operand is not an array")), nil
	}
	extra, _ := args.Get("", 0)
	next := value.Array(append(append([]value.Value{}, items...), extra))
	return &next, next, nil
}

// --- control blocks ---

type condBlock struct {
	name string
	antecedent []string
	cond *value.Value // true for #else; nil for #if/#elseif, which read their first positional parameter
	hit bool
}

func (c *condBlock) Name() string { return c.name }
func (c *condBlock) ChainAntecedents() []string { return c.antecedent }
func (c *condBlock) ChainHit() bool { return c.hit }
func (c *condBlock) EvaluateScope(params ast.CallValues, scopeVars map[string]value.Value) (*int, error) {
	truthy := true
	if c.cond != nil {
		b, _ := c.cond.AsBool()
		truthy = b
	} else if len(params.Positional) > 0 {
		b, _ := params.Positional[0].AsBool()
		truthy = b
	}
	c.hit = truthy
	one, zero := 1, 0
	if truthy {
		return &one, nil
	}
	return &zero, nil
}
func (c *condBlock) ReEvaluateScope(scopeVars map[string]value.Value) (*int, error) {
	zero := 0
	return &zero, nil
}

type ifFactory struct{}

func (ifFactory) Name() string { return "if" }
func (ifFactory) ParseSignatures() []ParseSignature {
	return []ParseSignature{{VariableSlots: 0}}
}
func (ifFactory) ChainAntecedents() []string { return nil }
func (ifFactory) New(args *ast.Tuple) (ast.Block, error) {
	return &condBlock{name: "if"}, nil
}

type elseifFactory struct{}

func (elseifFactory) Name() string { return "elseif" }
func (elseifFactory) ParseSignatures() []ParseSignature {
	return []ParseSignature{{VariableSlots: 0}}
}
func (elseifFactory) ChainAntecedents() []string { return []string{"if", "elseif"} }
func (elseifFactory) New(args *ast.Tuple) (ast.Block, error) {
	return &condBlock{name: "elseif", antecedent: []string{"if", "elseif"}}, nil
}

type elseFactory struct{}

func (elseFactory) Name() string { return "else" }
func (elseFactory) ParseSignatures() []ParseSignature {
	return []ParseSignature{{VariableSlots: 0}}
}
func (elseFactory) ChainAntecedents() []string { return []string{"if", "elseif"} }
func (elseFactory) New(args *ast.Tuple) (ast.Block, error) {
	truth := value.Bool(true)
	return &condBlock{name: "else", antecedent: []string{"if", "elseif"}, cond: &truth}, nil
}

// forBlock implements `#for(x in collection): ... #endfor`.
type forBlock struct {
	varName string
	items []value.Value
	index int
}

func (f *forBlock) Name() string { return "for" }
func (f *forBlock) ChainAntecedents() []string { return nil }
func (f *forBlock) ChainHit() bool { return false }
func (f *forBlock) EvaluateScope(params ast.CallValues, scopeVars map[string]value.Value) (*int, error) {
	coll, _ := params.Get("", 0)
	items, ok := coll.AsArray()
	if !ok {
		zero := 0
		return &zero, nil
	}
	f.items = items
	f.index = 0
	remaining := len(items)
	if remaining == 0 {
		zero := 0
		return &zero, nil
	}
	scopeVars[f.varName] = items[0]
	return &remaining, nil
}
func (f *forBlock) ReEvaluateScope(scopeVars map[string]value.Value) (*int, error) {
	f.index++
	remaining := len(f.items) - f.index
	if remaining <= 0 {
		zero := 0
		return &zero, nil
	}
	scopeVars[f.varName] = f.items[f.index]
	return &remaining, nil
}

type forFactory struct{}

func (forFactory) Name() string { return "for" }
func (forFactory) ParseSignatures() []ParseSignature {
	return []ParseSignature{{Keywords: []string{"in"}, VariableSlots: 1}}
}
func (forFactory) ChainAntecedents() []string { return nil }

// New expects args laid out by the Parser as: element 0 = the loop
// variable (a single-part variable Parameter, or one carrying the name
// in FuncName), and element 1 = the collection expression. The Parser
// is responsible for this shape (see internal/parser's
// blockFactoryArgs).
func (forFactory) New(args *ast.Tuple) (ast.Block, error) {
	if len(args.Elements) < 2 {
		return nil, fmt.Errorf("for: expected `x in collection`")
	}
	name := args.Elements[0].FuncName
	if name == "" && args.Elements[0].Variable.IsAtomic() {
		name = args.Elements[0].Variable.LastPart()
	}
	if name == "" {
		return nil, fmt.Errorf("for: missing loop variable name")
	}
	return &forBlock{varName: name}, nil
}

// --- raw blocks ---

type textRawFactory struct{}

func (textRawFactory) Name() string { return "text" }
func (textRawFactory) New() ast.RawBlock { return textRawBlock{} }

type textRawBlock struct{}

func (textRawBlock) Name() string { return "text" }
func (textRawBlock) Append(buf []byte, data []byte) ([]byte, error) {
	return append(buf, data...), nil
}
func (textRawBlock) Close(buf []byte) []byte { return buf }

type htmlRawFactory struct{}

func (htmlRawFactory) Name() string { return "html" }
func (htmlRawFactory) New() ast.RawBlock { return htmlRawBlock{} }

type htmlRawBlock struct{}

func (htmlRawBlock) Name() string { return "html" }
func (htmlRawBlock) Append(buf []byte, data []byte) ([]byte, error) {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(string(data))
	return append(buf, escaped...), nil
}
func (htmlRawBlock) Close(buf []byte) []byte { return buf }
