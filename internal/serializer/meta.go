package serializer

import (
	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/errtype"
	"github.com/tauleaf/tau/internal/value"
)

// runMeta dispatches one of the four MetaBlocks: define,
// evaluate(), inline and raw. Unlike an ordinary SyntaxBlock, none of these
// consult the Block protocol — their semantics are fixed, so the
// Serializer implements them directly.
func (s *Serializer) runMeta(doc *ast.AST, node *ast.Syntax, stack *[]frame, scopes []map[string]value.Value, sinksP *[]*sink) error {
	switch node.Meta {
	case ast.MetaDefine:
		return s.runDefine(node)
	case ast.MetaEvaluate:
		return s.runEvaluate(node, stack, scopes, sinksP)
	case ast.MetaInline:
		return s.runInline(doc, node, stack, sinksP)
	case ast.MetaRaw:
		return s.runRaw(node, stack, sinksP)
	}
	return nil
}

func (s *Serializer) runDefine(node *ast.Syntax) error {
	if node.DefineExpr != nil {
		s.defines[node.DefineID] = defineEntry{expr: node.DefineExpr}
		return nil
	}
	s.defines[node.DefineID] = defineEntry{table: node.DefineScope, isTable: true}
	return nil
}

// runEvaluate implements the standalone `#evaluate(id)` tag, which writes
// straight to the current output sink. `evaluate(id)` used inside another
// expression goes through eval's ast.ParamEvaluate case instead, sharing
// s.defines and s.evaluateValue.
func (s *Serializer) runEvaluate(node *ast.Syntax, stack *[]frame, scopes []map[string]value.Value, sinksP *[]*sink) error {
	top := func() *sink { return (*sinksP)[len(*sinksP)-1] }

	entry, ok := s.defines[node.EvaluateID]
	if ok && entry.isTable {
		*sinksP = append(*sinksP, &sink{})
		*stack = append(*stack, frame{table: entry.table, popSink: true})
		return nil
	}

	v, err := s.evaluateValue(node.EvaluateID, node.EvaluateDef, scopes)
	if err != nil {
		return err
	}
	str, _ := v.AsString()
	return top().write([]byte(str))
}

// evaluateValue resolves an `evaluate(id)`/`evaluate(id ?? default)`
// reference to a Value: the nearest atomic #define, or the supplied
// default, or trueNil (an error, in strict mode) when neither is
// available. A scope-bodied #define is only reachable through the
// standalone #evaluate() tag (runEvaluate above), since producing a Value
// from it would mean rendering a nested body eagerly.
func (s *Serializer) evaluateValue(id string, def *ast.Parameter, scopes []map[string]value.Value) (value.Value, error) {
	if entry, ok := s.defines[id]; ok && !entry.isTable {
		return s.eval(*entry.expr, scopes)
	}
	if def != nil {
		return s.eval(*def, scopes)
	}
	if s.missingVariableThrows {
		return value.Value{}, &errtype.SerializeError{Message: "evaluate() of undefined identifier " + id}
	}
	return value.TrueNil, nil
}

// runInline handles all three #inline forms: a compiled
// template dependency already spliced in by the Resolver, a raw byte
// embed, or a raw embed piped through a named RawBlock handler.
func (s *Serializer) runInline(doc *ast.AST, node *ast.Syntax, stack *[]frame, sinksP *[]*sink) error {
	switch node.InlineAs {
	case ast.InlineAsTemplate:
		*stack = append(*stack, frame{table: node.DefineScope})
		return nil
	case ast.InlineAsRaw:
		data, err := s.fetchRaw(doc, node.InlineName)
		if err != nil {
			return err
		}
		return (*sinksP)[len(*sinksP)-1].write(data)
	case ast.InlineAsHandler:
		data, err := s.fetchRaw(doc, node.InlineName)
		if err != nil {
			return err
		}
		rb, err := s.reg.ValidateRaw(node.InlineHandler)
		if err != nil {
			return &errtype.SerializeError{Message: err.Error()}
		}
		buf, err := rb.Append(nil, data)
		if err != nil {
			return &errtype.SerializeError{Message: err.Error()}
		}
		buf = rb.Close(buf)
		return (*sinksP)[len(*sinksP)-1].write(buf)
	}
	return nil
}

func (s *Serializer) runRaw(node *ast.Syntax, stack *[]frame, sinksP *[]*sink) error {
	rb, err := s.reg.ValidateRaw(node.RawHandler)
	if err != nil {
		return &errtype.SerializeError{Message: err.Error()}
	}
	*sinksP = append(*sinksP, &sink{rb: rb})
	*stack = append(*stack, frame{table: node.DefineScope, popSink: true})
	return nil
}

// fetchRaw resolves a raw #inline target, preferring bytes the Resolver
// already embedded in the AST and falling back to the InlineLoader for
// anything larger or fetched lazily.
func (s *Serializer) fetchRaw(doc *ast.AST, name string) ([]byte, error) {
	if data, ok := doc.Inline[name]; ok {
		return data, nil
	}
	if s.loader == nil {
		return nil, &errtype.MissingRaw{Name: name}
	}
	data, err := s.loader.LoadRaw(name)
	if err != nil {
		return nil, &errtype.MissingRaw{Name: name}
	}
	return data, nil
}
