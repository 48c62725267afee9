// Package ast implements the compiled template representation:
// Parameter/Expression/Tuple AST leaves, the Syntax nodes of a scope
// table, and the AST document plus its Info metadata.
//
// Parameter is a single heterogeneous, closed variant
// (value/keyword/operator/variable/expression/tuple/function) with
// cached derived fields rather than an open, visitor-dispatched node
// hierarchy: the serializer interprets scope tables iteratively, so a
// closed union it can switch on beats virtual dispatch here, the same
// trade internal/value makes for TemplateData.
package ast

import (
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/internal/variable"
)

// ParameterKind discriminates a Parameter.
type ParameterKind uint8

const (
	ParamValue ParameterKind = iota
	ParamKeyword
	ParamOperator
	ParamVariable
	ParamExpression
	ParamTuple
	ParamFunction
	// ParamEvaluate is `evaluate(id)` / `evaluate(id ?? default)` used as
	// a value-producing sub-expression, as opposed to the
	// standalone `#evaluate(...)` tag that appends straight to output.
	ParamEvaluate
)

// CallOperand describes how a function-form Parameter is invoked: a
// free function call has a nil Operand; a method call carries its
// operand's variable, whether or not the method mutates.
type CallOperand struct {
	IsMethod bool
	Variable *variable.Variable // the operand variable; set for every method call
}

// Parameter is the heterogeneous AST leaf.
type Parameter struct {
	Kind ParameterKind
	Loc token.Location

	Value value.Value
	Keyword token.KeywordDef
	Operator token.OperatorDef
	Variable variable.Variable
	Expr *Expression
	Tuple *Tuple

	// Function-form fields.
	FuncName string
	Resolved interface{} // a parser.ResolvedCall (frozen Function or Method plus signature index), if overload selection picked one
	Params *Tuple
	Operand *CallOperand

	// ParamEvaluate fields.
	EvaluateID string
	EvaluateDef *Parameter

	// Cached derived fields.
	resolvedCache *bool
	invariant *bool
	literalCache *bool
}

// IsResolved() reports whether a function/method call was frozen to a
// single overload at parse time (exactly one candidate matched).
func (p *Parameter) IsResolved() bool {
	if p.Kind != ParamFunction {
		return true
	}
	return p.Resolved != nil
}

// IsLiteral() reports whether the Parameter is a plain value with no
// further evaluation required.
func (p *Parameter) IsLiteral() bool {
	if p.literalCache != nil {
		return *p.literalCache
	}
	lit := p.Kind == ParamValue && !p.Value.IsVariant()
	p.literalCache = &lit
	return lit
}

// IsInvariant() reports whether re-evaluating the Parameter against the
// same context is guaranteed to produce the same Value (no variable
// reads, no lazy/variant values).
func (p *Parameter) IsInvariant() bool {
	if p.invariant != nil {
		return *p.invariant
	}
	inv := false
	switch p.Kind {
	case ParamValue:
		inv = !p.Value.IsVariant()
	case ParamKeyword:
		inv = true
	}
	p.invariant = &inv
	return inv
}

// RequiredVariables returns the set of root variable names this
// Parameter (recursively) reads.
func (p *Parameter) RequiredVariables(out map[string]bool) {
	switch p.Kind {
	case ParamVariable:
		out[p.Variable.Ancestor()] = true
	case ParamExpression:
		if p.Expr != nil {
			for i := range p.Expr.Parts {
				p.Expr.Parts[i].RequiredVariables(out)
			}
		}
	case ParamTuple:
		if p.Tuple != nil {
			for i := range p.Tuple.Elements {
				p.Tuple.Elements[i].RequiredVariables(out)
			}
		}
	case ParamFunction:
		if p.Params != nil {
			for i := range p.Params.Elements {
				p.Params.Elements[i].RequiredVariables(out)
			}
		}
		if p.Operand != nil && p.Operand.Variable != nil {
			out[p.Operand.Variable.Ancestor()] = true
		}
	case ParamEvaluate:
		if p.EvaluateDef != nil {
			p.EvaluateDef.RequiredVariables(out)
		}
	}
}

// BaseType() returns a best-effort Kind guess for type-checking overload
// candidates at parse time; ok is false when the Parameter's type cannot
// be determined statically (e.g. a dynamic variable lookup), which the
// Parser treats as "possibly any".
func (p *Parameter) BaseType() (value.Kind, bool) {
	switch p.Kind {
	case ParamValue:
		return p.Value.Kind(), true
	case ParamExpression:
		if p.Expr != nil {
			return p.Expr.BaseType()
		}
	}
	return value.KindVoid, false
}
