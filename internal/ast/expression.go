package ast

import (
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
)

// ExpressionForm tags an Expression with its shape.
type ExpressionForm uint8

const (
	FormCalculation ExpressionForm = iota
	FormAssignment
	FormTernary
	FormCustom
)

// Expression is a 2- or 3-element vector of Parameters tagged with a
// form. Infix/unary-prefix/unary-postfix operator expressions are
// FormCalculation; `a ? b : c` is FormTernary; `x = y` (and its compound
// variants) is FormAssignment.
type Expression struct {
	Form ExpressionForm
	Parts []Parameter
	Operator token.OperatorDef
	Loc token.Location
}

// BaseType() best-effort infers the static Kind an Expression would
// produce, used by call-signature resolution.
func (e *Expression) BaseType() (value.Kind, bool) {
	switch e.Form {
	case FormCalculation:
		if e.Operator.Category == tokenCategoryLogical() {
			return value.KindBool, true
		}
		if len(e.Parts) > 0 {
			return e.Parts[0].BaseType()
		}
	case FormTernary:
		if len(e.Parts) == 3 {
			return e.Parts[1].BaseType()
		}
	}
	return value.KindVoid, false
}

func tokenCategoryLogical() token.OperatorCategory { return token.CategoryLogical }

// NegatePrefix rewrites a unary-prefix `-x` into `x * -1`, so negation
// needs no operator of its own at evaluation time.
func NegatePrefix(operand Parameter, loc token.Location) Expression {
	negOne := Parameter{Kind: ParamValue, Value: value.Int(-1), Loc: loc}
	mul, _ := token.LookupOperator("*", token.FormInfix)
	return Expression{
		Form: FormCalculation,
		Parts: []Parameter{operand, negOne},
		Operator: mul,
		Loc: loc,
	}
}
