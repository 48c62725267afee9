package parser

import (
	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/internal/variable"
)

// ResolvedCall is stashed in Parameter.Resolved when exactly one overload
// matched at parse time, freeze-on-unique-match rule.
// Exported so internal/serializer can type-assert Parameter.Resolved
// without internal/ast needing to import internal/entities.
type ResolvedCall struct {
	Function entities.Function
	Method entities.Method
	Signature int
}

// resolveCall validates a function/method-form Parameter against the
// Registry(), freezing it to a single overload when only one candidate
// matches and leaving it dynamic (resolved at serialize time) otherwise.
// A frozen call also has its argument tuple back-filled with default
// values since the chosen signature's formal parameter
// list is now known; a call left dynamic skips this; the Serializer
// re-resolves it against concrete argument kinds and has no single
// formal list to back-fill against.
func (p *Parser) resolveCall(param *ast.Parameter) error {
	if param.Operand != nil && param.Operand.IsMethod {
		m, res, err := p.reg.ValidateMethod(param.FuncName, param.Params)
		if err != nil {
			return p.errorf("%s", err.Error())
		}
		if !res.Dynamic {
			sig := m.Signatures()[res.Index]
			filled, err := entities.ValidateTupleCall(param.Params, sig)
			if err != nil {
				return p.errorf("%s", err.Error())
			}
			param.Params = filled
			param.Resolved = ResolvedCall{Method: m, Signature: res.Index}
		}
		return nil
	}
	f, res, err := p.reg.ValidateFunction(param.FuncName, param.Params)
	if err != nil {
		return p.errorf("%s", err.Error())
	}
	if !res.Dynamic {
		sig := f.Signatures()[res.Index]
		filled, err := entities.ValidateTupleCall(param.Params, sig)
		if err != nil {
			return p.errorf("%s", err.Error())
		}
		param.Params = filled
		param.Resolved = ResolvedCall{Function: f, Signature: res.Index}
	}
	return nil
}

// parseTuple() parses a parenthesized, comma-separated argument/literal list
// starting at the current ParamsOpen token.
func (p *Parser) parseTuple() (*ast.Tuple, error) {
	if _, err := p.expect(token.ParamsOpen); err != nil {
		return nil, err
	}
	tup := ast.NewTuple()
	if p.cur().Type == token.ParamsClose {
		p.advance()
		return tup, nil
	}
	for {
		if p.cur().Type == token.VariablePart && p.peekAt(1).Type == token.LabelMark {
			label := p.advance().Lexeme
			p.advance() // consume LabelMark
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			tup.AppendLabeled(label, val)
		} else {
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			tup.Append(val)
		}
		if p.cur().Type == token.ParamDelim {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return nil, err
	}
	return tup, nil
}

// parseCollectionLiteral() parses a `[...]`/`[:]` array or dictionary
// literal into a collection-flavored Tuple, deferring the caller's
// subscript-vs-literal disambiguation.
func (p *Parser) parseCollectionLiteral() (ast.Parameter, error) {
	loc := p.cur().Location
	switch p.cur().Type {
	case token.EmptyArray:
		p.advance()
		return ast.Parameter{Kind: ast.ParamTuple, Loc: loc, Tuple: &ast.Tuple{Labels: map[string]int{}, Collection: true}}, nil
	case token.EmptyDict:
		p.advance()
		return ast.Parameter{Kind: ast.ParamTuple, Loc: loc, Tuple: &ast.Tuple{Labels: map[string]int{}, Collection: true}}, nil
	}
	p.advance() // consume '['
	tup := &ast.Tuple{Labels: map[string]int{}, Collection: true}
	for {
		first, err := p.parseExpr()
		if err != nil {
			return ast.Parameter{}, err
		}
		if p.cur().Type == token.LabelMark {
			p.advance()
			key, ok := literalStringKey(first)
			if !ok {
				return ast.Parameter{}, p.errorf("dictionary literal key must be a string or identifier")
			}
			val, err := p.parseExpr()
			if err != nil {
				return ast.Parameter{}, err
			}
			tup.AppendLabeled(key, val)
		} else {
			tup.Append(first)
		}
		if p.cur().Type == token.ParamDelim {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectOperator("]"); err != nil {
		return ast.Parameter{}, err
	}
	return ast.Parameter{Kind: ast.ParamTuple, Loc: loc, Tuple: tup}, nil
}

func literalStringKey(p ast.Parameter) (string, bool) {
	if p.Kind == ast.ParamValue {
		if s, ok := p.Value.AsString(); ok {
			return s, true
		}
	}
	if p.Kind == ast.ParamVariable && p.Variable.IsAtomic() {
		return p.Variable.LastPart(), true
	}
	return "", false
}

func (p *Parser) expectOperator(sym string) (token.Token, error) {
	if p.cur().Type != token.Operator || p.cur().Lexeme != sym {
		return token.Token{}, p.errorf("expected operator %q, got %v %q", sym, p.cur().Type, p.cur().Lexeme)
	}
	return p.advance(), nil
}

// parseExpr() parses a full expression: calculation/assignment, with a
// trailing ternary.
func (p *Parser) parseExpr() (ast.Parameter, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return ast.Parameter{}, err
	}
	lhs, err = p.parseBinRHS(0, lhs)
	if err != nil {
		return ast.Parameter{}, err
	}
	if p.cur().Type == token.Operator && p.cur().Lexeme == "?" {
		loc := p.cur().Location
		p.advance()
		trueBranch, err := p.parseExpr()
		if err != nil {
			return ast.Parameter{}, err
		}
		if _, err := p.expect(token.LabelMark); err != nil {
			return ast.Parameter{}, err
		}
		falseBranch, err := p.parseExpr()
		if err != nil {
			return ast.Parameter{}, err
		}
		return ast.Parameter{
			Kind: ast.ParamExpression,
			Loc: loc,
			Expr: &ast.Expression{Form: ast.FormTernary, Parts: []ast.Parameter{lhs, trueBranch, falseBranch}, Loc: loc},
		}, nil
	}
	return lhs, nil
}

func (p *Parser) parseUnary() (ast.Parameter, error) {
	if p.cur().Type == token.Operator {
		switch p.cur().Lexeme {
		case "!":
			op, _ := token.LookupOperator("!", token.FormUnaryPrefix)
			loc := p.cur().Location
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return ast.Parameter{}, err
			}
			return ast.Parameter{Kind: ast.ParamExpression, Loc: loc, Expr: &ast.Expression{Form: ast.FormCalculation, Parts: []ast.Parameter{operand}, Operator: op, Loc: loc}}, nil
		case "-":
			loc := p.cur().Location
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return ast.Parameter{}, err
			}
			expr := ast.NegatePrefix(operand, loc)
			return ast.Parameter{Kind: ast.ParamExpression, Loc: loc, Expr: &expr}, nil
		case "$":
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return ast.Parameter{}, err
			}
			if operand.Kind == ast.ParamVariable {
				operand.Variable = operand.Variable.WithFlag(variable.Contextualized)
			}
			return operand, nil
		}
	}
	return p.parsePostfix()
}

// parseBinRHS implements precedence-climbing over the fixed operator
// table from internal/token/operator.go.
func (p *Parser) parseBinRHS(minPrec int, lhs ast.Parameter) (ast.Parameter, error) {
	for {
		if p.cur().Type != token.Operator {
			return lhs, nil
		}
		op, ok := token.LookupOperator(p.cur().Lexeme, token.FormInfix)
		if !ok || !op.Parseable || op.Precedence < minPrec && op.Category != token.CategoryAssignment {
			return lhs, nil
		}
		if op.Category == token.CategoryScoping {
			return lhs, nil
		}
		if op.Symbol == "?" {
			// Ternary `a ? b : c` is assembled by parseExpr, not here.
			return lhs, nil
		}
		loc := p.cur().Location
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return ast.Parameter{}, err
		}
		for p.cur().Type == token.Operator {
			next, ok := token.LookupOperator(p.cur().Lexeme, token.FormInfix)
			if !ok || !next.Parseable || next.Precedence <= op.Precedence {
				break
			}
			rhs, err = p.parseBinRHS(next.Precedence, rhs)
			if err != nil {
				return ast.Parameter{}, err
			}
		}
		form := ast.FormCalculation
		if op.Category == token.CategoryAssignment {
			form = ast.FormAssignment
		}
		lhs = ast.Parameter{Kind: ast.ParamExpression, Loc: loc, Expr: &ast.Expression{Form: form, Parts: []ast.Parameter{lhs, rhs}, Operator: op, Loc: loc}}
	}
}

// parsePostfix() parses a primary value followed by any chain of dotted
// variable segments, method calls, or subscripts.
func (p *Parser) parsePostfix() (ast.Parameter, error) {
	prim, err := p.parsePrimary()
	if err != nil {
		return ast.Parameter{}, err
	}
	for {
		switch {
		case p.cur().Type == token.Operator && p.cur().Lexeme == ".":
			if prim.Kind != ast.ParamVariable {
				return prim, nil
			}
			if p.peekAt(1).Type == token.FunctionIdent {
				p.advance() // consume '.'
				name := p.advance().Lexeme
				args, err := p.parseTuple()
				if err != nil {
					return ast.Parameter{}, err
				}
				// Operand.Variable always names the operand's source
				// variable (every method call this parser accepts is
				// variable-rooted); the Serializer consults the resolved
				// Method's Mutating() to decide whether to write the
				// result back rather than keying off this pointer.
				operandVar := prim.Variable
				call := ast.Parameter{
					Kind: ast.ParamFunction,
					Loc: prim.Loc,
					FuncName: name,
					Params: args,
					Operand: &ast.CallOperand{IsMethod: true, Variable: &operandVar},
				}
				if err := p.resolveCall(&call); err != nil {
					return ast.Parameter{}, err
				}
				prim = call
				continue
			}
			if p.peekAt(1).Type == token.VariablePart {
				p.advance()
				part := p.advance().Lexeme
				prim.Variable = variable.New(append(append([]string{}, prim.Variable.Parts()...), part), prim.Variable.Flags())
				if p.cur().Type == token.Operator && p.cur().Lexeme == "??" {
					prim.Variable = prim.Variable.WithFlag(variable.Coalesced)
				}
				continue
			}
			return prim, nil
		case p.cur().Type == token.Operator && p.cur().Lexeme == "[":
			loc := p.cur().Location
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return ast.Parameter{}, err
			}
			if _, err := p.expectOperator("]"); err != nil {
				return ast.Parameter{}, err
			}
			subOp, _ := token.LookupOperator("[]", token.FormInfix)
			prim = ast.Parameter{Kind: ast.ParamExpression, Loc: loc, Expr: &ast.Expression{Form: ast.FormCalculation, Parts: []ast.Parameter{prim, idx}, Operator: subOp, Loc: loc}}
		default:
			return prim, nil
		}
	}
}

// parseEvaluateExpr() parses `evaluate(id)` / `evaluate(id ?? default)` used
// as a value-producing sub-expression, e.g. inside
// `#if(evaluate(adminValue ?? false)):`. This mirrors the standalone
// `#evaluate(...)` meta tag's grammar but yields a Parameter the
// Serializer can use anywhere an expression is expected, rather than
// writing straight to the output buffer.
func (p *Parser) parseEvaluateExpr() (ast.Parameter, error) {
	loc := p.cur().Location
	p.advance() // consume the "evaluate" FunctionIdent token
	if _, err := p.expect(token.ParamsOpen); err != nil {
		return ast.Parameter{}, err
	}
	if p.cur().Type != token.VariablePart {
		return ast.Parameter{}, p.errorf("evaluate() requires an identifier")
	}
	id := p.advance().Lexeme
	param := ast.Parameter{Kind: ast.ParamEvaluate, Loc: loc, EvaluateID: id}
	if p.cur().Type == token.Operator && p.cur().Lexeme == "??" {
		p.advance()
		def, err := p.parseExpr()
		if err != nil {
			return ast.Parameter{}, err
		}
		param.EvaluateDef = &def
	}
	if _, err := p.expect(token.ParamsClose); err != nil {
		return ast.Parameter{}, err
	}
	return param, nil
}

func (p *Parser) parsePrimary() (ast.Parameter, error) {
	// The Lexer emits a Whitespace token only where a space separates an
	// operand from a following `[` (array literal rather than subscript);
	// by the time a primary is expected the disambiguation has happened.
	for p.cur().Type == token.Whitespace {
		p.advance()
	}
	tok := p.cur()
	switch tok.Type {
	case token.Int:
		p.advance()
		return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.Int(tok.IntValue)}, nil
	case token.Double:
		p.advance()
		return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.Double(tok.DoubleValue)}, nil
	case token.String:
		p.advance()
		return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.String(tok.StringValue)}, nil
	case token.EmptyArray, token.EmptyDict:
		return p.parseCollectionLiteral()
	case token.Operator:
		if tok.Lexeme == "[" {
			return p.parseCollectionLiteral()
		}
	case token.Keyword:
		if tok.Lexeme == "template" && p.peekAt(1).Type == token.Operator && p.peekAt(1).Lexeme == "." && p.peekAt(2).Type == token.VariablePart {
			// `template.id` is the define-namespace: a lazy reference to a
			// #define'd identifier.
			p.advance()
			p.advance()
			part := p.advance().Lexeme
			v := variable.New([]string{part}, variable.DefineNamespace)
			return ast.Parameter{Kind: ast.ParamVariable, Loc: tok.Location, Variable: v}, nil
		}
		p.advance()
		kw, _ := token.LookupKeyword(tok.Lexeme)
		switch tok.Lexeme {
		case "true", "yes":
			return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.Bool(true)}, nil
		case "false", "no":
			return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.Bool(false)}, nil
		case "nil":
			return ast.Parameter{Kind: ast.ParamValue, Loc: tok.Location, Value: value.NilOfKind(value.KindVoid)}, nil
		default:
			return ast.Parameter{Kind: ast.ParamKeyword, Loc: tok.Location, Keyword: kw}, nil
		}
	case token.VariablePart:
		p.advance()
		if p.cur().Type == token.Operator && p.cur().Lexeme == "??" {
			v := variable.New([]string{tok.Lexeme}, variable.Coalesced)
			return ast.Parameter{Kind: ast.ParamVariable, Loc: tok.Location, Variable: v}, nil
		}
		return ast.Parameter{Kind: ast.ParamVariable, Loc: tok.Location, Variable: variable.New([]string{tok.Lexeme}, 0)}, nil
	case token.FunctionIdent:
		if tok.Lexeme == "evaluate" {
			return p.parseEvaluateExpr()
		}
		p.advance()
		args, err := p.parseTuple()
		if err != nil {
			return ast.Parameter{}, err
		}
		call := ast.Parameter{Kind: ast.ParamFunction, Loc: tok.Location, FuncName: tok.Lexeme, Params: args}
		if err := p.resolveCall(&call); err != nil {
			return ast.Parameter{}, err
		}
		return call, nil
	case token.ParamsOpen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return ast.Parameter{}, err
		}
		if _, err := p.expect(token.ParamsClose); err != nil {
			return ast.Parameter{}, err
		}
		return inner, nil
	}
	return ast.Parameter{}, p.errorf("unexpected token %v %q in expression", tok.Type, tok.Lexeme)
}
