package serializer

import (
	"fmt"
	"sort"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/parser"
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/internal/variable"
)

// eval interprets a Parameter leaf against the live scope chain. This is
// the one recursive function in the package: a
// Parameter's own nesting (expression parts, call arguments) is bounded
// by the source text's expression depth, never by template/scope
// nesting, so it does not violate the non-recursive interpreter design
// that governs the main frame-stack loop in Run.
func (s *Serializer) eval(p ast.Parameter, scopes []map[string]value.Value) (value.Value, error) {
	switch p.Kind {
	case ast.ParamValue:
		return p.Value, nil
	case ast.ParamKeyword:
		if p.Keyword.Name == "self" {
			return selfValue(scopes), nil
		}
		return evalKeyword(p.Keyword), nil
	case ast.ParamVariable:
		if p.Variable.HasFlag(variable.DefineNamespace) {
			return s.evaluateValue(p.Variable.LastPart(), nil, scopes)
		}
		v, ok := resolveVariable(p.Variable, scopes)
		if !ok {
			if p.Variable.HasFlag(variable.Coalesced) || !s.missingVariableThrows {
				return value.TrueNil, nil
			}
			return value.Value{}, exprError(p.Loc, "undefined variable %q", p.Variable.String())
		}
		return v, nil
	case ast.ParamExpression:
		return s.evalExpr(p.Expr, scopes)
	case ast.ParamTuple:
		return s.evalTuple(p.Tuple, scopes)
	case ast.ParamFunction:
		return s.evalCall(p, scopes)
	case ast.ParamEvaluate:
		return s.evaluateValue(p.EvaluateID, p.EvaluateDef, scopes)
	}
	return value.TrueNil, nil
}

func evalKeyword(k token.KeywordDef) value.Value {
	switch k.Name {
	case "true", "yes":
		return value.Bool(true)
	case "false", "no":
		return value.Bool(false)
	default:
		return value.TrueNil
	}
}

// selfValue materializes the root context frame as a dictionary, so
// `self` can be passed around and subscripted like any other value.
func selfValue(scopes []map[string]value.Value) value.Value {
	if len(scopes) == 0 {
		return value.TrueNil
	}
	root := scopes[0]
	order := make([]string, 0, len(root))
	for k := range root {
		order = append(order, k)
	}
	sort.Strings(order)
	return value.Dictionary(order, root)
}

// resolveVariable walks the scope chain for the path's ancestor, then
// descends through dictionary fields for the remaining parts.
func resolveVariable(v variable.Variable, scopes []map[string]value.Value) (value.Value, bool) {
	parts := v.Parts()
	if len(parts) == 0 {
		return value.Value{}, false
	}
	cur, ok := lookup(scopes, parts[0])
	if !ok {
		return value.Value{}, false
	}
	for _, part := range parts[1:] {
		cur = cur.Evaluate()
		next, ok := cur.DictGet(part)
		if !ok {
			return value.Value{}, false
		}
		cur = next
	}
	return cur, true
}

func (s *Serializer) evalTuple(t *ast.Tuple, scopes []map[string]value.Value) (value.Value, error) {
	if t == nil {
		return value.Array(nil), nil
	}
	if len(t.Labels) > 0 {
		order := t.LabelOrder()
		m := make(map[string]value.Value, len(order))
		for _, name := range order {
			p, _ := t.Label(name)
			v, err := s.eval(p, scopes)
			if err != nil {
				return value.Value{}, err
			}
			m[name] = v
		}
		return value.Dictionary(order, m), nil
	}
	items := make([]value.Value, len(t.Elements))
	for i := range t.Elements {
		v, err := s.eval(t.Elements[i], scopes)
		if err != nil {
			return value.Value{}, err
		}
		items[i] = v
	}
	return value.Array(items), nil
}

func (s *Serializer) evalExpr(e *ast.Expression, scopes []map[string]value.Value) (value.Value, error) {
	switch e.Form {
	case ast.FormCalculation:
		return s.evalCalculation(e, scopes)
	case ast.FormTernary:
		cond, err := s.eval(e.Parts[0], scopes)
		if err != nil {
			return value.Value{}, err
		}
		b, _ := cond.AsBool()
		if b {
			return s.eval(e.Parts[1], scopes)
		}
		return s.eval(e.Parts[2], scopes)
	case ast.FormAssignment:
		return s.evalAssignment(e, scopes)
	}
	return value.TrueNil, nil
}

func (s *Serializer) evalCalculation(e *ast.Expression, scopes []map[string]value.Value) (value.Value, error) {
	if e.Operator.Form == token.FormUnaryPrefix {
		operand, err := s.eval(e.Parts[0], scopes)
		if err != nil {
			return value.Value{}, err
		}
		if e.Operator.Symbol == "!" {
			b, _ := operand.AsBool()
			return value.Bool(!b), nil
		}
		return operand, nil
	}

	lhs, err := s.eval(e.Parts[0], scopes)
	if err != nil {
		return value.Value{}, err
	}
	if e.Operator.Symbol == "[]" {
		return evalSubscript(lhs, func() (value.Value, error) { return s.eval(e.Parts[1], scopes) })
	}

	// An errored left operand propagates immediately for every operator
	// except ||/^^/!=/??, which still go on to evaluate a non-errored
	// right operand.
	switch e.Operator.Symbol {
	case "||", "^^", "!=", "??":
	default:
		if lhs.IsErrored() {
			return lhs, nil
		}
	}

	if e.Operator.Symbol == "??" {
		// A coalesced lookup decays its nil or errored left side to
		// the right operand; errors on the right still propagate
		// normally, but the right is only evaluated when needed.
		if !lhs.IsErrored() && !lhs.Evaluate().IsNil() {
			return lhs, nil
		}
		return s.eval(e.Parts[1], scopes)
	}

	if e.Operator.Symbol == "&&" {
		lb, _ := lhs.AsBool()
		if !lb {
			return value.Bool(false), nil
		}
		rhs, err := s.eval(e.Parts[1], scopes)
		if err != nil {
			return value.Value{}, err
		}
		if rhs.IsErrored() {
			return rhs, nil
		}
		rb, _ := rhs.AsBool()
		return value.Bool(rb), nil
	}
	if e.Operator.Symbol == "||" {
		if !lhs.IsErrored() {
			lb, _ := lhs.AsBool()
			if lb {
				return value.Bool(true), nil
			}
		}
		rhs, err := s.eval(e.Parts[1], scopes)
		if err != nil {
			return value.Value{}, err
		}
		if rhs.IsErrored() {
			return rhs, nil
		}
		rb, _ := rhs.AsBool()
		return value.Bool(rb), nil
	}

	rhs, err := s.eval(e.Parts[1], scopes)
	if err != nil {
		return value.Value{}, err
	}
	// ^^ and != tolerate one errored side (the non-errored operand still
	// decides the result); every other operator propagates the errored
	// operand.
	if rhs.IsErrored() {
		switch e.Operator.Symbol {
		case "^^", "!=":
		default:
			return rhs, nil
		}
	}
	return applyOperator(e.Operator, lhs, rhs)
}

func evalSubscript(container value.Value, index func() (value.Value, error)) (value.Value, error) {
	idx, err := index()
	if err != nil {
		return value.Value{}, err
	}
	container = container.Evaluate()
	switch container.Kind() {
	case value.KindArray:
		items, _ := container.AsArray()
		i, ok := idx.AsInt()
		if !ok || i < 0 || int(i) >= len(items) {
			return value.TrueNil, nil
		}
		return items[i], nil
	case value.KindDictionary:
		key, _ := idx.AsString()
		v, ok := container.DictGet(key)
		if !ok {
			return value.TrueNil, nil
		}
		return v, nil
	default:
		return value.TrueNil, nil
	}
}

func applyOperator(op token.OperatorDef, l, r value.Value) (value.Value, error) {
	switch op.Category {
	case token.CategoryLogical:
		switch op.Symbol {
		case "==":
			return value.Bool(l.Equals(r)), nil
		case "!=":
			return value.Bool(!l.Equals(r)), nil
		case "^^":
			lb, _ := l.AsBool()
			rb, _ := r.AsBool()
			return value.Bool(lb != rb), nil
		}
		ld, lok := l.AsDouble()
		rd, rok := r.AsDouble()
		if !lok || !rok {
			return value.Value{}, fmt.Errorf("operator %q requires comparable operands", op.Symbol)
		}
		switch op.Symbol {
		case ">":
			return value.Bool(ld > rd), nil
		case ">=":
			return value.Bool(ld >= rd), nil
		case "<":
			return value.Bool(ld < rd), nil
		case "<=":
			return value.Bool(ld <= rd), nil
		}
	case token.CategoryMath:
		return applyArithmetic(op.Symbol, l, r)
	}
	return value.Value{}, fmt.Errorf("unsupported operator %q", op.Symbol)
}

// applyArithmetic dispatches to internal/value's checked Add/Sub/Mul/
// Div/Mod rather than reimplementing integer math here, so every
// arithmetic path goes through the same overflow checks
// whether it runs through an expression or a method/function call.
func applyArithmetic(symbol string, l, r value.Value) (value.Value, error) {
	var out value.Value
	switch symbol {
	case "+":
		out = value.Add(l, r)
	case "-":
		out = value.Sub(l, r)
	case "*":
		out = value.Mul(l, r)
	case "/":
		out = value.Div(l, r)
	case "%":
		out = value.Mod(l, r)
	default:
		return value.Value{}, fmt.Errorf("unsupported operator %q", symbol)
	}
	if out.IsErrored() {
		return value.Value{}, out.Err()
	}
	return out, nil
}

func (s *Serializer) evalAssignment(e *ast.Expression, scopes []map[string]value.Value) (value.Value, error) {
	target := e.Parts[0]
	if target.Kind != ast.ParamVariable {
		return value.Value{}, exprError(e.Loc, "assignment target must be a variable")
	}
	rhs, err := s.eval(e.Parts[1], scopes)
	if err != nil {
		return value.Value{}, err
	}
	if e.Operator.Symbol != "=" {
		cur, ok := resolveVariable(target.Variable, scopes)
		if !ok {
			cur = value.TrueNil
		}
		symbol := e.Operator.Symbol[:len(e.Operator.Symbol)-1]
		rhs, err = applyArithmetic(symbol, cur, rhs)
		if err != nil {
			return value.Value{}, err
		}
	}
	if target.Variable.IsPathed() {
		if err := assignPathed(scopes, target.Variable, rhs); err != nil {
			return value.Value{}, exprError(e.Loc, "%s", err.Error())
		}
		return rhs, nil
	}
	assign(scopes, target.Variable.Ancestor(), rhs)
	return rhs, nil
}

// evalDeclare executes a var/let declaration statement: the binding is
// created in the innermost scope frame even when an outer frame already
// owns the name.
func (s *Serializer) evalDeclare(e *ast.Expression, scopes []map[string]value.Value) error {
	rhs, err := s.eval(e.Parts[1], scopes)
	if err != nil {
		return err
	}
	scopes[len(scopes)-1][e.Parts[0].Variable.Ancestor()] = rhs
	return nil
}

// assignPathed writes a new Value at a dotted path, rebuilding the
// dictionary chain from the nearest scope frame that owns the root
// identifier (Values are immutable, so each level is reconstructed).
func assignPathed(scopes []map[string]value.Value, v variable.Variable, newVal value.Value) error {
	parts := v.Parts()
	for i := len(scopes) - 1; i >= 0; i-- {
		root, ok := scopes[i][parts[0]]
		if !ok {
			continue
		}
		rebuilt, err := withPathValue(root, parts[1:], newVal)
		if err != nil {
			return err
		}
		scopes[i][parts[0]] = rebuilt
		return nil
	}
	return fmt.Errorf("assignment to %q: undefined variable %q", v.String(), parts[0])
}

func withPathValue(container value.Value, path []string, newVal value.Value) (value.Value, error) {
	if len(path) == 0 {
		return newVal, nil
	}
	container = container.Evaluate()
	order, m, ok := container.AsDictionary()
	if !ok {
		return value.Value{}, fmt.Errorf("cannot assign through non-dictionary value")
	}
	child, exists := m[path[0]]
	if !exists {
		child = value.TrueNil
		order = append(order, path[0])
	}
	rebuilt, err := withPathValue(child, path[1:], newVal)
	if err != nil {
		return value.Value{}, err
	}
	m[path[0]] = rebuilt
	return value.Dictionary(order, m), nil
}

// evalCall dispatches a function or method invocation, resolving an
// overload left dynamic at parse time against the arguments' concrete
// runtime kinds.
func (s *Serializer) evalCall(p ast.Parameter, scopes []map[string]value.Value) (value.Value, error) {
	args, err := s.evalCallValues(p.Params, scopes)
	if err != nil {
		return value.Value{}, err
	}

	if p.Operand != nil && p.Operand.IsMethod {
		operandVal, ok := resolveVariable(*p.Operand.Variable, scopes)
		if !ok {
			return value.Value{}, exprError(p.Loc, "undefined variable %q", p.Operand.Variable.String())
		}
		method, sig, err := s.resolveMethod(p, operandVal, args)
		if err != nil {
			return value.Value{}, err
		}
		newOperand, result, err := method.Call(sig, operandVal, args, entities.CallContext{})
		if err != nil {
			return value.Value{}, exprError(p.Loc, "%s", err.Error())
		}
		if method.Mutating() && newOperand != nil {
			assign(scopes, p.Operand.Variable.Ancestor(), *newOperand)
		}
		return result, nil
	}

	fn, sig, err := s.resolveFunction(p, args)
	if err != nil {
		return value.Value{}, err
	}
	result, err := fn.Call(sig, args, s.callContextFor(fn))
	if err != nil {
		return value.Value{}, exprError(p.Loc, "%s", err.Error())
	}
	return result, nil
}

func (s *Serializer) resolveFunction(p ast.Parameter, args ast.CallValues) (entities.Function, int, error) {
	if rc, ok := p.Resolved.(parser.ResolvedCall); ok && rc.Function != nil {
		return rc.Function, rc.Signature, nil
	}
	fns, ok := s.reg.LookupFunction(p.FuncName)
	if !ok {
		return nil, 0, exprError(p.Loc, "unknown function %q", p.FuncName)
	}
	owner, local, sigs := flattenFunctions(fns)
	idx, err := matchRuntimeSignature(sigs, args)
	if err != nil {
		return nil, 0, exprError(p.Loc, "%s", err.Error())
	}
	return owner[idx], local[idx], nil
}

// callContextFor builds the CallContext for an ordinary function call,
// injecting the render's unsafe-objects map only when both the function
// is marked UnsafeEntity and the render's Options granted access.
func (s *Serializer) callContextFor(fn entities.Function) entities.CallContext {
	if fn == nil || !fn.Unsafe() || !s.grantUnsafeAccess {
		return entities.CallContext{}
	}
	return entities.CallContext{UnsafeObjects: s.unsafeObjects, UnsafeAllowed: true}
}

func (s *Serializer) resolveMethod(p ast.Parameter, operand value.Value, args ast.CallValues) (entities.Method, int, error) {
	if rc, ok := p.Resolved.(parser.ResolvedCall); ok && rc.Method != nil {
		return rc.Method, rc.Signature, nil
	}
	ms, ok := s.reg.LookupMethod(p.FuncName)
	if !ok {
		return nil, 0, exprError(p.Loc, "unknown method %q", p.FuncName)
	}
	owner, local, sigs := flattenMethods(ms)
	idx, err := matchRuntimeSignature(sigs, args)
	if err != nil {
		return nil, 0, exprError(p.Loc, "%s", err.Error())
	}
	return owner[idx], local[idx], nil
}

func flattenFunctions(fns []entities.Function) ([]entities.Function, []int, []entities.CallSignature) {
	var owner []entities.Function
	var local []int
	var sigs []entities.CallSignature
	for _, f := range fns {
		for i := range f.Signatures() {
			owner = append(owner, f)
			local = append(local, i)
		}
		sigs = append(sigs, f.Signatures()...)
	}
	return owner, local, sigs
}

func flattenMethods(ms []entities.Method) ([]entities.Method, []int, []entities.CallSignature) {
	var owner []entities.Method
	var local []int
	var sigs []entities.CallSignature
	for _, m := range ms {
		for i := range m.Signatures() {
			owner = append(owner, m)
			local = append(local, i)
		}
		sigs = append(sigs, m.Signatures()...)
	}
	return owner, local, sigs
}

// matchRuntimeSignature re-runs overload selection at serialize time for
// a call left dynamic at parse time, now against the arguments' concrete
// kinds rather than their best-effort static types. A call resolved this
// way skips default-argument backfill: that only runs once, at parse
// time, against the formal parameter list of a single frozen signature,
// which a dynamic (still-ambiguous) call doesn't have.
func matchRuntimeSignature(sigs []entities.CallSignature, args ast.CallValues) (int, error) {
	at := entities.ArgumentTypes{Labeled: map[string]entities.ArgType{}}
	for _, v := range args.Positional {
		at.Positional = append(at.Positional, entities.ArgType{Kind: v.Kind()})
	}
	for k, v := range args.Labeled {
		at.Labeled[k] = entities.ArgType{Kind: v.Kind()}
	}
	for i, sig := range sigs {
		if sig.Matches(at) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no overload matches the given argument types")
}
