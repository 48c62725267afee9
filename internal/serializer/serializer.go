// Package serializer implements the Serializer: a
// non-recursive, single-threaded stack interpreter that walks a resolved
// AST's scope tables against a dynamic Context, honoring a per-render
// deadline.
//
// The interpreter never recurses on the Go call stack with template
// nesting depth: it threads an explicit frame stack the way a stack VM
// does, so host-stack usage stays flat no matter how deeply blocks nest.
package serializer

import (
	"fmt"
	"time"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/config"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/errtype"
	"github.com/tauleaf/tau/internal/token"
	"github.com/tauleaf/tau/internal/value"
)

// Options configures one render.
type Options struct {
	Timeout time.Duration

	// Unsafe is the set of host-object references published under the
	// "unsafe" context registration mode; GrantUnsafeEntityAccess gates
	// whether an UnsafeEntity function actually receives them, so a host
	// can register unsafe objects without handing every unsafe-marked
	// builtin access to them by default.
	Unsafe map[string]interface{}
	GrantUnsafeEntityAccess bool

	// MissingVariableThrows selects strict-mode lookups: a
	// reference to an undeclared context variable aborts the render
	// unless coalesced with `??`. False decays to trueNil instead.
	MissingVariableThrows bool

	Encoding Encoding
}

// Context is the dynamic variable environment a render starts from.
type Context map[string]value.Value

// InlineLoader lazily fetches a named dependency's raw bytes for a
// #inline(..., as: .raw) / .handler reference not already
// embedded in doc.Inline by the Resolver.
type InlineLoader interface {
	LoadRaw(name string) ([]byte, error)
}

// defineEntry is a registered #define, either an atomic expression or a
// scope table to execute on demand.
type defineEntry struct {
	expr *ast.Parameter
	table int
	isTable bool
}

// sink is one redirectable output destination in the Serializer's
// buffer stack: the root render output, a #raw handler's buffer, or a
// #define/#evaluate() capture buffer.
type sink struct {
	buf []byte
	rb ast.RawBlock
}

func (s *sink) write(p []byte) error {
	if s.rb != nil {
		next, err := s.rb.Append(s.buf, p)
		if err != nil {
			return err
		}
		s.buf = next
		return nil
	}
	s.buf = append(s.buf, p...)
	return nil
}

// frame is one entry of the Serializer's explicit interpreter stack.
type frame struct {
	table int
	idx int

	scope map[string]value.Value // nil for a frame with no bindings of its own

	block ast.Block
	remaining *int

	popSink bool // true if this frame pushed a new sink that must be merged on pop

	// chainHit is set on the frame whose table is being iterated (not
	// the chained block's own pushed frame) once one member of a
	// #if/#elseif/#else run has matched, so the next chained sibling is
	// skipped outright rather than evaluated. It resets to false
	// whenever a block that does not continue a chain (empty
	// ChainAntecedents()) is encountered. Threading the bit through the
	// frame keeps chain state out of the blocks themselves.
	chainHit bool
}

// Serializer executes one resolved AST against a Context.
type Serializer struct {
	reg *entities.Registry
	loader InlineLoader
	deadline time.Time
	ticks int
	encoding Encoding

	unsafeObjects map[string]interface{}
	grantUnsafeAccess bool
	missingVariableThrows bool

	// defines is a flat id->entry map of every #define registered so far
	// ("nearest defines[id]" lookup collapses to simple
	// overwrite since definitions aren't block-scoped relative to each
	// other). Shared by runMeta's statement form and eval's expression
	// form (ast.ParamEvaluate) so `evaluate(id)` works identically
	// whether used as its own tag or nested inside another expression.
	defines map[string]defineEntry
}

// Render serializes doc against ctx.
func Render(doc *ast.AST, reg *entities.Registry, ctx Context, opts Options, loader InlineLoader) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	if timeout < config.MinTimeout {
		timeout = config.MinTimeout
	}
	s := &Serializer{
		reg: reg,
		loader: loader,
		deadline: time.Now().Add(timeout),
		encoding: opts.Encoding,
		unsafeObjects: opts.Unsafe,
		grantUnsafeAccess: opts.GrantUnsafeEntityAccess,
		missingVariableThrows: opts.MissingVariableThrows,
		defines: map[string]defineEntry{},
	}
	out, err := s.run(doc, ctx)
	if err != nil {
		return "", err
	}
	if err := checkEncoding(out, s.encoding); err != nil {
		return "", err
	}
	return out, nil
}

func (s *Serializer) run(doc *ast.AST, ctx Context) (string, error) {
	scopes := []map[string]value.Value{copyContext(ctx), {}}
	sinks := []*sink{{}}
	stack := []frame{{table: doc.Root()}}

	for len(stack) > 0 {
		if err := s.tick(doc.Key.Name); err != nil {
			return "", err
		}

		top := &stack[len(stack)-1]
		table := doc.Tables[top.table]

		if top.idx >= len(table) {
			if top.block != nil {
				done, err := s.reenterBlock(top)
				if err != nil {
					return "", err
				}
				if !done {
					continue
				}
			}
			if top.scope != nil {
				scopes = scopes[:len(scopes)-1]
			}
			if top.popSink {
				if err := s.popSinkInto(&sinks); err != nil {
					return "", err
				}
			}
			stack = stack[:len(stack)-1]
			continue
		}

		node := &table[top.idx]
		top.idx++

		switch node.Kind {
		case ast.SyntaxRaw:
			if err := sinks[len(sinks)-1].write(node.RawBytes); err != nil {
				return "", err
			}
		case ast.SyntaxPassthrough:
			if node.Declare {
				if err := s.evalDeclare(node.Expr.Expr, scopes); err != nil {
					return "", err
				}
				continue
			}
			v, err := s.eval(*node.Expr, scopes)
			if err != nil {
				return "", err
			}
			if v.IsErrored() {
				// Swallowed to trueNil unless strict mode surfaces it.
				if s.missingVariableThrows {
					return "", &errtype.SerializeError{Message: v.Err().Error()}
				}
			} else if node.Print && !isAssignment(node.Expr) {
				str, _ := v.AsString()
				if err := sinks[len(sinks)-1].write([]byte(str)); err != nil {
					return "", err
				}
			}
		case ast.SyntaxBlock:
			if err := s.enterBlock(doc, node, &stack, &scopes); err != nil {
				return "", err
			}
		case ast.SyntaxMeta:
			if err := s.runMeta(doc, node, &stack, scopes, &sinks); err != nil {
				return "", err
			}
		}
	}

	return string(sinks[0].buf), nil
}

func (s *Serializer) tick(templateName string) error {
	s.ticks++
	if s.ticks%config.SerializerTickInterval != 0 {
		return nil
	}
	if time.Now().After(s.deadline) {
		return &errtype.Timeout{Template: templateName}
	}
	return nil
}

// isAssignment reports whether a passthrough expression is an assignment
// statement: it evaluates for its binding side effect and appends nothing.
func isAssignment(p *ast.Parameter) bool {
	return p != nil && p.Kind == ast.ParamExpression && p.Expr != nil && p.Expr.Form == ast.FormAssignment
}

func copyContext(ctx Context) map[string]value.Value {
	out := make(map[string]value.Value, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}

// lookup resolves a variable against the live scope chain, innermost
// first.
func lookup(scopes []map[string]value.Value, name string) (value.Value, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if v, ok := scopes[i][name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// assign writes to the innermost scope already binding name, or
// declares it in the current innermost scope when unbound.
func assign(scopes []map[string]value.Value, name string, v value.Value) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if _, ok := scopes[i][name]; ok {
			scopes[i][name] = v
			return
		}
	}
	scopes[len(scopes)-1][name] = v
}

// enterBlock pushes a new frame for a block's body after calling its
// EvaluateScope, or skips the body entirely when remaining is 0 or a
// preceding chained sibling (e.g. #if) already hit.
func (s *Serializer) enterBlock(doc *ast.AST, node *ast.Syntax, stack *[]frame, scopes *[]map[string]value.Value) error {
	parentIdx := len(*stack) - 1
	antecedents := node.BlockInst.ChainAntecedents()
	if len(antecedents) > 0 {
		if (*stack)[parentIdx].chainHit {
			// A preceding member of this chain already matched: skip
			// this sibling entirely, without evaluating its condition.
			return nil
		}
	} else {
		// Not a continuation of a chain: any prior chain in this table
		// has ended, so the next chained sibling (if any) starts fresh.
		(*stack)[parentIdx].chainHit = false
	}
	args, err := s.evalCallValues(node.Args, *scopes)
	if err != nil {
		return err
	}
	// A fresh instance per scope entry: the cached AST's parse-time
	// instance stays untouched, so concurrent renders never share block
	// iteration state.
	inst := node.BlockInst
	if node.NewBlock != nil {
		fresh, err := node.NewBlock()
		if err != nil {
			return &errtype.SerializeError{Message: err.Error()}
		}
		inst = fresh
	}
	scopeVars := map[string]value.Value{}
	remaining, err := inst.EvaluateScope(args, scopeVars)
	if err != nil {
		return &errtype.SerializeError{Message: err.Error()}
	}
	if remaining != nil && *remaining == 0 {
		return nil
	}
	if inst.ChainHit() {
		(*stack)[parentIdx].chainHit = true
	}
	*stack = append(*stack, frame{
		table: node.ScopeRef,
		scope: scopeVars,
		block: inst,
		remaining: remaining,
	})
	*scopes = append(*scopes, scopeVars)
	return nil
}

// reenterBlock is called when a block's body table is exhausted; it
// decides whether to loop the body again (reporting done=false) or let
// the caller pop the frame (done=true).
func (s *Serializer) reenterBlock(top *frame) (bool, error) {
	if top.remaining != nil {
		*top.remaining--
		if *top.remaining <= 0 {
			return true, nil
		}
	}
	remaining, err := top.block.ReEvaluateScope(top.scope)
	if err != nil {
		return false, &errtype.SerializeError{Message: err.Error()}
	}
	if remaining != nil && *remaining == 0 {
		return true, nil
	}
	top.remaining = remaining
	top.idx = 0
	return false, nil
}

func (s *Serializer) evalCallValues(args *ast.Tuple, scopes []map[string]value.Value) (ast.CallValues, error) {
	if args == nil {
		return ast.CallValues{}, nil
	}
	cv := ast.CallValues{Labeled: map[string]value.Value{}}
	labelOf := make(map[int]string, len(args.Labels))
	for label, idx := range args.Labels {
		labelOf[idx] = label
	}
	for i := range args.Elements {
		v, err := s.eval(args.Elements[i], scopes)
		if err != nil {
			return ast.CallValues{}, err
		}
		if label, ok := labelOf[i]; ok {
			cv.Labeled[label] = v
		} else {
			cv.Positional = append(cv.Positional, v)
		}
	}
	return cv, nil
}

// popSinkInto merges the top sink into its parent and pops it.
func (s *Serializer) popSinkInto(sinks *[]*sink) error {
	n := len(*sinks)
	top := (*sinks)[n-1]
	if top.rb != nil {
		top.buf = top.rb.Close(top.buf)
	}
	*sinks = (*sinks)[:n-1]
	parent := (*sinks)[len(*sinks)-1]
	return parent.write(top.buf)
}

func exprError(loc token.Location, format string, args ...interface{}) error {
	return &errtype.SerializeError{Message: fmt.Sprintf(format, args...), Location: errtype.SourceLocation{Template: loc.Template, Line: loc.Line, Column: loc.Column}}
}
