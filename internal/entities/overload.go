package entities

import (
	"fmt"
	"strings"

	"github.com/tauleaf/tau/internal/ast"
)

// ResolveResult is the outcome of matching a call site against an
// overload set.
type ResolveResult struct {
	// Index is the matching signature's position within its owning
	// Function/Method's Signatures(), valid only when exactly one
	// candidate matched (Dynamic is false).
	Index int
	// Dynamic is true when more than one candidate matched; resolution
	// is deferred to serialize time.
	Dynamic bool
}

// argumentTypesOf derives an ArgumentTypes from a parsed call tuple,
// treating an untypable Parameter as "possibly any".
func argumentTypesOf(tuple *ast.Tuple) ArgumentTypes {
	at := ArgumentTypes{Labeled: map[string]ArgType{}}
	labelOf := make(map[int]string, len(tuple.Labels))
	for label, idx := range tuple.Labels {
		labelOf[idx] = label
	}
	for i := range tuple.Elements {
		p := &tuple.Elements[i]
		kind, ok := p.BaseType()
		arg := ArgType{Kind: kind, Any: !ok}
		if label, labeled := labelOf[i]; labeled {
			at.Labeled[label] = arg
		} else {
			at.Positional = append(at.Positional, arg)
		}
	}
	return at
}

// resolveOverload implements the selection rule: on exactly one match,
// freeze to that signature; on multiple matches, leave dynamic; on zero
// matches, fail citing candidates.
func resolveOverload(name string, sigs []CallSignature, tuple *ast.Tuple) (ResolveResult, error) {
	at := argumentTypesOf(tuple)
	var matches []int
	for i, sig := range sigs {
		if sig.Matches(at) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return ResolveResult{}, fmt.Errorf("no overload of %q matches the given arguments; candidates: %s", name, describeSignatures(sigs))
	case 1:
		return ResolveResult{Index: matches[0]}, nil
	default:
		return ResolveResult{Dynamic: true}, nil
	}
}

func describeSignatures(sigs []CallSignature) string {
	parts := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		labels := make([]string, 0, sig.Arity())
		for i, k := range sig.Types {
			label := sig.Labels[i]
			if label == "" {
				labels = append(labels, k.String())
			} else {
				labels = append(labels, label+": "+k.String())
			}
		}
		parts = append(parts, "("+strings.Join(labels, ", ")+")")
	}
	return strings.Join(parts, "; ")
}

// ValidateFunction resolves a function-form call at parse time, the
// validateFunction entry point.
func (r *Registry) ValidateFunction(name string, tuple *ast.Tuple) (Function, ResolveResult, error) {
	fns, ok := r.LookupFunction(name)
	if !ok {
		return nil, ResolveResult{}, fmt.Errorf("unknown function %q", name)
	}
	var sigs []CallSignature
	var owner []Function
	var local []int
	for _, f := range fns {
		for i := range f.Signatures() {
			owner = append(owner, f)
			local = append(local, i)
		}
		sigs = append(sigs, f.Signatures()...)
	}
	res, err := resolveOverload(name, sigs, tuple)
	if err != nil {
		return nil, ResolveResult{}, err
	}
	if res.Dynamic {
		return nil, res, nil
	}
	flat := res.Index
	res.Index = local[flat]
	return owner[flat], res, nil
}

// ValidateMethod resolves a method-form call at parse time.
func (r *Registry) ValidateMethod(name string, tuple *ast.Tuple) (Method, ResolveResult, error) {
	ms, ok := r.LookupMethod(name)
	if !ok {
		return nil, ResolveResult{}, fmt.Errorf("unknown method %q", name)
	}
	var sigs []CallSignature
	var owner []Method
	var local []int
	for _, m := range ms {
		for i := range m.Signatures() {
			owner = append(owner, m)
			local = append(local, i)
		}
		sigs = append(sigs, m.Signatures()...)
	}
	res, err := resolveOverload(name, sigs, tuple)
	if err != nil {
		return nil, ResolveResult{}, err
	}
	if res.Dynamic {
		return nil, res, nil
	}
	flat := res.Index
	res.Index = local[flat]
	return owner[flat], res, nil
}

// ValidateTupleCall back-fills default values for any formal parameter a
// caller omitted, returning a new Tuple with one element per formal
// parameter.
func ValidateTupleCall(tuple *ast.Tuple, sig CallSignature) (*ast.Tuple, error) {
	out := ast.NewTuple()
	labelOf := make(map[int]string, len(tuple.Labels))
	for label, idx := range tuple.Labels {
		labelOf[idx] = label
	}
	filled := make([]ast.Parameter, sig.Arity())
	have := make([]bool, sig.Arity())
	pos := 0
	for i := range tuple.Elements {
		p := tuple.Elements[i]
		if label, labeled := labelOf[i]; labeled {
			idx := sig.LabelIndex(label)
			if idx < 0 {
				return nil, fmt.Errorf("unknown label %q in call", label)
			}
			filled[idx] = p
			have[idx] = true
			continue
		}
		if pos >= sig.Arity() {
			return nil, fmt.Errorf("too many positional arguments")
		}
		filled[pos] = p
		have[pos] = true
		pos++
	}
	for i := range filled {
		if !have[i] {
			if !sig.HasDefault[i] {
				return nil, fmt.Errorf("missing required argument at position %d", i)
			}
			filled[i] = ast.Parameter{Kind: ast.ParamValue, Value: sig.Default[i]}
		}
		if sig.Labels[i] != "" {
			out.AppendLabeled(sig.Labels[i], filled[i])
		} else {
			out.Append(filled[i])
		}
	}
	return out, nil
}
