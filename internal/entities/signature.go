// Package entities implements the process-wide registry of callables:
// functions, methods, block factories, raw-block
// factories, type identities and meta-blocks, plus the call-signature
// resolution machinery the Parser consults for overload selection.
//
// The registry is a start-then-freeze catalog: mutable while the host
// assembles it, latched before the first render, and read afterwards
// under a shared read lock (lookups are not lock-free).
package entities

import "github.com/tauleaf/tau/internal/value"

// CallSignature is one overload of a Function or Method.
type CallSignature struct {
	// Labels holds one entry per formal parameter, in declared order;
	// "" marks a positional (unlabeled) parameter. Labeled parameters
	// must form a contiguous suffix.
	Labels []string
	// Types holds the expected Kind per parameter; Any (AnyKind) matches
	// every BaseType(), including an untypable Parameter.
	Types []value.Kind
	// HasDefault marks which parameters back-fill from Default when the
	// caller omits them.
	HasDefault []bool
	Default []value.Value
}

// AnyKind is the wildcard signature-position type: "possibly any"
// treatment of an untypable Parameter.
const AnyKind value.Kind = 255

// Arity() is the number of formal parameters.
func (s CallSignature) Arity() int { return len(s.Labels) }

// LabelIndex returns the formal position of a label, or -1.
func (s CallSignature) LabelIndex(label string) int {
	for i, l := range s.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// ArgumentTypes is one candidate call site's (positional ++ labeled)
// argument shape, as seen by overload resolution.
type ArgumentTypes struct {
	Positional []ArgType
	Labeled map[string]ArgType
}

// ArgType is a single argument's best-effort static type.
type ArgType struct {
	Kind value.Kind
	Any bool // true when the Parameter's type could not be determined
}

// Matches reports whether args satisfies signature sig: labels must
// appear as a contiguous suffix of sig's labels and form a subset, and
// every formal parameter must either receive a compatible argument or
// have a default.
func (sig CallSignature) Matches(args ArgumentTypes) bool {
	if len(args.Positional) > sig.Arity() {
		return false
	}
	filled := make([]bool, sig.Arity())
	for i, at := range args.Positional {
		if sig.HasDefault != nil && i < len(sig.HasDefault) {
			// positional slot exists; fall through to type check below
		}
		if !typeCompatible(at, sig.Types[i]) {
			return false
		}
		filled[i] = true
	}
	for label, at := range args.Labeled {
		idx := sig.LabelIndex(label)
		if idx < 0 || idx < len(args.Positional) {
			return false
		}
		if !typeCompatible(at, sig.Types[idx]) {
			return false
		}
		filled[idx] = true
	}
	for i, ok := range filled {
		if !ok && !sig.HasDefault[i] {
			return false
		}
	}
	return true
}

func typeCompatible(at ArgType, want value.Kind) bool {
	if want == AnyKind || at.Any {
		return true
	}
	return at.Kind == want
}

// Confusable reports whether two signatures of the same name-bucket are
// confusable: for every position their type sets
// intersect, their labels are compatible, and one signature's formal
// list is a prefix of the other's considering defaults.
func Confusable(a, b CallSignature) bool {
	n := a.Arity()
	if b.Arity() < n {
		n = b.Arity()
	}
	for i := 0; i < n; i++ {
		if a.Labels[i] != "" && b.Labels[i] != "" && a.Labels[i] != b.Labels[i] {
			return false
		}
		if a.Types[i] != AnyKind && b.Types[i] != AnyKind && a.Types[i] != b.Types[i] {
			return false
		}
	}
	longer := a
	if b.Arity() > a.Arity() {
		longer = b
	}
	for i := n; i < longer.Arity(); i++ {
		if !longer.HasDefault[i] {
			return false
		}
	}
	return true
}
