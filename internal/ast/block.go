package ast

import "github.com/tauleaf/tau/internal/value"

// CallValues is the evaluated argument set passed to a Block's
// EvaluateScope.
type CallValues struct {
	Positional []value.Value
	Labeled map[string]value.Value
}

// Get resolves a formal parameter by label, falling back to a positional
// slot when unlabeled.
func (c CallValues) Get(label string, positionalIndex int) (value.Value, bool) {
	if v, ok := c.Labeled[label]; ok {
		return v, true
	}
	if positionalIndex >= 0 && positionalIndex < len(c.Positional) {
		return c.Positional[positionalIndex], true
	}
	return value.Value{}, false
}

// Block is the capability set a block tag satisfies: models
// chained blocks "as a tagged variant with a previous-hit bit threaded
// through scope frames, not as virtual dispatch" — Block is that minimal
// protocol, not a type hierarchy.
//
// EvaluateScope is called the first time a scope frame for this block is
// entered; it returns the number of iterations the body should run (nil
// = indefinite, consulted again via ReEvaluateScope; 0 = discard the
// scope entirely). scopeVars receives bindings the block wants visible
// to its body (e.g. a #for loop's element variable).
//
// ReEvaluateScope is called on subsequent passes through the body for
// blocks that report a finite, already-known remaining count.
type Block interface {
	Name() string
	EvaluateScope(params CallValues, scopeVars map[string]value.Value) (remaining *int, err error)
	ReEvaluateScope(scopeVars map[string]value.Value) (remaining *int, err error)
	// ChainAntecedents() lists the block names this block may immediately
	// follow (e.g. "elseif"/"else" declare "if"/"elseif"); empty for a
	// block with no chaining relationship.
	ChainAntecedents() []string
	// ChainHit() reports whether the most recent EvaluateScope call
	// matched (its scope was entered) in a way that should suppress any
	// chained sibling that follows it (e.g. an #if whose condition was
	// true suppresses its #elseif/#else). Valid only after
	// EvaluateScope has run at least once; a block with no chaining
	// relationship may always return false.
	ChainHit() bool
}

// RawBlock is a pluggable output buffer with its own encoding/append
// semantics, opened by the `raw` meta-block.
type RawBlock interface {
	Name() string
	Append(buf []byte, data []byte) ([]byte, error)
	Close(buf []byte) []byte
}
