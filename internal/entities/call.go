package entities

import (
	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/value"
)

// CallContext carries the per-render state a Function/Method body may
// need beyond its arguments: unsafe host-object access, populated only
// when the render granted it.
type CallContext struct {
	UnsafeObjects map[string]interface{}
	UnsafeAllowed bool
}

// Function is a free, name-registered callable.
type Function interface {
	Name() string
	Signatures() []CallSignature
	// Unsafe marks a function that requires grantUnsafeEntityAccess to
	// receive ctx.UnsafeObjects.
	Unsafe() bool
	Call(sig int, args ast.CallValues, ctx CallContext) (value.Value, error)
}

// Method is a name-registered callable bound to an operand. Mutating()
// methods return a new operand value alongside their result rather than
// aliasing the original; non-mutating methods return (nil, result).
type Method interface {
	Name() string
	Mutating() bool
	Signatures() []CallSignature
	Call(sig int, operand value.Value, args ast.CallValues, ctx CallContext) (newOperand *value.Value, result value.Value, err error)
}

// ParseSignature describes one accepted call-shape for a BlockFactory:
// which keywords, unscoped variable bindings and literal tokens it
// expects, block-instantiation rule.
type ParseSignature struct {
	Keywords []string
	VariableSlots int
	Literal bool
}

// BlockFactory instantiates a Block from parsed arguments.
type BlockFactory interface {
	Name() string
	ParseSignatures() []ParseSignature
	New(args *ast.Tuple) (ast.Block, error)
	// ChainAntecedents() lists block names this block may immediately
	// chain after; empty for a non-chaining block.
	ChainAntecedents() []string
}

// RawBlockFactory instantiates a RawBlock handler.
type RawBlockFactory interface {
	Name() string
	New() ast.RawBlock
}

// TypeIdentity names a host-exposed type for registry bookkeeping.
type TypeIdentity struct {
	Name string
	Kind value.Kind
}

// MetaBlockKind names one of the fixed meta-blocks; the Serializer
// implements their semantics directly, but they are still cataloged in
// the registry so name collisions with functions/blocks are caught at
// registration time.
type MetaBlockKind uint8

const (
	MetaBlockDefine MetaBlockKind = iota
	MetaBlockEvaluate
	MetaBlockInline
	MetaBlockRaw
)

type MetaBlockEntry struct {
	Name string
	Kind MetaBlockKind
}
