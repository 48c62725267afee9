// Package errtype defines the typed error categories surfaced to hosts.
// Each category is a distinct struct so callers can errors.As into the
// one they care about instead of string-matching.
package errtype

import "fmt"

// SourceLocation pinpoints an error to a template name, line and column.
type SourceLocation struct {
	Template string
	Line int
	Column int
}

func (l SourceLocation) String() string {
	if l.Template == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.Template, l.Line, l.Column)
}

// NoTemplateExists is returned by a Source when a named template cannot
// be found.
type NoTemplateExists struct {
	Name string
}

func (e *NoTemplateExists) Error() string {
	return fmt.Sprintf("no template exists: %s", e.Name)
}

// IllegalAccess is returned by a Source when a requested path violates a
// provider's sandbox or visibility policy.
type IllegalAccess struct {
	Path string
	Limitation string
}

func (e *IllegalAccess) Error() string {
	return fmt.Sprintf("illegal access to %q: %s", e.Path, e.Limitation)
}

// ParseError carries a message and a source location produced by the
// Lexer or Parser.
type ParseError struct {
	Message string
	Location SourceLocation
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
}

// CyclicalReference is raised by the Resolver when an inline chain
// revisits a template already in progress.
type CyclicalReference struct {
	Name string
	Chain []string
}

func (e *CyclicalReference) Error() string {
	return fmt.Sprintf("cyclical reference to %q via chain %v", e.Name, e.Chain)
}

// MissingRaw is raised by the Resolver when an inlined raw file cannot be
// fetched through the Source.
type MissingRaw struct {
	Name string
}

func (e *MissingRaw) Error() string {
	return fmt.Sprintf("missing raw file: %s", e.Name)
}

// SerializeError wraps a failure encountered while executing a resolved
// AST against a Context.
type SerializeError struct {
	Message string
	Location SourceLocation
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("serialize error at %s: %s", e.Location, e.Message)
}

// Timeout is returned when a render exceeds its configured deadline.
type Timeout struct {
	Template string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("render of %q timed out", e.Template)
}

// NoSources is returned by the Renderer façade when it was constructed
// without any Source.
type NoSources struct{}

func (e *NoSources) Error() string { return "no sources configured" }

// NoSourceForKey is returned when a named source does not match any
// configured Source.
type NoSourceForKey struct {
	Source string
}

func (e *NoSourceForKey) Error() string {
	return fmt.Sprintf("no source registered for key %q", e.Source)
}

// SourceError wraps an I/O failure from a Source provider that is
// neither a missing template nor a sandbox violation (a permissions
// error, a manifest parse failure, a transient read error).
type SourceError struct {
	Name string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error for %q: %s", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// UnknownError wraps a failure that fits no other category.
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown error: %s", e.Err)
}

func (e *UnknownError) Unwrap() error { return e.Err }

// EncodingError is returned when a render's output contains a code
// point the requested Options.Encoding codec cannot represent.
type EncodingError struct {
	Encoding string
	Rune rune
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("output contains %q, not representable in encoding %s", e.Rune, e.Encoding)
}
