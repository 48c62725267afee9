package ast

import "time"

// Key identifies a compiled document by its originating Source and
// template name.
type Key struct {
	Source string
	Name string
}

// Info is the metadata record attached to every AST.
type Info struct {
	RequiredASTs map[string]bool
	RequiredRawFiles map[string]bool
	RequiredVars map[string]bool

	MaxScopeDepth int
	UnderestimatedSize int
	ParseTimestamp time.Time

	// ParseWarnings holds non-fatal lex/parse diagnostics (decayed tag
	// marks); a render with parseWarningThrows set refuses to serialize a
	// document carrying any.
	ParseWarnings []string

	// LastPollTimestamp is the last time an auto-updating Resolver asked
	// this entry's Source for its freshness (internal/resolver's
	// CachingAutoUpdate), throttled by a configured polling frequency.
	LastPollTimestamp time.Time

	// TouchFlushedAt is the last time the Cache flushed aggregated touch
	// statistics into this Info, independent of auto-update polling.
	TouchFlushedAt time.Time
	TouchCount int64
	AverageExecTime time.Duration
	AverageSize int64
	Cached bool
	Resolved bool

	// Generation is a uuid stamped once per parse (see internal/cache);
	// it lets two parses of the same Key be told apart even when their
	// aggregated touch stats coincide.
	Generation string
}

// NewInfo() builds a zero-valued Info with its maps initialized.
func NewInfo() *Info {
	return &Info{
		RequiredASTs: map[string]bool{},
		RequiredRawFiles: map[string]bool{},
		RequiredVars: map[string]bool{},
	}
}

// AST is the compiled document: a vector of scope
// tables (the arena), a map of inlined raw buffers, and Info metadata.
//
// Tables are referenced by integer index only, never by direct pointer,
// so splicing in the Resolver is just appending tables and rewriting
// indices by an offset.
type AST struct {
	Key Key
	Tables [][]Syntax
	Inline map[string][]byte // name -> embedded raw bytes
	Info *Info
}

// New builds an empty AST with a single root scope table (table 0).
func New(key Key) *AST {
	return &AST{
		Key: key,
		Tables: [][]Syntax{nil},
		Inline: map[string][]byte{},
		Info: NewInfo(),
	}
}

// NewTable() appends an empty scope table and returns its index.
func (a *AST) NewTable() int {
	a.Tables = append(a.Tables, nil)
	return len(a.Tables) - 1
}

// Root returns the index of the root scope table.
func (a *AST) Root() int { return 0 }

// Append adds a Syntax node to the given table index.
func (a *AST) Append(table int, n Syntax) {
	a.Tables[table] = append(a.Tables[table], n)
}
