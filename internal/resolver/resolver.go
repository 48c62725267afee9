// Package resolver implements the inline-dependency fixpoint resolution:
// fetching, parsing, and splicing in every #inline dependency of a
// template until no unresolved references remain, detecting cycles along
// the way.
//
// Resolution is scope-table splicing: each dependency's compiled Tables
// are appended to the parent AST's arena and its #inline reference is
// rewritten to point at the appended root table. Tables are referenced
// by integer index, never by pointer, so a splice is an append plus an
// offset rewrite.
package resolver

import (
	"context"
	"time"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/cache"
	"github.com/tauleaf/tau/internal/config"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/errtype"
	"github.com/tauleaf/tau/internal/parser"
)

// Source is the minimal template/raw-file fetch capability the Resolver
// needs. pkg/source's providers satisfy this structurally.
type Source interface {
	Name() string
	Read(ctx context.Context, name string) (string, error)
	ReadRaw(ctx context.Context, name string) ([]byte, error)
	Timestamp(ctx context.Context, name string) (time.Time, error)
}

// Resolver fixpoint-resolves a parsed AST's #inline dependencies against
// a Cache and a set of named Sources.
type Resolver struct {
	reg *entities.Registry
	cache *cache.Cache
	sources map[string]Source

	embeddedRawLimit int
}

// New builds a Resolver over the given Registry, Cache and named
// Sources. A #inline dependency is always loaded from the same source
// as the document that references it.
func New(reg *entities.Registry, c *cache.Cache, sources map[string]Source) *Resolver {
	return &Resolver{reg: reg, cache: c, sources: sources, embeddedRawLimit: config.DefaultEmbeddedRawLimit}
}

// SetEmbeddedRawLimit overrides the byte size under which a raw #inline
// dependency is embedded into the cached AST rather than re-fetched per
// render. Configure before the first Load; the limit applies to freshly
// parsed documents.
func (r *Resolver) SetEmbeddedRawLimit(limit int) {
	if limit > 0 {
		r.embeddedRawLimit = limit
	}
}

// SourceNamed returns the Source registered under name, if any.
func (r *Resolver) SourceNamed(name string) (Source, bool) {
	src, ok := r.sources[name]
	return src, ok
}

// Resolve fixpoint-resolves every #inline reference reachable from doc,
// splicing each dependency's compiled tables into doc's arena. chain
// tracks the in-progress name stack for cycle detection. An
// already-resolved document is left untouched. Dependencies load under
// the default caching mode; a render with an explicit mode resolves
// through LoadWithCaching, which threads that mode into every
// dependency load.
func (r *Resolver) Resolve(ctx context.Context, doc *ast.AST) error {
	if doc.Info.Resolved {
		return nil
	}
	return r.resolve(ctx, doc, []string{doc.Key.Name}, CachingDefault, 0)
}

func (r *Resolver) resolve(ctx context.Context, doc *ast.AST, chain []string, caching CachingMode, pollingFrequency time.Duration) error {
	for tableIdx := range doc.Tables {
		for i := range doc.Tables[tableIdx] {
			n := &doc.Tables[tableIdx][i]
			if n.Kind != ast.SyntaxMeta || n.Meta != ast.MetaInline {
				continue
			}
			if n.InlineAs != ast.InlineAsTemplate {
				// .raw and .handler forms are resolved lazily by the
				// Serializer at render time; nothing to splice here.
				continue
			}
			if err := r.inlineOne(ctx, doc, n, chain, caching, pollingFrequency); err != nil {
				return err
			}
		}
	}
	doc.Info.Resolved = true
	return nil
}

// inlineOne splices one template dependency, loading it under the same
// caching mode as the document that references it so a bypass render
// never reads or stores a cached dependency.
func (r *Resolver) inlineOne(ctx context.Context, doc *ast.AST, n *ast.Syntax, chain []string, caching CachingMode, pollingFrequency time.Duration) error {
	for _, seen := range chain {
		if seen == n.InlineName {
			return &errtype.CyclicalReference{Name: n.InlineName, Chain: append(append([]string{}, chain...), n.InlineName)}
		}
	}

	dep, err := r.loadResolved(ctx, doc.Key.Source, n.InlineName, caching, pollingFrequency, chain)
	if err != nil {
		return err
	}

	offset := len(doc.Tables)
	for _, table := range dep.Tables {
		doc.Tables = append(doc.Tables, rewriteTable(table, offset))
	}
	n.DefineScope = offset // root table of the spliced-in dependency
	doc.Info.RequiredASTs[n.InlineName] = true
	for name := range dep.Info.RequiredASTs {
		doc.Info.RequiredASTs[name] = true
	}
	for name := range dep.Info.RequiredRawFiles {
		doc.Info.RequiredRawFiles[name] = true
	}
	for name := range dep.Info.RequiredVars {
		doc.Info.RequiredVars[name] = true
	}
	for name, data := range dep.Inline {
		doc.Inline[name] = data
	}
	return nil
}

// rewriteTable shifts every table-index reference in a spliced-in
// dependency's nodes by offset, since its tables are appended after the
// parent's own arena.
func rewriteTable(table []ast.Syntax, offset int) []ast.Syntax {
	out := make([]ast.Syntax, len(table))
	for i, n := range table {
		if n.ScopeRef != ast.NoScope {
			n.ScopeRef += offset
		}
		if n.Meta == ast.MetaDefine && n.DefineScope != ast.NoScope {
			n.DefineScope += offset
		}
		out[i] = n
	}
	return out
}

// Load fetches, parses (or retrieves from Cache), resolves, and returns
// the AST for name from the named source under the default caching mode
// (read-and-store, no revalidation).
func (r *Resolver) Load(ctx context.Context, sourceName, name string) (*ast.AST, error) {
	return r.loadResolved(ctx, sourceName, name, CachingDefault, 0, nil)
}

// LoadWithCaching is Load under an explicit CachingMode and auto-update
// polling frequency, for a host's top-level Render request. A
// pollingFrequency of zero uses config.DefaultPollingFrequency.
func (r *Resolver) LoadWithCaching(ctx context.Context, sourceName, name string, caching CachingMode, pollingFrequency time.Duration) (*ast.AST, error) {
	return r.loadResolved(ctx, sourceName, name, caching, pollingFrequency, nil)
}

// loadResolved serves a cache hit or parses-and-resolves a fresh
// document, storing it only once fully resolved so other readers never
// observe a document mid-splice. chain carries the in-progress inline
// stack when the load happens on behalf of a parent's resolution.
func (r *Resolver) loadResolved(ctx context.Context, sourceName, name string, caching CachingMode, pollingFrequency time.Duration, chain []string) (*ast.AST, error) {
	caching = caching.normalize()
	key := ast.Key{Source: sourceName, Name: name}

	bypass := caching&CachingBypass != 0
	allowRead := !bypass && caching&CachingRead != 0
	allowStore := !bypass && caching&CachingStore != 0

	if allowRead {
		if doc, ok := r.cache.Retrieve(key); ok {
			if caching&CachingAutoUpdate == 0 {
				return doc, nil
			}
			stale, err := r.isStale(ctx, sourceName, name, doc, pollingFrequency)
			if err != nil {
				return nil, err
			}
			if !stale {
				return doc, nil
			}
		}
	}

	src, ok := r.sources[sourceName]
	if !ok {
		if len(r.sources) == 0 {
			return nil, &errtype.NoSources{}
		}
		return nil, &errtype.NoSourceForKey{Source: sourceName}
	}
	text, err := src.Read(ctx, name)
	if err != nil {
		return nil, &errtype.NoTemplateExists{Name: name}
	}

	doc, err := parser.Parse(r.reg, text, name)
	if err != nil {
		return nil, err
	}
	doc.Key = key
	r.embedRawFiles(ctx, src, doc)
	if err := r.resolve(ctx, doc, append(append([]string{}, chain...), name), caching, pollingFrequency); err != nil {
		return nil, err
	}
	if allowStore {
		r.cache.Insert(doc)
	} else {
		doc.Info.ParseTimestamp = time.Now()
	}
	return doc, nil
}

// isStale reports whether a cached entry's Source has a newer
// Timestamp than the entry's ParseTimestamp, polling no more often
// than pollingFrequency per entry.
func (r *Resolver) isStale(ctx context.Context, sourceName, name string, doc *ast.AST, pollingFrequency time.Duration) (bool, error) {
	if pollingFrequency <= 0 {
		pollingFrequency = config.DefaultPollingFrequency
	}
	if !doc.Info.LastPollTimestamp.IsZero() && time.Since(doc.Info.LastPollTimestamp) < pollingFrequency {
		return false, nil
	}
	src, ok := r.sources[sourceName]
	if !ok {
		return false, nil
	}
	ts, err := src.Timestamp(ctx, name)
	if err != nil {
		return false, nil
	}
	r.cache.MarkPolled(doc.Key)
	return ts.After(doc.Info.ParseTimestamp), nil
}

// embedRawFiles pre-loads the target of every #inline(..., as: .raw) /
// .handler reference smaller than r.embeddedRawLimit directly into the
// AST's Inline map, the small-file embedding rule.
func (r *Resolver) embedRawFiles(ctx context.Context, src Source, doc *ast.AST) {
	for _, table := range doc.Tables {
		for _, n := range table {
			if n.Kind != ast.SyntaxMeta || n.Meta != ast.MetaInline {
				continue
			}
			if n.InlineAs != ast.InlineAsRaw && n.InlineAs != ast.InlineAsHandler {
				continue
			}
			data, err := src.ReadRaw(ctx, n.InlineName)
			if err != nil || len(data) >= r.embeddedRawLimit {
				continue
			}
			doc.Inline[n.InlineName] = data
			doc.Info.RequiredRawFiles[n.InlineName] = true
		}
	}
}
