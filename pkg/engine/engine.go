// Package engine assembles the Value/Variable/Lexer/Parser/Cache/
// Resolver/Serializer subsystems into the single Renderer façade a host
// actually calls as its external interface.
//
// A render is a fixed sequence of stages — cache lookup or parse,
// dependency resolution, serialization, touch write-back — run fresh per
// call against the long-lived Registry, Cache and Source set an Engine
// owns.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/cache"
	"github.com/tauleaf/tau/internal/entities"
	"github.com/tauleaf/tau/internal/errtype"
	"github.com/tauleaf/tau/internal/lexer"
	"github.com/tauleaf/tau/internal/resolver"
	"github.com/tauleaf/tau/internal/serializer"
	"github.com/tauleaf/tau/internal/value"
)

func keyFor(sourceName, name string) ast.Key {
	return ast.Key{Source: sourceName, Name: name}
}

// SetTagIndicator reconfigures the template tag mark (default '#'). It
// must be called before the first Engine is constructed; afterwards the
// knob is latched and calls are no-ops.
func SetTagIndicator(r rune) { lexer.SetTagIndicator(r) }

// Context is the dynamic variable environment passed to Render.
type Context = serializer.Context

// Caching re-exports resolver.CachingMode so a host never needs to
// import internal/resolver directly for the caching bitset.
type Caching = resolver.CachingMode

const (
	CachingRead = resolver.CachingRead
	CachingStore = resolver.CachingStore
	CachingAutoUpdate = resolver.CachingAutoUpdate
	CachingBypass = resolver.CachingBypass
	CachingDefault = resolver.CachingDefault
)

// Options configures one render. A zero Options uses config defaults
// throughout: no timeout override, no Unsafe access, default
// (read-and-store, non-revalidating) caching.
type Options struct {
	Timeout time.Duration
	Unsafe map[string]interface{}

	// GrantUnsafeEntityAccess gates whether an UnsafeEntity function
	// actually receives Unsafe.
	GrantUnsafeEntityAccess bool

	// MissingVariableThrows selects strict-mode variable lookups: an
	// undeclared (and non-coalesced) context variable aborts the render
	// rather than decaying to trueNil.
	MissingVariableThrows bool

	// Encoding validates the render's output against a codec; the zero
	// value is UTF-8 (every code point allowed).
	Encoding Encoding

	// Caching selects whether this render may read/store/revalidate
	// against the Cache. Zero behaves as CachingDefault.
	Caching Caching

	// PollingFrequency throttles CachingAutoUpdate's Source.Timestamp
	// checks. Zero uses config.DefaultPollingFrequency.
	PollingFrequency time.Duration

	// ParseWarningThrows refuses to serialize a document that parsed with
	// non-fatal diagnostics (e.g. a tag mark that decayed into raw
	// output).
	ParseWarningThrows bool

	// Scopes publishes registered variable scopes ($name roots) into the
	// render context, each with its own overlay/locking policy.
	Scopes map[string]Scope
}

// Scope is one registered context scope: a set of named values published
// under a `$name` root, with the registration-mode policies applied when
// the caller's own Context also carries that root.
type Scope struct {
	Values map[string]value.Value

	// Literal marks every entry fixed for the engine's lifetime, making
	// them safe to treat as constants.
	Literal bool

	// PreventOverlay blocks the caller's Context from replacing or
	// overlaying any registered entry; caller entries for new names are
	// still merged in unless LockVariables is also set.
	PreventOverlay bool

	// LockVariables forbids the caller's Context from adding variables
	// to this scope beyond the registered set.
	LockVariables bool
}

// Encoding re-exports serializer.Encoding.
type Encoding = serializer.Encoding

const (
	EncodingUTF8 = serializer.EncodingUTF8
	EncodingASCII = serializer.EncodingASCII
	EncodingISO8859_1 = serializer.EncodingISO8859_1
)

func (o Options) serializerOptions() serializer.Options {
	return serializer.Options{
		Timeout: o.Timeout,
		Unsafe: o.Unsafe,
		GrantUnsafeEntityAccess: o.GrantUnsafeEntityAccess,
		MissingVariableThrows: o.MissingVariableThrows,
		Encoding: o.Encoding,
	}
}

// Source is the template/raw-file fetch capability a host registers
// under a name. pkg/source's providers satisfy this structurally.
type Source = resolver.Source

// Engine owns the long-lived Registry and Cache shared across renders,
// plus the named Sources templates are fetched from.
type Engine struct {
	reg *entities.Registry
	cache *cache.Cache
	resolver *resolver.Resolver
}

// New builds an Engine with the built-in entities registered and
// latched (RuntimeGuard: no Register* call succeeds on reg
// after this point). sources maps a source name (the key Render's
// sourceName references) to its provider; an #inline dependency is
// loaded from the same source as the document that references it.
func New(sources map[string]Source) (*Engine, error) {
	reg := entities.New()
	if err := entities.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	reg.Start()
	lexer.Latch()

	c := cache.New()
	r := resolver.New(reg, c, sources)
	return &Engine{reg: reg, cache: c, resolver: r}, nil
}

// SetTouchSink installs a durable cache.TouchSink (e.g.
// internal/telemetry.SQLiteSink) receiving every touch-statistic flush.
func (e *Engine) SetTouchSink(sink cache.TouchSink) {
	e.cache.SetSink(sink)
}

// SetEmbeddedRawLimit overrides the byte size under which a raw #inline
// dependency is embedded into the cached AST rather than re-fetched per
// render. Configure before the first Render.
func (e *Engine) SetEmbeddedRawLimit(limit int) {
	e.resolver.SetEmbeddedRawLimit(limit)
}

// Registry() exposes the Engine's entity catalog so a host can inspect
// registered names, but not mutate it: Register* calls on an already
// latched Registry() are rejected.
func (e *Engine) Registry() *entities.Registry { return e.reg }

// Render loads name from the Source registered under sourceName,
// fixpoint-resolves its #inline dependencies, and serializes it against
// vars. The render's wall-clock execution time and output size are
// recorded against the Cache's touch statistics.
func (e *Engine) Render(ctx context.Context, sourceName, name string, vars Context, opts Options) (string, error) {
	start := time.Now()
	doc, err := e.resolver.LoadWithCaching(ctx, sourceName, name, opts.Caching, opts.PollingFrequency)
	if err != nil {
		return "", err
	}
	if opts.ParseWarningThrows && len(doc.Info.ParseWarnings) > 0 {
		return "", &errtype.ParseError{Message: doc.Info.ParseWarnings[0]}
	}
	if !doc.Info.Resolved {
		if err := e.resolver.Resolve(ctx, doc); err != nil {
			return "", err
		}
	}

	merged, err := applyScopes(vars, opts.Scopes)
	if err != nil {
		return "", err
	}

	out, err := serializer.Render(doc, e.reg, merged, opts.serializerOptions(), &sourceLoader{ctx: ctx, resolver: e.resolver, sourceName: doc.Key.Source})
	e.cache.Touch(doc.Key, time.Since(start), len(out))
	if err != nil {
		return "", err
	}
	return out, nil
}

// Invalidate evicts a cached template so the next Render reparses it,
// for hosts driving their own change notifications rather than relying
// on a Source's polling-based auto-update.
func (e *Engine) Invalidate(sourceName, name string) {
	e.cache.Remove(keyFor(sourceName, name))
}

// applyScopes merges the registered Scopes into the caller's Context,
// enforcing each scope's overlay and lock policies. The caller's map is
// never mutated; a render works on its own copy.
func applyScopes(vars Context, scopes map[string]Scope) (Context, error) {
	if len(scopes) == 0 {
		return vars, nil
	}
	merged := make(Context, len(vars)+len(scopes))
	for k, v := range vars {
		merged[k] = v
	}
	for name, sc := range scopes {
		entries := make(map[string]value.Value, len(sc.Values))
		order := make([]string, 0, len(sc.Values))
		for k, v := range sc.Values {
			entries[k] = v
			order = append(order, k)
		}
		if caller, present := merged[name]; present {
			callerOrder, callerEntries, ok := caller.AsDictionary()
			if !ok {
				return nil, &errtype.SerializeError{Message: fmt.Sprintf("context scope %q must be a dictionary", name)}
			}
			for _, k := range callerOrder {
				_, registered := entries[k]
				if registered && sc.PreventOverlay {
					return nil, &errtype.SerializeError{Message: fmt.Sprintf("context scope %q prevents overlaying %q", name, k)}
				}
				if !registered {
					if sc.LockVariables {
						return nil, &errtype.SerializeError{Message: fmt.Sprintf("context scope %q is locked; cannot add %q", name, k)}
					}
					order = append(order, k)
				}
				entries[k] = callerEntries[k]
			}
		}
		merged[name] = value.Dictionary(order, entries)
	}
	return merged, nil
}

// sourceLoader adapts a single render's originating Source into the
// serializer.InlineLoader a Serializer needs for lazily fetched
// #inline(..., as: .raw)/.handler references not already embedded by
// the Resolver.
type sourceLoader struct {
	ctx context.Context
	resolver *resolver.Resolver
	sourceName string
}

func (l *sourceLoader) LoadRaw(name string) ([]byte, error) {
	src, ok := l.resolver.SourceNamed(l.sourceName)
	if !ok {
		return nil, &errtype.MissingRaw{Name: name}
	}
	data, err := src.ReadRaw(l.ctx, name)
	if err != nil {
		return nil, &errtype.MissingRaw{Name: name}
	}
	return data, nil
}
