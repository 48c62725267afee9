package resolver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/cache"
	"github.com/tauleaf/tau/internal/entities"
)

type memSource struct {
	name string
	files map[string][]byte
	stamps map[string]time.Time
}

func newMemSource(name string) *memSource {
	return &memSource{name: name, files: map[string][]byte{}, stamps: map[string]time.Time{}}
}

func (m *memSource) Name() string { return m.name }

func (m *memSource) set(name, data string) {
	m.files[name] = []byte(data)
	m.stamps[name] = time.Now()
}

func (m *memSource) Read(ctx context.Context, name string) (string, error) {
	b, ok := m.files[name]
	if !ok {
		return "", errNotFound(name)
	}
	return string(b), nil
}

func (m *memSource) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	b, ok := m.files[name]
	if !ok {
		return nil, errNotFound(name)
	}
	return b, nil
}

func (m *memSource) Timestamp(ctx context.Context, name string) (time.Time, error) {
	ts, ok := m.stamps[name]
	if !ok {
		return time.Time{}, errNotFound(name)
	}
	return ts, nil
}

type notFoundErr struct{ name string }

func (e notFoundErr) Error() string { return "not found: " + e.name }
func errNotFound(name string) error { return notFoundErr{name} }

func newTestResolver(t *testing.T, src *memSource) *Resolver {
	t.Helper()
	reg := entities.New()
	if err := entities.RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	reg.Start()
	c := cache.New()
	return New(reg, c, map[string]Source{"main": src})
}

func TestResolveSplicesInlineTemplate(t *testing.T) {
	src := newMemSource("main")
	src.set("page.tau", `#inline("partial.tau")`)
	src.set("partial.tau", "hi #(name)")

	r := newTestResolver(t, src)
	doc, err := r.Load(context.Background(), "main", "page.tau")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Resolve(context.Background(), doc); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(doc.Tables) < 2 {
		t.Fatalf("expected partial's table to be spliced in, got %d tables", len(doc.Tables))
	}
	if !doc.Info.Resolved {
		t.Fatal("expected Info.Resolved to be set")
	}
	if !doc.Info.RequiredASTs["partial.tau"] {
		t.Fatal("expected partial.tau recorded as a required AST")
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	src := newMemSource("main")
	src.set("a.tau", `#inline("b.tau")`)
	src.set("b.tau", `#inline("c.tau")`)
	src.set("c.tau", `#inline("a.tau")`)

	r := newTestResolver(t, src)
	if _, err := r.Load(context.Background(), "main", "a.tau"); err == nil {
		t.Fatal("expected cyclical reference error")
	}
}

func TestLoadMissingTemplateIsNoTemplateExists(t *testing.T) {
	src := newMemSource("main")
	r := newTestResolver(t, src)
	if _, err := r.Load(context.Background(), "main", "missing.tau"); err == nil {
		t.Fatal("expected an error for a missing template")
	}
}

func TestLoadUnknownSourceName(t *testing.T) {
	src := newMemSource("main")
	src.set("a.tau", "hi")
	r := newTestResolver(t, src)
	if _, err := r.Load(context.Background(), "other", "a.tau"); err == nil {
		t.Fatal("expected an error for an unregistered source name")
	}
}

func TestLoadWithCachingBypassNeverStores(t *testing.T) {
	src := newMemSource("main")
	src.set("a.tau", "hi")
	r := newTestResolver(t, src)

	if _, err := r.LoadWithCaching(context.Background(), "main", "a.tau", CachingBypass, 0); err != nil {
		t.Fatalf("LoadWithCaching: %v", err)
	}
	if _, ok := r.cache.Retrieve(ast.Key{Source: "main", Name: "a.tau"}); ok {
		t.Fatal("expected CachingBypass to never populate the cache")
	}
}

func tablesContainRaw(doc *ast.AST, want string) bool {
	for _, table := range doc.Tables {
		for _, n := range table {
			if n.Kind == ast.SyntaxRaw && strings.Contains(string(n.RawBytes), want) {
				return true
			}
		}
	}
	return false
}

func TestLoadWithCachingBypassRefreshesDependencies(t *testing.T) {
	src := newMemSource("main")
	src.set("page.tau", `#inline("dep.tau")`)
	src.set("dep.tau", "v1")
	r := newTestResolver(t, src)

	// a default load caches both the page and its dependency.
	if _, err := r.LoadWithCaching(context.Background(), "main", "page.tau", CachingDefault, 0); err != nil {
		t.Fatalf("first load: %v", err)
	}

	src.set("dep.tau", "v2")

	doc, err := r.LoadWithCaching(context.Background(), "main", "page.tau", CachingBypass, 0)
	if err != nil {
		t.Fatalf("bypass load: %v", err)
	}
	if !tablesContainRaw(doc, "v2") || tablesContainRaw(doc, "v1") {
		t.Fatal("a bypass render must re-parse inlined dependencies, not serve the cached splice")
	}
}

func TestLoadWithCachingReadsThroughSecondTime(t *testing.T) {
	src := newMemSource("main")
	src.set("a.tau", "hi")
	r := newTestResolver(t, src)

	doc1, err := r.LoadWithCaching(context.Background(), "main", "a.tau", CachingDefault, 0)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	doc2, err := r.LoadWithCaching(context.Background(), "main", "a.tau", CachingDefault, 0)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if doc1.Info.Generation != doc2.Info.Generation {
		t.Fatal("expected second load to be served from cache (same Generation)")
	}
}
