package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/pkg/source"
)

func newTestEngine(t *testing.T, name string, data []byte) (*Engine, *source.Memory) {
	t.Helper()
	mem := source.NewMemory("main")
	mem.Set(name, data, time.Now())
	eng, err := New(map[string]Source{"main": mem})
	require.NoError(t, err)
	return eng, mem
}

func TestRenderNestedEcho(t *testing.T) {
	eng, _ := newTestEngine(t, "greeting.tau", []byte("Todo: #(todo.title)"))

	out, err := eng.Render(context.Background(), "main", "greeting.tau", Context{
		"todo": value.Dictionary([]string{"title"}, map[string]value.Value{"title": value.String("Template!")}),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, "Todo: Template!", out)
}

func TestRenderInlineTemplate(t *testing.T) {
	eng, mem := newTestEngine(t, "page.tau", []byte(`#inline("partial.tau")`))
	mem.Set("partial.tau", []byte("hi #(name)"), time.Now())

	out, err := eng.Render(context.Background(), "main", "page.tau", Context{
		"name": value.String("world"),
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, "hi world", out)
}

func TestRenderMissingTemplate(t *testing.T) {
	eng, _ := newTestEngine(t, "page.tau", []byte("x"))
	_, err := eng.Render(context.Background(), "main", "missing.tau", Context{}, Options{})
	require.Error(t, err)
}

func TestRenderCyclicalInlineDetected(t *testing.T) {
	eng, mem := newTestEngine(t, "a.tau", []byte(`#inline("b.tau")`))
	mem.Set("b.tau", []byte(`#inline("a.tau")`), time.Now())

	_, err := eng.Render(context.Background(), "main", "a.tau", Context{}, Options{})
	require.Error(t, err)
}

func TestRenderContextScope(t *testing.T) {
	eng, _ := newTestEngine(t, "api.tau", []byte("#($api.version)"))

	opts := Options{Scopes: map[string]Scope{
		"api": {Values: map[string]value.Value{"version": value.String("v2")}},
	}}
	out, err := eng.Render(context.Background(), "main", "api.tau", Context{}, opts)
	require.NoError(t, err)
	require.Equal(t, "v2", out)
}

func TestRenderScopePreventOverlay(t *testing.T) {
	eng, _ := newTestEngine(t, "api.tau", []byte("#($api.version)"))

	opts := Options{Scopes: map[string]Scope{
		"api": {
			Values: map[string]value.Value{"version": value.String("v2")},
			PreventOverlay: true,
		},
	}}
	vars := Context{
		"api": value.Dictionary([]string{"version"}, map[string]value.Value{"version": value.String("spoofed")}),
	}
	_, err := eng.Render(context.Background(), "main", "api.tau", vars, opts)
	require.Error(t, err, "a caller must not replace a preventOverlay scope entry")
}

func TestRenderScopeLockVariables(t *testing.T) {
	eng, _ := newTestEngine(t, "api.tau", []byte("#($api.version)"))

	opts := Options{Scopes: map[string]Scope{
		"api": {
			Values: map[string]value.Value{"version": value.String("v2")},
			LockVariables: true,
		},
	}}
	vars := Context{
		"api": value.Dictionary([]string{"extra"}, map[string]value.Value{"extra": value.Int(1)}),
	}
	_, err := eng.Render(context.Background(), "main", "api.tau", vars, opts)
	require.Error(t, err, "a locked scope must reject additional variables")
}

func TestRenderParseWarningThrows(t *testing.T) {
	eng, _ := newTestEngine(t, "warn.tau", []byte("cost: #5"))

	out, err := eng.Render(context.Background(), "main", "warn.tau", Context{}, Options{})
	require.NoError(t, err)
	require.Equal(t, "cost: #5", out)

	_, err = eng.Render(context.Background(), "main", "warn.tau", Context{}, Options{ParseWarningThrows: true})
	require.Error(t, err, "a decayed tag mark must abort when parseWarningThrows is set")
}

func TestRenderTouchesCache(t *testing.T) {
	eng, _ := newTestEngine(t, "page.tau", []byte("hello"))

	_, err := eng.Render(context.Background(), "main", "page.tau", Context{}, Options{})
	require.NoError(t, err)

	info, ok := eng.cache.Info(keyFor("main", "page.tau"))
	require.True(t, ok)
	require.NotEmpty(t, info.Generation)
}
