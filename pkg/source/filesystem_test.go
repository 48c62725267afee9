package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFileSystemReadWithinSandbox(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.tau", "Todo: #(todo.title)")

	fs, err := NewFileSystem("main", dir, ".tau")
	require.NoError(t, err)

	got, err := fs.Read(context.Background(), "page.tau")
	require.NoError(t, err)
	require.Equal(t, "Todo: #(todo.title)", got)
}

func TestFileSystemRejectsEscapeAboveSandbox(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "templates")
	writeFile(t, sub, "page.tau", "in")
	writeFile(t, dir, "secret.tau", "out")

	fs, err := NewFileSystem("main", sub, ".tau")
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "../secret.tau")
	require.Error(t, err)
}

func TestFileSystemRejectsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".hidden.tau", "nope")

	fs, err := NewFileSystem("main", dir, ".tau")
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), ".hidden.tau")
	require.Error(t, err)
}

func TestFileSystemRejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.txt", "nope")

	fs, err := NewFileSystem("main", dir, ".tau")
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "page.txt")
	require.Error(t, err)
}

func TestFileSystemMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSystem("main", dir)
	require.NoError(t, err)

	_, err = fs.Read(context.Background(), "missing.tau")
	require.Error(t, err)
}

func TestFileSystemViewRootMustStayWithinSandbox(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSystem("main", dir)
	require.NoError(t, err)

	require.Error(t, fs.SetViewRoot(filepath.Dir(dir)))
}

func TestFileSystemTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.tau", "x")

	fs, err := NewFileSystem("main", dir, ".tau")
	require.NoError(t, err)

	ts, err := fs.Timestamp(context.Background(), "page.tau")
	require.NoError(t, err)
	require.False(t, ts.IsZero())
}
