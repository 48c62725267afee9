package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadManifestBuildsRoots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views"), 0o755))
	manifestPath := filepath.Join(dir, "tau.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
roots:
  main:
    path: views
    extensions: [".tau"]
`), 0o644))

	m, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	require.Contains(t, m.Roots, "main")
	require.Equal(t, []string{".tau"}, m.Roots["main"].Extensions)
	require.Greater(t, m.Roots["main"].EmbeddedRawLimit, 0)

	providers, err := m.Build(dir)
	require.NoError(t, err)
	require.Contains(t, providers, "main")
	require.Equal(t, filepath.Join(dir, "views"), providers["main"].Root)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
