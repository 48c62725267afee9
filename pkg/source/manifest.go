package source

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tauleaf/tau/internal/config"
	"github.com/tauleaf/tau/internal/errtype"
)

// Manifest describes a project's named template roots, loaded from a
// tau.yaml file sitting beside a project's templates.
type Manifest struct {
	// Roots maps a source name (the key #inline references use) to its
	// filesystem root and per-root overrides.
	Roots map[string]RootConfig `yaml:"roots"`
}

// RootConfig is one named root's settings in tau.yaml.
type RootConfig struct {
	// Path is the sandbox root directory, relative to the manifest file.
	Path string `yaml:"path"`

	// Extensions restricts which file suffixes are servable from this
	// root (e.g. [".tau", ".tau.txt"]). Empty allows any extension.
	Extensions []string `yaml:"extensions"`

	// ViewRoot, if set, narrows resolution within Path.
	ViewRoot string `yaml:"view_root"`

	// EmbeddedRawLimit overrides config.DefaultEmbeddedRawLimit for
	// dependencies fetched from this root.
	EmbeddedRawLimit int `yaml:"embedded_raw_limit"`
}

// LoadManifest reads and decodes a tau.yaml file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errtype.SourceError{Name: path, Err: err}
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &errtype.SourceError{Name: path, Err: err}
	}
	for name, root := range m.Roots {
		if root.EmbeddedRawLimit <= 0 {
			root.EmbeddedRawLimit = config.DefaultEmbeddedRawLimit
			m.Roots[name] = root
		}
	}
	return &m, nil
}

// Build instantiates one FileSystem provider per manifest root, rooted
// relative to baseDir (the directory the manifest file lives in).
func (m *Manifest) Build(baseDir string) (map[string]*FileSystem, error) {
	out := make(map[string]*FileSystem, len(m.Roots))
	for name, root := range m.Roots {
		full := root.Path
		if !filepath.IsAbs(full) {
			full = filepath.Join(baseDir, full)
		}
		fs, err := NewFileSystem(name, full, root.Extensions...)
		if err != nil {
			return nil, err
		}
		if root.ViewRoot != "" {
			view := root.ViewRoot
			if !filepath.IsAbs(view) {
				view = filepath.Join(full, view)
			}
			if err := fs.SetViewRoot(view); err != nil {
				return nil, err
			}
		}
		out[name] = fs
	}
	return out, nil
}
