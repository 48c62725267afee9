// Package source provides the template/raw-file providers consumed by
// the Resolver (Source interface, kept out of the core on
// purpose so hosts can supply their own). Two providers are built in: a
// FileSystem provider sandboxed to a root directory, and an in-memory
// Memory provider for tests and embedding.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tauleaf/tau/internal/errtype"
)

// FileSystem is a Source rooted at a sandbox directory. Every name is
// resolved relative to Root (or ViewRoot, if set) and verified to stay
// within Root after symlink/`..` resolution; only files whose extension
// appears in Extensions are servable, and dotfiles/hidden directories
// are rejected regardless of extension.
type FileSystem struct {
	name string

	// Root is the sandbox boundary: no resolved path may escape it.
	Root string

	// ViewRoot, if set, is the directory names are resolved against; it
	// must itself lie within Root. Leaving it empty resolves names
	// directly against Root.
	ViewRoot string

	// Extensions lists the allowed suffixes (including the dot, e.g.
	// ".tau"). A nil/empty list allows any extension.
	Extensions []string
}

// NewFileSystem builds a FileSystem provider named name, sandboxed to
// root. ViewRoot defaults to root; call SetViewRoot to narrow it.
func NewFileSystem(name, root string, extensions ...string) (*FileSystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &errtype.SourceError{Name: name, Err: err}
	}
	return &FileSystem{name: name, Root: abs, ViewRoot: abs, Extensions: extensions}, nil
}

// SetViewRoot narrows the resolution root to view, which must lie
// within fs.Root.
func (fs *FileSystem) SetViewRoot(view string) error {
	abs, err := filepath.Abs(view)
	if err != nil {
		return &errtype.SourceError{Name: fs.name, Err: err}
	}
	if !withinRoot(fs.Root, abs) {
		return &errtype.IllegalAccess{Path: view, Limitation: "view root outside sandbox root"}
	}
	fs.ViewRoot = abs
	return nil
}

// Name returns the source's registered key.
func (fs *FileSystem) Name() string { return fs.name }

// Read returns a template's decoded text.
func (fs *FileSystem) Read(ctx context.Context, name string) (string, error) {
	data, err := fs.ReadRaw(ctx, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadRaw returns a template or dependency's raw bytes after validating
// name against the sandbox and extension policy.
func (fs *FileSystem) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	full, err := fs.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errtype.NoTemplateExists{Name: name}
		}
		return nil, &errtype.SourceError{Name: name, Err: err}
	}
	return data, nil
}

// Timestamp returns the file's modification time, for auto-update
// polling.
func (fs *FileSystem) Timestamp(ctx context.Context, name string) (time.Time, error) {
	full, err := fs.resolve(name)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, &errtype.NoTemplateExists{Name: name}
		}
		return time.Time{}, &errtype.SourceError{Name: name, Err: err}
	}
	return info.ModTime(), nil
}

// resolve turns a template name into a sandboxed, extension-checked
// absolute path.
func (fs *FileSystem) resolve(name string) (string, error) {
	if name == "" {
		return "", &errtype.NoTemplateExists{Name: name}
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return "", &errtype.IllegalAccess{Path: name, Limitation: "hidden file or directory"}
		}
	}

	joined := filepath.Join(fs.ViewRoot, filepath.FromSlash(name))
	full, err := filepath.Abs(joined)
	if err != nil {
		return "", &errtype.SourceError{Name: name, Err: err}
	}
	if !withinRoot(fs.Root, full) {
		return "", &errtype.IllegalAccess{Path: name, Limitation: "outside sandbox root"}
	}
	if len(fs.Extensions) > 0 && !hasAllowedExtension(full, fs.Extensions) {
		return "", &errtype.IllegalAccess{Path: name, Limitation: "extension not permitted"}
	}
	return full, nil
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}

func hasAllowedExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
