package source

import (
	"context"
	"sync"
	"time"

	"github.com/tauleaf/tau/internal/errtype"
)

// Memory is an in-memory Source, used for tests and for hosts that
// embed templates in their own binary rather than reading a directory.
type Memory struct {
	name string

	mu sync.RWMutex
	files map[string][]byte
	stamp map[string]time.Time
}

// NewMemory builds an empty Memory provider named name.
func NewMemory(name string) *Memory {
	return &Memory{name: name, files: map[string][]byte{}, stamp: map[string]time.Time{}}
}

// Name returns the source's registered key.
func (m *Memory) Name() string { return m.name }

// Set installs or replaces a template's raw bytes, stamping its
// timestamp to now so an auto-updating Cache sees the change.
func (m *Memory) Set(name string, data []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	m.stamp[name] = at
}

// Delete removes a template, so subsequent reads report NoTemplateExists.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	delete(m.stamp, name)
}

func (m *Memory) Read(ctx context.Context, name string) (string, error) {
	data, err := m.ReadRaw(ctx, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Memory) ReadRaw(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, &errtype.NoTemplateExists{Name: name}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Timestamp(ctx context.Context, name string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.stamp[name]
	if !ok {
		return time.Time{}, &errtype.NoTemplateExists{Name: name}
	}
	return t, nil
}
