package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory("mem")
	m.Set("greeting.tau", []byte("hi #(name)"), time.Now())

	got, err := m.Read(context.Background(), "greeting.tau")
	require.NoError(t, err)
	require.Equal(t, "hi #(name)", got)

	ts, err := m.Timestamp(context.Background(), "greeting.tau")
	require.NoError(t, err)
	require.False(t, ts.IsZero())
}

func TestMemoryMissingTemplate(t *testing.T) {
	m := NewMemory("mem")
	_, err := m.Read(context.Background(), "absent.tau")
	require.Error(t, err)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory("mem")
	m.Set("a.tau", []byte("x"), time.Now())
	m.Delete("a.tau")

	_, err := m.Read(context.Background(), "a.tau")
	require.Error(t, err)
}
