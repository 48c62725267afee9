package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/cache"
)

func TestSQLiteSinkRecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	sink, err := OpenSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	key := ast.Key{Source: "main", Name: "page.tau"}
	err = sink.Record(cache.TouchSample{
		Key: key,
		Count: 128,
		AverageExecTime: 2 * time.Millisecond,
		AverageSize: 4096,
		FlushedAt: time.Now(),
	})
	require.NoError(t, err)

	count, avgExec, avgSize, ok, err := sink.Stats("main", "page.tau")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(128), count)
	require.Equal(t, 2*time.Millisecond, avgExec)
	require.Equal(t, int64(4096), avgSize)
}

func TestSQLiteSinkMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	sink, err := OpenSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	_, _, _, ok, err := sink.Stats("main", "absent.tau")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteSinkSatisfiesCacheTouchSink(t *testing.T) {
	var _ cache.TouchSink = (*SQLiteSink)(nil)
}
