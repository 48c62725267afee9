// Package telemetry provides an optional durable sink for the Cache's
// touch statistics. The hot path (AST storage, touch
// aggregation) stays the in-memory map cache.Cache already is; this
// package only persists periodic flushes so the stats survive a process
// restart, behind the small cache.TouchSink interface so nothing in
// internal/cache depends on database/sql.
package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tauleaf/tau/internal/cache"
)

// SQLiteSink persists cache.TouchSample flushes to a local sqlite file.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if absent) a sqlite database at path
// and ensures its touch_stats table exists.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open sqlite: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS touch_stats (
	source TEXT NOT NULL,
	name TEXT NOT NULL,
	touch_count INTEGER NOT NULL,
	avg_exec_nanos INTEGER NOT NULL,
	avg_size_bytes INTEGER NOT NULL,
	flushed_at DATETIME NOT NULL,
	PRIMARY KEY (source, name)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Record upserts one key's latest aggregated touch stats.
func (s *SQLiteSink) Record(sample cache.TouchSample) error {
	const upsert = `
INSERT INTO touch_stats (source, name, touch_count, avg_exec_nanos, avg_size_bytes, flushed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (source, name) DO UPDATE SET
	touch_count = excluded.touch_count,
	avg_exec_nanos = excluded.avg_exec_nanos,
	avg_size_bytes = excluded.avg_size_bytes,
	flushed_at = excluded.flushed_at;`
	_, err := s.db.Exec(upsert,
		sample.Key.Source, sample.Key.Name,
		sample.Count, sample.AverageExecTime.Nanoseconds(), sample.AverageSize,
		sample.FlushedAt)
	if err != nil {
		return fmt.Errorf("telemetry: record touch sample: %w", err)
	}
	return nil
}

// Stats returns the persisted row for key, or ok=false if none exists
// yet (a fresh cache entry that hasn't reached its first flush).
func (s *SQLiteSink) Stats(source, name string) (count int64, avgExec time.Duration, avgSize int64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT touch_count, avg_exec_nanos, avg_size_bytes FROM touch_stats WHERE source = ? AND name = ?`, source, name)
	var nanos int64
	if scanErr := row.Scan(&count, &nanos, &avgSize); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, 0, 0, false, nil
		}
		return 0, 0, 0, false, fmt.Errorf("telemetry: read touch stats: %w", scanErr)
	}
	return count, time.Duration(nanos), avgSize, true, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
