// Package cache implements the thread-safe AST store: a (source,
// name)-keyed map with aggregated touch statistics kept in a lock
// separate from the cache data itself, so the per-render touch path
// never contends with document reads. Each inserted entry is stamped
// with a uuid Generation so two parses of the same key can be told
// apart.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/config"
)

// touchState aggregates the touch samples recorded since the last flush
// into the stored AST's Info; every field resets to zero once flushed so
// a snapshot always represents exactly one incremental batch, never the
// key's lifetime total.
type touchState struct {
	count int64
	totalExec time.Duration
	totalSize int64
}

// TouchSample is one flushed batch of touch statistics handed to a
// TouchSink.
type TouchSample struct {
	Key ast.Key
	Count int64
	AverageExecTime time.Duration
	AverageSize int64
	FlushedAt time.Time
}

// TouchSink durably records touch-statistic flushes. It is optional: the
// Cache's hot path (AST storage, touch aggregation) never depends on it,
// keeping durability a swappable sink behind the in-memory store rather
// than the store itself.
type TouchSink interface {
	Record(sample TouchSample) error
}

// Cache is the process-wide AST store. mu guards the entries map;
// touchMu independently guards touch aggregation so a hot touch path
// never contends with a cold insert/retrieve.
type Cache struct {
	mu sync.RWMutex
	entries map[ast.Key]*ast.AST

	touchMu sync.Mutex
	touches map[ast.Key]*touchState

	sink TouchSink
}

// New builds an empty Cache.
func New() *Cache {
	return &Cache{
		entries: map[ast.Key]*ast.AST{},
		touches: map[ast.Key]*touchState{},
	}
}

// SetSink installs a durable TouchSink that receives every aggregated
// touch flush in addition to the in-memory Info update. Passing nil
// disables durability again.
func (c *Cache) SetSink(sink TouchSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Insert stores a freshly parsed AST, stamping its Info.Generation with a
// fresh UUID so two parses of the same Key can be told apart even when
// their aggregated touch stats later coincide.
func (c *Cache) Insert(doc *ast.AST) {
	doc.Info.Generation = uuid.NewString()
	doc.Info.ParseTimestamp = time.Now()
	doc.Info.Cached = true

	c.mu.Lock()
	c.entries[doc.Key] = doc
	c.mu.Unlock()
}

// Retrieve fetches a cached AST by key, flushing any pending touch
// aggregation first so a reader never observes stale Info statistics.
func (c *Cache) Retrieve(key ast.Key) (*ast.AST, bool) {
	c.flushPending(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.entries[key]
	return doc, ok
}

// Remove evicts a cached AST and its touch aggregation state.
func (c *Cache) Remove(key ast.Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	c.touchMu.Lock()
	delete(c.touches, key)
	c.touchMu.Unlock()
}

// DropAll() evicts every cached entry.
func (c *Cache) DropAll() {
	c.mu.Lock()
	c.entries = map[ast.Key]*ast.AST{}
	c.mu.Unlock()

	c.touchMu.Lock()
	c.touches = map[ast.Key]*touchState{}
	c.touchMu.Unlock()
}

// Info returns a cached AST's metadata snapshot, flushing any pending
// touch aggregation first so a reader never observes stale statistics.
func (c *Cache) Info(key ast.Key) (*ast.Info, bool) {
	c.flushPending(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return doc.Info, true
}

// Touch records one render's execution time and output size against key's
// touch-statistics aggregation. The aggregated state is flushed into the
// AST's Info every config.TouchFlushThreshold touches so readers never
// pay a per-render lock against the data map; Info/Retrieve additionally
// force a flush of any pending non-empty touch on demand.
func (c *Cache) Touch(key ast.Key, execTime time.Duration, outputSize int) {
	c.touchMu.Lock()
	st, ok := c.touches[key]
	if !ok {
		st = &touchState{}
		c.touches[key] = st
	}
	st.count++
	st.totalExec += execTime
	st.totalSize += int64(outputSize)
	flush := st.count >= config.TouchFlushThreshold
	var snapshot touchState
	if flush {
		snapshot = *st
		*st = touchState{}
	}
	c.touchMu.Unlock()

	if !flush {
		return
	}
	c.applyFlush(key, snapshot)
}

// flushPending forces a flush of key's touch aggregation if it holds any
// unflushed samples, regardless of whether the threshold has been reached.
func (c *Cache) flushPending(key ast.Key) {
	c.touchMu.Lock()
	st, ok := c.touches[key]
	if !ok || st.count == 0 {
		c.touchMu.Unlock()
		return
	}
	snapshot := *st
	*st = touchState{}
	c.touchMu.Unlock()

	c.applyFlush(key, snapshot)
}

// applyFlush merges a flushed touch snapshot into the stored AST's Info
// and forwards it to the optional TouchSink.
func (c *Cache) applyFlush(key ast.Key, snapshot touchState) {
	c.mu.RLock()
	doc, ok := c.entries[key]
	sink := c.sink
	c.mu.RUnlock()
	if !ok {
		return
	}
	if snapshot.count > 0 {
		priorCount := doc.Info.TouchCount
		priorExec := int64(doc.Info.AverageExecTime) * priorCount
		priorSize := doc.Info.AverageSize * priorCount
		totalCount := priorCount + snapshot.count
		doc.Info.AverageExecTime = time.Duration((priorExec + int64(snapshot.totalExec)) / totalCount)
		doc.Info.AverageSize = (priorSize + snapshot.totalSize) / totalCount
		doc.Info.TouchCount = totalCount
	}
	doc.Info.TouchFlushedAt = time.Now()

	if sink == nil {
		return
	}
	_ = sink.Record(TouchSample{
		Key: key,
		Count: doc.Info.TouchCount,
		AverageExecTime: doc.Info.AverageExecTime,
		AverageSize: doc.Info.AverageSize,
		FlushedAt: doc.Info.TouchFlushedAt,
	})
}

// MarkPolled stamps key's LastPollTimestamp to now, under the Cache's
// own lock. The Resolver calls this after checking a Source's freshness
// for an auto-updating entry, so that mutation of shared AST.Info state
// stays behind the same lock guarding entries rather than racing a
// concurrent render.
func (c *Cache) MarkPolled(key ast.Key) {
	c.mu.RLock()
	doc, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return
	}
	doc.Info.LastPollTimestamp = time.Now()
}
