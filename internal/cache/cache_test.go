package cache

import (
	"testing"
	"time"

	"github.com/tauleaf/tau/internal/ast"
	"github.com/tauleaf/tau/internal/config"
)

func newDoc(name string) *ast.AST {
	return ast.New(ast.Key{Source: "main", Name: name})
}

func TestInsertRetrieveStampsGeneration(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)

	got, ok := c.Retrieve(doc.Key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Info.Generation == "" {
		t.Fatal("expected Insert to stamp a Generation")
	}
	if !got.Info.Cached {
		t.Fatal("expected Insert to mark Cached")
	}
}

func TestRetrieveMiss(t *testing.T) {
	c := New()
	if _, ok := c.Retrieve(ast.Key{Source: "main", Name: "missing.tau"}); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestRemoveEvicts(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)
	c.Remove(doc.Key)
	if _, ok := c.Retrieve(doc.Key); ok {
		t.Fatal("expected entry to be evicted")
	}
}

func TestDropAll(t *testing.T) {
	c := New()
	c.Insert(newDoc("a.tau"))
	c.Insert(newDoc("b.tau"))
	c.DropAll()
	if _, ok := c.Retrieve(ast.Key{Source: "main", Name: "a.tau"}); ok {
		t.Fatal("expected DropAll to evict everything")
	}
}

func TestTouchFlushesAtThreshold(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)

	for i := 0; i < config.TouchFlushThreshold; i++ {
		c.Touch(doc.Key, 10*time.Millisecond, 100)
	}

	info, ok := c.Info(doc.Key)
	if !ok {
		t.Fatal("expected info to be present")
	}
	if info.TouchCount != int64(config.TouchFlushThreshold) {
		t.Fatalf("TouchCount = %d, want %d", info.TouchCount, config.TouchFlushThreshold)
	}
	if info.AverageSize != 100 {
		t.Fatalf("AverageSize = %d, want 100", info.AverageSize)
	}
}

func TestInfoFlushesPendingTouchBelowThreshold(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)

	// a single touch, far below config.TouchFlushThreshold, must still be
	// visible through Info/Retrieve on demand.
	c.Touch(doc.Key, 5*time.Millisecond, 42)

	info, ok := c.Info(doc.Key)
	if !ok {
		t.Fatal("expected info to be present")
	}
	if info.TouchCount != 1 {
		t.Fatalf("TouchCount = %d, want 1 (Info must force-flush pending touches)", info.TouchCount)
	}
	if info.AverageSize != 42 {
		t.Fatalf("AverageSize = %d, want 42", info.AverageSize)
	}
}

func TestTouchAveragesAcrossFlushes(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)

	c.Touch(doc.Key, 10*time.Millisecond, 100)
	info, _ := c.Info(doc.Key) // forces a flush of the single pending touch
	if info.AverageSize != 100 {
		t.Fatalf("after first touch, AverageSize = %d, want 100", info.AverageSize)
	}

	c.Touch(doc.Key, 10*time.Millisecond, 300)
	info, _ = c.Info(doc.Key)
	if info.TouchCount != 2 {
		t.Fatalf("TouchCount = %d, want 2", info.TouchCount)
	}
	if info.AverageSize != 200 {
		t.Fatalf("AverageSize = %d, want 200 (running average across flushes)", info.AverageSize)
	}
}

type recordingSink struct {
	samples []TouchSample
}

func (s *recordingSink) Record(sample TouchSample) error {
	s.samples = append(s.samples, sample)
	return nil
}

func TestTouchSinkReceivesFlush(t *testing.T) {
	c := New()
	sink := &recordingSink{}
	c.SetSink(sink)
	doc := newDoc("a.tau")
	c.Insert(doc)

	c.Touch(doc.Key, time.Millisecond, 10)
	c.Info(doc.Key) // force the flush

	if len(sink.samples) == 0 {
		t.Fatal("expected the sink to receive at least one flushed sample")
	}
}

func TestMarkPolledStampsTimestamp(t *testing.T) {
	c := New()
	doc := newDoc("a.tau")
	c.Insert(doc)
	before := doc.Info.LastPollTimestamp
	c.MarkPolled(doc.Key)
	info, _ := c.Info(doc.Key)
	if !info.LastPollTimestamp.After(before) {
		t.Fatal("expected MarkPolled to advance LastPollTimestamp")
	}
}
