// Package benchmark contains Go benchmarks for the indexer engine, memory
// backend, and search pipeline, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/vikram-desai/retrieva/internal/indexer"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/memory"
	"github.com/vikram-desai/retrieva/pkg/config"
)

func addDoc(b testing.TB, m *memory.Backend, id uint64, terms map[string][]uint32, length uint32) {
	ctx := context.Background()
	if err := m.BeginSession(ctx); err != nil {
		b.Fatal(err)
	}
	defer m.EndSession(ctx)
	if err := m.AddDocument(ctx, backend.Document{ID: id, Length: length}, terms); err != nil {
		b.Fatal(err)
	}
}

// BenchmarkMemoryBackendAdd measures per-document insert throughput into the
// in-memory backend.
func BenchmarkMemoryBackendAdd(b *testing.B) {
	m := memory.New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		addDoc(b, m, uint64(i+1), map[string][]uint32{
			"benchmark": {0}, "title": {1}, "document": {4},
		}, 16)
	}
}

// BenchmarkMemoryBackendSearch measures single-term lookup latency over
// 10 000 documents.
func BenchmarkMemoryBackendSearch(b *testing.B) {
	m := memory.New()
	for i := 0; i < 10000; i++ {
		addDoc(b, m, uint64(i+1), map[string][]uint32{"distributed": {0}, "search": {1}}, 10)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := m.PostingList(context.Background(), "search", false)
		if err != nil {
			b.Fatal(err)
		}
		for it.Next() {
		}
		it.Close()
	}
}

// BenchmarkMemoryBackendSearchParallel measures concurrent read throughput.
func BenchmarkMemoryBackendSearchParallel(b *testing.B) {
	m := memory.New()
	for i := 0; i < 10000; i++ {
		addDoc(b, m, uint64(i+1), map[string][]uint32{"distributed": {0}, "search": {1}}, 10)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			it, err := m.PostingList(context.Background(), "search", false)
			if err != nil {
				b.Fatal(err)
			}
			for it.Next() {
			}
			it.Close()
		}
	})
}

// BenchmarkMemoryBackendSnapshot measures the cost of snapshotting the
// backend before a segment flush.
func BenchmarkMemoryBackendSnapshot(b *testing.B) {
	m := memory.New()
	for i := 0; i < 5000; i++ {
		addDoc(b, m, uint64(i+1), map[string][]uint32{"snapshot": {0}, "benchmark": {1}}, 10)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms, docs, avg := m.Snapshot()
		_, _, _ = terms, docs, avg
	}
}

// BenchmarkEngineIndex measures full engine indexing throughput at various
// pre-loaded corpus sizes.
func BenchmarkEngineIndex(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			cfg := config.IndexerConfig{
				DataDir:        b.TempDir(),
				SegmentMaxSize: 100 * 1024 * 1024,
				FlushInterval:  0,
			}
			engine, err := indexer.NewEngine(cfg, nil)
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			for i := 0; i < preload; i++ {
				docID := fmt.Sprintf("preload-%d", i)
				engine.IndexDocument(docID, "preload doc", "preloading documents for benchmark warmup phase")
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				docID := fmt.Sprintf("bench-%d", i)
				err := engine.IndexDocument(docID, "benchmark title", "benchmark document body for measuring indexing throughput")
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineSearch measures end-to-end posting lookup latency across
// 10 000 documents.
func BenchmarkEngineSearch(b *testing.B) {
	cfg := config.IndexerConfig{
		DataDir:        b.TempDir(),
		SegmentMaxSize: 100 * 1024 * 1024,
		FlushInterval:  0,
	}
	engine, err := indexer.NewEngine(cfg, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	for i := 0; i < 10000; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		title := fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)])
		body := fmt.Sprintf("this document covers %s %s %s in production systems",
			terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		engine.IndexDocument(docID, title, body)
	}

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bk := engine.Backend()
		it, err := bk.PostingList(ctx, terms[i%len(terms)], false)
		if err != nil {
			b.Fatal(err)
		}
		for it.Next() {
		}
		it.Close()
	}
}
