package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/vikram-desai/retrieva/internal/indexer"
	"github.com/vikram-desai/retrieva/internal/indexer/shard"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/internal/searcher/executor"
	"github.com/vikram-desai/retrieva/internal/searcher/parser"
	"github.com/vikram-desai/retrieva/pkg/config"
)

// BenchmarkQueryParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "distributed systems"},
		{"boolean_and", "search AND analytics AND platform"},
		{"boolean_or", "indexing OR caching OR ranking"},
		{"with_not", "distributed NOT monolithic"},
		{"phrase", `"distributed search platform"`},
		{"near", "search NEAR/5 ranking"},
		{"complex", "search AND ranking OR analytics NOT deprecated"},
		{"long", "distributed search analytics platform indexing query processing ranking caching sharding"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				plan := parser.Parse(q.query)
				_ = plan
			}
		})
	}
}

// BenchmarkExecutorSingleEngine measures the canonicalise/build/collect
// pipeline against a single, non-sharded engine.
func BenchmarkExecutorSingleEngine(b *testing.B) {
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

	for d := 0; d < 1000; d++ {
		docID := fmt.Sprintf("doc-%d", d)
		engine.IndexDocument(docID, "distributed search",
			"search analytics platform with distributed indexing and query ranking")
	}

	exec := executor.New(engine, config.RetrievalConfig{ExpandMaxItems: 40})
	plan := parser.Parse("distributed search")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := exec.Execute(context.Background(), plan, 10)
		if err != nil {
			b.Fatal(err)
		}
		_ = result
	}
}

// BenchmarkShardedExecutor exercises the sharded query executor with varying
// shard counts.
func BenchmarkShardedExecutor(b *testing.B) {
	shardCounts := []int{1, 4, 8}
	for _, numShards := range shardCounts {
		b.Run(fmt.Sprintf("shards_%d", numShards), func(b *testing.B) {
			baseCfg := config.IndexerConfig{
				DataDir:        b.TempDir(),
				SegmentMaxSize: 100 * 1024 * 1024,
				FlushInterval:  0,
			}
			router, err := shard.NewRouter(baseCfg, numShards, (*docstore.Store)(nil))
			if err != nil {
				b.Fatal(err)
			}
			defer router.Close()

			for shardID, engine := range router.GetAllEngines() {
				for d := 0; d < 1000; d++ {
					docID := fmt.Sprintf("shard%d-doc%d", shardID, d)
					engine.IndexDocument(docID, "distributed search",
						"search analytics platform with distributed indexing and query ranking")
				}
			}

			exec := executor.NewSharded(router, config.RetrievalConfig{ExpandMaxItems: 40})
			plan := parser.Parse("distributed search")

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(context.Background(), plan, 10)
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkShardedExecutorParallel measures concurrent sharded search
// throughput across 8 shards.
func BenchmarkShardedExecutorParallel(b *testing.B) {
	baseCfg := config.IndexerConfig{
		DataDir:        b.TempDir(),
		SegmentMaxSize: 100 * 1024 * 1024,
		FlushInterval:  0,
	}
	router, err := shard.NewRouter(baseCfg, 8, (*docstore.Store)(nil))
	if err != nil {
		b.Fatal(err)
	}
	defer router.Close()

	for shardID, engine := range router.GetAllEngines() {
		for d := 0; d < 1000; d++ {
			docID := fmt.Sprintf("shard%d-doc%d", shardID, d)
			engine.IndexDocument(docID, "distributed search analytics",
				"platform with distributed search indexing query processing and ranking engine")
		}
	}

	exec := executor.NewSharded(router, config.RetrievalConfig{ExpandMaxItems: 40})
	plan := parser.Parse("distributed search")

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result, err := exec.Execute(context.Background(), plan, 10)
			if err != nil {
				b.Fatal(err)
			}
			_ = result
		}
	})
}
