package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vikram-desai/retrieva/internal/indexer/shard"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/internal/retrieval/expand"
	"github.com/vikram-desai/retrieva/internal/retrieval/match"
	"github.com/vikram-desai/retrieva/internal/retrieval/multidb"
	"github.com/vikram-desai/retrieva/internal/searcher/parser"
	"github.com/vikram-desai/retrieva/pkg/config"
)

// ShardedExecutor runs queries against a shard.Router's combined backend:
// every shard's engine fanned out and merged through multidb's
// id-remapping union, same query.Canonicalize/Build/match.Collector
// pipeline as the single-engine Executor.
type ShardedExecutor struct {
	router *shard.Router
	opts   match.Options
	store  *docstore.Store
	logger *slog.Logger
}

// NewSharded builds a ShardedExecutor over router.
func NewSharded(router *shard.Router, cfg config.RetrievalConfig) *ShardedExecutor {
	return &ShardedExecutor{
		router: router,
		opts: match.Options{
			PercentCutoff: cfg.PercentCutoff,
			SortForward:   true,
			MaxOrTerms:    cfg.MaxOrTerms,
			CollapseKey:   cfg.CollapseKey,
		},
		store:  router.Store(),
		logger: slog.Default().With("component", "sharded-executor"),
	}
}

// shardedKeyFetcher adapts storeKeyFetcher to a CombinedBackend's
// multidb-remapped doc-ids: the docstore holds each shard engine's own
// local ids, so a lookup must unmap back to (shard, local) before querying.
func shardedKeyFetcher(store *docstore.Store, mdb *multidb.MultiDB) match.KeyFetcher {
	fetch := storeKeyFetcher(store)
	if fetch == nil {
		return nil
	}
	return func(ctx context.Context, docID uint64, key int) ([]byte, error) {
		_, local := mdb.Unmap(docID)
		return fetch(ctx, local, key)
	}
}

func (se *ShardedExecutor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{Query: plan.RawQuery, Results: []ScoredDoc{}}, nil
	}

	mdb := se.router.CombinedBackend()
	defer mdb.Close()
	result, err := runPlan(ctx, mdb, plan, se.opts, shardedKeyFetcher(se.store, mdb), limit, func(docID uint64) string {
		ext, _ := se.router.ExternalID(mdb, docID)
		return ext
	})
	if err != nil {
		return nil, fmt.Errorf("sharded fan-out: %w", err)
	}
	se.logger.Info("sharded query executed",
		"query", plan.RawQuery,
		"shards_queried", se.router.NumShards(),
		"total_hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Expand runs plan's pseudo-relevance feedback across the combined,
// multidb-merged backend of every shard.
func (se *ShardedExecutor) Expand(ctx context.Context, plan *parser.QueryPlan, feedbackSize int, eopts expand.Options) (*expand.ESet, error) {
	if len(plan.Terms) == 0 {
		return &expand.ESet{}, nil
	}
	mdb := se.router.CombinedBackend()
	defer mdb.Close()
	eset, err := runExpand(ctx, mdb, plan, se.opts, shardedKeyFetcher(se.store, mdb), feedbackSize, eopts)
	if err != nil {
		return nil, fmt.Errorf("sharded expand: %w", err)
	}
	se.logger.Info("sharded expand executed", "query", plan.RawQuery, "candidates", len(eset.Items))
	return eset, nil
}
