// Package executor drives a parsed query.Node tree through
// query.Canonicalize/Build and match.Collector against an indexer.Engine's
// backend.Backend, replacing the reference platform's manual
// intersect/union-postings-then-ranker.Rank pipeline (internal/searcher/
// executor, ranker, merger) with the core retrieval engine's weighted
// postlist evaluation. SearchResult's JSON shape is kept byte-for-byte
// compatible with the original so internal/searcher/cache's Redis blobs
// and internal/searcher/handler's HTTP responses are unaffected.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vikram-desai/retrieva/internal/indexer"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/internal/retrieval/expand"
	"github.com/vikram-desai/retrieva/internal/retrieval/match"
	"github.com/vikram-desai/retrieva/internal/retrieval/query"
	"github.com/vikram-desai/retrieva/internal/searcher/parser"
	"github.com/vikram-desai/retrieva/pkg/config"
)

// ScoredDoc is one ranked result row, JSON-compatible with the reference
// platform's ranker.ScoredDoc.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// SearchResult is the executor's response, round-tripped verbatim through
// Redis by internal/searcher/cache and returned directly by
// internal/searcher/handler.
type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []ScoredDoc    `json:"results"`
	TermStats map[string]int `json:"term_stats"`
}

// resolveDocID maps a backend-internal doc-id back to the caller-facing
// external document id string.
type resolveDocID func(docID uint64) string

// Executor runs queries against a single, non-sharded indexer.Engine.
type Executor struct {
	engine *indexer.Engine
	opts   match.Options
	keyFn  match.KeyFetcher
	logger *slog.Logger
}

// New builds an Executor. cfg's MaxOrTerms/PercentCutoff/CollapseKey feed
// query.Canonicalize and match.Options, per §6's match_* config keys. When
// cfg.CollapseKey is set and engine has a docstore backing, S6 collapsing
// is wired automatically via the docstore's Field lookup.
func New(engine *indexer.Engine, cfg config.RetrievalConfig) *Executor {
	return &Executor{
		engine: engine,
		opts: match.Options{
			PercentCutoff: cfg.PercentCutoff,
			SortForward:   true,
			MaxOrTerms:    cfg.MaxOrTerms,
			CollapseKey:   cfg.CollapseKey,
		},
		keyFn:  storeKeyFetcher(engine.Store()),
		logger: slog.Default().With("component", "query-executor"),
	}
}

// storeKeyFetcher adapts a docstore.Store's Field lookup to match.KeyFetcher,
// treating a missing field as a nil key (no collapsing, not an error) rather
// than propagating the store's found bool. Returns nil when store is nil, so
// collectors with no CollapseKey configured never pay for a lookup.
func storeKeyFetcher(store *docstore.Store) match.KeyFetcher {
	if store == nil {
		return nil
	}
	return func(ctx context.Context, docID uint64, key int) ([]byte, error) {
		value, ok, err := store.Field(ctx, docID, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return value, nil
	}
}

func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if len(plan.Terms) == 0 {
		return &SearchResult{Query: plan.RawQuery, Results: []ScoredDoc{}}, nil
	}

	b := e.engine.Backend()
	defer b.Close()
	result, err := runPlan(ctx, b, plan, e.opts, e.keyFn, limit, func(docID uint64) string {
		ext, _ := e.engine.ExternalID(docID)
		return ext
	})
	if err != nil {
		return nil, fmt.Errorf("executing query %q: %w", plan.RawQuery, err)
	}
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Expand runs plan's pseudo-relevance feedback: its own top feedbackSize
// hits become the relevance set fed to the expand engine, per §4.6.
func (e *Executor) Expand(ctx context.Context, plan *parser.QueryPlan, feedbackSize int, eopts expand.Options) (*expand.ESet, error) {
	if len(plan.Terms) == 0 {
		return &expand.ESet{}, nil
	}
	b := e.engine.Backend()
	defer b.Close()
	eset, err := runExpand(ctx, b, plan, e.opts, e.keyFn, feedbackSize, eopts)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	e.logger.Info("expand executed", "query", plan.RawQuery, "candidates", len(eset.Items))
	return eset, nil
}

// runPlan canonicalises plan.Root, builds it against b, and runs it
// through a match.Collector, translating match.Item results into
// ScoredDoc rows via resolve. Shared by Executor and ShardedExecutor so
// both apply the identical planning/collection pipeline over their
// respective backend.Backend (a single engine's, or a router's
// multidb-combined one).
func runPlan(ctx context.Context, b backend.Backend, plan *parser.QueryPlan, opts match.Options, keyFn match.KeyFetcher, limit int, resolve resolveDocID) (*SearchResult, error) {
	mset, termStats, err := evalPlan(ctx, b, plan, opts, keyFn, limit)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredDoc, 0, len(mset.Items))
	for _, item := range mset.Items {
		ext := resolve(item.DocID)
		if ext == "" {
			continue
		}
		results = append(results, ScoredDoc{DocID: ext, Score: item.Weight})
	}

	return &SearchResult{
		Query:     plan.RawQuery,
		TotalHits: int(mset.MBound),
		Results:   results,
		TermStats: termStats,
	}, nil
}

// evalPlan canonicalises plan.Root, builds it against b, and runs it
// through a match.Collector, returning the raw MSet alongside per-term
// document-frequency stats. Shared by runPlan (caller-facing search) and
// Expand (pseudo-relevance feedback, which needs the top result's
// internal doc-ids as its relevance set before any external-id mapping).
func evalPlan(ctx context.Context, b backend.Backend, plan *parser.QueryPlan, opts match.Options, keyFn match.KeyFetcher, limit int) (*match.MSet, map[string]int, error) {
	termStats := make(map[string]int)
	for _, term := range plan.Terms {
		tf, ok, err := b.TermFreq(ctx, term)
		if err != nil {
			return nil, nil, fmt.Errorf("term stats for %q: %w", term, err)
		}
		if ok {
			termStats[term] = int(tf)
		}
	}

	canonPlan, err := query.Canonicalize(plan.Root, false, opts.MaxOrTerms)
	if err != nil {
		return nil, nil, fmt.Errorf("canonicalizing query: %w", err)
	}
	root, err := query.Build(ctx, b, canonPlan)
	if err != nil {
		return nil, nil, fmt.Errorf("building query: %w", err)
	}

	runOpts := opts
	runOpts.MaxItems = limit
	collector := match.New(runOpts, nil, keyFn)
	mset, err := collector.Run(ctx, root)
	if err != nil {
		return nil, nil, fmt.Errorf("collecting results: %w", err)
	}
	return mset, termStats, nil
}

// runExpand runs plan against b, takes its top feedbackSize hits as the
// relevance set, and scores expansion candidates from their term lists.
// Shared by Executor.Expand and ShardedExecutor.Expand.
func runExpand(ctx context.Context, b backend.Backend, plan *parser.QueryPlan, opts match.Options, keyFn match.KeyFetcher, feedbackSize int, eopts expand.Options) (*expand.ESet, error) {
	if feedbackSize <= 0 {
		feedbackSize = 10
	}
	mset, _, err := evalPlan(ctx, b, plan, opts, keyFn, feedbackSize)
	if err != nil {
		return nil, err
	}

	rset := make(expand.RSet, len(mset.Items))
	for _, item := range mset.Items {
		rset[item.DocID] = struct{}{}
	}

	queryTerms := make(map[string]struct{}, len(plan.Terms))
	for _, t := range plan.Terms {
		queryTerms[t] = struct{}{}
	}

	eset, err := expand.Expand(ctx, b, rset, eopts, nil, queryTerms)
	if err != nil {
		return nil, fmt.Errorf("expanding query %q: %w", plan.RawQuery, err)
	}
	return eset, nil
}
