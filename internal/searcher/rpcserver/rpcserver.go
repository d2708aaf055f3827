// Package rpcserver exposes the searcher's query pipeline and combined
// backend over the platform's internal JSON-over-TCP RPC layer (pkg/grpc),
// so other processes can reach SearchService.{Search,Expand} and, via
// internal/retrieval/backend/remote, dial this process as a "remote"
// backend.Backend.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vikram-desai/retrieva/internal/indexer/shard"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/remote"
	"github.com/vikram-desai/retrieva/internal/retrieval/expand"
	"github.com/vikram-desai/retrieva/internal/searcher/executor"
	"github.com/vikram-desai/retrieva/internal/searcher/parser"
	"github.com/vikram-desai/retrieva/pkg/grpc"
	"github.com/vikram-desai/retrieva/pkg/proto"
)

// Register wires SearchService.{Search,Expand} and BackendService.* (the
// latter against router's multidb-combined backend) into s.
func Register(s *grpc.Server, router *shard.Router, exec *executor.ShardedExecutor, defaultLimit int) {
	s.Register("SearchService.Search", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.SearchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding SearchRequest: %w", err)
		}
		limit := int(req.Limit)
		if limit <= 0 {
			limit = defaultLimit
		}
		plan := parser.Parse(req.Query)
		result, err := exec.Execute(ctx, plan, limit)
		if err != nil {
			return nil, err
		}
		resp := &proto.SearchResponse{
			Query:     result.Query,
			TotalHits: int32(result.TotalHits),
			Results:   make([]proto.SearchResult, len(result.Results)),
		}
		for i, r := range result.Results {
			resp.Results[i] = proto.SearchResult{DocID: r.DocID, Score: float32(r.Score)}
		}
		return resp, nil
	})

	s.Register("SearchService.Expand", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.ExpandRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding ExpandRequest: %w", err)
		}
		mdb := router.CombinedBackend()
		defer mdb.Close()

		rset := make(expand.RSet, len(req.RelevantDocIDs))
		for _, id := range req.RelevantDocIDs {
			rset[id] = struct{}{}
		}
		queryTerms := make(map[string]struct{}, len(req.QueryTerms))
		for _, t := range req.QueryTerms {
			queryTerms[t] = struct{}{}
		}
		eopts := expand.Options{
			UseQueryTerms:    req.UseQueryTerms,
			UseExactTermfreq: req.UseExactTermfreq,
			MaxItems:         int(req.MaxItems),
		}
		eset, err := expand.Expand(ctx, mdb, rset, eopts, nil, queryTerms)
		if err != nil {
			return nil, err
		}
		resp := &proto.ExpandResponse{Items: make([]proto.ExpandItem, len(eset.Items))}
		for i, it := range eset.Items {
			resp.Items[i] = proto.ExpandItem{Term: it.Term, Weight: it.Weight}
		}
		return resp, nil
	})

	remote.RegisterBackendService(s, func(ctx context.Context) (backend.Backend, error) {
		return router.CombinedBackend(), nil
	})
}
