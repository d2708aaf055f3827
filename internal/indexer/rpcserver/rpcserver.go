// Package rpcserver exposes the indexer's shard router over the
// platform's internal JSON-over-TCP RPC layer (pkg/grpc): IndexService for
// document ingestion/flush/stats, and BackendService so other processes
// can dial this indexer as a "remote" backend.Backend.
package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vikram-desai/retrieva/internal/indexer/shard"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/remote"
	"github.com/vikram-desai/retrieva/pkg/grpc"
	"github.com/vikram-desai/retrieva/pkg/proto"
)

// Register wires IndexService.{IndexDocument,Stats,Flush} and
// BackendService.* into s, serving router.
func Register(s *grpc.Server, router *shard.Router) {
	s.Register("IndexService.IndexDocument", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.IndexRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding IndexRequest: %w", err)
		}
		engine, err := router.Route(int(req.ShardID))
		if err != nil {
			return &proto.IndexResponse{Success: false, Message: err.Error()}, nil
		}
		if err := engine.IndexDocument(req.DocumentID, req.Title, req.Body); err != nil {
			return &proto.IndexResponse{Success: false, Message: err.Error()}, nil
		}
		return &proto.IndexResponse{Success: true}, nil
	})

	s.Register("IndexService.Stats", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.StatsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding StatsRequest: %w", err)
		}
		resp := &proto.StatsResponse{}
		for id, engine := range router.GetAllEngines() {
			if req.ShardID != 0 && id != int(req.ShardID) {
				continue
			}
			docs := engine.GetTotalDocs()
			resp.TotalDocs += docs
			resp.Shards = append(resp.Shards, proto.ShardStat{ShardID: int32(id), DocCount: docs})
		}
		return resp, nil
	})

	s.Register("IndexService.Flush", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.FlushRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding FlushRequest: %w", err)
		}
		if req.ShardID != 0 {
			engine, err := router.Route(int(req.ShardID))
			if err != nil {
				return &proto.FlushResponse{Success: false, Message: err.Error()}, nil
			}
			if err := engine.Flush(); err != nil {
				return &proto.FlushResponse{Success: false, Message: err.Error()}, nil
			}
			return &proto.FlushResponse{Success: true}, nil
		}
		if err := router.FlushAll(); err != nil {
			return &proto.FlushResponse{Success: false, Message: err.Error()}, nil
		}
		return &proto.FlushResponse{Success: true}, nil
	})

	remote.RegisterBackendService(s, func(ctx context.Context) (backend.Backend, error) {
		return router.CombinedBackend(), nil
	})
}
