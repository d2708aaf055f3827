package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
	"github.com/vikram-desai/retrieva/pkg/grpc"
	"github.com/vikram-desai/retrieva/pkg/proto"
)

// Opener returns a fresh backend.Backend snapshot for one RPC call, the
// server-side analogue of Engine.Backend()/Router.CombinedBackend(): each
// call sees the collection state at open time, matching the "a query
// evaluation holds exclusive read access to its backend snapshot"
// invariant of §4.5 rather than sharing one long-lived backend across
// concurrent callers.
type Opener func(ctx context.Context) (backend.Backend, error)

// RegisterBackendService registers BackendService.{Stats,PostingList,
// TermList,DocFetch} against s, serving a fresh backend.Backend from open
// per call. This is the server side of the remote backend dialed by
// Dial/Backend above; a searcher or indexer process runs it so other
// processes can open a "remote" backend.Backend against it.
func RegisterBackendService(s *grpc.Server, open Opener) {
	s.Register("BackendService.Stats", func(ctx context.Context, raw json.RawMessage) (any, error) {
		b, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		docCount, err := b.DocCount(ctx)
		if err != nil {
			return nil, err
		}
		avgLength, err := b.AvgLength(ctx)
		if err != nil {
			return nil, err
		}
		return &proto.BackendStatsResponse{DocCount: docCount, AvgLength: avgLength}, nil
	})

	s.Register("BackendService.PostingList", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.PostingListRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding PostingListRequest: %w", err)
		}
		b, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		tf, exists, err := b.TermFreq(ctx, req.Term)
		if err != nil {
			return nil, err
		}
		resp := &proto.PostingListResponse{Exists: exists, TermFreq: tf}
		if !exists {
			return resp, nil
		}
		it, err := b.PostingList(ctx, req.Term, req.WithPositions)
		if err != nil {
			return nil, err
		}
		defer it.Close()
		for it.Next() {
			p := it.Posting()
			resp.Postings = append(resp.Postings, proto.RemotePosting{
				DocID:     p.DocID,
				WDF:       p.WDF,
				Positions: p.Positions,
			})
		}
		return resp, nil
	})

	s.Register("BackendService.TermList", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.TermListRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding TermListRequest: %w", err)
		}
		b, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		it, err := b.TermList(ctx, req.DocID)
		if err != nil {
			return nil, err
		}
		defer it.Close()
		resp := &proto.TermListResponse{}
		for it.Next() {
			e := it.Entry()
			resp.Entries = append(resp.Entries, proto.RemoteTermEntry{Term: e.Term, WDF: e.WDF})
		}
		return resp, nil
	})

	s.Register("BackendService.DocFetch", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.DocFetchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding DocFetchRequest: %w", err)
		}
		b, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		doc, err := b.Document(ctx, req.DocID)
		if err != nil {
			if errors.Is(err, rerr.ErrInvalidArgument) {
				return &proto.DocFetchResponse{Found: false}, nil
			}
			return nil, err
		}
		return &proto.DocFetchResponse{Found: true, Length: doc.Length, Data: doc.Data, Keys: doc.Keys}, nil
	})
}
