// Package remote implements a backend.Backend over the platform's
// internal JSON-over-TCP RPC layer (pkg/grpc, pkg/proto), backed by a
// BackendService exposed by a remote searcher/indexer process. A
// NetworkError while dialing surfaces as OpeningError; a NetworkError
// during any later call surfaces as a transient failure of the current
// operation, per §7.
package remote

import (
	"context"
	"fmt"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/pkg/grpc"
	"github.com/vikram-desai/retrieva/pkg/proto"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

func init() {
	backend.Register(func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
		return Dial(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}, "remote")
}

// Backend is a Backend implementation over a remote BackendService.
type Backend struct {
	client *grpc.Client
}

// Dial opens a connection to a remote BackendService.
func Dial(addr string) (*Backend, error) {
	c, err := grpc.Dial(addr)
	if err != nil {
		return nil, rerr.Newf(rerr.ErrOpeningError, 502, "dialing remote backend %s: %v", addr, err)
	}
	return &Backend{client: c}, nil
}

func (b *Backend) DocCount(ctx context.Context) (int64, error) {
	var resp proto.BackendStatsResponse
	if err := b.client.Call("BackendService.Stats", &proto.BackendStatsRequest{}, &resp); err != nil {
		return 0, wrapNetwork(err)
	}
	return resp.DocCount, nil
}

func (b *Backend) AvgLength(ctx context.Context) (float64, error) {
	var resp proto.BackendStatsResponse
	if err := b.client.Call("BackendService.Stats", &proto.BackendStatsRequest{}, &resp); err != nil {
		return 0, wrapNetwork(err)
	}
	return resp.AvgLength, nil
}

func (b *Backend) TermFreq(ctx context.Context, term string) (int64, bool, error) {
	var resp proto.PostingListResponse
	req := &proto.PostingListRequest{Term: term, WithPositions: false}
	if err := b.client.Call("BackendService.PostingList", req, &resp); err != nil {
		return 0, false, wrapNetwork(err)
	}
	return resp.TermFreq, resp.Exists, nil
}

// DocLength is served through DocFetch: §6 lists BackendService's RPC
// surface as PostingList/TermList/DocFetch/Stats only, so a document's
// length is read off the same DocFetch response used by Document rather
// than adding a fifth method.
func (b *Backend) DocLength(ctx context.Context, docID uint64) (uint32, error) {
	doc, err := b.Document(ctx, docID)
	if err != nil {
		return 0, err
	}
	return doc.Length, nil
}

func (b *Backend) PostingList(ctx context.Context, term string, withPositions bool) (backend.PostingIterator, error) {
	var resp proto.PostingListResponse
	req := &proto.PostingListRequest{Term: term, WithPositions: withPositions}
	if err := b.client.Call("BackendService.PostingList", req, &resp); err != nil {
		return nil, wrapNetwork(err)
	}
	postings := make([]backend.Posting, len(resp.Postings))
	for i, p := range resp.Postings {
		postings[i] = backend.Posting{DocID: p.DocID, WDF: p.WDF, Positions: p.Positions}
	}
	return &iterator{postings: postings, pos: -1, termFreq: resp.TermFreq}, nil
}

func (b *Backend) TermList(ctx context.Context, docID uint64) (backend.TermIterator, error) {
	var resp proto.TermListResponse
	req := &proto.TermListRequest{DocID: docID}
	if err := b.client.Call("BackendService.TermList", req, &resp); err != nil {
		return nil, wrapNetwork(err)
	}
	entries := make([]backend.TermIteratorEntry, len(resp.Entries))
	for i, e := range resp.Entries {
		entries[i] = backend.TermIteratorEntry{Term: e.Term, WDF: e.WDF}
	}
	return &termIterator{entries: entries, pos: -1}, nil
}

func (b *Backend) Document(ctx context.Context, docID uint64) (backend.Document, error) {
	var resp proto.DocFetchResponse
	req := &proto.DocFetchRequest{DocID: docID}
	if err := b.client.Call("BackendService.DocFetch", req, &resp); err != nil {
		return backend.Document{}, wrapNetwork(err)
	}
	if !resp.Found {
		return backend.Document{}, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	return backend.Document{ID: docID, Length: resp.Length, Data: resp.Data, Keys: resp.Keys}, nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

// wrapNetwork maps a transport-level RPC failure to ErrNetwork, per §7's
// NetworkError category for the remote backend.
func wrapNetwork(err error) error {
	return rerr.Newf(rerr.ErrNetwork, 502, "remote backend call failed: %v", err)
}

type iterator struct {
	postings []backend.Posting
	pos      int
	termFreq int64
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.postings)
}

func (it *iterator) SkipTo(target uint64) bool {
	if it.pos >= 0 && it.pos < len(it.postings) && it.postings[it.pos].DocID >= target {
		return true
	}
	for it.pos+1 < len(it.postings) {
		it.pos++
		if it.postings[it.pos].DocID >= target {
			return true
		}
	}
	it.pos = len(it.postings)
	return false
}

func (it *iterator) Posting() backend.Posting { return it.postings[it.pos] }
func (it *iterator) TermFreq() int64          { return it.termFreq }
func (it *iterator) Close() error             { return nil }

type termIterator struct {
	entries []backend.TermIteratorEntry
	pos     int
}

func (t *termIterator) Next() bool {
	t.pos++
	return t.pos < len(t.entries)
}
func (t *termIterator) Entry() backend.TermIteratorEntry { return t.entries[t.pos] }
func (t *termIterator) Close() error                     { return nil }
