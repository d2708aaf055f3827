// Package memory implements a writable, in-memory backend.Backend,
// grounded on the reference platform's index.MemoryIndex
// (internal/indexer/index/memory_index.go): the same term/doc map shape
// and sync.RWMutex locking pattern, generalized from "string doc ids" to
// the core's uint64 doc-ids and extended with document blob/key storage
// and session-scoped writes.
package memory

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

func init() {
	backend.Register(func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
		return New(), nil
	}, "inmemory")
}

type docEntry struct {
	length uint32
	data   []byte
	keys   map[int][]byte
}

// Backend is the in-memory writable backend.
type Backend struct {
	mu         sync.RWMutex
	index      map[string]map[uint64]*backend.Posting
	docs       map[uint64]*docEntry
	docCount   int64
	totalLen   int64
	sessionOn  int32
	nextDoc    uint64
	logger     *slog.Logger
	closed     bool
}

// New builds an empty in-memory backend.
func New() *Backend {
	b := &Backend{
		index:  make(map[string]map[uint64]*backend.Posting),
		docs:   make(map[uint64]*docEntry),
		logger: slog.Default().With("component", "retrieval-backend-memory"),
	}
	// Guaranteed release on all exit paths, including a caller that never
	// calls EndSession: the finalizer logs rather than panicking, since a
	// finalizer cannot return an error to anyone.
	runtime.SetFinalizer(b, func(b *Backend) {
		if atomic.LoadInt32(&b.sessionOn) == 1 {
			b.logger.Warn("write session finalized without explicit EndSession")
		}
	})
	return b
}

func (b *Backend) BeginSession(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&b.sessionOn, 0, 1) {
		return rerr.New(rerr.ErrInternal, 500, "write session already open")
	}
	return nil
}

func (b *Backend) EndSession(ctx context.Context) error {
	atomic.StoreInt32(&b.sessionOn, 0)
	return nil
}

// AddDocument indexes doc's terms. Must be called within a session opened
// by BeginSession.
func (b *Backend) AddDocument(ctx context.Context, doc backend.Document, terms map[string][]uint32) error {
	if atomic.LoadInt32(&b.sessionOn) != 1 {
		return rerr.New(rerr.ErrInternal, 500, "AddDocument called outside a write session")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	docID := doc.ID
	if docID == 0 {
		b.nextDoc++
		docID = b.nextDoc
	} else if docID > b.nextDoc {
		b.nextDoc = docID
	}

	for term, positions := range terms {
		perDoc, ok := b.index[term]
		if !ok {
			perDoc = make(map[uint64]*backend.Posting)
			b.index[term] = perDoc
		}
		pos := make([]uint32, len(positions))
		copy(pos, positions)
		sort.Slice(pos, func(i, j int) bool { return pos[i] < pos[j] })
		perDoc[docID] = &backend.Posting{DocID: docID, WDF: uint32(len(positions)), Positions: pos}
	}

	keys := doc.Keys
	if keys == nil {
		keys = map[int][]byte{}
	}
	if _, exists := b.docs[docID]; !exists {
		b.docCount++
	} else {
		b.totalLen -= int64(b.docs[docID].length)
	}
	b.docs[docID] = &docEntry{length: doc.Length, data: doc.Data, keys: keys}
	b.totalLen += int64(doc.Length)
	return nil
}

func (b *Backend) DocCount(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docCount, nil
}

func (b *Backend) AvgLength(ctx context.Context) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.docCount == 0 {
		return 0, nil
	}
	return float64(b.totalLen) / float64(b.docCount), nil
}

func (b *Backend) TermFreq(ctx context.Context, term string) (int64, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	perDoc, ok := b.index[term]
	if !ok {
		return 0, false, nil
	}
	return int64(len(perDoc)), true, nil
}

func (b *Backend) DocLength(ctx context.Context, docID uint64) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.docs[docID]
	if !ok {
		return 0, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	return d.length, nil
}

func (b *Backend) PostingList(ctx context.Context, term string, withPositions bool) (backend.PostingIterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	perDoc, ok := b.index[term]
	if !ok {
		return &sliceIterator{}, nil
	}
	ids := make([]uint64, 0, len(perDoc))
	for id := range perDoc {
		ids = append(ids, id)
	}
	backend.SortedUint64(ids)
	postings := make([]backend.Posting, len(ids))
	for i, id := range ids {
		p := *perDoc[id]
		if !withPositions {
			p.Positions = nil
		}
		postings[i] = p
	}
	return &sliceIterator{postings: postings, pos: -1}, nil
}

func (b *Backend) TermList(ctx context.Context, docID uint64) (backend.TermIterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var entries []backend.TermIteratorEntry
	for term, perDoc := range b.index {
		if p, ok := perDoc[docID]; ok {
			entries = append(entries, backend.TermIteratorEntry{Term: term, WDF: p.WDF})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Term < entries[j].Term })
	return &termIterator{entries: entries, pos: -1}, nil
}

func (b *Backend) Document(ctx context.Context, docID uint64) (backend.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.docs[docID]
	if !ok {
		return backend.Document{}, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	keys := make(map[int][]byte, len(d.keys))
	for k, v := range d.keys {
		keys[k] = v
	}
	return backend.Document{ID: docID, Length: d.length, Data: d.data, Keys: keys}, nil
}

// Snapshot returns every term's postings and every document, sorted by
// term/doc-id respectively, and the collection's average length. Used by
// a caller flushing this backend's contents into an immutable segment
// file (see internal/indexer.Engine.Flush).
func (b *Backend) Snapshot() (terms []TermPostings, docs []backend.Document, avgLength float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	termNames := make([]string, 0, len(b.index))
	for t := range b.index {
		termNames = append(termNames, t)
	}
	sort.Strings(termNames)
	terms = make([]TermPostings, 0, len(termNames))
	for _, t := range termNames {
		perDoc := b.index[t]
		ids := make([]uint64, 0, len(perDoc))
		for id := range perDoc {
			ids = append(ids, id)
		}
		backend.SortedUint64(ids)
		postings := make([]backend.Posting, len(ids))
		for i, id := range ids {
			postings[i] = *perDoc[id]
		}
		terms = append(terms, TermPostings{Term: t, Postings: postings})
	}

	docIDs := make([]uint64, 0, len(b.docs))
	for id := range b.docs {
		docIDs = append(docIDs, id)
	}
	backend.SortedUint64(docIDs)
	docs = make([]backend.Document, len(docIDs))
	for i, id := range docIDs {
		d := b.docs[id]
		docs[i] = backend.Document{ID: id, Length: d.length, Data: d.data, Keys: d.keys}
	}

	if b.docCount > 0 {
		avgLength = float64(b.totalLen) / float64(b.docCount)
	}
	return terms, docs, avgLength
}

// TermPostings is one term's full posting list, mirroring
// segment.TermPostings so Snapshot's result feeds segment.Writer.Write
// directly without an intermediate conversion type.
type TermPostings struct {
	Term     string
	Postings []backend.Posting
}

// Reset clears all indexed terms and documents, for a caller that has just
// flushed this backend's contents into a segment file and wants to resume
// accepting writes into an empty hot store.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = make(map[string]map[uint64]*backend.Posting)
	b.docs = make(map[uint64]*docEntry)
	b.docCount = 0
	b.totalLen = 0
}

// Size reports the number of documents currently held, the threshold an
// Engine compares against its configured flush size.
func (b *Backend) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docCount
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	runtime.SetFinalizer(b, nil)
	return nil
}

type sliceIterator struct {
	postings []backend.Posting
	pos      int
}

func (s *sliceIterator) Next() bool {
	s.pos++
	return s.pos < len(s.postings)
}

func (s *sliceIterator) SkipTo(target uint64) bool {
	if s.pos >= 0 && s.pos < len(s.postings) && s.postings[s.pos].DocID >= target {
		return true
	}
	for s.pos+1 < len(s.postings) {
		s.pos++
		if s.postings[s.pos].DocID >= target {
			return true
		}
	}
	s.pos = len(s.postings)
	return false
}

func (s *sliceIterator) Posting() backend.Posting { return s.postings[s.pos] }
func (s *sliceIterator) TermFreq() int64          { return int64(len(s.postings)) }
func (s *sliceIterator) Close() error             { return nil }

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
