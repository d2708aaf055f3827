package indexer

import (
	"context"
	"sort"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
)

// mergedBackend presents N sub-backends that already share one flat
// doc-id space (no remap needed, unlike multidb.MultiDB) as a single
// backend.Backend. Grounded on the reference platform's Engine.Search,
// which merged the in-memory index and every flushed segment reader by
// plain doc-id dedup/sort.
type mergedBackend struct {
	subs []backend.Backend
}

func newMergedBackend(subs []backend.Backend) *mergedBackend {
	return &mergedBackend{subs: subs}
}

func (m *mergedBackend) DocCount(ctx context.Context) (int64, error) {
	var total int64
	for _, s := range m.subs {
		c, err := s.DocCount(ctx)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

func (m *mergedBackend) AvgLength(ctx context.Context) (float64, error) {
	var totalDocs int64
	var totalLen float64
	for _, s := range m.subs {
		c, err := s.DocCount(ctx)
		if err != nil {
			return 0, err
		}
		avg, err := s.AvgLength(ctx)
		if err != nil {
			return 0, err
		}
		totalDocs += c
		totalLen += avg * float64(c)
	}
	if totalDocs == 0 {
		return 0, nil
	}
	return totalLen / float64(totalDocs), nil
}

func (m *mergedBackend) TermFreq(ctx context.Context, term string) (int64, bool, error) {
	var total int64
	var found bool
	for _, s := range m.subs {
		tf, ok, err := s.TermFreq(ctx, term)
		if err != nil {
			return 0, false, err
		}
		if ok {
			found = true
			total += tf
		}
	}
	return total, found, nil
}

func (m *mergedBackend) DocLength(ctx context.Context, docID uint64) (uint32, error) {
	for _, s := range m.subs {
		if length, err := s.DocLength(ctx, docID); err == nil {
			return length, nil
		}
	}
	return 0, backend.ErrClosed
}

// PostingList merges each sub's postings for term into one doc-id-sorted
// slice. Since ids never collide across subs, this is a union, not a
// weight-ordered or remap-aware merge.
func (m *mergedBackend) PostingList(ctx context.Context, term string, withPositions bool) (backend.PostingIterator, error) {
	var all []backend.Posting
	var termFreq int64
	for _, s := range m.subs {
		it, err := s.PostingList(ctx, term, withPositions)
		if err != nil {
			return nil, err
		}
		for it.Next() {
			all = append(all, it.Posting())
		}
		termFreq += it.TermFreq()
		it.Close()
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DocID < all[j].DocID })
	return &sliceIterator{postings: all, pos: -1, termFreq: termFreq}, nil
}

func (m *mergedBackend) TermList(ctx context.Context, docID uint64) (backend.TermIterator, error) {
	for _, s := range m.subs {
		if it, err := s.TermList(ctx, docID); err == nil {
			return it, nil
		}
	}
	return nil, backend.ErrClosed
}

func (m *mergedBackend) Document(ctx context.Context, docID uint64) (backend.Document, error) {
	var lastErr error
	for _, s := range m.subs {
		doc, err := s.Document(ctx, docID)
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	return backend.Document{}, lastErr
}

func (m *mergedBackend) Close() error { return nil }

type sliceIterator struct {
	postings []backend.Posting
	pos      int
	termFreq int64
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
func (s *sliceIterator) TermFreq() int64          { return s.termFreq }
func (s *sliceIterator) Close() error             { return nil }
