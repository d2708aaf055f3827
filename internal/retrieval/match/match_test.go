package match

import (
	"context"
	"testing"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/postlist"
)

// scoredIterator yields postings whose WDF mirrors the doc-id, so a
// Weighter that returns wdf as-is produces a weight equal to the doc-id —
// lets tests assert on ranking order directly.
type scoredIterator struct {
	postings []backend.Posting
	idx      int
}

func newScoredIterator(docIDs ...uint64) *scoredIterator {
	postings := make([]backend.Posting, len(docIDs))
	for i, id := range docIDs {
		postings[i] = backend.Posting{DocID: id, WDF: uint32(id)}
	}
	return &scoredIterator{postings: postings, idx: -1}
}

func (s *scoredIterator) Next() bool {
	if s.idx+1 >= len(s.postings) {
		s.idx = len(s.postings)
		return false
	}
	s.idx++
	return true
}

func (s *scoredIterator) SkipTo(target uint64) bool {
	for {
		if s.idx >= 0 && s.idx < len(s.postings) && s.postings[s.idx].DocID >= target {
			return true
		}
		if !s.Next() {
			return false
		}
	}
}

func (s *scoredIterator) Posting() backend.Posting { return s.postings[s.idx] }
func (s *scoredIterator) TermFreq() int64          { return int64(len(s.postings)) }
func (s *scoredIterator) Close() error             { return nil }

// identityWeighter scores a posting as its raw wdf, with MaxWeight fixed at
// construction to the largest doc-id that will appear.
type identityWeighter struct{ maxDocID uint64 }

func (w identityWeighter) Weight(wdf, docLength uint32) float64 { return float64(wdf) }
func (w identityWeighter) MaxWeight() float64                   { return float64(w.maxDocID) }

func docLenConst(ctx context.Context, docID uint64) (uint32, error) { return 10, nil }

func newWeightedLeaf(docIDs ...uint64) postlist.Node {
	it := newScoredIterator(docIDs...)
	var maxID uint64
	for _, id := range docIDs {
		if id > maxID {
			maxID = id
		}
	}
	return postlist.NewLeaf(context.Background(), it, docLenConst, identityWeighter{maxDocID: maxID})
}

func TestCollectorReturnsTopKByWeight(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	c := New(Options{MaxItems: 2, SortForward: true}, nil, nil)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(mset.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(mset.Items))
	}
	if mset.Items[0].DocID != 5 || mset.Items[1].DocID != 4 {
		t.Fatalf("got docs [%d %d], want [5 4] (strongest first)", mset.Items[0].DocID, mset.Items[1].DocID)
	}
}

func TestCollectorMBoundCountsAllDecidedMatches(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	c := New(Options{MaxItems: 2}, nil, nil)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if mset.MBound != 5 {
		t.Fatalf("MBound = %d, want 5 (all 5 postings scanned)", mset.MBound)
	}
}

func TestCollectorDeciderFiltersDocuments(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	decider := func(docID uint64) bool { return docID%2 == 0 }
	c := New(Options{MaxItems: 10}, decider, nil)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range mset.Items {
		if it.DocID%2 != 0 {
			t.Fatalf("decider should have excluded odd doc-id %d", it.DocID)
		}
	}
	if len(mset.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2 (docs 2 and 4)", len(mset.Items))
	}
}

func TestCollectorFirstSkipsLeadingResults(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	c := New(Options{MaxItems: 10, First: 1, SortForward: true}, nil, nil)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(mset.Items) != 4 {
		t.Fatalf("len(Items) = %d, want 4 after skipping the first", len(mset.Items))
	}
	if mset.Items[0].DocID != 4 {
		t.Fatalf("first item after skip = doc %d, want 4 (second-strongest)", mset.Items[0].DocID)
	}
}

func TestCollectorDeciderPanicBecomesError(t *testing.T) {
	root := newWeightedLeaf(1, 2)
	decider := func(docID uint64) bool { panic("boom") }
	c := New(Options{MaxItems: 10}, decider, nil)
	_, err := c.Run(context.Background(), root)
	if err == nil {
		t.Fatal("expected an error after decider panic, got nil")
	}
}

func TestCollectorContextCancellation(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(Options{MaxItems: 10}, nil, nil)
	_, err := c.Run(ctx, root)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

// groupParityKeyFn groups doc-ids by parity, so docs {1,3,5} share one
// collapse key and docs {2,4} share another.
func groupParityKeyFn(ctx context.Context, docID uint64, key int) ([]byte, error) {
	if docID%2 == 0 {
		return []byte("even"), nil
	}
	return []byte("odd"), nil
}

func TestCollectorCollapseKeepsOnlyStrongestPerKey(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	c := New(Options{MaxItems: 10, CollapseKey: 1}, nil, groupParityKeyFn)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(mset.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2 (one survivor per collapse key), got %+v", len(mset.Items), mset.Items)
	}
	if mset.Items[0].DocID != 5 || mset.Items[1].DocID != 4 {
		t.Fatalf("got docs [%d %d], want [5 4] (strongest odd and strongest even)", mset.Items[0].DocID, mset.Items[1].DocID)
	}
}

func TestCollectorCollapseKeyZeroDisablesCollapsing(t *testing.T) {
	root := newWeightedLeaf(1, 2, 3, 4, 5)
	c := New(Options{MaxItems: 10, CollapseKey: 0}, nil, groupParityKeyFn)
	mset, err := c.Run(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if len(mset.Items) != 5 {
		t.Fatalf("len(Items) = %d, want 5 (CollapseKey=0 means no grouping)", len(mset.Items))
	}
}

func TestCollectorEmptyNodeYieldsNoItems(t *testing.T) {
	c := New(Options{MaxItems: 10}, nil, nil)
	mset, err := c.Run(context.Background(), postlist.Empty)
	if err != nil {
		t.Fatal(err)
	}
	if len(mset.Items) != 0 {
		t.Fatalf("len(Items) = %d, want 0 for Empty node", len(mset.Items))
	}
}
