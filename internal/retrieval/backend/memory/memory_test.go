package memory

import (
	"context"
	"testing"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
)

func addDoc(t *testing.T, b *Backend, id uint64, length uint32, terms map[string][]uint32) {
	t.Helper()
	ctx := context.Background()
	if err := b.BeginSession(ctx); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	defer b.EndSession(ctx)
	if err := b.AddDocument(ctx, backend.Document{ID: id, Length: length}, terms); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
}

func TestAddDocumentAssignsSequentialIDs(t *testing.T) {
	b := New()
	ctx := context.Background()
	b.BeginSession(ctx)
	if err := b.AddDocument(ctx, backend.Document{Length: 5}, map[string][]uint32{"a": {0}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddDocument(ctx, backend.Document{Length: 5}, map[string][]uint32{"a": {0}}); err != nil {
		t.Fatal(err)
	}
	b.EndSession(ctx)

	if n := b.Size(); n != 2 {
		t.Fatalf("Size() = %d, want 2", n)
	}
	if _, err := b.Document(ctx, 1); err != nil {
		t.Errorf("doc 1 should exist: %v", err)
	}
	if _, err := b.Document(ctx, 2); err != nil {
		t.Errorf("doc 2 should exist: %v", err)
	}
}

func TestAddDocumentOutsideSessionFails(t *testing.T) {
	b := New()
	err := b.AddDocument(context.Background(), backend.Document{ID: 1, Length: 1}, nil)
	if err == nil {
		t.Fatal("expected error adding outside a session")
	}
}

func TestTermFreqAndPostingList(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"search": {0, 4}})
	addDoc(t, b, 2, 8, map[string][]uint32{"search": {2}})
	addDoc(t, b, 3, 6, map[string][]uint32{"other": {0}})

	tf, ok, err := b.TermFreq(context.Background(), "search")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || tf != 2 {
		t.Fatalf("TermFreq(search) = %d, %v, want 2, true", tf, ok)
	}

	tf, ok, err = b.TermFreq(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok || tf != 0 {
		t.Fatalf("TermFreq(missing) = %d, %v, want 0, false", tf, ok)
	}

	it, err := b.PostingList(context.Background(), "search", true)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	var gotIDs []uint64
	for it.Next() {
		p := it.Posting()
		gotIDs = append(gotIDs, p.DocID)
		if p.DocID == 1 && p.WDF != 2 {
			t.Errorf("doc 1 WDF = %d, want 2", p.WDF)
		}
	}
	if len(gotIDs) != 2 || gotIDs[0] != 1 || gotIDs[1] != 2 {
		t.Fatalf("posting list doc-ids = %v, want [1 2] (ascending)", gotIDs)
	}
}

func TestPostingListWithoutPositionsOmitsThem(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"term": {0, 1, 2}})

	it, err := b.PostingList(context.Background(), "term", false)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	if !it.Next() {
		t.Fatal("expected one posting")
	}
	if p := it.Posting(); p.Positions != nil {
		t.Errorf("Positions = %v, want nil when withPositions=false", p.Positions)
	}
}

func TestTermListReturnsSortedEntries(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"zeta": {0}, "alpha": {1}, "mid": {2, 3}})

	it, err := b.TermList(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	var terms []string
	for it.Next() {
		terms = append(terms, it.Entry().Term)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(terms) != len(want) {
		t.Fatalf("got %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("got %v, want %v", terms, want)
		}
	}
}

func TestDocumentNotFound(t *testing.T) {
	b := New()
	if _, err := b.Document(context.Background(), 99); err == nil {
		t.Fatal("expected error for missing document")
	}
	if _, err := b.DocLength(context.Background(), 99); err == nil {
		t.Fatal("expected error for missing document length")
	}
}

func TestAvgLength(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"a": {0}})
	addDoc(t, b, 2, 20, map[string][]uint32{"a": {0}})

	avg, err := b.AvgLength(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if avg != 15 {
		t.Fatalf("AvgLength = %v, want 15", avg)
	}
}

func TestSnapshotAndReset(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"search": {0}})
	addDoc(t, b, 2, 20, map[string][]uint32{"search": {1}, "other": {0}})

	terms, docs, avg := b.Snapshot()
	if len(terms) != 2 {
		t.Fatalf("Snapshot terms = %d, want 2", len(terms))
	}
	if len(docs) != 2 {
		t.Fatalf("Snapshot docs = %d, want 2", len(docs))
	}
	if avg != 15 {
		t.Fatalf("Snapshot avg = %v, want 15", avg)
	}

	b.Reset()
	if b.Size() != 0 {
		t.Fatalf("Size() after Reset = %d, want 0", b.Size())
	}
	if _, ok, _ := b.TermFreq(context.Background(), "search"); ok {
		t.Fatal("expected no terms after Reset")
	}
}

func TestReAddingDocumentUpdatesTotalLength(t *testing.T) {
	b := New()
	addDoc(t, b, 1, 10, map[string][]uint32{"a": {0}})
	addDoc(t, b, 1, 20, map[string][]uint32{"a": {0}})

	if n := b.Size(); n != 1 {
		t.Fatalf("Size() = %d, want 1 (re-add shouldn't grow doc count)", n)
	}
	avg, _ := b.AvgLength(context.Background())
	if avg != 20 {
		t.Fatalf("AvgLength after re-add = %v, want 20", avg)
	}
}
