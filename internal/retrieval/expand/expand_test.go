package expand

import (
	"context"
	"math"
	"testing"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/memory"
	"github.com/vikram-desai/retrieva/internal/retrieval/multidb"
)

func seedBackend(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	if err := b.BeginSession(ctx); err != nil {
		t.Fatal(err)
	}
	defer b.EndSession(ctx)
	docs := []struct {
		id    uint64
		terms map[string][]uint32
	}{
		{1, map[string][]uint32{"search": {0}, "engine": {1}, "ranking": {2}}},
		{2, map[string][]uint32{"search": {0}, "engine": {1}}},
		{3, map[string][]uint32{"search": {0}, "index": {1}}},
		{4, map[string][]uint32{"unrelated": {0}}},
	}
	for _, d := range docs {
		if err := b.AddDocument(ctx, backend.Document{ID: d.id, Length: 5}, d.terms); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestExpandScoresAndRanksTerms(t *testing.T) {
	b := seedBackend(t)
	rset := RSet{1: {}, 2: {}}
	opts := Options{UseQueryTerms: true, MaxItems: 10}
	eset, err := Expand(context.Background(), b, rset, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]float64{}
	for _, it := range eset.Items {
		found[it.Term] = it.Weight
	}
	if _, ok := found["search"]; !ok {
		t.Fatal("expected 'search' among expansion candidates")
	}
	if _, ok := found["engine"]; !ok {
		t.Fatal("expected 'engine' among expansion candidates")
	}
	if _, ok := found["unrelated"]; ok {
		t.Fatal("'unrelated' never appears in a relevant doc, should not be a candidate")
	}
}

func TestExpandExcludesQueryTermsWhenDisabled(t *testing.T) {
	b := seedBackend(t)
	rset := RSet{1: {}, 2: {}}
	queryTerms := map[string]struct{}{"search": {}}
	opts := Options{UseQueryTerms: false, MaxItems: 10}
	eset, err := Expand(context.Background(), b, rset, opts, nil, queryTerms)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range eset.Items {
		if it.Term == "search" {
			t.Fatal("'search' is a query term and UseQueryTerms=false, should be excluded")
		}
	}
}

func TestExpandRespectsMaxItems(t *testing.T) {
	b := seedBackend(t)
	rset := RSet{1: {}, 2: {}, 3: {}}
	opts := Options{UseQueryTerms: true, MaxItems: 1}
	eset, err := Expand(context.Background(), b, rset, opts, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(eset.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(eset.Items))
	}
}

func TestExpandDeciderFiltersTerms(t *testing.T) {
	b := seedBackend(t)
	rset := RSet{1: {}}
	decider := func(term string) bool { return term != "ranking" }
	opts := Options{UseQueryTerms: true, MaxItems: 10}
	eset, err := Expand(context.Background(), b, rset, opts, decider, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range eset.Items {
		if it.Term == "ranking" {
			t.Fatal("decider should have excluded 'ranking'")
		}
	}
}

func TestExpandDefaultsMaxItemsWhenUnset(t *testing.T) {
	b := seedBackend(t)
	rset := RSet{1: {}, 2: {}, 3: {}}
	eset, err := Expand(context.Background(), b, rset, Options{UseQueryTerms: true}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(eset.Items) == 0 {
		t.Fatal("expected some candidates with default MaxItems")
	}
}

func TestExpandEmptyRSetYieldsNoItems(t *testing.T) {
	b := seedBackend(t)
	eset, err := Expand(context.Background(), b, RSet{}, Options{MaxItems: 10}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(eset.Items) != 0 {
		t.Fatalf("len(Items) = %d, want 0 for empty RSet", len(eset.Items))
	}
}

func newSubBackend(t *testing.T, docs map[uint64]map[string][]uint32) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	b.BeginSession(ctx)
	defer b.EndSession(ctx)
	for id, terms := range docs {
		if err := b.AddDocument(ctx, backend.Document{ID: id, Length: 5}, terms); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestResolveTermFreqLookupApproximateOnlyQueriesTouchedSubs(t *testing.T) {
	sub0 := newSubBackend(t, map[uint64]map[string][]uint32{1: {"search": {0}}})
	sub1 := newSubBackend(t, map[uint64]map[string][]uint32{
		1: {"search": {0}}, 2: {"search": {0}}, 3: {"search": {0}}, 4: {"search": {0}}, 5: {"search": {0}},
	})
	mdb := multidb.New([]backend.Backend{sub0, sub1})

	rset := RSet{mdb.Remap(0, 1): {}}

	approx := resolveTermFreqLookup(mdb, rset, false)
	n, err := approx(context.Background(), "search")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("approximate TermFreq = %d, want 1 (only sub 0, which holds the RSet doc)", n)
	}

	exact := resolveTermFreqLookup(mdb, rset, true)
	n, err = exact(context.Background(), "search")
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("exact TermFreq = %d, want 6 (both subs, 1+5)", n)
	}
}

func TestResolveTermFreqLookupNonShardedAlwaysUsesBackendTermFreq(t *testing.T) {
	b := seedBackend(t)
	for _, exact := range []bool{true, false} {
		lookup := resolveTermFreqLookup(b, RSet{1: {}}, exact)
		n, err := lookup(context.Background(), "search")
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("non-sharded TermFreq lookup (exact=%v) = %d, want 3", exact, n)
		}
	}
}

func TestExpandApproximateVsExactTermfreqProduceDifferentScores(t *testing.T) {
	sub0 := newSubBackend(t, map[uint64]map[string][]uint32{
		1: {"search": {0}, "rare": {1}},
	})
	sub1 := newSubBackend(t, map[uint64]map[string][]uint32{
		1: {"rare": {0}}, 2: {"rare": {0}}, 3: {"rare": {0}},
	})
	mdb := multidb.New([]backend.Backend{sub0, sub1})
	rset := RSet{mdb.Remap(0, 1): {}}

	approxSet, err := Expand(context.Background(), mdb, rset, Options{UseExactTermfreq: false, MaxItems: 10}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	exactSet, err := Expand(context.Background(), mdb, rset, Options{UseExactTermfreq: true, MaxItems: 10}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	weightOf := func(eset *ESet, term string) (float64, bool) {
		for _, it := range eset.Items {
			if it.Term == term {
				return it.Weight, true
			}
		}
		return 0, false
	}
	approxW, ok := weightOf(approxSet, "rare")
	if !ok {
		t.Fatal("expected 'rare' in approximate expansion")
	}
	exactW, ok := weightOf(exactSet, "rare")
	if !ok {
		t.Fatal("expected 'rare' in exact expansion")
	}
	if approxW == exactW {
		t.Fatalf("approximate and exact termfreq should score 'rare' differently (approx ignores sub 1's extra occurrences): approx=%v exact=%v", approxW, exactW)
	}
}

func TestScoreFavorsTermsConcentratedInRelevantSet(t *testing.T) {
	concentrated := Score(5, 5, 5, 100) // appears in all relevant docs, rare overall
	diffuse := Score(5, 5, 50, 100)     // appears in all relevant docs, common overall
	if !(concentrated > diffuse) {
		t.Fatalf("a rarer term concentrated in R should score higher: concentrated=%v diffuse=%v", concentrated, diffuse)
	}
}

func TestScoreZeroDenominatorReturnsZero(t *testing.T) {
	// n == r and R == r drives the denominator to (0.5)*(0.5), not zero;
	// construct actual degenerate inputs where den is exactly 0 only via
	// float cancellation is not generally reachable, so just assert no NaN.
	s := Score(0, 0, 0, 0)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		t.Fatalf("Score(0,0,0,0) = %v, want a finite value", s)
	}
}
