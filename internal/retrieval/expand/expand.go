// Package expand implements the relevance-feedback engine of §4.6. It is
// new relative to the reference platform, which only ranks and never
// expands; built in the idiom of the reference platform's ranker package
// (internal/searcher/ranker: free functions over typed params, no hidden
// state), scoring grounded on xapian-core's expand semantics
// (original_source/xapian-core) referenced by the distilled spec's own
// log-odds formula.
package expand

import (
	"context"
	"math"
	"sort"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/multidb"
)

// RSet is the caller-supplied relevance judgement: a set of doc-ids
// flagged relevant.
type RSet map[uint64]struct{}

// ESetItem is one expansion candidate.
type ESetItem struct {
	Term   string
	Weight float64
}

// ESet is the ranked output of Expand.
type ESet struct {
	Items []ESetItem
}

// Decider filters candidate terms by name before scoring.
type Decider func(term string) bool

// Options resolves the expand_* config keys of §6.
type Options struct {
	UseQueryTerms    bool // default true
	UseExactTermfreq bool // default false
	MaxItems         int
}

// TermFreqLookup resolves a term's collection document frequency; backed
// directly by backend.Backend.TermFreq, or by multidb's approximation
// mode when UseExactTermfreq is false (§4.5).
type TermFreqLookup func(ctx context.Context, term string) (int64, error)

type termStats struct {
	r int64 // relevant docs containing the term
}

// Expand runs the algorithm of §4.6: for each relevant doc, walk its term
// list, accumulate per-term (r, R, n, N), score, and keep the top-k.
func Expand(ctx context.Context, b backend.Backend, rset RSet, opts Options, decider Decider, queryTerms map[string]struct{}) (*ESet, error) {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 10
	}
	collSize, err := b.DocCount(ctx)
	if err != nil {
		return nil, err
	}
	termFreq := resolveTermFreqLookup(b, rset, opts.UseExactTermfreq)

	stats := map[string]*termStats{}
	order := []string{}
	for docID := range rset {
		termList, err := b.TermList(ctx, docID)
		if err != nil {
			return nil, err
		}
		for termList.Next() {
			entry := termList.Entry()
			if decider != nil && !decider(entry.Term) {
				continue
			}
			ts, ok := stats[entry.Term]
			if !ok {
				ts = &termStats{}
				stats[entry.Term] = ts
				order = append(order, entry.Term)
			}
			ts.r++
		}
		if err := termList.Close(); err != nil {
			return nil, err
		}
	}

	R := int64(len(rset))
	items := make([]ESetItem, 0, len(order))
	for _, term := range order {
		if !opts.UseQueryTerms {
			if _, isQueryTerm := queryTerms[term]; isQueryTerm {
				continue
			}
		}
		n, err := termFreq(ctx, term)
		if err != nil {
			return nil, err
		}
		w := Score(stats[term].r, R, n, collSize)
		items = append(items, ESetItem{Term: term, Weight: w})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Weight != items[j].Weight {
			return items[i].Weight > items[j].Weight
		}
		return items[i].Term < items[j].Term
	})
	if len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}
	return &ESet{Items: items}, nil
}

// resolveTermFreqLookup picks the term-frequency source per
// Options.UseExactTermfreq. A non-sharded backend has only one source of
// truth either way, so it always goes through b.TermFreq directly; a
// multidb.MultiDB gets the real approximate/exact split of §4.5: exact
// queries every sub via ExactTermFreq, approximate queries only the subs
// the relevance set's documents actually live in via ApproxTermFreq,
// trading precision for fewer cross-shard calls.
func resolveTermFreqLookup(b backend.Backend, rset RSet, exact bool) TermFreqLookup {
	mdb, ok := b.(*multidb.MultiDB)
	if !ok {
		return func(ctx context.Context, term string) (int64, error) {
			tf, _, err := b.TermFreq(ctx, term)
			return tf, err
		}
	}
	if exact {
		return mdb.ExactTermFreq
	}
	subs := make(map[int]struct{}, len(rset))
	for docID := range rset {
		sub, _ := mdb.Unmap(docID)
		subs[sub] = struct{}{}
	}
	return func(ctx context.Context, term string) (int64, error) {
		return mdb.ApproxTermFreq(ctx, term, subs)
	}
}

// Score is the traditional log-odds expansion weight:
//
//	log((r+0.5)(N-n-R+r+0.5) / ((n-r+0.5)(R-r+0.5)))
func Score(r, R, n, N int64) float64 {
	num := (float64(r) + 0.5) * (float64(N) - float64(n) - float64(R) + float64(r) + 0.5)
	den := (float64(n) - float64(r) + 0.5) * (float64(R) - float64(r) + 0.5)
	if den == 0 {
		return 0
	}
	return math.Log(num / den)
}
