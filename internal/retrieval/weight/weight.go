// Package weight implements the weighting model of §4.3: a monotone,
// BM25-shaped function of within-document frequency, document length,
// term frequency, collection size, within-query frequency, and query
// length, grounded on the reference platform's BM25 ranker
// (internal/searcher/ranker). Unlike the ranker, a Model also exposes the
// finite supremum of the function (MaxWeight) so postlist.Leaf can prune
// without enumerating documents.
package weight

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

// Stats are the collection-wide statistics a term's weight depends on.
type Stats struct {
	CollectionSize int64   // N
	TermFreq       int64   // n: documents containing the term
	AvgLength      float64 // average document length
}

// Model is a bound weighting function for one query term: its IDF and
// query-side contribution are fixed once at construction, leaving only
// (wdf, docLength) to vary per posting.
type Model struct {
	idf       float64
	qweight   float64
	avgLength float64
	bool_     bool
}

// NewModel resolves a Model for one query term. wqf is the term's
// within-query frequency, qlen the query's length (sum of leaf wqfs,
// possibly overridden). If boolQuery is true every posting weighs 0 and
// MaxWeight is 0, per §4.7's set_bool contract.
func NewModel(stats Stats, wqf uint32, qlen float64, boolQuery bool) *Model {
	if boolQuery {
		return &Model{bool_: true}
	}
	return &Model{
		idf:       idf(stats.CollectionSize, stats.TermFreq),
		qweight:   qweight(wqf, qlen),
		avgLength: stats.AvgLength,
	}
}

// Weight computes the contribution of one posting. Monotone: increasing
// wdf never decreases it; increasing docLength/avlen beyond 1 never
// increases it (length normalisation). Matches the postlist.Weighter
// interface, which has no avgLength parameter — the model resolves it
// once from Stats at construction instead.
func (m *Model) Weight(wdf uint32, docLength uint32) float64 {
	if m.bool_ {
		return 0
	}
	return m.idf * tfNorm(float64(wdf), float64(docLength), m.avgLength) * m.qweight
}

// MaxWeight is the supremum of Weight over all reachable postings. BM25's
// tf-normalisation term saturates at k1+1 as wdf -> infinity and
// docLength/avgLength -> 0, so the supremum is finite and closed-form —
// no document enumeration required.
func (m *Model) MaxWeight() float64 {
	if m.bool_ {
		return 0
	}
	return m.idf * (k1 + 1) * m.qweight
}

func idf(collectionSize, termFreq int64) float64 {
	if termFreq <= 0 {
		return 0
	}
	numerator := float64(collectionSize) - float64(termFreq)
	denominator := float64(termFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func tfNorm(wdf, docLength, avgLength float64) float64 {
	if avgLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgLength
	denominator := wdf + k1*(1-b+b*lengthRatio)
	if denominator == 0 {
		return 0
	}
	return (wdf * (k1 + 1)) / denominator
}

// qweight is the within-query contribution: a term mentioned more often
// in the query is weighted more heavily. qlen is accepted for the S7/§4.3
// signature (f(..., wqf, qlen)) but, like the reference ranker's BM25,
// carries no separate normalization term of its own — scaling is by wqf
// alone.
func qweight(wqf uint32, _ float64) float64 {
	return float64(wqf)
}
