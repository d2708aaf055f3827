package postlist

import (
	"context"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
)

// Weighter computes a posting's contributed weight and this leaf's static
// maxweight, decoupling postlist from the concrete weighting model in
// package weight.
type Weighter interface {
	Weight(wdf uint32, docLength uint32) float64
	MaxWeight() float64
}

// Leaf wraps a single term's backend.PostingIterator as a Node, scoring
// each posting through a Weighter. A Leaf constructed with a nil Weighter
// is a pure boolean leaf: every posting weighs 0 and MaxWeight is 0,
// matching set_bool semantics (§4.7).
type Leaf struct {
	ctx       context.Context
	it        backend.PostingIterator
	docLength func(ctx context.Context, docID uint64) (uint32, error)
	w         Weighter
	started   bool
	atEnd     bool
	cur       backend.Posting
	maxw      float64
}

// NewLeaf builds a Leaf over an already-open backend.PostingIterator.
// docLength supplies per-document length for the weighting model; it may
// be nil only when w is also nil (pure boolean leaf).
func NewLeaf(ctx context.Context, it backend.PostingIterator, docLength func(context.Context, uint64) (uint32, error), w Weighter) *Leaf {
	maxw := 0.0
	if w != nil {
		maxw = w.MaxWeight()
	}
	return &Leaf{ctx: ctx, it: it, docLength: docLength, w: w, maxw: maxw}
}

func (l *Leaf) AtEnd() bool   { return l.atEnd }
func (l *Leaf) DocID() uint64 { return l.cur.DocID }

func (l *Leaf) Weight() float64 {
	if l.atEnd || l.w == nil {
		return 0
	}
	dlen, err := l.docLength(l.ctx, l.cur.DocID)
	if err != nil {
		return 0
	}
	return l.w.Weight(l.cur.WDF, dlen)
}

func (l *Leaf) TermFreqEst() int64 { return l.it.TermFreq() }
func (l *Leaf) MaxWeight() float64 {
	if l.atEnd {
		return 0
	}
	return l.maxw
}
func (l *Leaf) RecalcMaxWeight() float64 { return l.MaxWeight() }

func (l *Leaf) Positions() []uint32 {
	if l.atEnd {
		return nil
	}
	return l.cur.Positions
}

// advanceIfBelow decays to Empty when the leaf can no longer reach
// minWeight — the only pruning a doc-id-ordered leaf can perform, per
// DESIGN.md's backend-level min_weight pushdown note.
func (l *Leaf) advanceIfBelow(minWeight float64) (Node, bool) {
	if minWeight > 0 && l.maxw < minWeight {
		l.atEnd = true
		return Empty, false
	}
	return nil, false
}

func (l *Leaf) Next(minWeight float64) (Node, bool) {
	if l.atEnd {
		return l, false
	}
	if replacement, ok := l.advanceIfBelow(minWeight); replacement != nil {
		return replacement, ok
	}
	l.started = true
	if !l.it.Next() {
		l.atEnd = true
		return l, false
	}
	l.cur = l.it.Posting()
	return l, true
}

func (l *Leaf) SkipTo(target uint64, minWeight float64) (Node, bool) {
	if l.atEnd {
		return l, false
	}
	if l.started && l.cur.DocID >= target {
		return l, true
	}
	if replacement, ok := l.advanceIfBelow(minWeight); replacement != nil {
		return replacement, ok
	}
	l.started = true
	if !l.it.SkipTo(target) {
		l.atEnd = true
		return l, false
	}
	l.cur = l.it.Posting()
	return l, true
}
