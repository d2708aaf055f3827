package postlist

// filterNode implements FILTER(a,b): like AND but contributes only a's
// weight — b is a pure boolean mask, used for boolean sub-queries combined
// with a ranked clause (the one place a boolean child is allowed to nest
// inside a non-FILTER-rejecting compound, per §4.7's boolean sub-query
// rule: FILTER is the escape hatch).
type filterNode struct {
	inner *andNode
}

// Filter builds a FILTER node.
func Filter(a, b Node) Node {
	and := AND(a, b)
	if and == Empty {
		return Empty
	}
	return &filterNode{inner: and.(*andNode)}
}

func (f *filterNode) AtEnd() bool             { return false }
func (f *filterNode) DocID() uint64           { return f.inner.DocID() }
func (f *filterNode) Weight() float64         { return f.inner.a.Weight() }
func (f *filterNode) TermFreqEst() int64      { return f.inner.TermFreqEst() }
func (f *filterNode) MaxWeight() float64      { return f.inner.a.MaxWeight() }
func (f *filterNode) RecalcMaxWeight() float64 { return f.inner.a.RecalcMaxWeight() }
func (f *filterNode) Positions() []uint32     { return f.inner.a.Positions() }

func (f *filterNode) Next(minWeight float64) (Node, bool) {
	next, ok := f.inner.Next(minWeight)
	return f.rewrap(next, ok)
}

func (f *filterNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	next, ok := f.inner.SkipTo(target, minWeight)
	return f.rewrap(next, ok)
}

func (f *filterNode) rewrap(next Node, ok bool) (Node, bool) {
	if !ok {
		return Empty, false
	}
	if and, isAnd := next.(*andNode); isAnd {
		f.inner = and
		return f, true
	}
	// inner decayed straight to Empty.
	return Empty, false
}
