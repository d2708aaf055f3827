package postlist

// orNode implements OR(a,b): merge-advance, emit the lesser doc-id, or
// both summed when equal. Self-decays to the surviving side once either
// child hits Empty, per the self-replacing iterator contract of §9.
type orNode struct {
	a, b   Node
	docID  uint64
	weight float64
}

// OR builds an OR node over two already-constructed children. Callers
// building an n-ary OR fold this pairwise, left to right.
func OR(a, b Node) Node {
	if a == Empty {
		return b
	}
	if b == Empty {
		return a
	}
	return &orNode{a: a, b: b}
}

func (o *orNode) AtEnd() bool       { return false }
func (o *orNode) DocID() uint64     { return o.docID }
func (o *orNode) Weight() float64   { return o.weight }
func (o *orNode) Positions() []uint32 {
	// OR does not preserve positions: its children may disagree on
	// doc-id, so there is no single coherent position list to expose.
	return nil
}

func (o *orNode) TermFreqEst() int64 {
	af, bf := o.a.TermFreqEst(), o.b.TermFreqEst()
	// Lower bound: every doc could be in both, so the true count is at
	// most the sum and at least the max of the two; the max is returned.
	if af > bf {
		return af
	}
	return bf
}

func (o *orNode) MaxWeight() float64 { return o.a.MaxWeight() + o.b.MaxWeight() }

func (o *orNode) RecalcMaxWeight() float64 {
	return o.a.RecalcMaxWeight() + o.b.RecalcMaxWeight()
}

func (o *orNode) Next(minWeight float64) (Node, bool) {
	aNeeds := !o.started() || o.a.DocID() <= o.docID
	bNeeds := !o.started() || o.b.DocID() <= o.docID
	return o.advance(minWeight, aNeeds, bNeeds, func(n Node) (Node, bool) { return n.Next(minWeight) })
}

func (o *orNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	aNeeds := !o.started() || o.a.DocID() < target
	bNeeds := !o.started() || o.b.DocID() < target
	return o.advance(minWeight, aNeeds, bNeeds, func(n Node) (Node, bool) { return n.SkipTo(target, minWeight) })
}

// started reports whether this node has produced at least one result.
func (o *orNode) started() bool { return o.docID != 0 }

// advance drives whichever side(s) need moving, then merges.
func (o *orNode) advance(minWeight float64, aNeeds, bNeeds bool, op func(Node) (Node, bool)) (Node, bool) {
	if aNeeds && !o.a.AtEnd() {
		na, _ := op(o.a)
		o.a = na
	}
	if bNeeds && !o.b.AtEnd() {
		nb, _ := op(o.b)
		o.b = nb
	}
	if o.a == Empty && o.b == Empty {
		return Empty, false
	}
	if o.a == Empty {
		return o.b, !o.b.AtEnd()
	}
	if o.b == Empty {
		return o.a, !o.a.AtEnd()
	}
	return o.merge()
}

func (o *orNode) merge() (Node, bool) {
	if o.a.AtEnd() && o.b.AtEnd() {
		return Empty, false
	}
	if o.a.AtEnd() {
		return o.b, true
	}
	if o.b.AtEnd() {
		return o.a, true
	}
	da, db := o.a.DocID(), o.b.DocID()
	switch {
	case da == db:
		o.docID = da
		o.weight = o.a.Weight() + o.b.Weight()
	case da < db:
		o.docID = da
		o.weight = o.a.Weight()
	default:
		o.docID = db
		o.weight = o.b.Weight()
	}
	return o, true
}
