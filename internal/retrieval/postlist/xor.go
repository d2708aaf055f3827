package postlist

// xorNode implements XOR(a,b): emit documents present in exactly one side;
// weight is that side's weight. Structurally close to OR but rejects the
// "both sides agree" case instead of summing it.
type xorNode struct {
	a, b    Node
	started bool
	docID   uint64
	weight  float64
}

// Xor builds an XOR node over two children.
func Xor(a, b Node) Node {
	if a == Empty {
		return b
	}
	if b == Empty {
		return a
	}
	return &xorNode{a: a, b: b}
}

func (x *xorNode) AtEnd() bool     { return false }
func (x *xorNode) DocID() uint64   { return x.docID }
func (x *xorNode) Weight() float64 { return x.weight }
func (x *xorNode) TermFreqEst() int64 {
	return x.a.TermFreqEst() + x.b.TermFreqEst()
}
func (x *xorNode) MaxWeight() float64 {
	am, bm := x.a.MaxWeight(), x.b.MaxWeight()
	if am > bm {
		return am
	}
	return bm
}
func (x *xorNode) RecalcMaxWeight() float64 {
	am, bm := x.a.RecalcMaxWeight(), x.b.RecalcMaxWeight()
	if am > bm {
		return am
	}
	return bm
}
func (x *xorNode) Positions() []uint32 { return nil }

func (x *xorNode) Next(minWeight float64) (Node, bool) {
	aNeeds := !x.started || x.a.DocID() <= x.docID
	bNeeds := !x.started || x.b.DocID() <= x.docID
	return x.advance(aNeeds, bNeeds, func(n Node) (Node, bool) { return n.Next(minWeight) })
}

func (x *xorNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	aNeeds := !x.started || x.a.DocID() < target
	bNeeds := !x.started || x.b.DocID() < target
	return x.advance(aNeeds, bNeeds, func(n Node) (Node, bool) { return n.SkipTo(target, minWeight) })
}

func (x *xorNode) advance(aNeeds, bNeeds bool, op func(Node) (Node, bool)) (Node, bool) {
	x.started = true
	for {
		if aNeeds && !x.a.AtEnd() {
			na, _ := op(x.a)
			x.a = na
		}
		if bNeeds && !x.b.AtEnd() {
			nb, _ := op(x.b)
			x.b = nb
		}
		// Once a side is exhausted, XOR degenerates to the surviving side:
		// every doc still to come can only be on one side, so collapse
		// rather than keep comparing against a stale DocID. Mirrors OR's
		// merge collapse.
		if x.a.AtEnd() && x.b.AtEnd() {
			return Empty, false
		}
		if x.a.AtEnd() {
			return x.b, !x.b.AtEnd()
		}
		if x.b.AtEnd() {
			return x.a, !x.a.AtEnd()
		}
		da, db := x.a.DocID(), x.b.DocID()
		switch {
		case da == db:
			// Present on both sides: excluded by XOR, keep scanning.
			aNeeds, bNeeds = true, true
			continue
		case da < db:
			x.docID, x.weight = da, x.a.Weight()
			return x, true
		default:
			x.docID, x.weight = db, x.b.Weight()
			return x, true
		}
	}
}
