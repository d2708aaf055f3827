package postlist

// andNotNode implements AND-NOT(a,b): iterate a; for each candidate,
// advance b to >= candidate and skip if equal. Weight/maxweight come from
// a alone, since b is a pure exclusion mask.
type andNotNode struct {
	a, b  Node
	docID uint64
}

// AndNot builds an AND-NOT node. b == Empty means nothing is excluded, so
// the result is simply a.
func AndNot(a, b Node) Node {
	if a == Empty {
		return Empty
	}
	if b == Empty {
		return a
	}
	return &andNotNode{a: a, b: b}
}

func (n *andNotNode) AtEnd() bool             { return false }
func (n *andNotNode) DocID() uint64           { return n.docID }
func (n *andNotNode) Weight() float64         { return n.a.Weight() }
func (n *andNotNode) TermFreqEst() int64      { return n.a.TermFreqEst() }
func (n *andNotNode) MaxWeight() float64      { return n.a.MaxWeight() }
func (n *andNotNode) RecalcMaxWeight() float64 { return n.a.RecalcMaxWeight() }
func (n *andNotNode) Positions() []uint32     { return n.a.Positions() }

func (n *andNotNode) Next(minWeight float64) (Node, bool) {
	na, ok := n.a.Next(minWeight)
	n.a = na
	if !ok {
		return Empty, false
	}
	return n.skipExclusion()
}

func (n *andNotNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	na, ok := n.a.SkipTo(target, minWeight)
	n.a = na
	if !ok {
		return Empty, false
	}
	return n.skipExclusion()
}

// skipExclusion advances b past any doc equal to a's current position,
// repeating while a itself keeps landing on excluded docs.
func (n *andNotNode) skipExclusion() (Node, bool) {
	for {
		if n.b.AtEnd() {
			n.docID = n.a.DocID()
			return n, true
		}
		nb, ok := n.b.SkipTo(n.a.DocID(), 0)
		n.b = nb
		if !ok {
			n.docID = n.a.DocID()
			return n, true
		}
		if n.b.DocID() != n.a.DocID() {
			n.docID = n.a.DocID()
			return n, true
		}
		na, ok := n.a.Next(0)
		n.a = na
		if !ok {
			return Empty, false
		}
	}
}
