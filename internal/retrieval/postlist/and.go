package postlist

// andNode implements AND(a,b): align by repeated SkipTo, emit only when
// both sides land on the same doc-id, weight = w_a + w_b. Grounded on
// Khanh-21522203-GoSearch's ConjunctionIterator.align, generalized from an
// n-ary slice to a binary node (query.Build folds an n-ary AND pairwise).
type andNode struct {
	a, b    Node
	started bool
	docID   uint64
	weight  float64
}

// AND builds an AND node over two children. Either child already being
// Empty makes the conjunction Empty immediately.
func AND(a, b Node) Node {
	if a == Empty || b == Empty {
		return Empty
	}
	return &andNode{a: a, b: b}
}

func (n *andNode) AtEnd() bool          { return false }
func (n *andNode) DocID() uint64        { return n.docID }
func (n *andNode) Weight() float64      { return n.weight }
func (n *andNode) TermFreqEst() int64 {
	af, bf := n.a.TermFreqEst(), n.b.TermFreqEst()
	if af < bf {
		return af
	}
	return bf
}
func (n *andNode) MaxWeight() float64       { return n.a.MaxWeight() + n.b.MaxWeight() }
func (n *andNode) RecalcMaxWeight() float64 { return n.a.RecalcMaxWeight() + n.b.RecalcMaxWeight() }

func (n *andNode) Positions() []uint32 { return nil }

func (n *andNode) Next(minWeight float64) (Node, bool) {
	if !n.started {
		n.started = true
		na, ok := n.a.Next(0)
		n.a = na
		if !ok {
			return Empty, false
		}
		return n.align(n.a.DocID(), minWeight)
	}
	na, ok := n.a.Next(0)
	n.a = na
	if !ok {
		return Empty, false
	}
	return n.align(n.a.DocID(), minWeight)
}

func (n *andNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	n.started = true
	na, ok := n.a.SkipTo(target, 0)
	n.a = na
	if !ok {
		return Empty, false
	}
	return n.align(n.a.DocID(), minWeight)
}

// align drives both sides with repeated SkipTo until they agree on a
// doc-id, following ConjunctionIterator.align's "lead may have landed
// past target" loop.
func (n *andNode) align(target uint64, minWeight float64) (Node, bool) {
	for {
		nb, ok := n.b.SkipTo(target, 0)
		n.b = nb
		if !ok {
			return Empty, false
		}
		if n.b.DocID() == target {
			n.docID = target
			n.weight = n.a.Weight() + n.b.Weight()
			return n, true
		}
		target = n.b.DocID()
		na, ok := n.a.SkipTo(target, 0)
		n.a = na
		if !ok {
			return Empty, false
		}
		target = n.a.DocID()
	}
}
