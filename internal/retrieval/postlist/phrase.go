package postlist

// phraseNode implements PHRASE(children, window): AND-intersect the
// children's doc-ids, then at each common doc verify there is a strictly
// increasing selection of positions p_1 < p_2 < ... < p_k, one per child in
// child order, with p_k - p_1 < window.
//
// A child lacking positional information never passes the position check,
// so a PHRASE over such a child matches no document and ends as Empty once
// its conjunction is exhausted; construction itself returns Empty only for
// an empty child list, an Empty child, or an Empty conjunction.
type phraseNode struct {
	conj    Node // n-ary AND over children, built by foldAnd
	kids    []Node
	window  uint32
	docID   uint64
	weight  float64
}

// Phrase builds a PHRASE node. children must already be positional leaves
// or subtrees that preserve Positions(); a doc at which any child reports
// nil/empty Positions fails the position check and is skipped.
func Phrase(children []Node, window uint32) Node {
	if len(children) == 0 {
		return Empty
	}
	for _, c := range children {
		if c == Empty {
			return Empty
		}
	}
	conj := children[0]
	for _, c := range children[1:] {
		conj = AND(conj, c)
	}
	if conj == Empty {
		return Empty
	}
	return &phraseNode{conj: conj, kids: children, window: window}
}

func (p *phraseNode) AtEnd() bool             { return false }
func (p *phraseNode) DocID() uint64           { return p.docID }
func (p *phraseNode) Weight() float64         { return p.weight }
func (p *phraseNode) TermFreqEst() int64      { return p.conj.TermFreqEst() }
func (p *phraseNode) MaxWeight() float64      { return p.conj.MaxWeight() }
func (p *phraseNode) RecalcMaxWeight() float64 { return p.conj.RecalcMaxWeight() }
func (p *phraseNode) Positions() []uint32     { return nil }

func (p *phraseNode) Next(minWeight float64) (Node, bool) {
	nc, ok := p.conj.Next(0)
	p.conj = nc
	if !ok {
		return Empty, false
	}
	return p.verifyForward(minWeight)
}

func (p *phraseNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	nc, ok := p.conj.SkipTo(target, 0)
	p.conj = nc
	if !ok {
		return Empty, false
	}
	return p.verifyForward(minWeight)
}

// verifyForward repeatedly advances the underlying conjunction until a
// doc satisfies the phrase's positional window, or the conjunction is
// exhausted.
func (p *phraseNode) verifyForward(minWeight float64) (Node, bool) {
	for {
		target := p.conj.DocID()
		if p.matchesAt(target) {
			p.docID = target
			p.weight = p.conj.Weight()
			return p, true
		}
		nc, ok := p.conj.Next(0)
		p.conj = nc
		if !ok {
			return Empty, false
		}
	}
}

// matchesAt re-aligns each original child to doc and checks the
// strict-order, bounded-window condition: a monotone selection
// p_1 < p_2 < ... < p_k across the children's Positions with
// p_k - p_1 < window. Children are skip_to-ed independently of p.conj
// because an n-ary AND fold only guarantees the doc-id agrees, not that
// every child node is itself positioned there after earlier decays.
func (p *phraseNode) matchesAt(doc uint64) bool {
	positions := make([][]uint32, len(p.kids))
	for i, k := range p.kids {
		nk, ok := k.SkipTo(doc, 0)
		p.kids[i] = nk
		if !ok || nk.DocID() != doc {
			return false
		}
		pos := nk.Positions()
		if len(pos) == 0 {
			return false
		}
		positions[i] = pos
	}
	return hasMonotoneSelection(positions, p.window)
}

// hasMonotoneSelection greedily picks, for each child in order, the
// smallest position strictly greater than the previous pick, then checks
// the span. This is the standard phrase-matching greedy algorithm: if a
// valid selection exists the greedy (smallest-next) choice also succeeds,
// since picking larger positions can only widen the span.
func hasMonotoneSelection(positions [][]uint32, window uint32) bool {
	// Try every viable starting position in the first child; for long
	// posting lists the match collector's min-weight pruning keeps this
	// bounded in practice, and phrase windows are small.
	for _, start := range positions[0] {
		p1 := start
		prev := start
		ok := true
		for _, plist := range positions[1:] {
			next, found := nextGreater(plist, prev)
			if !found {
				ok = false
				break
			}
			prev = next
		}
		if ok && prev-p1 < window {
			return true
		}
	}
	return false
}

// nextGreater binary-searches a sorted position list for the smallest
// value strictly greater than after.
func nextGreater(sorted []uint32, after uint32) (uint32, bool) {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		if sorted[mid] <= after {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(sorted) {
		return 0, false
	}
	return sorted[lo], true
}
