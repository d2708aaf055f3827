package postlist

import "sort"

// nearNode implements NEAR(children, window): same doc-id intersection as
// PHRASE, but positions may appear in any order — any permutation of the
// children's position picks is allowed, as long as they all fall within
// a window-wide span.
type nearNode struct {
	conj   Node
	kids   []Node
	window uint32
	docID  uint64
	weight float64
}

// Near builds a NEAR node.
func Near(children []Node, window uint32) Node {
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
	return &nearNode{conj: conj, kids: children, window: window}
}

func (n *nearNode) AtEnd() bool             { return false }
func (n *nearNode) DocID() uint64           { return n.docID }
func (n *nearNode) Weight() float64         { return n.weight }
func (n *nearNode) TermFreqEst() int64      { return n.conj.TermFreqEst() }
func (n *nearNode) MaxWeight() float64      { return n.conj.MaxWeight() }
func (n *nearNode) RecalcMaxWeight() float64 { return n.conj.RecalcMaxWeight() }
func (n *nearNode) Positions() []uint32     { return nil }

func (n *nearNode) Next(minWeight float64) (Node, bool) {
	nc, ok := n.conj.Next(0)
	n.conj = nc
	if !ok {
		return Empty, false
	}
	return n.verifyForward()
}

func (n *nearNode) SkipTo(target uint64, minWeight float64) (Node, bool) {
	nc, ok := n.conj.SkipTo(target, 0)
	n.conj = nc
	if !ok {
		return Empty, false
	}
	return n.verifyForward()
}

func (n *nearNode) verifyForward() (Node, bool) {
	for {
		doc := n.conj.DocID()
		if n.matchesAt(doc) {
			n.docID = doc
			n.weight = n.conj.Weight()
			return n, true
		}
		nc, ok := n.conj.Next(0)
		n.conj = nc
		if !ok {
			return Empty, false
		}
	}
}

// matchesAt checks whether, across all permutations implicitly, there is
// a set of positions (one per child) spanning less than window — i.e. the
// classic "smallest window containing one element from each category"
// problem, solved by merging all (position, childIndex) pairs and sliding
// a window that must cover every child index at least once.
func (n *nearNode) matchesAt(doc uint64) bool {
	type tagged struct {
		pos   uint32
		child int
	}
	var all []tagged
	for i, k := range n.kids {
		nk, ok := k.SkipTo(doc, 0)
		n.kids[i] = nk
		if !ok || nk.DocID() != doc {
			return false
		}
		pos := nk.Positions()
		if len(pos) == 0 {
			return false
		}
		for _, p := range pos {
			all = append(all, tagged{pos: p, child: i})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].pos < all[j].pos })

	need := len(n.kids)
	count := make(map[int]int, need)
	distinct := 0
	left := 0
	for right := 0; right < len(all); right++ {
		c := all[right].child
		if count[c] == 0 {
			distinct++
		}
		count[c]++
		for distinct == need {
			span := all[right].pos - all[left].pos
			if span < n.window {
				return true
			}
			lc := all[left].child
			count[lc]--
			if count[lc] == 0 {
				distinct--
			}
			left++
		}
	}
	return false
}
