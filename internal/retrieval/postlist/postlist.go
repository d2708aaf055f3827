// Package postlist implements the posting-list iterator algebra: a tree of
// lazy iterators over (doc-id, weight) pairs with per-node upper-bound
// maxweight, built on the cost-ordered alignment idiom grounded in
// Khanh-21522203-GoSearch's ConjunctionIterator.
//
// Every node is self-replacing: Next/SkipTo return the Node that should
// replace the caller's pointer going forward, which lets an operator decay
// into a cheaper equivalent once a branch is exhausted (an OR with one dead
// side becomes its surviving side; an AND with either side dead becomes
// Empty). Callers must always re-parent to the returned Node, never assume
// the receiver is still the current node.
package postlist

// Node is one entry in the posting-list iterator algebra.
type Node interface {
	// AtEnd reports whether the node has no more postings. Sticky: once
	// true, it never reverts to false.
	AtEnd() bool
	// DocID is the current doc-id. Valid only when not AtEnd and the
	// node has been positioned by at least one Next/SkipTo.
	DocID() uint64
	// Weight is the current posting's contributed weight.
	Weight() float64
	// TermFreqEst is an estimate of the remaining number of matching
	// documents, used by planners to choose a cost-ordered lead.
	TermFreqEst() int64
	// MaxWeight is the static upper bound on Weight for any posting this
	// node (or anything it has decayed into) can still yield.
	MaxWeight() float64
	// RecalcMaxWeight tightens MaxWeight using the node's current
	// position; monotonically non-increasing across calls.
	RecalcMaxWeight() float64
	// Next advances so that DocID() > previous DocID(), honoring
	// minWeight as a pruning hint (see Leaf/OR/AND comments). Returns the
	// node that should replace the caller's pointer, and whether it is
	// now positioned at a new doc (false iff AtEnd on the replacement).
	Next(minWeight float64) (Node, bool)
	// SkipTo advances to the first doc-id >= target, or is a no-op if the
	// cursor is already past target. Same replacement contract as Next.
	SkipTo(target uint64, minWeight float64) (Node, bool)
	// Positions returns the current doc's sorted position list, or nil if
	// this node has none (e.g. a non-positional leaf, or a non-leaf node
	// not modeling positions itself).
	Positions() []uint32
}

// emptyNode is the Empty node of §4.2: yields nothing, termfreq 0,
// maxweight 0. A singleton since it carries no state.
type emptyNode struct{}

// Empty is the shared Empty node instance.
var Empty Node = emptyNode{}

func (emptyNode) AtEnd() bool                                   { return true }
func (emptyNode) DocID() uint64                                 { return 0 }
func (emptyNode) Weight() float64                                { return 0 }
func (emptyNode) TermFreqEst() int64                             { return 0 }
func (emptyNode) MaxWeight() float64                             { return 0 }
func (emptyNode) RecalcMaxWeight() float64                       { return 0 }
func (e emptyNode) Next(float64) (Node, bool)                    { return e, false }
func (e emptyNode) SkipTo(uint64, float64) (Node, bool)          { return e, false }
func (emptyNode) Positions() []uint32                            { return nil }
