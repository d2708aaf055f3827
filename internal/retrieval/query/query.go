// Package query implements the planner of §4.7: canonicalisation of a
// user query tree (associative flattening, position-collapse, ill-formed
// composition rejection, optional OR-fan-out cap) and compilation into a
// postlist.Node tree. It is the new core planner that sits behind the
// reference platform's parser.Parse (internal/searcher/parser), which
// remains the caller-facing string syntax layer that builds the Node tree
// this package canonicalises and compiles.
package query

import (
	"context"
	"sort"
	"strconv"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/postlist"
	"github.com/vikram-desai/retrieva/internal/retrieval/weight"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

// Op identifies a Compound node's operator.
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpAndNot
	OpFilter
	OpXor
	OpPhrase
	OpNear
)

// Kind discriminates the Node variant.
type Kind int

const (
	KindTerm Kind = iota
	KindCompound
	KindEmpty
)

// Node is the user query tree: Term(name, wqf, pos) | Compound(op,
// children, window) | Empty, per §4.7.
type Node struct {
	Kind     Kind
	Term     string
	WQF      uint32
	Position uint32
	Op       Op
	Children []*Node
	Window   uint32
	Boolean  bool
}

// NewTerm builds a leaf term node with wqf=1.
func NewTerm(name string) *Node {
	return &Node{Kind: KindTerm, Term: name, WQF: 1}
}

// NewCompound builds a compound operator node.
func NewCompound(op Op, children ...*Node) *Node {
	return &Node{Kind: KindCompound, Op: op, Children: children}
}

// NewEmpty builds the Empty leaf.
func NewEmpty() *Node { return &Node{Kind: KindEmpty} }

// Plan is a canonicalised, ready-to-compile query.
type Plan struct {
	Root      *Node
	Length    float64 // sum of leaf wqfs, unless overridden
	Boolean   bool
	MaxOrTerms int
}

// Canonicalize flattens associative OR/AND, collapses position-identical
// OR duplicates, rejects ill-formed compositions, applies set_bool, and
// optionally caps OR fan-out, per §4.7.
func Canonicalize(root *Node, boolQuery bool, maxOrTerms int) (*Plan, error) {
	canon, err := canonicalizeNode(root, boolQuery, false)
	if err != nil {
		return nil, err
	}
	canon = applyOrCap(canon, maxOrTerms)
	length := queryLength(canon)
	return &Plan{Root: canon, Length: length, Boolean: boolQuery, MaxOrTerms: maxOrTerms}, nil
}

// canonicalizeNode recurses bottom-up. boolQuery is the ambient flag
// inherited from an enclosing set_bool(true): it propagates down to every
// descendant, so a node under it is never "independently" boolean. n.Boolean
// on entry instead holds a node's own set_bool marking, set directly by a
// caller on a specific sub-query rather than inherited — the two are kept
// distinct so the "boolean sub-query rule" (a node independently marked
// boolean cannot sit under a non-FILTER compound while its enclosing query
// isn't itself boolean) only fires on genuine independent nesting, not on
// every descendant of a whole-query set_bool(true).
func canonicalizeNode(n *Node, boolQuery bool, isFilterRHS bool) (*Node, error) {
	if n == nil || n.Kind == KindEmpty {
		return &Node{Kind: KindEmpty}, nil
	}
	ownBoolean := n.Boolean
	effectiveBoolean := boolQuery || ownBoolean

	if n.Kind == KindTerm {
		if n.Term == "" {
			return nil, rerr.New(rerr.ErrInvalidArgument, 400, "term node with empty name")
		}
		if n.WQF < 1 {
			n.WQF = 1
		}
		if n.Position == 0 {
			n.Position = 1
		}
		n.Boolean = effectiveBoolean
		return n, nil
	}

	// Compound: recurse into children first, passing this node's own
	// effective boolean status down as their ambient flag.
	children := make([]*Node, 0, len(n.Children))
	for i, c := range n.Children {
		childIsFilterRHS := n.Op == OpFilter && i == 1
		cc, err := canonicalizeNode(c, effectiveBoolean, childIsFilterRHS)
		if err != nil {
			return nil, err
		}
		if cc.Kind == KindEmpty && n.Op != OpOr {
			return nil, rerr.New(rerr.ErrInvalidArgument, 400, "empty sub-query as operand of a non-OR compound")
		}
		// cc.Boolean is true here only if boolQuery/effectiveBoolean was
		// already true (inherited, not independent) or the child carried
		// its own set_bool marking; the former is filtered out by
		// !effectiveBoolean so a whole-query set_bool never trips this.
		if cc.Boolean && !effectiveBoolean && n.Op != OpFilter && !isFilterRHS {
			return nil, rerr.New(rerr.ErrInvalidArgument, 400, "boolean sub-query nested under a non-FILTER compound")
		}
		children = append(children, cc)
	}

	if n.Op == OpOr || n.Op == OpAnd {
		children = flatten(n.Op, children)
	}
	if n.Op == OpOr {
		children = collapsePositions(children)
	}
	if len(children) == 0 {
		return &Node{Kind: KindEmpty}, nil
	}

	out := &Node{Kind: KindCompound, Op: n.Op, Children: children, Window: n.Window, Boolean: effectiveBoolean}
	return out, nil
}

// flatten implements associative flattening: OR(OR(a,b),c) -> OR(a,b,c),
// same for AND. PHRASE/NEAR are never flattened since their semantics
// depend on sibling boundaries.
func flatten(op Op, children []*Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		if c.Kind == KindCompound && c.Op == op {
			out = append(out, c.Children...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// collapsePositions merges OR children that are identical (same term
// name, same position) by summing wqfs and deleting duplicates.
func collapsePositions(children []*Node) []*Node {
	byKey := map[string]*Node{}
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		if c.Kind != KindTerm {
			out = append(out, c)
			continue
		}
		key := c.Term + "\x00" + strconv.FormatUint(uint64(c.Position), 10)
		if existing, ok := byKey[key]; ok {
			existing.WQF += c.WQF
			continue
		}
		dup := *c
		byKey[key] = &dup
		out = append(out, &dup)
	}
	return out
}

// applyOrCap cuts any OR node (after flattening, including nested ORs) down
// to the maxOrTerms children with the highest staticMaxWeightHint, i.e. the
// highest wqf (summed over a subtree's leaves). Each term's maxweight from
// backend statistics is not consulted, so children with equal wqf rank
// alike whatever their idf, and the stable sort keeps the earlier ones.
// maxOrTerms <= 0 means unlimited.
func applyOrCap(n *Node, maxOrTerms int) *Node {
	if n.Kind != KindCompound {
		return n
	}
	for i, c := range n.Children {
		n.Children[i] = applyOrCap(c, maxOrTerms)
	}
	if n.Op == OpOr && maxOrTerms > 0 && len(n.Children) > maxOrTerms {
		sort.SliceStable(n.Children, func(i, j int) bool {
			return staticMaxWeightHint(n.Children[i]) > staticMaxWeightHint(n.Children[j])
		})
		n.Children = n.Children[:maxOrTerms]
	}
	return n
}

// staticMaxWeightHint ranks a child node by expected contribution before
// iterator construction: a term's wqf is a cheap proxy for its eventual
// maxweight (both scale the same way with within-query frequency), since
// compiling every candidate purely to rank it would defeat the cap's
// purpose.
func staticMaxWeightHint(n *Node) float64 {
	if n.Kind == KindTerm {
		return float64(n.WQF)
	}
	var sum float64
	for _, c := range n.Children {
		sum += staticMaxWeightHint(c)
	}
	return sum
}

// queryLength sums leaf wqfs, per §4.7 ("defaults to the sum of leaf
// wqfs but may be overridden" — the override is Plan.Length being
// reassigned by the caller after Canonicalize returns).
func queryLength(n *Node) float64 {
	if n.Kind == KindTerm {
		return float64(n.WQF)
	}
	var sum float64
	for _, c := range n.Children {
		sum += queryLength(c)
	}
	return sum
}

// Build synthesises a postlist.Node tree bottom-up from a canonicalised
// Plan, opening backend posting iterators for every term leaf. The root's
// static MaxWeight seeds the collector's max_possible.
func Build(ctx context.Context, b backend.Backend, plan *Plan) (postlist.Node, error) {
	return build(ctx, b, plan.Root, plan.Length, plan.Boolean)
}

func build(ctx context.Context, b backend.Backend, n *Node, qlen float64, boolQuery bool) (postlist.Node, error) {
	if n == nil || n.Kind == KindEmpty {
		return postlist.Empty, nil
	}
	if n.Kind == KindTerm {
		return buildLeaf(ctx, b, n, qlen, boolQuery, needsPositions(n))
	}

	switch n.Op {
	case OpPhrase, OpNear:
		kids := make([]postlist.Node, 0, len(n.Children))
		for _, c := range n.Children {
			cn, err := buildPositional(ctx, b, c, qlen, boolQuery)
			if err != nil {
				return nil, err
			}
			kids = append(kids, cn)
		}
		if n.Op == OpPhrase {
			return postlist.Phrase(kids, n.Window), nil
		}
		return postlist.Near(kids, n.Window), nil
	}

	kids := make([]postlist.Node, 0, len(n.Children))
	for _, c := range n.Children {
		cn, err := build(ctx, b, c, qlen, boolQuery)
		if err != nil {
			return nil, err
		}
		kids = append(kids, cn)
	}
	if len(kids) == 0 {
		return postlist.Empty, nil
	}

	switch n.Op {
	case OpOr:
		acc := kids[0]
		for _, k := range kids[1:] {
			acc = postlist.OR(acc, k)
		}
		return acc, nil
	case OpAnd:
		acc := kids[0]
		for _, k := range kids[1:] {
			acc = postlist.AND(acc, k)
		}
		return acc, nil
	case OpAndNot:
		acc := kids[0]
		for _, k := range kids[1:] {
			acc = postlist.AndNot(acc, k)
		}
		return acc, nil
	case OpFilter:
		acc := kids[0]
		for _, k := range kids[1:] {
			acc = postlist.Filter(acc, k)
		}
		return acc, nil
	case OpXor:
		acc := kids[0]
		for _, k := range kids[1:] {
			acc = postlist.Xor(acc, k)
		}
		return acc, nil
	default:
		return postlist.Empty, nil
	}
}

// needsPositions reports whether a leaf is reachable from a PHRASE/NEAR
// ancestor; Build always opens positional iterators for simplicity and
// correctness (a non-positional caller pays a small, acceptable cost),
// rather than threading ancestor context through every recursive call.
func needsPositions(*Node) bool { return true }

// buildPositional compiles a PHRASE/NEAR child, which per §3 must reduce
// to Empty if it lacks positional information — enforced here by
// requesting positions and letting postlist.Phrase/Near's own
// Positions()-is-empty check at match time handle backends that cannot
// supply them.
func buildPositional(ctx context.Context, b backend.Backend, n *Node, qlen float64, boolQuery bool) (postlist.Node, error) {
	return build(ctx, b, n, qlen, boolQuery)
}

func buildLeaf(ctx context.Context, b backend.Backend, n *Node, qlen float64, boolQuery bool, withPositions bool) (postlist.Node, error) {
	tf, exists, err := b.TermFreq(ctx, n.Term)
	if err != nil {
		return nil, err
	}
	if !exists {
		return postlist.Empty, nil
	}
	collSize, err := b.DocCount(ctx)
	if err != nil {
		return nil, err
	}
	avgLen, err := b.AvgLength(ctx)
	if err != nil {
		return nil, err
	}
	it, err := b.PostingList(ctx, n.Term, withPositions)
	if err != nil {
		return nil, err
	}
	model := weight.NewModel(weight.Stats{CollectionSize: collSize, TermFreq: tf, AvgLength: avgLen}, n.WQF, qlen, boolQuery)
	return postlist.NewLeaf(ctx, it, b.DocLength, model), nil
}
